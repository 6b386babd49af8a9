package runtime

import (
	"context"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
)

// gatekeeper is the only node that suspends a session. Run checkpoints and
// pauses; Resume maps the human decision onto a delta and a signal.
type gatekeeper struct {
	checkpoint func(context.Context, *domain.State) error
	maxRounds  int
	now        func() time.Time
}

func (g *gatekeeper) ID() domain.NodeID { return domain.NodeGatekeeper }

func (g *gatekeeper) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	paused := s.Clone()
	paused.Status = domain.StatusPaused
	paused.CurrentNodeID = domain.NodeGatekeeper
	paused.UpdatedAt = g.now()
	if err := g.checkpoint(ctx, paused); err != nil {
		return domain.Delta{}, "", err
	}
	return domain.Delta{}, domain.SignalPaused, nil
}

// Resume records cmd in the review history and picks the route. The
// command must already be valid.
func (g *gatekeeper) Resume(s *domain.State, cmd domain.Command) (domain.Delta, domain.Signal) {
	entry := domain.ReviewEntry{
		Decision:  cmd.Decision,
		Feedback:  cmd.Feedback,
		Path:      cmd.Path,
		Timestamp: g.now(),
	}
	d := domain.Delta{AppendReview: []domain.ReviewEntry{entry}}

	switch cmd.Decision {
	case domain.DecisionApprove:
		return d, domain.SignalApprove
	case domain.DecisionSkip:
		if s.RawRules != nil {
			d.TransformedRules = domain.Ptr(*s.RawRules)
		}
		return d, domain.SignalSkip
	case domain.DecisionReject:
		if s.AnalysisRounds >= g.maxRounds {
			return d, domain.SignalRejectExhausted
		}
		return d, domain.SignalReject
	case domain.DecisionEdit:
		d.RulesSource = domain.Ptr(cmd.Path)
		d.ClearSources = true
		return d, domain.SignalEdit
	default:
		return d, domain.SignalQuit
	}
}
