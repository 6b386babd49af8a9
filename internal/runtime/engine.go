package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sieve/internal/logging"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
	"github.com/aretw0/sieve/pkg/session"
)

// Collaborators are the external systems the nodes call.
type Collaborators struct {
	Model   ports.LanguageModel
	Source  ports.DataSource
	Reports ports.ReportSink
	Output  ports.OutputSink
}

// Engine drives a session through the transition table. It runs one node
// at a time, applies the node's delta and stops at the first pause,
// terminal node or failure.
type Engine struct {
	collab   Collaborators
	sessions *session.Manager

	nodes      map[domain.NodeID]Node
	gatekeeper *gatekeeper

	hooks             domain.LifecycleHooks
	logger            *slog.Logger
	maxIterations     int
	maxAnalysisRounds int
	now               func() time.Time
}

// NewEngine creates an engine persisting sessions in store.
func NewEngine(store ports.StateStore, collab Collaborators, opts ...EngineOption) *Engine {
	e := &Engine{
		collab:            collab,
		logger:            logging.NewNop(),
		maxIterations:     DefaultMaxIterations,
		maxAnalysisRounds: DefaultMaxAnalysisRounds,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sessions == nil {
		e.sessions = session.NewManager(store, session.WithLogger(e.logger), session.WithClock(e.now))
	}
	e.buildNodes()
	return e
}

func (e *Engine) buildNodes() {
	caller := &modelCaller{model: e.collab.Model, hooks: e.hooks, logger: e.logger, now: e.now}
	e.gatekeeper = &gatekeeper{
		checkpoint: e.checkpoint,
		maxRounds:  e.maxAnalysisRounds,
		now:        e.now,
	}

	nodes := []Node{
		&loadNode{source: e.collab.Source, logger: e.logger},
		&analyzeNode{caller: caller},
		e.gatekeeper,
		&optimizeNode{logger: e.logger},
		&reportNode{sink: e.collab.Reports},
		&prepareNode{source: e.collab.Source, logger: e.logger},
		&parseNode{caller: caller, logger: e.logger},
		&validateNode{maxIterations: e.maxIterations, logger: e.logger},
		&outputNode{sink: e.collab.Output, now: e.now},
	}
	e.nodes = make(map[domain.NodeID]Node, len(nodes))
	for _, n := range nodes {
		e.nodes[n.ID()] = n
	}
}

// Sessions returns the session manager the engine persists through.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Start registers a new session and runs it until it pauses or ends.
// The returned error is non-nil only when the session could not be
// started; node failures are reported through the Outcome.
func (e *Engine) Start(ctx context.Context, initial *domain.State) (*domain.Outcome, error) {
	if initial == nil || initial.SessionID == "" {
		return nil, errors.New("start: session id is required")
	}
	s := initial.Clone()
	s.Status = domain.StatusInProgress
	if s.CurrentNodeID == "" {
		s.CurrentNodeID = domain.NodeLoadData
	}
	s.UpdatedAt = e.now()

	if err := e.sessions.Start(ctx, s); err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "session started",
		"session_id", s.SessionID, "node", s.CurrentNodeID, "model", s.Model)
	return e.run(ctx, s, nil), nil
}

// Resume delivers a gatekeeper command to a paused session and runs it
// until the next pause or the end.
func (e *Engine) Resume(ctx context.Context, sessionID string, cmd domain.Command) (*domain.Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	s, err := e.sessions.Claim(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.CurrentNodeID != domain.NodeGatekeeper {
		return e.fail(ctx, s, s.CurrentNodeID, fmt.Errorf("%w: paused at %s", domain.ErrSessionNotPaused, s.CurrentNodeID)), nil
	}

	paused := s.Clone()
	delta, sig := e.gatekeeper.Resume(s, cmd)
	s = delta.Apply(s)
	e.emitNodeLeave(ctx, s, domain.NodeGatekeeper, sig, nil)
	e.logger.InfoContext(ctx, "session resumed",
		"session_id", sessionID, "decision", cmd.Decision, "signal", sig)

	next, ok := domain.Next(domain.NodeGatekeeper, sig)
	if !ok {
		return e.fail(ctx, s, domain.NodeGatekeeper, noTransition(domain.NodeGatekeeper, sig)), nil
	}
	s.CurrentNodeID = next
	return e.run(ctx, s, paused), nil
}

// Inspect loads a session without claiming it.
func (e *Engine) Inspect(ctx context.Context, sessionID string) (*domain.State, error) {
	return e.sessions.Load(ctx, sessionID)
}

// List returns the stored session IDs.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Discard removes a stored session. In-progress sessions are refused.
func (e *Engine) Discard(ctx context.Context, sessionID string) error {
	return e.sessions.Discard(ctx, sessionID)
}

// ForceDiscard removes a stored session whatever its status.
func (e *Engine) ForceDiscard(ctx context.Context, sessionID string) error {
	return e.sessions.ForceDiscard(ctx, sessionID)
}

// run drives s until a pause or the end. paused is the gatekeeper record
// the run was resumed from; a cancelled run puts it back instead of
// terminating the session.
func (e *Engine) run(ctx context.Context, s *domain.State, paused *domain.State) *domain.Outcome {
	phaseFailed := false
	for {
		id := s.CurrentNodeID
		if id == domain.NodeEnd {
			return e.finish(ctx, s, phaseFailed)
		}
		if err := ctx.Err(); err != nil {
			if paused != nil {
				return e.interrupt(ctx, paused, id, err)
			}
			return e.fail(ctx, s, id, err)
		}
		node, ok := e.nodes[id]
		if !ok {
			return e.fail(ctx, s, id, fmt.Errorf("%w: %s", domain.ErrUnknownNode, id))
		}

		s = e.enter(ctx, s, id)
		delta, sig, err := node.Run(ctx, s)
		e.emitNodeLeave(ctx, s, id, sig, err)
		if err != nil {
			if paused != nil && cancelled(ctx, err) {
				return e.interrupt(ctx, paused, id, err)
			}
			return e.fail(ctx, s, id, err)
		}

		s = delta.Apply(s)
		s.UpdatedAt = e.now()

		if sig == domain.SignalPaused {
			s.Status = domain.StatusPaused
			e.logger.InfoContext(ctx, "session paused", "session_id", s.SessionID, "node", id)
			return &domain.Outcome{Kind: domain.OutcomePaused, SessionID: s.SessionID, Node: id, State: s}
		}
		if sig == domain.SignalPhaseFailed {
			phaseFailed = true
		}

		next, ok := domain.Next(id, sig)
		if !ok {
			return e.fail(ctx, s, id, noTransition(id, sig))
		}
		e.logger.DebugContext(ctx, "transition", "from", id, "signal", sig, "to", next)
		s.CurrentNodeID = next
	}
}

func (e *Engine) enter(ctx context.Context, s *domain.State, id domain.NodeID) *domain.State {
	next := s.Clone()
	next.Trail = append(next.Trail, id)
	e.emitNodeEnter(ctx, next, id)
	return next
}

// checkpoint persists s for a later Resume. It runs inside the gatekeeper
// so the save completes before the pause reaches the host.
func (e *Engine) checkpoint(ctx context.Context, s *domain.State) error {
	if err := e.sessions.Save(ctx, s.SessionID, s); err != nil {
		return fmt.Errorf("checkpoint session %s: %w", s.SessionID, err)
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, s *domain.State, phaseFailed bool) *domain.Outcome {
	s.Status = domain.StatusTerminated
	last := domain.NodeEnd
	if n := len(s.Trail); n > 0 {
		last = s.Trail[n-1]
	}

	if err := e.sessions.Delete(context.WithoutCancel(ctx), s.SessionID); err != nil {
		e.logger.WarnContext(ctx, "failed to delete finished session", "session_id", s.SessionID, "err", err)
	}

	out := &domain.Outcome{Kind: domain.OutcomeCompleted, SessionID: s.SessionID, Node: last, State: s}
	if phaseFailed {
		out.Kind = domain.OutcomePhaseFailed
		out.Errors = append([]string{}, s.FailureLog...)
	}
	e.logger.InfoContext(ctx, "session finished",
		"session_id", s.SessionID, "outcome", out.Kind,
		"report", s.ReportPath, "output", s.OutputPath)
	return out
}

// fail marks the session terminated and keeps it in the store for audit.
func (e *Engine) fail(ctx context.Context, s *domain.State, id domain.NodeID, cause error) *domain.Outcome {
	err := &domain.NodeFailed{Node: id, Cause: cause}
	s = s.Clone()
	s.Status = domain.StatusTerminated
	s.LastError = err.Error()
	s.UpdatedAt = e.now()

	if serr := e.sessions.Save(context.WithoutCancel(ctx), s.SessionID, s); serr != nil {
		e.logger.ErrorContext(ctx, "failed to record failed session", "session_id", s.SessionID, "err", serr)
	}
	e.logger.ErrorContext(ctx, "node failed", "session_id", s.SessionID, "node", id, "err", cause)
	return &domain.Outcome{Kind: domain.OutcomeFailed, SessionID: s.SessionID, Node: id, State: s, Err: err}
}

// interrupt returns a resumed session to its gatekeeper checkpoint after the
// host cancelled the run. The command that resumed it is not recorded.
func (e *Engine) interrupt(ctx context.Context, paused *domain.State, id domain.NodeID, cause error) *domain.Outcome {
	err := &domain.NodeFailed{Node: id, Cause: cause}
	s := paused.Clone()
	s.Status = domain.StatusPaused
	s.CurrentNodeID = domain.NodeGatekeeper
	s.UpdatedAt = e.now()

	if serr := e.sessions.Save(context.WithoutCancel(ctx), s.SessionID, s); serr != nil {
		e.logger.ErrorContext(ctx, "failed to restore paused session", "session_id", s.SessionID, "err", serr)
	}
	e.logger.WarnContext(ctx, "run interrupted, session left paused", "session_id", s.SessionID, "node", id, "err", cause)
	return &domain.Outcome{Kind: domain.OutcomeFailed, SessionID: s.SessionID, Node: id, State: s, Err: err}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func noTransition(from domain.NodeID, sig domain.Signal) error {
	return fmt.Errorf("%w: %s on %q", domain.ErrNoTransition, from, sig)
}
