package domain

// OutcomeKind tags how a run (or a resumed run) ended.
type OutcomeKind string

const (
	OutcomeCompleted   OutcomeKind = "completed"
	OutcomePhaseFailed OutcomeKind = "phase_failed"
	OutcomePaused      OutcomeKind = "paused"
	OutcomeFailed      OutcomeKind = "failed"
)

// Outcome is returned by every engine entry point. Hosts switch on Kind;
// a paused session is never a failure.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	SessionID string      `json:"session_id"`
	// Node is where execution stopped: the gatekeeper when paused, the
	// failing node when failed, the last node otherwise.
	Node   NodeID   `json:"node"`
	State  *State   `json:"state,omitempty"`
	Errors []string `json:"errors,omitempty"`
	Err    error    `json:"-"`
}

func (o *Outcome) IsPaused() bool    { return o != nil && o.Kind == OutcomePaused }
func (o *Outcome) IsCompleted() bool { return o != nil && o.Kind == OutcomeCompleted }
func (o *Outcome) IsFailed() bool    { return o != nil && o.Kind == OutcomeFailed }

// Error returns the cause for failed and phase-failed outcomes.
func (o *Outcome) Error() error {
	if o == nil {
		return nil
	}
	switch o.Kind {
	case OutcomeFailed:
		return o.Err
	case OutcomePhaseFailed:
		return &PhaseFailed{Errors: o.Errors}
	}
	return nil
}
