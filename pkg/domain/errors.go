package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSourceNotFound is returned when a mandatory input file is missing.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSessionInProgress is returned when another run already owns the session.
	ErrSessionInProgress = errors.New("session is in progress")

	// ErrSessionNotPaused is returned when resuming a session that is not waiting for a command.
	ErrSessionNotPaused = errors.New("session is not paused")

	// ErrSessionExists is returned when starting over a live session key.
	ErrSessionExists = errors.New("session already exists")

	ErrUnknownCommand    = errors.New("unknown command")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoTransition      = errors.New("no transition")
	ErrUnknownNode       = errors.New("unknown node")
)

// IOFault wraps a failure to read a mandatory source or write an artifact.
type IOFault struct {
	Path string
	Err  error
}

func (e *IOFault) Error() string {
	return fmt.Sprintf("io fault on %s: %v", e.Path, e.Err)
}

func (e *IOFault) Unwrap() error { return e.Err }

// CollaboratorFault is what an external collaborator (language model, sink)
// reports when a call fails.
type CollaboratorFault struct {
	Kind   string
	Detail string
	Err    error
}

func (e *CollaboratorFault) Error() string {
	if e.Detail == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *CollaboratorFault) Unwrap() error { return e.Err }

// NodeFailed is surfaced to the host when a node returns an error.
type NodeFailed struct {
	Node  NodeID
	Cause error
}

func (e *NodeFailed) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.Node, e.Cause)
}

func (e *NodeFailed) Unwrap() error { return e.Cause }

// ValidationKind classifies one validation defect.
type ValidationKind string

const (
	KindNotAMapping       ValidationKind = "NotAMapping"
	KindMissingKey        ValidationKind = "MissingKey"
	KindMalformedResponse ValidationKind = "MalformedResponse"
	KindSchemaViolation   ValidationKind = "SchemaViolation"
	KindUnknownPriority   ValidationKind = "UnknownPriority"
	KindMissingPriority   ValidationKind = "MissingPriority"
	KindHierarchyOrder    ValidationKind = "HierarchyOrder"
)

// ValidationFailure is one defect found in a parse attempt.
type ValidationFailure struct {
	Kind   ValidationKind
	Detail string
}

func (v ValidationFailure) Error() string {
	if v.Detail == "" {
		return string(v.Kind)
	}
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}

// PhaseFailed carries the accumulated failure log once the retry cap is spent.
type PhaseFailed struct {
	Errors []string
}

func (e *PhaseFailed) Error() string {
	return fmt.Sprintf("phase failed after %d validation errors", len(e.Errors))
}
