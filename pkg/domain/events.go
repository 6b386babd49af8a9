package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeLeave   EventType = "node_leave"
	EventModelCall   EventType = "model_call"
	EventModelReturn EventType = "model_return"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry or exit from a node. Signal and Err are only
// set on leave.
type NodeEvent struct {
	EventBase
	NodeID NodeID `json:"node_id"`
	Family Family `json:"family"`
	Signal Signal `json:"signal,omitempty"`
	Err    error  `json:"-"`
}

// ModelEvent represents a language-model round trip.
type ModelEvent struct {
	EventBase
	NodeID   NodeID        `json:"node_id"`
	Model    string        `json:"model"`
	Attempt  int           `json:"attempt,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnNodeLeave   func(context.Context, *NodeEvent)
	OnModelCall   func(context.Context, *ModelEvent)
	OnModelReturn func(context.Context, *ModelEvent)
}

// Merge combines hooks so that both run, h first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:   chainNode(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:   chainNode(h.OnNodeLeave, other.OnNodeLeave),
		OnModelCall:   chainModel(h.OnModelCall, other.OnModelCall),
		OnModelReturn: chainModel(h.OnModelReturn, other.OnModelReturn),
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainModel(a, b func(context.Context, *ModelEvent)) func(context.Context, *ModelEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *ModelEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
