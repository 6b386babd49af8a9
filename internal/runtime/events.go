package runtime

import (
	"context"

	"github.com/aretw0/sieve/pkg/domain"
)

func (e *Engine) emitNodeEnter(ctx context.Context, s *domain.State, id domain.NodeID) {
	e.logger.DebugContext(ctx, "node enter", "session_id", s.SessionID, "node", id)
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeEnter, SessionID: s.SessionID},
		NodeID:    id,
		Family:    domain.FamilyOf(id),
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, s *domain.State, id domain.NodeID, sig domain.Signal, err error) {
	e.logger.DebugContext(ctx, "node leave", "session_id", s.SessionID, "node", id, "signal", sig)
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeLeave, SessionID: s.SessionID},
		NodeID:    id,
		Family:    domain.FamilyOf(id),
		Signal:    sig,
		Err:       err,
	})
}
