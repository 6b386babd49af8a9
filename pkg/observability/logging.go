package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/sieve/pkg/domain"
)

// LoggingHooks writes an audit record for every node transition and model
// round trip.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "node_enter",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"family", e.Family,
			)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_leave",
					"session_id", e.SessionID, "node_id", e.NodeID, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "node_leave",
				"session_id", e.SessionID, "node_id", e.NodeID, "signal", e.Signal)
		},
		OnModelCall: func(ctx context.Context, e *domain.ModelEvent) {
			logger.InfoContext(ctx, "model_call",
				"session_id", e.SessionID, "node_id", e.NodeID, "model", e.Model, "attempt", e.Attempt)
		},
		OnModelReturn: func(ctx context.Context, e *domain.ModelEvent) {
			logger.InfoContext(ctx, "model_return",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
	}
}
