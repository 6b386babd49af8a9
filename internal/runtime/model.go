package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

// modelCaller wraps the language model with logging and model hooks.
type modelCaller struct {
	model  ports.LanguageModel
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

func (c *modelCaller) invoke(ctx context.Context, s *domain.State, node domain.NodeID, attempt int, prompt string) (string, error) {
	if c.model == nil {
		return "", &domain.CollaboratorFault{Kind: "model", Detail: "no language model configured"}
	}

	base := domain.EventBase{Timestamp: c.now(), Type: domain.EventModelCall, SessionID: s.SessionID}
	if c.hooks.OnModelCall != nil {
		c.hooks.OnModelCall(ctx, &domain.ModelEvent{EventBase: base, NodeID: node, Model: s.Model, Attempt: attempt})
	}
	c.logger.InfoContext(ctx, "invoking model", "node", node, "model", s.Model, "attempt", attempt)

	start := time.Now()
	text, err := c.model.Invoke(ctx, s.Model, prompt)
	elapsed := time.Since(start)

	if c.hooks.OnModelReturn != nil {
		base.Timestamp = c.now()
		base.Type = domain.EventModelReturn
		c.hooks.OnModelReturn(ctx, &domain.ModelEvent{
			EventBase: base, NodeID: node, Model: s.Model, Attempt: attempt,
			Duration: elapsed, IsError: err != nil,
		})
	}
	if err != nil {
		var fault *domain.CollaboratorFault
		if !errors.As(err, &fault) {
			err = &domain.CollaboratorFault{Kind: "model", Detail: err.Error(), Err: err}
		}
		return "", fmt.Errorf("invoke %s: %w", s.Model, err)
	}
	c.logger.DebugContext(ctx, "model returned", "node", node, "duration", elapsed, "chars", len(text))
	return text, nil
}
