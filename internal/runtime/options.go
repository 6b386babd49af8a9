package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/session"
)

const (
	// DefaultMaxIterations bounds parse attempts per session.
	DefaultMaxIterations = 3
	// DefaultMaxAnalysisRounds bounds analyze runs before a reject ends phase 1.
	DefaultMaxAnalysisRounds = 5
)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxIterations overrides the parse retry cap.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithMaxAnalysisRounds overrides how many analyze runs a reject may trigger.
func WithMaxAnalysisRounds(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAnalysisRounds = n
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSessionManager shares a session manager (and its locks) with other
// surfaces of the same process.
func WithSessionManager(m *session.Manager) EngineOption {
	return func(e *Engine) {
		e.sessions = m
	}
}
