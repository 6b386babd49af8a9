package sieve

import (
	"log/slog"
	"time"

	"github.com/aretw0/sieve/internal/runtime"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLanguageModel sets the model every generative node calls.
func WithLanguageModel(m ports.LanguageModel) Option {
	return func(e *Engine) {
		e.model = m
	}
}

// WithStore sets where paused sessions are kept.
func WithStore(s ports.StateStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker coordinates session ownership across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL bounds how long a distributed session lock is held
// (default 30s).
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = d
	}
}

// WithStaleAfter sets how long an in-progress session may go without an
// update before it can be restarted, resumed or discarded (default 1h).
// Zero disables the check.
func WithStaleAfter(d time.Duration) Option {
	return func(e *Engine) {
		e.stale = &d
	}
}

// WithDataSource replaces the filesystem reader for the CSV sources.
func WithDataSource(s ports.DataSource) Option {
	return func(e *Engine) {
		e.source = s
	}
}

// WithReportSink replaces the spreadsheet report writer.
func WithReportSink(s ports.ReportSink) Option {
	return func(e *Engine) {
		e.reports = s
	}
}

// WithOutputSink replaces the JSON output writer.
func WithOutputSink(s ports.OutputSink) Option {
	return func(e *Engine) {
		e.output = s
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxIterations caps parse attempts per session (default 3).
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxIterations(n))
	}
}

// WithMaxAnalysisRounds caps analysis runs per session (default 5).
func WithMaxAnalysisRounds(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxAnalysisRounds(n))
	}
}
