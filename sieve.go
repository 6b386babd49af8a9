package sieve

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aretw0/sieve/internal/logging"
	"github.com/aretw0/sieve/internal/runtime"
	"github.com/aretw0/sieve/pkg/adapters/memory"
	"github.com/aretw0/sieve/pkg/adapters/output"
	"github.com/aretw0/sieve/pkg/adapters/report"
	"github.com/aretw0/sieve/pkg/adapters/source"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
	"github.com/aretw0/sieve/pkg/session"
)

//go:embed VERSION
var rawVersion string

// Version is the release of this module.
var Version = strings.TrimSpace(rawVersion)

// ErrNoModel is returned by New when no language model was configured.
var ErrNoModel = errors.New("sieve: a language model is required")

// Engine is the high-level entry point for the sieve library.
// It wraps the internal runtime and provides a simplified API for hosts.
type Engine struct {
	runtime *runtime.Engine

	store    ports.StateStore
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	stale    *time.Duration
	model    ports.LanguageModel
	source   ports.DataSource
	reports  ports.ReportSink
	output   ports.OutputSink
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	sessions *session.Manager

	runtimeOpts []runtime.EngineOption
}

var _ ports.ResumableEngine = (*Engine)(nil)

// Request describes a new session.
type Request struct {
	// SessionID is generated when empty.
	SessionID string
	// Dir holds the source files and receives the output/ directory.
	Dir   string
	Model string
	// RulesFile replaces rules.csv.
	RulesFile string
	// Instructions are appended to every parse prompt.
	Instructions string
	// ParseOnly skips the analysis phase and the gatekeeper.
	ParseOnly bool
}

// New initializes an Engine. Only the language model is mandatory: sessions
// default to an in-memory store and sources, reports and output to the
// local filesystem.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.model == nil {
		return nil, ErrNoModel
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.source == nil {
		eng.source = source.New()
	}
	if eng.reports == nil {
		eng.reports = report.New()
	}
	if eng.output == nil {
		eng.output = output.New()
	}

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		managerOpts = append(managerOpts, session.WithLockTTL(eng.lockTTL))
	}
	if eng.stale != nil {
		managerOpts = append(managerOpts, session.WithStaleAfter(*eng.stale))
	}
	eng.sessions = session.NewManager(eng.store, managerOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithSessionManager(eng.sessions),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(eng.store, runtime.Collaborators{
		Model:   eng.model,
		Source:  eng.source,
		Reports: eng.reports,
		Output:  eng.output,
	}, runtimeOpts...)
	return eng, nil
}

// NewSessionID returns a fresh, lexically sortable session key.
func NewSessionID() string {
	return strings.ToLower(ulid.Make().String())
}

// NewState builds the initial state for req without running it.
func NewState(req Request) *domain.State {
	id := req.SessionID
	if id == "" {
		id = NewSessionID()
	}
	dir := req.Dir
	if dir == "" {
		dir = "."
	}
	s := domain.NewState(id, dir, req.Model)
	s.Instructions = req.Instructions
	if req.RulesFile != "" {
		s.RulesSource = req.RulesFile
	}
	if req.ParseOnly {
		s.CurrentNodeID = domain.NodePrepareParse
	}
	return s
}

// Start creates a session for req and runs it until the gatekeeper pauses
// it or it ends.
func (e *Engine) Start(ctx context.Context, req Request) (*domain.Outcome, error) {
	return e.runtime.Start(ctx, NewState(req))
}

// Resume delivers a gatekeeper command to a paused session.
func (e *Engine) Resume(ctx context.Context, sessionID string, cmd domain.Command) (*domain.Outcome, error) {
	return e.runtime.Resume(ctx, sessionID, cmd)
}

// Inspect loads a stored session without claiming it.
func (e *Engine) Inspect(ctx context.Context, sessionID string) (*domain.State, error) {
	return e.runtime.Inspect(ctx, sessionID)
}

// List returns the stored session IDs.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.runtime.List(ctx)
}

// Discard removes a stored session that is not running.
func (e *Engine) Discard(ctx context.Context, sessionID string) error {
	return e.runtime.Discard(ctx, sessionID)
}

// ForceDiscard removes a stored session even if it is marked in progress.
func (e *Engine) ForceDiscard(ctx context.Context, sessionID string) error {
	return e.runtime.ForceDiscard(ctx, sessionID)
}

// Sessions returns the session manager, shared by every surface of the host.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}
