package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sieve"
	httpAdapter "github.com/aretw0/sieve/pkg/adapters/http"
	"github.com/aretw0/sieve/pkg/adapters/mcp"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/observability"
)

// meteredEngine counts the outcome of every resume made over the network.
type meteredEngine struct {
	*sieve.Engine
	metrics *observability.Metrics
}

func (m meteredEngine) Resume(ctx context.Context, sessionID string, cmd domain.Command) (*domain.Outcome, error) {
	out, err := m.Engine.Resume(ctx, sessionID, cmd)
	m.metrics.RecordOutcome(out)
	return out, err
}

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Flags
	Port string
	// AllowStart exposes POST /sessions.
	AllowStart bool
}

// newHTTPHandler wires the engine, metrics and optional start endpoint.
func newHTTPHandler(rt *Runtime, allowStart bool) http.Handler {
	engine := meteredEngine{Engine: rt.Engine, metrics: rt.Metrics}
	opts := []httpAdapter.Option{httpAdapter.WithMetrics(rt.Metrics.Handler())}
	if allowStart {
		opts = append(opts, httpAdapter.WithStart(func(ctx context.Context, req httpAdapter.StartRequest) (*domain.Outcome, error) {
			model := req.Model
			if model == "" {
				model = rt.Config.Model
			}
			instructions := req.Instructions
			if instructions == "" {
				instructions = rt.Config.Instructions
			}
			out, err := rt.Engine.Start(ctx, sieve.Request{
				SessionID:    req.SessionID,
				Dir:          req.Dir,
				Model:        model,
				RulesFile:    req.RulesFile,
				Instructions: instructions,
				ParseOnly:    req.ParseOnly,
			})
			rt.Metrics.RecordOutcome(out)
			return out, err
		}))
	}
	return httpAdapter.NewHandler(engine, opts...)
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func Serve(opts ServeOptions) error {
	rt, err := Open(opts.Flags)
	if err != nil {
		return err
	}
	defer rt.Close()
	slog.SetDefault(rt.Logger)

	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           newHTTPHandler(rt, opts.AllowStart),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		rt.Logger.Info("Starting sieve server", "addr", srv.Addr, "dir", rt.Config.Dir, "store", rt.Config.Store.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-sigCtx.Done():
		rt.Logger.Info("Start shutdown", "signal", sigCtx.Signal())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		rt.Logger.Info("Server stopped gracefully")
		return nil
	}
}

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Flags
	Transport string
	Port      int
}

// ServeMCP exposes paused sessions as MCP tools over stdio or SSE.
func ServeMCP(opts MCPOptions) error {
	rt, err := Open(opts.Flags)
	if err != nil {
		return err
	}
	defer rt.Close()
	slog.SetDefault(rt.Logger)

	srv := mcp.NewServer(meteredEngine{Engine: rt.Engine, metrics: rt.Metrics})

	switch opts.Transport {
	case "stdio":
		rt.Logger.Info("Starting sieve MCP server (stdio)")
		return srv.ServeStdio()
	case "sse":
		sigCtx := NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		if err := srv.ServeSSE(sigCtx, opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		rt.Logger.Info("MCP Server stopped gracefully")
		return nil
	}
	return fmt.Errorf("unknown transport %q: supported are stdio and sse", opts.Transport)
}
