package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/sieve"
	"github.com/aretw0/sieve/internal/presentation/graph"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

// GraphURI is the resource holding the workflow diagram.
const GraphURI = "sieve://graph"

// OutcomeResponse mirrors the HTTP adapter's outcome body.
type OutcomeResponse struct {
	Kind       domain.OutcomeKind     `json:"kind" jsonschema_description:"completed, phase_failed, paused or failed"`
	SessionID  string                 `json:"session_id" jsonschema_description:"The session that was resumed"`
	Node       domain.NodeID          `json:"node" jsonschema_description:"Where execution stopped"`
	Errors     []string               `json:"errors,omitempty" jsonschema_description:"Validation failure log for phase_failed outcomes"`
	Error      string                 `json:"error,omitempty" jsonschema_description:"Cause of a failed outcome"`
	Report     *domain.AnalysisReport `json:"analysis_report,omitempty" jsonschema_description:"The report awaiting review when paused"`
	ReportPath string                 `json:"report_path,omitempty" jsonschema_description:"Spreadsheet written for the last analysis round"`
	OutputPath string                 `json:"output_path,omitempty" jsonschema_description:"Parsed rules written on completion"`
}

func newOutcomeResponse(o *domain.Outcome) OutcomeResponse {
	r := OutcomeResponse{Kind: o.Kind, SessionID: o.SessionID, Node: o.Node, Errors: o.Errors}
	if err := o.Error(); err != nil {
		r.Error = err.Error()
	}
	if o.State != nil {
		r.ReportPath = o.State.ReportPath
		r.OutputPath = o.State.OutputPath
		if o.Kind == domain.OutcomePaused {
			r.Report = o.State.AnalysisReport
		}
	}
	return r
}

// SessionSummary is what inspect_session returns.
type SessionSummary struct {
	SessionID        string                 `json:"session_id"`
	Status           domain.Status          `json:"status" jsonschema_description:"in_progress, paused or terminated"`
	CurrentNode      domain.NodeID          `json:"current_node"`
	AnalysisRounds   int                    `json:"analysis_rounds"`
	IterationCount   int                    `json:"iteration_count"`
	Report           *domain.AnalysisReport `json:"analysis_report,omitempty"`
	ReviewHistory    []domain.ReviewEntry   `json:"review_history"`
	ValidationErrors []string               `json:"validation_errors,omitempty"`
	LastError        string                 `json:"last_error,omitempty"`
}

// Server exposes paused sessions to MCP clients so an agent can act as the
// reviewer.
type Server struct {
	engine    ports.ResumableEngine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.ResumableEngine) *Server {
	s := &Server{
		engine: engine,
		mcpServer: server.NewMCPServer("sieve-mcp", sieve.Version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
			server.WithInstructions("Sessions pause at the gatekeeper with an analysis report. "+
				"Inspect the report, then resume with approve, edit, reject, skip or quit."),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and shuts it down
// when ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("CORS Middleware", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the IDs of stored sessions."),
	), s.handleListSessions)

	inspectTool := mcp.NewTool("inspect_session",
		mcp.WithDescription("Show where a session stands, including the analysis report awaiting review."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionSummary](),
	)
	s.mcpServer.AddTool(inspectTool, mcp.NewStructuredToolHandler(s.handleInspect))

	resumeTool := mcp.NewTool("resume_session",
		mcp.WithDescription("Resume a paused session with a review decision."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("decision", mcp.Required(),
			mcp.Enum(string(domain.DecisionApprove), string(domain.DecisionEdit), string(domain.DecisionReject),
				string(domain.DecisionSkip), string(domain.DecisionQuit)),
			mcp.Description("Review decision")),
		mcp.WithString("feedback", mcp.Description("Guidance for the next analysis round (reject)")),
		mcp.WithString("path", mcp.Description("Replacement rules file (edit)")),
		mcp.WithOutputSchema[OutcomeResponse](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.engine.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionSummary, error) {
	id, _ := args["session_id"].(string)
	state, err := s.engine.Inspect(ctx, id)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("inspect failed: %w", err)
	}
	return SessionSummary{
		SessionID:        state.SessionID,
		Status:           state.Status,
		CurrentNode:      state.CurrentNodeID,
		AnalysisRounds:   state.AnalysisRounds,
		IterationCount:   state.IterationCount,
		Report:           state.AnalysisReport,
		ReviewHistory:    state.ReviewHistory,
		ValidationErrors: state.ValidationErrors,
		LastError:        state.LastError,
	}, nil
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (OutcomeResponse, error) {
	id, _ := args["session_id"].(string)
	decision, _ := args["decision"].(string)
	feedback, _ := args["feedback"].(string)
	path, _ := args["path"].(string)

	cmd := domain.Command{Decision: domain.Decision(decision)}
	var err error
	if cmd.Feedback, err = domain.SanitizeInput(feedback); err != nil {
		slog.Warn("MCP Resume: Input rejected", "error", err, "size", len(feedback))
		return OutcomeResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	if cmd.Path, err = domain.SanitizeInput(path); err != nil {
		return OutcomeResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	// A cancelled tool call must not abandon a claimed session mid-run.
	outcome, err := s.engine.Resume(context.WithoutCancel(ctx), id, cmd)
	if err != nil {
		if !errors.Is(err, domain.ErrUnknownCommand) {
			slog.Warn("MCP Resume refused", "session_id", id, "error", err)
		}
		return OutcomeResponse{}, fmt.Errorf("resume failed: %w", err)
	}
	return newOutcomeResponse(outcome), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Workflow Graph",
		mcp.WithResourceDescription("Mermaid diagram of the node transition table"),
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(domain.Transitions, nil),
			},
		}, nil
	})
}
