package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

// Engine is the session surface the HTTP server drives.
type Engine interface {
	ports.ResumableEngine
	Discard(ctx context.Context, sessionID string) error
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	Dir          string `json:"dir"`
	Model        string `json:"model,omitempty"`
	RulesFile    string `json:"rules_file,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	ParseOnly    bool   `json:"parse_only,omitempty"`
}

// StartFunc creates and runs a session. Hosts that leave it unset serve a
// resume-only API.
type StartFunc func(ctx context.Context, req StartRequest) (*domain.Outcome, error)

// OutcomeView is the wire form of an Outcome.
type OutcomeView struct {
	Kind       domain.OutcomeKind     `json:"kind"`
	SessionID  string                 `json:"session_id"`
	Node       domain.NodeID          `json:"node"`
	Errors     []string               `json:"errors,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Report     *domain.AnalysisReport `json:"analysis_report,omitempty"`
	ReportPath string                 `json:"report_path,omitempty"`
	OutputPath string                 `json:"output_path,omitempty"`
}

// NewOutcomeView flattens o for JSON clients.
func NewOutcomeView(o *domain.Outcome) OutcomeView {
	v := OutcomeView{Kind: o.Kind, SessionID: o.SessionID, Node: o.Node, Errors: o.Errors}
	if err := o.Error(); err != nil {
		v.Error = err.Error()
	}
	if o.State != nil {
		v.ReportPath = o.State.ReportPath
		v.OutputPath = o.State.OutputPath
		if o.Kind == domain.OutcomePaused {
			v.Report = o.State.AnalysisReport
		}
	}
	return v
}

// Server serves the session API.
type Server struct {
	Engine  Engine
	Start   StartFunc
	Metrics http.Handler
	Streams *StreamManager
}

// Option configures the handler.
type Option func(*Server)

// WithStart enables POST /sessions.
func WithStart(fn StartFunc) Option {
	return func(s *Server) { s.Start = fn }
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.Metrics = h }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/events", server.SubscribeEvents)
	if server.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.Metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", server.ListSessions)
		if server.Start != nil {
			r.Post("/", server.StartSession)
		}
		r.Get("/{id}", server.GetSession)
		r.Delete("/{id}", server.DeleteSession)
		r.Post("/{id}/resume", server.ResumeSession)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorBody is what every non-2xx response carries.
type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionInProgress),
		errors.Is(err, domain.ErrSessionNotPaused),
		errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, domain.ErrInputTooLarge),
		errors.Is(err, domain.ErrInvalidUTF8):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.List(r.Context())
	if err != nil {
		writeError(w, statusFor(err), fmt.Sprintf("List error: %v", err))
		slog.Error("ListSessions failed", "error", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.Engine.Inspect(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		writeError(w, status, err.Error())
		if status == http.StatusInternalServerError {
			slog.Error("GetSession failed", "session_id", id, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.Discard(r.Context(), id); err != nil {
		status := statusFor(err)
		writeError(w, status, err.Error())
		if status == http.StatusInternalServerError {
			slog.Error("DeleteSession failed", "session_id", id, "error", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		slog.Warn("StartSession: Invalid request body", "error", err)
		return
	}
	if strings.TrimSpace(body.Dir) == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}
	clean, err := domain.SanitizeInput(body.Instructions)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid instructions: %v", err))
		return
	}
	body.Instructions = clean

	// A run outlives a disconnecting client; its outcome still reaches /events.
	outcome, err := s.Start(context.WithoutCancel(r.Context()), body)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		slog.Warn("StartSession refused", "error", err)
		return
	}
	s.publish(outcome)
	writeJSON(w, http.StatusCreated, NewOutcomeView(outcome))
}

// ResumeSession handles POST /sessions/{id}/resume. A refused resume is a
// client error; a node failure during the resumed run is reported in the
// 200 body with kind "failed".
func (s *Server) ResumeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cmd domain.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		slog.Warn("ResumeSession: Invalid request body", "error", err)
		return
	}
	for _, field := range []*string{&cmd.Feedback, &cmd.Path} {
		clean, err := domain.SanitizeInput(*field)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid input: %v", err))
			slog.Warn("ResumeSession: Input rejected", "error", err, "size", len(*field))
			return
		}
		*field = clean
	}
	if err := cmd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.Engine.Resume(context.WithoutCancel(r.Context()), id, cmd)
	if err != nil {
		status := statusFor(err)
		writeError(w, status, err.Error())
		if status == http.StatusInternalServerError {
			slog.Error("ResumeSession failed", "session_id", id, "error", err)
		}
		return
	}
	s.publish(outcome)
	writeJSON(w, http.StatusOK, NewOutcomeView(outcome))
}

func (s *Server) publish(o *domain.Outcome) {
	if o == nil {
		return
	}
	b, err := json.Marshal(NewOutcomeView(o))
	if err != nil {
		return
	}
	s.Streams.Broadcast(o.SessionID, string(b))
}

// StreamManager fans outcome events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a channel for sessionID. The empty ID receives every
// session's events.
func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	slog.Debug("StreamManager: Broadcasting", "session_id", sessionID, "payload_size", len(msg))

	keys := []string{sessionID}
	if sessionID != "" {
		keys = append(keys, "")
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				slog.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
			}
		}
	}
}

// SubscribeEvents streams outcome events as server-sent events. The
// session_id query parameter narrows the stream to one session.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		slog.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	events, unsubscribe := s.Streams.Subscribe(sessionID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: outcome\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
