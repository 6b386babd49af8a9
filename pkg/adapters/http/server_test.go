package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sieve/pkg/domain"
)

// MockEngine keeps sessions in a map and pauses or completes on resume.
type MockEngine struct {
	sessions map[string]*domain.State
	resumed  []domain.Command
	listErr  error

	// ctxErrs records ctx.Err() as seen by each Resume.
	ctxErrs []error
}

func newMockEngine() *MockEngine {
	paused := domain.NewState("s1", "/work", "m")
	paused.Status = domain.StatusPaused
	paused.CurrentNodeID = domain.NodeGatekeeper
	paused.AnalysisReport = &domain.AnalysisReport{Issues: []domain.Issue{{Issue: "overlap", Severity: domain.SeverityWarning}}}

	running := domain.NewState("s2", "/work", "m")
	running.Status = domain.StatusInProgress

	return &MockEngine{sessions: map[string]*domain.State{"s1": paused, "s2": running}}
}

func (m *MockEngine) Resume(ctx context.Context, id string, cmd domain.Command) (*domain.Outcome, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if s.Status != domain.StatusPaused {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionInProgress, id)
	}
	m.resumed = append(m.resumed, cmd)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	s.OutputPath = "/work/output/parsed_rules_1.json"
	return &domain.Outcome{Kind: domain.OutcomeCompleted, SessionID: id, Node: domain.NodeEnd, State: s}, nil
}

func (m *MockEngine) Inspect(ctx context.Context, id string) (*domain.State, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *MockEngine) List(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return []string{"s1", "s2"}, nil
}

func (m *MockEngine) Discard(ctx context.Context, id string) error {
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.Status == domain.StatusInProgress {
		return domain.ErrSessionInProgress
	}
	delete(m.sessions, id)
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, NewHandler(newMockEngine()), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	w := do(t, NewHandler(newMockEngine()), http.MethodOptions, "/sessions/s1/resume", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestListSessions(t *testing.T) {
	w := do(t, NewHandler(newMockEngine()), http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":["s1","s2"]}`, w.Body.String())

	eng := newMockEngine()
	eng.listErr = fmt.Errorf("redis down")
	w = do(t, NewHandler(eng), http.MethodGet, "/sessions", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetSession(t *testing.T) {
	h := NewHandler(newMockEngine())

	w := do(t, h, http.MethodGet, "/sessions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, domain.StatusPaused, state.Status)
	assert.Equal(t, domain.NodeGatekeeper, state.CurrentNodeID)

	w = do(t, h, http.MethodGet, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "session not found")
}

func TestResumeSession(t *testing.T) {
	eng := newMockEngine()
	h := NewHandler(eng)

	w := do(t, h, http.MethodPost, "/sessions/s1/resume", `{"decision":"reject","feedback":"merge tiers\u001b[31m"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view OutcomeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, domain.OutcomeCompleted, view.Kind)
	assert.Equal(t, "/work/output/parsed_rules_1.json", view.OutputPath)

	require.Len(t, eng.resumed, 1)
	assert.Equal(t, domain.DecisionReject, eng.resumed[0].Decision)
	assert.Equal(t, "merge tiers[31m", eng.resumed[0].Feedback, "control characters are stripped")
}

func TestResumeSession_OutlivesClient(t *testing.T) {
	eng := newMockEngine()
	h := NewHandler(eng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/resume", strings.NewReader(`{"decision":"approve"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, eng.ctxErrs, 1)
	assert.NoError(t, eng.ctxErrs[0], "a gone client does not cancel the run")
}

func TestResumeSession_Refusals(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"Unknown session", "/sessions/missing/resume", `{"decision":"approve"}`, http.StatusNotFound},
		{"Session in progress", "/sessions/s2/resume", `{"decision":"approve"}`, http.StatusConflict},
		{"Unknown decision", "/sessions/s1/resume", `{"decision":"maybe"}`, http.StatusBadRequest},
		{"Edit without path", "/sessions/s1/resume", `{"decision":"edit"}`, http.StatusBadRequest},
		{"Not JSON", "/sessions/s1/resume", `approve`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newMockEngine()
			w := do(t, NewHandler(eng), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Empty(t, eng.resumed)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	eng := newMockEngine()
	h := NewHandler(eng)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodDelete, "/sessions/s2", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/sessions/s1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/sessions/s1", "").Code)
}

func TestStartSession(t *testing.T) {
	var got StartRequest
	start := func(ctx context.Context, req StartRequest) (*domain.Outcome, error) {
		got = req
		if req.SessionID == "taken" {
			return nil, domain.ErrSessionExists
		}
		s := domain.NewState("new", req.Dir, req.Model)
		s.AnalysisReport = &domain.AnalysisReport{}
		return &domain.Outcome{Kind: domain.OutcomePaused, SessionID: "new", Node: domain.NodeGatekeeper, State: s}, nil
	}

	h := NewHandler(newMockEngine(), WithStart(start))

	w := do(t, h, http.MethodPost, "/sessions", `{"dir":"/data","model":"openai/gpt-4o","parse_only":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/data", got.Dir)
	assert.True(t, got.ParseOnly)

	var view OutcomeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, domain.OutcomePaused, view.Kind)
	assert.NotNil(t, view.Report, "paused outcomes carry the analysis report")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions", `{}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/sessions", `{"dir":"/d","session_id":"taken"}`).Code)
}

func TestStartSession_DisabledByDefault(t *testing.T) {
	w := do(t, NewHandler(newMockEngine()), http.MethodPost, "/sessions", `{"dir":"/data"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "sieve_outcomes_total 1")
	})

	w := do(t, NewHandler(newMockEngine(), WithMetrics(metrics)), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sieve_outcomes_total")

	w = do(t, NewHandler(newMockEngine()), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOutcomeView(t *testing.T) {
	failed := &domain.Outcome{
		Kind:      domain.OutcomeFailed,
		SessionID: "s",
		Node:      domain.NodeLoadData,
		Err:       &domain.NodeFailed{Node: domain.NodeLoadData, Cause: domain.ErrSourceNotFound},
	}
	assert.Contains(t, NewOutcomeView(failed).Error, "source not found")

	phase := &domain.Outcome{Kind: domain.OutcomePhaseFailed, Errors: []string{"attempt 1: MissingKey: priorities"}}
	v := NewOutcomeView(phase)
	assert.Equal(t, []string{"attempt 1: MissingKey: priorities"}, v.Errors)
	assert.NotEmpty(t, v.Error)
}

func TestStreamManager_Broadcast(t *testing.T) {
	sm := NewStreamManager()
	one, unsubOne := sm.Subscribe("s1")
	all, unsubAll := sm.Subscribe("")
	defer unsubAll()

	sm.Broadcast("s1", "hello")
	assert.Equal(t, "hello", <-one)
	assert.Equal(t, "hello", <-all, "global subscribers see every session")

	sm.Broadcast("s2", "other")
	assert.Equal(t, "other", <-all)
	select {
	case msg := <-one:
		t.Fatalf("unexpected message %q", msg)
	default:
	}

	unsubOne()
	_, open := <-one
	assert.False(t, open)
}

func TestSubscribeEvents_ReceivesResumeOutcome(t *testing.T) {
	eng := newMockEngine()
	server := &Server{Engine: eng, Streams: NewStreamManager()}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events?session_id=s1", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		server.SubscribeEvents(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		server.Streams.mu.RLock()
		defer server.Streams.mu.RUnlock()
		return len(server.Streams.subscribers["s1"]) == 1
	}, time.Second, 5*time.Millisecond)

	outcome, err := eng.Resume(ctx, "s1", domain.Approve())
	require.NoError(t, err)
	server.publish(outcome)

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "event: outcome")
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(`"kind":"completed"`)))
}
