package runtime_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/sieve/internal/runtime"
	"github.com/aretw0/sieve/pkg/adapters/memory"
	"github.com/aretw0/sieve/pkg/domain"
)

const (
	workDir = "/work"

	rulesCSV    = "priority,rule\nRelevance,Mentions a clinical trial\nHigh,\"Oncology, phase 3\"\n"
	keywordsCSV = "keyword\noncology\n"

	emptyAnalysis = `{"issues": [], "optimizations": []}`
	validParse    = `{"relevance": {"rules": []}, "priorities": {"High": {"rules": []}}}`
	noPriorities  = `{"relevance": {"rules": []}}`
)

// fakeModel answers analyze and parse prompts from two scripts. The last
// answer of a script repeats once it is exhausted.
type fakeModel struct {
	mu       sync.Mutex
	analysis []string
	parses   []string
	err      error

	analyzePrompts []string
	parsePrompts   []string
}

func (m *fakeModel) Invoke(ctx context.Context, model, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if strings.Contains(prompt, `"issues"`) {
		m.analyzePrompts = append(m.analyzePrompts, prompt)
		return next(m.analysis, len(m.analyzePrompts)), nil
	}
	m.parsePrompts = append(m.parsePrompts, prompt)
	return next(m.parses, len(m.parsePrompts)), nil
}

func next(script []string, call int) string {
	if len(script) == 0 {
		return ""
	}
	if call > len(script) {
		return script[len(script)-1]
	}
	return script[call-1]
}

// mapSource serves files from memory and records every read.
type mapSource struct {
	mu    sync.Mutex
	files map[string]string
	reads []string
}

func newSource() *mapSource {
	return &mapSource{files: map[string]string{
		workDir + "/rules.csv":           rulesCSV,
		workDir + "/client_keywords.csv": keywordsCSV,
	}}
}

func (s *mapSource) Read(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, path)
	text, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
	}
	return text, nil
}

type reportCall struct {
	report  *domain.AnalysisReport
	history []domain.ReviewEntry
}

type fakeReports struct {
	calls []reportCall
}

func (r *fakeReports) Write(ctx context.Context, dir string, report *domain.AnalysisReport, history []domain.ReviewEntry) (string, error) {
	r.calls = append(r.calls, reportCall{report: report.Clone(), history: append([]domain.ReviewEntry{}, history...)})
	return dir + "/output/report.xlsx", nil
}

type fakeOutput struct {
	calls [][]byte
	model string
}

func (o *fakeOutput) Write(ctx context.Context, dir string, parsed []byte, model string, at time.Time) (string, error) {
	o.calls = append(o.calls, append([]byte(nil), parsed...))
	o.model = model
	return fmt.Sprintf("%s/output/parsed_rules_%d.json", dir, len(o.calls)), nil
}

type harness struct {
	engine  *runtime.Engine
	store   *memory.Store
	model   *fakeModel
	source  *mapSource
	reports *fakeReports
	output  *fakeOutput
}

func newHarness(t *testing.T, model *fakeModel, opts ...runtime.EngineOption) *harness {
	t.Helper()
	h := &harness{
		store:   memory.NewStore(),
		model:   model,
		source:  newSource(),
		reports: &fakeReports{},
		output:  &fakeOutput{},
	}
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	opts = append([]runtime.EngineOption{runtime.WithClock(func() time.Time { return fixed })}, opts...)
	h.engine = runtime.NewEngine(h.store, runtime.Collaborators{
		Model:   model,
		Source:  h.source,
		Reports: h.reports,
		Output:  h.output,
	}, opts...)
	return h
}

func newState(id string) *domain.State {
	return domain.NewState(id, workDir, "openai/gpt-4o")
}

// cancellingModel cancels the caller's context on the given analyze call,
// the way a host does on Ctrl-C while a completion is in flight.
type cancellingModel struct {
	*fakeModel
	cancel context.CancelFunc
	at     int
	calls  int
}

func (m *cancellingModel) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if strings.Contains(prompt, `"issues"`) {
		m.calls++
		if m.calls == m.at {
			m.cancel()
			return "", ctx.Err()
		}
	}
	return m.fakeModel.Invoke(ctx, model, prompt)
}
