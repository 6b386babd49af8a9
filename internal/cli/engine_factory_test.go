package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sieve"
	"github.com/aretw0/sieve/internal/config"
	"github.com/aretw0/sieve/internal/logging"
	"github.com/aretw0/sieve/pkg/domain"
)

const (
	testDir     = "/project"
	analysisOK  = `{"issues": [{"issue": "High overlaps Medium", "priority_levels": ["High", "Medium"], "severity": "warning"}], "optimizations": []}`
	parseOK     = `{"relevance": {"rules": []}, "priorities": {"High": {"rules": []}}}`
	parseBroken = `{"relevance": {"rules": []}}`
)

type scriptedModel struct {
	analysis string
	parse    string
}

func (m scriptedModel) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if strings.Contains(prompt, `"issues"`) {
		return m.analysis, nil
	}
	return m.parse, nil
}

type staticSource map[string]string

func (s staticSource) Read(ctx context.Context, path string) (string, error) {
	text, ok := s[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
	}
	return text, nil
}

type recordingSink struct{ writes int }

func (r *recordingSink) Write(ctx context.Context, dir string, parsed []byte, model string, at time.Time) (string, error) {
	r.writes++
	return fmt.Sprintf("%s/output/parsed_rules_%d.json", dir, r.writes), nil
}

type reportSink struct{}

func (reportSink) Write(ctx context.Context, dir string, report *domain.AnalysisReport, history []domain.ReviewEntry) (string, error) {
	return dir + "/output/report.xlsx", nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Store.Backend = config.StoreMemory
	return cfg
}

func testRuntime(t *testing.T, cfg config.Config, model scriptedModel) *Runtime {
	t.Helper()
	rt, err := createEngine(cfg, logging.NewNop(), false,
		sieve.WithLanguageModel(model),
		sieve.WithDataSource(staticSource{
			testDir + "/rules.csv":           "priority,rule\nHigh,Oncology\n",
			testDir + "/client_keywords.csv": "keyword\noncology\n",
		}),
		sieve.WithReportSink(reportSink{}),
		sieve.WithOutputSink(&recordingSink{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func start(t *testing.T, rt *Runtime, id string) *domain.Outcome {
	t.Helper()
	out, err := rt.Engine.Start(context.Background(), sieve.Request{SessionID: id, Dir: testDir, Model: "m"})
	require.NoError(t, err)
	require.True(t, out.IsPaused())
	return out
}

func TestCreateStore_Backends(t *testing.T) {
	t.Run("File store defaults under the project directory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Dir = t.TempDir()
		rt := testRuntime(t, cfg, scriptedModel{analysis: analysisOK, parse: parseOK})

		start(t, rt, "on-disk")
		_, err := os.Stat(filepath.Join(cfg.Dir, ".sieve", "sessions", "on-disk.json"))
		assert.NoError(t, err)
	})

	t.Run("Redis store with distributed locking", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Store.Backend = config.StoreRedis
		cfg.Store.RedisURL = "redis://" + mr.Addr()
		cfg.Store.TTL = time.Hour
		rt := testRuntime(t, cfg, scriptedModel{analysis: analysisOK, parse: parseOK})

		start(t, rt, "shared")
		assert.True(t, mr.Exists("sieve:session:shared"))

		ids, err := rt.Engine.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"shared"}, ids)
	})

	t.Run("Invalid redis URL", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = config.StoreRedis
		cfg.Store.RedisURL = "http://not-redis"
		_, err := createEngine(cfg, logging.NewNop(), false)
		assert.Error(t, err)
	})
}

func TestCreateStore_Privacy(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Privacy = config.Privacy{EncryptionKey: key, MaskPII: true}
	rt := testRuntime(t, cfg, scriptedModel{analysis: analysisOK, parse: parseOK})

	start(t, rt, "sealed")
	raw, err := os.ReadFile(filepath.Join(cfg.Dir, ".sieve", "sessions", "sealed.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Oncology", "rules never reach disk in clear")
	assert.Contains(t, string(raw), `"envelope"`)

	state, err := rt.Engine.Inspect(context.Background(), "sealed")
	require.NoError(t, err)
	assert.Equal(t, "priority,rule\nHigh,Oncology\n", domain.Text(state.RawRules))

	t.Run("Bad key", func(t *testing.T) {
		bad := testConfig(t)
		bad.Privacy.EncryptionKey = "too-short"
		_, err := createEngine(bad, logging.NewNop(), false)
		assert.ErrorContains(t, err, "privacy.encryption_key")
	})

	t.Run("Bad fallback key", func(t *testing.T) {
		bad := testConfig(t)
		bad.Privacy.EncryptionKey = key
		bad.Privacy.FallbackKeys = []string{"nope"}
		_, err := createEngine(bad, logging.NewNop(), false)
		assert.ErrorContains(t, err, "fallback_keys[0]")
	})
}

func TestDriver_InteractiveApprove(t *testing.T) {
	rt := testRuntime(t, testConfig(t), scriptedModel{analysis: analysisOK, parse: parseOK})
	out := start(t, rt, "review")

	var buf bytes.Buffer
	d := newDriver(rt.Engine, rt.Metrics, modeInteractive, strings.NewReader("maybe\napprove\n"), &buf)
	require.NoError(t, d.drive(context.Background(), out))

	text := buf.String()
	assert.Contains(t, text, "Rule analysis")
	assert.Contains(t, text, "unknown command")
	assert.Contains(t, text, "Parsed rules written to /project/output/parsed_rules_1.json")

	_, err := rt.Engine.Inspect(context.Background(), "review")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "finished sessions are removed")
}

func TestDriver_EndOfInputLeavesSessionPaused(t *testing.T) {
	rt := testRuntime(t, testConfig(t), scriptedModel{analysis: analysisOK, parse: parseOK})
	out := start(t, rt, "later")

	var buf bytes.Buffer
	d := newDriver(rt.Engine, rt.Metrics, modeInteractive, strings.NewReader(""), &buf)
	err := d.drive(context.Background(), out)
	assert.NoError(t, handleExecutionError(err))
	assert.Contains(t, buf.String(), "sieve resume later")

	state, err := rt.Engine.Inspect(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, state.Status)
}

func TestDriver_Headless(t *testing.T) {
	rt := testRuntime(t, testConfig(t), scriptedModel{analysis: analysisOK, parse: parseOK})
	out := start(t, rt, "batch")

	var buf bytes.Buffer
	d := newDriver(rt.Engine, rt.Metrics, modeHeadless, strings.NewReader("approve\n"), &buf)
	require.NoError(t, d.drive(context.Background(), out))
	assert.Contains(t, buf.String(), "paused for review (1 issues)")

	state, err := rt.Engine.Inspect(context.Background(), "batch")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, state.Status, "headless runs never consume input")
}

func TestDriver_JSONPhaseFailed(t *testing.T) {
	rt := testRuntime(t, testConfig(t), scriptedModel{analysis: analysisOK, parse: parseBroken})
	out := start(t, rt, "ndjson")

	var buf bytes.Buffer
	in := "not json\n" + `{"decision":"skip"}` + "\n"
	d := newDriver(rt.Engine, rt.Metrics, modeJSON, strings.NewReader(in), &buf)
	err := d.drive(context.Background(), out)

	var pf *domain.PhaseFailed
	require.ErrorAs(t, err, &pf)
	assert.Len(t, pf.Errors, 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"kind":"paused"`)
	assert.Contains(t, lines[1], `"error"`)
	assert.Contains(t, lines[2], `"kind":"phase_failed"`)
	assert.Contains(t, lines[2], "attempt 3: MissingKey")
}

func TestDriver_PhaseFailedCountsAttempts(t *testing.T) {
	// Two defects per attempt: both mandatory keys are missing.
	rt := testRuntime(t, testConfig(t), scriptedModel{analysis: analysisOK, parse: `{"foo": 1}`})
	out := start(t, rt, "attempts")

	var buf bytes.Buffer
	d := newDriver(rt.Engine, rt.Metrics, modeInteractive, strings.NewReader("approve\n"), &buf)
	err := d.drive(context.Background(), out)

	var pf *domain.PhaseFailed
	require.ErrorAs(t, err, &pf)
	assert.Len(t, pf.Errors, 6)
	assert.Contains(t, buf.String(), "Parsing gave up after 3 failed attempts")
}

func TestDriver_InterruptedRunLeavesSessionPaused(t *testing.T) {
	state := domain.NewState("cut", testDir, "m")
	state.Status = domain.StatusPaused
	state.CurrentNodeID = domain.NodeGatekeeper
	out := &domain.Outcome{
		Kind:      domain.OutcomeFailed,
		SessionID: "cut",
		Node:      domain.NodeAnalyze,
		State:     state,
		Err:       &domain.NodeFailed{Node: domain.NodeAnalyze, Cause: context.Canceled},
	}

	var buf bytes.Buffer
	d := newDriver(nil, nil, modeHeadless, strings.NewReader(""), &buf)
	assert.NoError(t, handleExecutionError(d.drive(context.Background(), out)))
	assert.Contains(t, buf.String(), "Session 'cut' left paused. Continue with: sieve resume cut")
	assert.NotContains(t, buf.String(), "Failed at")
}
