package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID, "/data", "openai/gpt-4o")
		state.Status = domain.StatusPaused
		state.CurrentNodeID = domain.NodeGatekeeper
		state.RawRules = domain.Ptr("priority,rule\n\"Very High\",\"oncology, phase 3\"\n")
		state.AnalysisReport = &domain.AnalysisReport{
			Issues: []domain.Issue{{Issue: "overlap", PriorityLevels: []string{"High", "Medium"}, Severity: domain.SeverityWarning}},
		}
		state.ReviewHistory = append(state.ReviewHistory, domain.ReviewEntry{
			Decision:  domain.DecisionReject,
			Feedback:  "merge High and Medium",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		})
		state.ParsedRules = json.RawMessage(`{"relevance":{"rules":[]},"priorities":{}}`)

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.StatusPaused, loaded.Status)
		assert.Equal(t, domain.NodeGatekeeper, loaded.CurrentNodeID)
		assert.Equal(t, domain.Text(state.RawRules), domain.Text(loaded.RawRules), "raw text must survive byte-for-byte")
		require.NotNil(t, loaded.AnalysisReport)
		assert.Equal(t, state.AnalysisReport.Issues, loaded.AnalysisReport.Issues)
		require.Len(t, loaded.ReviewHistory, 1)
		assert.Equal(t, "merge High and Medium", loaded.ReviewHistory[0].Feedback)
		assert.JSONEq(t, string(state.ParsedRules), string(loaded.ParsedRules))
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.ReviewHistory = append(loaded.ReviewHistory, domain.ReviewEntry{Decision: domain.DecisionQuit})

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, again.ReviewHistory, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID, ".", "m"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, ".", "m"))
		_ = store.Save(ctx, id2, domain.NewState(id2, ".", "m"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
