package schema_test

import (
	"testing"

	"github.com/aretw0/sieve/pkg/decode"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = `{
  "rule_id": 1,
  "rule_text": "Oncology trials in phase 3",
  "processing_type": "keyword_filtering",
  "reasoning": "explicit keyword list",
  "include_logic": {"all_of": [{"entities": "keywords", "values": ["oncology"]}], "any_of": null},
  "exclude_logic": null
}`

func mustDecode(t *testing.T, text string) any {
	t.Helper()
	v, err := decode.Response(text)
	require.NoError(t, err)
	return v
}

func kinds(failures []domain.ValidationFailure) []domain.ValidationKind {
	out := make([]domain.ValidationKind, len(failures))
	for i, f := range failures {
		out[i] = f.Kind
	}
	return out
}

func TestCheck_Valid(t *testing.T) {
	v := mustDecode(t, `{"relevance": {"rules": [`+validRule+`]},
		"priorities": {"Very High": {"rules": [`+validRule+`]}, "Low": {"rules": []}}}`)

	failures := schema.Check(v, schema.Options{Levels: []domain.Priority{domain.PriorityVeryHigh, domain.PriorityLow}})
	assert.Empty(t, failures)
	assert.NoError(t, schema.Validate(v, schema.Options{}))
}

func TestCheck_MissingPriorities(t *testing.T) {
	v := mustDecode(t, `{"relevance": {"rules": []}}`)

	failures := schema.Check(v, schema.Options{Levels: []domain.Priority{domain.PriorityHigh}})
	assert.Equal(t, []string{"MissingKey: priorities"}, schema.Messages(failures))
}

func TestCheck_NotAMapping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`[{"relevance": {}}]`, "NotAMapping: decoded output is list"},
		{`"just text"`, "NotAMapping: decoded output is string"},
		{`null`, "NotAMapping: decoded output is null"},
	}
	for _, tt := range tests {
		failures := schema.Check(mustDecode(t, tt.in), schema.Options{})
		assert.Equal(t, []string{tt.want}, schema.Messages(failures))
	}
}

func TestCheck_CollectsEveryDefect(t *testing.T) {
	v := mustDecode(t, `{"priorities": {
		"Low": {"rules": []},
		"High": {"rules": [{"rule_id": 2, "rule_text": "x", "processing_type": "guessing", "reasoning": "r", "include_logic": {}}]},
		"Urgent": {"rules": []}
	}}`)

	failures := schema.Check(v, schema.Options{Levels: []domain.Priority{domain.PriorityLow, domain.PriorityHigh, domain.PriorityMedium}})
	got := kinds(failures)

	assert.Contains(t, got, domain.KindMissingKey)
	assert.Contains(t, got, domain.KindSchemaViolation)
	assert.Contains(t, got, domain.KindHierarchyOrder)
	assert.Contains(t, got, domain.KindUnknownPriority)
	assert.Contains(t, got, domain.KindMissingPriority)
	assert.GreaterOrEqual(t, len(failures), 5)

	msgs := schema.Messages(failures)
	assert.Contains(t, msgs, "MissingKey: relevance")
	assert.Contains(t, msgs, "UnknownPriority: Urgent")
	assert.Contains(t, msgs, "MissingPriority: Medium")
	assert.Contains(t, msgs, `HierarchyOrder: "High" listed after "Low"`)
}

func TestCheck_SchemaViolationPath(t *testing.T) {
	v := mustDecode(t, `{"relevance": {"rules": [{"rule_id": 1}]}, "priorities": {}}`)

	failures := schema.Check(v, schema.Options{})
	require.NotEmpty(t, failures)
	for _, f := range failures {
		assert.Equal(t, domain.KindSchemaViolation, f.Kind)
		assert.Contains(t, f.Detail, "relevance/rules/0")
	}
}

func TestCheck_PrioritiesNotObject(t *testing.T) {
	v := mustDecode(t, `{"relevance": {"rules": []}, "priorities": ["High"]}`)

	failures := schema.Check(v, schema.Options{})
	assert.Equal(t, []string{"SchemaViolation: priorities: expected object, got list"}, schema.Messages(failures))
}

func TestCheck_RelevanceLevelIgnoredForCompleteness(t *testing.T) {
	v := mustDecode(t, `{"relevance": {"rules": []}, "priorities": {}}`)

	failures := schema.Check(v, schema.Options{Levels: []domain.Priority{domain.PriorityRelevance}})
	assert.Empty(t, failures)
}

func TestValidate_AggregateError(t *testing.T) {
	err := schema.Validate(mustDecode(t, `{}`), schema.Options{})
	var agg *schema.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Failures, 2)
	assert.Contains(t, err.Error(), "2 validation errors")
}

func TestValidateAnalysisReport(t *testing.T) {
	ok := mustDecode(t, `{"issues": [{"issue": "overlap", "priority_levels": ["High"], "severity": "Warning", "impact": "dupes"}],
		"optimizations": []}`)
	assert.Empty(t, schema.ValidateAnalysisReport(ok))

	bad := mustDecode(t, `{"issues": [{"issue": "overlap", "priority_levels": ["Urgent"], "severity": "Meh", "impact": ""}]}`)
	assert.NotEmpty(t, schema.ValidateAnalysisReport(bad))
}
