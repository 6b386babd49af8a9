package runtime_test

import (
	"testing"

	"github.com/aretw0/sieve/internal/runtime"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOptimizations(t *testing.T) {
	rules := "priority,rule\nRelevance,trials\nHigh,\"oncology, phase 3\"\nLow,oncology\n"

	tests := []struct {
		name    string
		opts    []domain.Optimization
		want    string
		applied int
		missed  int
	}{
		{
			name: "Quotes and commas are inserted literally",
			opts: []domain.Optimization{{
				PriorityLevel: "High",
				OriginalText:  `"oncology, phase 3"`,
				SuggestedText: `"oncology, phase 3, ""adults"""`,
			}},
			want:    "priority,rule\nRelevance,trials\nHigh,\"oncology, phase 3, \"\"adults\"\"\"\nLow,oncology\n",
			applied: 1,
		},
		{
			name:    "Every occurrence is replaced",
			opts:    []domain.Optimization{{PriorityLevel: "Low", OriginalText: "oncology", SuggestedText: "oncology (solid tumours)"}},
			want:    "priority,rule\nRelevance,trials\nHigh,\"oncology (solid tumours), phase 3\"\nLow,oncology (solid tumours)\n",
			applied: 1,
		},
		{
			name: "Relevance is skipped",
			opts: []domain.Optimization{{PriorityLevel: "relevance", OriginalText: "trials", SuggestedText: "clinical trials"}},
			want: rules,
		},
		{
			name: "Empty suggestion is skipped",
			opts: []domain.Optimization{{PriorityLevel: "High", OriginalText: "oncology", SuggestedText: ""}},
			want: rules,
		},
		{
			name: "Missing original is reported",
			opts: []domain.Optimization{
				{PriorityLevel: "High", OriginalText: "cardiology", SuggestedText: "x"},
				{PriorityLevel: "Low", OriginalText: "Low,oncology", SuggestedText: "Low,oncology only"},
			},
			want:    "priority,rule\nRelevance,trials\nHigh,\"oncology, phase 3\"\nLow,oncology only\n",
			applied: 1,
			missed:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied, missed := runtime.ApplyOptimizations(rules, tt.opts)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.applied, applied)
			assert.Len(t, missed, tt.missed)
		})
	}
}

func TestDecodeReport(t *testing.T) {
	text := "```json\n{'issues': [{'issue': 'overlap', 'priority_levels': ['High', 'Medium'], 'severity': 'Critical', 'impact': 'double counting'}], 'optimizations': []}\n```"
	report, err := runtime.DecodeReport(text)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "overlap", report.Issues[0].Issue)
	assert.Equal(t, []string{"High", "Medium"}, report.Issues[0].PriorityLevels)
	assert.Equal(t, domain.SeverityCritical, report.Issues[0].Severity)
	assert.NotNil(t, report.Optimizations)
	assert.Equal(t, 1, report.CriticalCount())
}

func TestDecodeReport_Rejects(t *testing.T) {
	for _, text := range []string{
		"no json here",
		`{"issues": []}`,
		`{"issues": [{"issue": "x"}], "optimizations": []}`,
		`[]`,
	} {
		_, err := runtime.DecodeReport(text)
		assert.ErrorIs(t, err, domain.ErrMalformedResponse, text)
	}
}
