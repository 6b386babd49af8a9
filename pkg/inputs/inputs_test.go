package inputs_test

import (
	"testing"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/inputs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesCSV = "\ufeffPriority,Rule\n" +
	"Relevance,\"Must mention a clinical trial\"\n" +
	"Very High - top accounts,\"Oncology, phase 3\"\n" +
	"high,Cardiology\n"

func TestCheck_Rules(t *testing.T) {
	require.NoError(t, inputs.Check(inputs.KindRules, "rules.csv", rulesCSV))

	err := inputs.Check(inputs.KindRules, "rules.csv", "priority,rule\nUrgent,x\nHigh,y\nHigh,z\n")
	var inErr *inputs.Error
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, []string{
		`row 2: unknown priority "Urgent"`,
		`row 4: priority "High" already defined on row 3`,
	}, inErr.Problems)
}

func TestCheck_MissingColumns(t *testing.T) {
	err := inputs.Check(inputs.KindSynonyms, "custom_synonyms.csv", "id,term\n1,a\n")
	var inErr *inputs.Error
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, []string{`missing column "root"`, `missing column "synonym"`}, inErr.Problems)
}

func TestCheck_NoValidPriority(t *testing.T) {
	err := inputs.Check(inputs.KindRules, "rules.csv", "priority,rule\n")
	assert.ErrorContains(t, err, "no valid priority found")
}

func TestCheck_Empty(t *testing.T) {
	err := inputs.Check(inputs.KindKeywords, "client_keywords.csv", "")
	assert.ErrorContains(t, err, "file is empty")
	assert.NoError(t, inputs.Check(inputs.KindKeywords, "client_keywords.csv", "Keyword\nstent\n"))
}

func TestLevels(t *testing.T) {
	assert.Equal(t, []domain.Priority{
		domain.PriorityRelevance,
		domain.PriorityVeryHigh,
		domain.PriorityHigh,
	}, inputs.Levels(rulesCSV))

	assert.Nil(t, inputs.Levels("not,a,rules,file\n"))
}
