// Package inputs checks the CSV sources a session reads before they reach
// the language model.
package inputs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/sieve/pkg/domain"
)

// Source file names inside a working directory.
const (
	RulesFile    = domain.DefaultRulesFile
	KeywordsFile = "client_keywords.csv"
	SynonymsFile = "custom_synonyms.csv"
)

// Kind selects the header contract of a source.
type Kind string

const (
	KindRules    Kind = "rules"
	KindKeywords Kind = "client_keywords"
	KindSynonyms Kind = "custom_synonyms"
)

var requiredHeaders = map[Kind][]string{
	KindRules:    {"priority", "rule"},
	KindKeywords: {"keyword"},
	KindSynonyms: {"id", "term", "root", "synonym"},
}

// Error lists every problem found in one source.
type Error struct {
	Source   string
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// Check validates text as a source of the given kind. name is only used in
// the error.
func Check(kind Kind, name, text string) error {
	required, ok := requiredHeaders[kind]
	if !ok {
		return fmt.Errorf("unknown source kind %q", kind)
	}

	header, rows, err := read(text)
	if err != nil {
		return &Error{Source: name, Problems: []string{err.Error()}}
	}

	var problems []string
	for _, col := range required {
		if index(header, col) < 0 {
			problems = append(problems, fmt.Sprintf("missing column %q", col))
		}
	}
	if len(problems) > 0 {
		return &Error{Source: name, Problems: problems}
	}

	if kind == KindRules {
		problems = checkPriorities(rows, index(header, "priority"))
	}
	if len(problems) > 0 {
		return &Error{Source: name, Problems: problems}
	}
	return nil
}

func checkPriorities(rows [][]string, col int) []string {
	var problems []string
	seen := make(map[domain.Priority]int)
	for i, row := range rows {
		line := i + 2
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			problems = append(problems, fmt.Sprintf("row %d: empty priority", line))
			continue
		}
		p, ok := domain.MatchPriority(row[col])
		if !ok {
			problems = append(problems, fmt.Sprintf("row %d: unknown priority %q", line, row[col]))
			continue
		}
		if first, dup := seen[p]; dup {
			problems = append(problems, fmt.Sprintf("row %d: priority %q already defined on row %d", line, p, first))
			continue
		}
		seen[p] = line
	}
	if len(seen) == 0 {
		problems = append(problems, "no valid priority found")
	}
	return problems
}

// Levels returns the priority levels named by a rules source, in file order.
// Rows that do not resolve are ignored.
func Levels(text string) []domain.Priority {
	header, rows, err := read(text)
	if err != nil {
		return nil
	}
	col := index(header, "priority")
	if col < 0 {
		return nil
	}
	var out []domain.Priority
	seen := make(map[domain.Priority]bool)
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if p, ok := domain.MatchPriority(row[col]); ok && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func read(text string) ([]string, [][]string, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, nil, err
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

func index(header []string, col string) int {
	for i, h := range header {
		if h == col {
			return i
		}
	}
	return -1
}
