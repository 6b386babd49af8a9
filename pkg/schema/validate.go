package schema

import (
	"fmt"

	"github.com/aretw0/sieve/pkg/decode"
	"github.com/aretw0/sieve/pkg/domain"
)

// Options tune the contextual checks.
type Options struct {
	// Levels are the priority levels named by the source rules. Each ranked
	// level must appear under "priorities".
	Levels []domain.Priority
}

// Check validates a decoded parse output and returns every defect found.
// An empty result means the output is valid.
func Check(v any, opts Options) []domain.ValidationFailure {
	m, ok := decode.AsMapping(v)
	if !ok {
		return []domain.ValidationFailure{{
			Kind:   domain.KindNotAMapping,
			Detail: "decoded output is " + decode.KindOf(v),
		}}
	}

	var failures []domain.ValidationFailure
	relevance, hasRelevance := m.Get("relevance")
	priorities, hasPriorities := m.Get("priorities")
	if !hasRelevance {
		failures = append(failures, domain.ValidationFailure{Kind: domain.KindMissingKey, Detail: "relevance"})
	}
	if !hasPriorities {
		failures = append(failures, domain.ValidationFailure{Kind: domain.KindMissingKey, Detail: "priorities"})
	}

	if hasRelevance {
		failures = append(failures, groupFailures("relevance", relevance)...)
	}
	if hasPriorities {
		failures = append(failures, priorityFailures(priorities, opts)...)
	}
	return failures
}

// Validate is Check returning an *AggregateError, or nil when valid.
func Validate(v any, opts Options) error {
	if failures := Check(v, opts); len(failures) > 0 {
		return &AggregateError{Failures: failures}
	}
	return nil
}

func groupFailures(path string, v any) []domain.ValidationFailure {
	var out []domain.ValidationFailure
	for _, msg := range violations(ruleGroupSchema, path, v) {
		out = append(out, domain.ValidationFailure{Kind: domain.KindSchemaViolation, Detail: msg})
	}
	return out
}

func priorityFailures(v any, opts Options) []domain.ValidationFailure {
	pm, ok := decode.AsMapping(v)
	if !ok {
		return []domain.ValidationFailure{{
			Kind:   domain.KindSchemaViolation,
			Detail: "priorities: expected object, got " + decode.KindOf(v),
		}}
	}

	var out []domain.ValidationFailure
	present := make(map[domain.Priority]bool)
	var prev domain.Priority

	for pair := pm.Oldest(); pair != nil; pair = pair.Next() {
		level := domain.Priority(pair.Key)
		if !level.IsRanked() {
			out = append(out, domain.ValidationFailure{Kind: domain.KindUnknownPriority, Detail: pair.Key})
			continue
		}
		present[level] = true
		out = append(out, groupFailures("priorities/"+pair.Key, pair.Value)...)

		if prev != "" && level.Rank() < prev.Rank() {
			out = append(out, domain.ValidationFailure{
				Kind:   domain.KindHierarchyOrder,
				Detail: fmt.Sprintf("%q listed after %q", level, prev),
			})
		}
		prev = level
	}

	for _, level := range opts.Levels {
		if level.IsRanked() && !present[level] {
			out = append(out, domain.ValidationFailure{Kind: domain.KindMissingPriority, Detail: string(level)})
		}
	}
	return out
}
