package schema

import (
	"fmt"
	"strings"

	"github.com/aretw0/sieve/pkg/domain"
)

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Failures []domain.ValidationFailure
}

func (e *AggregateError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Failures))
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, f.Error())
	}
	return b.String()
}

// Messages renders every failure as "Kind: detail".
func Messages(failures []domain.ValidationFailure) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Error()
	}
	return out
}
