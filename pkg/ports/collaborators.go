package ports

import (
	"context"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
)

// LanguageModel sends one prompt and returns the raw completion text.
// The text is untrusted. Failures are reported as *domain.CollaboratorFault.
type LanguageModel interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// DataSource reads input files verbatim.
// A missing file yields an error wrapping domain.ErrSourceNotFound.
type DataSource interface {
	Read(ctx context.Context, path string) (string, error)
}

// ReportSink writes the analysis report and the review log once per
// phase-1 terminal path. It returns the artifact location.
type ReportSink interface {
	Write(ctx context.Context, dir string, report *domain.AnalysisReport, history []domain.ReviewEntry) (string, error)
}

// OutputSink writes the parsed rules. The artifact name must be unique per
// (timestamp, model) pair.
type OutputSink interface {
	Write(ctx context.Context, dir string, parsed []byte, model string, at time.Time) (string, error)
}
