package ports

import (
	"context"

	"github.com/aretw0/sieve/pkg/domain"
)

// ResumableEngine is what the outer surfaces (CLI, HTTP, MCP) drive.
type ResumableEngine interface {
	// Resume applies a gatekeeper command to a paused session and runs it
	// until the next pause or a terminal signal.
	Resume(ctx context.Context, sessionID string, cmd domain.Command) (*domain.Outcome, error)

	// Inspect loads a session without claiming it.
	Inspect(ctx context.Context, sessionID string) (*domain.State, error)

	// List returns the stored session IDs.
	List(ctx context.Context) ([]string, error)
}
