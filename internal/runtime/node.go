package runtime

import (
	"context"

	"github.com/aretw0/sieve/pkg/domain"
)

// Node is one workflow step. Run reads the state, performs at most one
// collaborator call and describes its effect as a Delta. It must not
// modify s.
type Node interface {
	ID() domain.NodeID
	Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error)
}
