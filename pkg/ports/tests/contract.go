package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

// DataSourceContractTest verifies that an adapter complies with ports.DataSource.
// files maps paths (as the adapter expects them) to their exact content.
func DataSourceContractTest(t *testing.T, source ports.DataSource, files map[string]string, missing string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Read_Verbatim", func(t *testing.T) {
		for path, want := range files {
			got, err := source.Read(ctx, path)
			if err != nil {
				t.Fatalf("unexpected error reading %s: %v", path, err)
			}
			if got != want {
				t.Errorf("content mismatch for %s. got %q, want %q", path, got, want)
			}
		}
	})

	t.Run("Read_NotFound", func(t *testing.T) {
		_, err := source.Read(ctx, missing)
		if err == nil {
			t.Fatal("expected error for missing source, got nil")
		}
		if !errors.Is(err, domain.ErrSourceNotFound) {
			t.Errorf("expected ErrSourceNotFound, got %v", err)
		}
	})
}
