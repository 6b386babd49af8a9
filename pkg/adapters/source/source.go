// Package source reads session inputs from the local filesystem.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/sieve/pkg/domain"
)

// Files implements ports.DataSource over os.ReadFile. Content is returned
// byte-for-byte.
type Files struct{}

// New returns a filesystem data source.
func New() *Files {
	return &Files{}
}

// Read returns the whole file. A missing file wraps
// domain.ErrSourceNotFound; any other failure is a *domain.IOFault.
func (f *Files) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
	}
	if err != nil {
		return "", &domain.IOFault{Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &domain.IOFault{Path: path, Err: errors.New("is a directory")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.IOFault{Path: path, Err: err}
	}
	return string(data), nil
}
