// Package output writes parsed rules to the working directory.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
)

// Dir is the artifact directory inside the working directory.
const Dir = "output"

const timestampLayout = "2006-01-02_15-04-05"

// Writer implements ports.OutputSink.
type Writer struct{}

// New returns an output writer.
func New() *Writer {
	return &Writer{}
}

// FileName is the artifact name for (at, model).
func FileName(at time.Time, model string) string {
	return fmt.Sprintf("parsed_rules_%s_%s.json", at.Format(timestampLayout), sanitizeModel(model))
}

func sanitizeModel(model string) string {
	if model == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "-", `\`, "-", ":", "-", " ", "_").Replace(model)
}

// Write stores parsed as indented JSON under dir/output. Key order is kept.
// An absent output is written as null. If the name is taken (same second,
// same model) a numeric suffix is added instead of overwriting.
func (w *Writer) Write(ctx context.Context, dir string, parsed []byte, model string, at time.Time) (string, error) {
	outDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &domain.IOFault{Path: outDir, Err: err}
	}

	body := []byte("null")
	if len(bytes.TrimSpace(parsed)) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, parsed, "", "  "); err != nil {
			return "", fmt.Errorf("parsed rules are not JSON: %w", err)
		}
		body = buf.Bytes()
	}
	body = append(body, '\n')

	name := FileName(at, model)
	base := strings.TrimSuffix(name, ".json")
	for i := 1; ; i++ {
		path := filepath.Join(outDir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s_%d.json", base, i)
			continue
		}
		if err != nil {
			return "", &domain.IOFault{Path: path, Err: err}
		}
		_, werr := f.Write(body)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return "", &domain.IOFault{Path: path, Err: werr}
		}
		return path, nil
	}
}
