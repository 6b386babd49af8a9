package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/sieve/pkg/adapters/source"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_Contract(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		filepath.Join(dir, "rules.csv"):           "\ufeffpriority,rule\r\nHigh,\"a, b\"\r\n",
		filepath.Join(dir, "client_keywords.csv"): "keyword\nstent\n",
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	tests.DataSourceContractTest(t, source.New(), files, filepath.Join(dir, "custom_synonyms.csv"))
}

func TestFiles_Directory(t *testing.T) {
	_, err := source.New().Read(context.Background(), t.TempDir())
	var fault *domain.IOFault
	assert.ErrorAs(t, err, &fault)
}
