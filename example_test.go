package sieve_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/sieve"
	"github.com/aretw0/sieve/pkg/domain"
)

// cannedModel answers every prompt with the same completion, as a stand-in
// for pkg/adapters/llm.
type cannedModel struct{ analysis, parse string }

func (m cannedModel) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if strings.Contains(prompt, `"issues"`) {
		return m.analysis, nil
	}
	return m.parse, nil
}

func Example() {
	dir, _ := os.MkdirTemp("", "sieve-example")
	defer os.RemoveAll(dir)
	_ = os.WriteFile(filepath.Join(dir, "rules.csv"), []byte("priority,rule\nHigh,oncology\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "client_keywords.csv"), []byte("keyword\noncology\n"), 0o644)

	eng, err := sieve.New(sieve.WithLanguageModel(cannedModel{
		analysis: `{"issues": [], "optimizations": []}`,
		parse:    `{"relevance": {"rules": []}, "priorities": {"High": {"rules": []}}}`,
	}))
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	out, _ := eng.Start(ctx, sieve.Request{SessionID: "example", Dir: dir, Model: "demo"})
	fmt.Println(out.Kind, out.Node)

	out, _ = eng.Resume(ctx, "example", domain.Approve())
	fmt.Println(out.Kind, len(out.State.ReviewHistory))

	// Output:
	// paused gatekeeper
	// completed 1
}
