package runtime

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

const noSynonyms = "None provided"

type analyzePrompt struct {
	Rules    string
	Keywords string
	Synonyms string
	Feedback string
}

type parsePrompt struct {
	Rules        string
	Keywords     string
	Synonyms     string
	Instructions string
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// refinement builds the instruction block of a retry: the user's own
// instructions followed by every error of the previous attempt.
func refinement(instructions string, errs []string) string {
	out := instructions
	if len(errs) > 0 {
		out += "\nRefinement required. Please correct errors: " + strings.Join(errs, ", ")
	}
	return strings.TrimSpace(out)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return noSynonyms
	}
	return s
}
