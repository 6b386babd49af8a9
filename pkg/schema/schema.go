package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aretw0/sieve/pkg/decode"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	ruleGroupSchema      = mustCompile("rule_group.json")
	analysisReportSchema = mustCompile("analysis_report.json")
)

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return s
}

// ValidateAnalysisReport checks a decoded analysis completion. It returns
// one message per violated leaf constraint.
func ValidateAnalysisReport(v any) []string {
	return violations(analysisReportSchema, "", v)
}

// violations runs s against v and flattens the error tree into
// "path: message" strings, sorted for stable output.
func violations(s *jsonschema.Schema, prefix string, v any) []string {
	err := s.Validate(decode.ToPlain(v))
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{joinPath(prefix, "") + ": " + err.Error()}
	}
	var out []string
	collect(ve, prefix, &out)
	sort.Strings(out)
	return dedupe(out)
}

func collect(ve *jsonschema.ValidationError, prefix string, out *[]string) {
	if len(ve.Causes) == 0 {
		*out = append(*out, fmt.Sprintf("%s: %s", joinPath(prefix, ve.InstanceLocation), ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collect(c, prefix, out)
	}
}

func joinPath(prefix, pointer string) string {
	p := strings.Trim(prefix+pointer, "/")
	if p == "" {
		return "(root)"
	}
	return p
}

func dedupe(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
