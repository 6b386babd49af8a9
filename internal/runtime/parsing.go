package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/sieve/pkg/decode"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/inputs"
	"github.com/aretw0/sieve/pkg/ports"
	"github.com/aretw0/sieve/pkg/schema"
)

// prepareNode is the phase boundary. It works whether phase 1 approved,
// skipped or never ran: approved or skipped text is used as is, otherwise
// the rules are read again from disk.
type prepareNode struct {
	source ports.DataSource
	logger *slog.Logger
}

func (n *prepareNode) ID() domain.NodeID { return domain.NodePrepareParse }

func (n *prepareNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	var d domain.Delta

	if s.TransformedRules != nil {
		d.ParseInput = domain.Ptr(*s.TransformedRules)
		n.logger.DebugContext(ctx, "parse input taken from phase 1")
	} else {
		path := resolve(s.WorkingDirectory, s.RulesSource)
		rules, err := readChecked(ctx, n.source, inputs.KindRules, path)
		if err != nil {
			return domain.Delta{}, "", err
		}
		d.ParseInput = &rules
		n.logger.InfoContext(ctx, "parse input read from disk", "path", path)
	}

	if s.RawKeywords == nil {
		keywords, err := readChecked(ctx, n.source, inputs.KindKeywords, resolve(s.WorkingDirectory, inputs.KeywordsFile))
		if err != nil {
			return domain.Delta{}, "", err
		}
		d.RawKeywords = &keywords
	}
	if s.RawSynonyms == nil {
		synonyms, err := readOptional(ctx, n.source, inputs.KindSynonyms, resolve(s.WorkingDirectory, inputs.SynonymsFile))
		if err != nil {
			return domain.Delta{}, "", err
		}
		d.RawSynonyms = &synonyms
	}
	return d, domain.SignalNext, nil
}

type parseNode struct {
	caller *modelCaller
	logger *slog.Logger
}

func (n *parseNode) ID() domain.NodeID { return domain.NodeParse }

func (n *parseNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	prompt, err := render("parse.tmpl", parsePrompt{
		Rules:        domain.Text(s.ParseInput),
		Keywords:     domain.Text(s.RawKeywords),
		Synonyms:     orNone(domain.Text(s.RawSynonyms)),
		Instructions: refinement(s.Instructions, s.ValidationErrors),
	})
	if err != nil {
		return domain.Delta{}, "", err
	}
	if len(s.ValidationErrors) > 0 {
		n.logger.WarnContext(ctx, "requesting refinement", "errors", len(s.ValidationErrors))
	}

	text, err := n.caller.invoke(ctx, s, n.ID(), s.IterationCount+1, prompt)
	if err != nil {
		return domain.Delta{}, "", err
	}

	d := domain.Delta{
		ResetParse:       true,
		LastResponse:     &text,
		ValidationErrors: &[]string{},
	}
	v, err := decode.Response(text)
	if err == nil {
		d.ParsedRules, err = decode.Marshal(v)
	}
	if err != nil {
		detail := strings.TrimPrefix(err.Error(), domain.ErrMalformedResponse.Error()+": ")
		d.ParsedRules = nil
		d.DecodeFault = &detail
		n.logger.WarnContext(ctx, "response could not be decoded", "err", err)
	}
	return d, domain.SignalNext, nil
}

type validateNode struct {
	maxIterations int
	logger        *slog.Logger
}

func (n *validateNode) ID() domain.NodeID { return domain.NodeValidate }

func (n *validateNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	count := s.IterationCount + 1
	errs := Validate(s)

	d := domain.Delta{IterationCount: &count, ValidationErrors: &errs}
	if len(errs) == 0 {
		n.logger.InfoContext(ctx, "validation passed", "attempt", count)
		return d, domain.SignalValid, nil
	}

	for _, e := range errs {
		d.AppendFailures = append(d.AppendFailures, fmt.Sprintf("attempt %d: %s", count, e))
	}
	if count < n.maxIterations {
		n.logger.WarnContext(ctx, "validation failed, retrying", "attempt", count, "errors", errs)
		return d, domain.SignalRetry, nil
	}
	n.logger.ErrorContext(ctx, "validation failed, giving up", "attempt", count, "errors", errs)
	return d, domain.SignalPhaseFailed, nil
}

// Validate returns every defect of the last parse attempt as
// "Kind: detail" messages.
func Validate(s *domain.State) []string {
	if s.DecodeFault != "" {
		return []string{domain.ValidationFailure{Kind: domain.KindMalformedResponse, Detail: s.DecodeFault}.Error()}
	}
	if len(s.ParsedRules) == 0 {
		return []string{domain.ValidationFailure{Kind: domain.KindMalformedResponse, Detail: "no output"}.Error()}
	}
	v, err := decode.Strict(string(s.ParsedRules))
	if err != nil {
		return []string{domain.ValidationFailure{Kind: domain.KindMalformedResponse, Detail: err.Error()}.Error()}
	}
	failures := schema.Check(v, schema.Options{Levels: inputs.Levels(domain.Text(s.ParseInput))})
	return schema.Messages(failures)
}

type outputNode struct {
	sink ports.OutputSink
	now  func() time.Time
}

func (n *outputNode) ID() domain.NodeID { return domain.NodeSaveOutput }

func (n *outputNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	path, err := n.sink.Write(ctx, s.WorkingDirectory, s.ParsedRules, s.Model, n.now())
	if err != nil {
		return domain.Delta{}, "", err
	}
	sig := domain.SignalDone
	if len(s.ValidationErrors) > 0 {
		sig = domain.SignalPhaseFailed
	}
	return domain.Delta{OutputPath: &path}, sig, nil
}
