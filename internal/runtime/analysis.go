package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/sieve/pkg/decode"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/inputs"
	"github.com/aretw0/sieve/pkg/ports"
	"github.com/aretw0/sieve/pkg/schema"
)

// resolve joins relative source paths to the working directory.
func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

func readChecked(ctx context.Context, src ports.DataSource, kind inputs.Kind, path string) (string, error) {
	text, err := src.Read(ctx, path)
	if err != nil {
		return "", err
	}
	if err := inputs.Check(kind, path, text); err != nil {
		return "", err
	}
	return text, nil
}

// readOptional returns "" when the source does not exist.
func readOptional(ctx context.Context, src ports.DataSource, kind inputs.Kind, path string) (string, error) {
	text, err := readChecked(ctx, src, kind, path)
	if errors.Is(err, domain.ErrSourceNotFound) {
		return "", nil
	}
	return text, err
}

type loadNode struct {
	source ports.DataSource
	logger *slog.Logger
}

func (n *loadNode) ID() domain.NodeID { return domain.NodeLoadData }

func (n *loadNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	rulesPath := resolve(s.WorkingDirectory, s.RulesSource)
	rules, err := readChecked(ctx, n.source, inputs.KindRules, rulesPath)
	if err != nil {
		return domain.Delta{}, "", err
	}
	keywords, err := readChecked(ctx, n.source, inputs.KindKeywords, resolve(s.WorkingDirectory, inputs.KeywordsFile))
	if err != nil {
		return domain.Delta{}, "", err
	}
	synonyms, err := readOptional(ctx, n.source, inputs.KindSynonyms, resolve(s.WorkingDirectory, inputs.SynonymsFile))
	if err != nil {
		return domain.Delta{}, "", err
	}

	n.logger.InfoContext(ctx, "inputs loaded", "rules", rulesPath, "synonyms", synonyms != "")
	return domain.Delta{
		RawRules:    &rules,
		RawKeywords: &keywords,
		RawSynonyms: &synonyms,
	}, domain.SignalNext, nil
}

type analyzeNode struct {
	caller *modelCaller
}

func (n *analyzeNode) ID() domain.NodeID { return domain.NodeAnalyze }

func (n *analyzeNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	data := analyzePrompt{
		Rules:    domain.Text(s.RawRules),
		Keywords: domain.Text(s.RawKeywords),
		Synonyms: orNone(domain.Text(s.RawSynonyms)),
	}
	if last, ok := s.LastReview(); ok && last.Decision == domain.DecisionReject {
		data.Feedback = last.Feedback
	}
	prompt, err := render("analyze.tmpl", data)
	if err != nil {
		return domain.Delta{}, "", err
	}

	round := s.AnalysisRounds + 1
	text, err := n.caller.invoke(ctx, s, n.ID(), round, prompt)
	if err != nil {
		return domain.Delta{}, "", err
	}
	report, err := DecodeReport(text)
	if err != nil {
		return domain.Delta{}, "", err
	}
	return domain.Delta{AnalysisReport: report, AnalysisRounds: &round}, domain.SignalNext, nil
}

// DecodeReport turns an analysis completion into a report. The completion
// goes through the same two-tier decode as parse output, then must match
// the report schema.
func DecodeReport(text string) (*domain.AnalysisReport, error) {
	v, err := decode.Response(text)
	if err != nil {
		return nil, fmt.Errorf("analysis report: %w", err)
	}
	if problems := schema.ValidateAnalysisReport(v); len(problems) > 0 {
		return nil, fmt.Errorf("%w: analysis report: %s", domain.ErrMalformedResponse, strings.Join(problems, "; "))
	}

	var report domain.AnalysisReport
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &report,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(decode.ToPlain(v)); err != nil {
		return nil, fmt.Errorf("%w: analysis report: %v", domain.ErrMalformedResponse, err)
	}
	if report.Issues == nil {
		report.Issues = []domain.Issue{}
	}
	if report.Optimizations == nil {
		report.Optimizations = []domain.Optimization{}
	}
	return &report, nil
}

type optimizeNode struct {
	logger *slog.Logger
}

func (n *optimizeNode) ID() domain.NodeID { return domain.NodeApplyOptimizations }

func (n *optimizeNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	var opts []domain.Optimization
	if s.AnalysisReport != nil {
		opts = s.AnalysisReport.Optimizations
	}
	text, applied, missed := ApplyOptimizations(domain.Text(s.RawRules), opts)
	for _, m := range missed {
		n.logger.WarnContext(ctx, "optimization text not found in rules", "level", m.PriorityLevel, "original", m.OriginalText)
	}
	n.logger.InfoContext(ctx, "optimizations applied", "applied", applied, "missed", len(missed))
	return domain.Delta{TransformedRules: &text}, domain.SignalNext, nil
}

// ApplyOptimizations replaces every occurrence of each original text with
// its suggestion. The match is a plain substring match over the raw CSV:
// quoting and delimiters are not interpreted. Relevance entries and empty
// suggestions are ignored. It returns the new text, the number of applied
// optimizations and those whose original text was not found.
func ApplyOptimizations(rules string, opts []domain.Optimization) (string, int, []domain.Optimization) {
	applied := 0
	var missed []domain.Optimization
	for _, opt := range opts {
		if level, ok := domain.MatchPriority(opt.PriorityLevel); ok && level == domain.PriorityRelevance {
			continue
		}
		if opt.OriginalText == "" || opt.SuggestedText == "" {
			continue
		}
		if !strings.Contains(rules, opt.OriginalText) {
			missed = append(missed, opt)
			continue
		}
		rules = strings.ReplaceAll(rules, opt.OriginalText, opt.SuggestedText)
		applied++
	}
	return rules, applied, missed
}

type reportNode struct {
	sink ports.ReportSink
}

func (n *reportNode) ID() domain.NodeID { return domain.NodeSaveReport }

func (n *reportNode) Run(ctx context.Context, s *domain.State) (domain.Delta, domain.Signal, error) {
	path, err := n.sink.Write(ctx, s.WorkingDirectory, s.AnalysisReport, s.ReviewHistory)
	if err != nil {
		return domain.Delta{}, "", err
	}

	sig := domain.SignalContinue
	if last, ok := s.LastReview(); ok && (last.Decision == domain.DecisionQuit || last.Decision == domain.DecisionReject) {
		sig = domain.SignalExit
	}
	return domain.Delta{ReportPath: &path}, sig, nil
}
