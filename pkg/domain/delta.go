package domain

import "encoding/json"

// Delta is the change set a node returns. Nil fields are left untouched.
// History-like fields only ever grow: AppendReview and AppendFailures are
// the sole way to touch ReviewHistory and FailureLog.
type Delta struct {
	RulesSource *string `json:"rules_source,omitempty"`

	// ClearSources drops the raw texts so the next load re-reads them.
	ClearSources bool `json:"clear_sources,omitempty"`

	RawRules    *string `json:"raw_rules,omitempty"`
	RawKeywords *string `json:"raw_keywords,omitempty"`
	RawSynonyms *string `json:"raw_synonyms,omitempty"`

	AnalysisReport *AnalysisReport `json:"analysis_report,omitempty"`
	AnalysisRounds *int            `json:"analysis_rounds,omitempty"`
	AppendReview   []ReviewEntry   `json:"append_review,omitempty"`

	TransformedRules *string `json:"transformed_rules,omitempty"`
	ParseInput       *string `json:"parse_input,omitempty"`

	// ResetParse clears the previous attempt's output before ParsedRules,
	// LastResponse and DecodeFault are applied.
	ResetParse   bool            `json:"reset_parse,omitempty"`
	ParsedRules  json.RawMessage `json:"parsed_rules,omitempty"`
	LastResponse *string         `json:"last_response,omitempty"`
	DecodeFault  *string         `json:"decode_fault,omitempty"`

	ValidationErrors *[]string `json:"validation_errors,omitempty"`
	AppendFailures   []string  `json:"append_failures,omitempty"`
	IterationCount   *int      `json:"iteration_count,omitempty"`

	ReportPath *string `json:"report_path,omitempty"`
	OutputPath *string `json:"output_path,omitempty"`
}

// Apply returns a new State with the delta applied. The input is not modified.
func (d Delta) Apply(s *State) *State {
	next := s.Clone()

	if d.RulesSource != nil {
		next.RulesSource = *d.RulesSource
	}
	if d.ClearSources {
		next.RawRules, next.RawKeywords, next.RawSynonyms = nil, nil, nil
	}
	if d.RawRules != nil {
		next.RawRules = cloneString(d.RawRules)
	}
	if d.RawKeywords != nil {
		next.RawKeywords = cloneString(d.RawKeywords)
	}
	if d.RawSynonyms != nil {
		next.RawSynonyms = cloneString(d.RawSynonyms)
	}

	if d.AnalysisReport != nil {
		next.AnalysisReport = d.AnalysisReport.Clone()
	}
	if d.AnalysisRounds != nil {
		next.AnalysisRounds = *d.AnalysisRounds
	}
	next.ReviewHistory = append(next.ReviewHistory, d.AppendReview...)

	if d.TransformedRules != nil {
		next.TransformedRules = cloneString(d.TransformedRules)
	}
	if d.ParseInput != nil {
		next.ParseInput = cloneString(d.ParseInput)
	}

	if d.ResetParse {
		next.ParsedRules = nil
		next.LastResponse = ""
		next.DecodeFault = ""
	}
	if d.ParsedRules != nil {
		next.ParsedRules = append(json.RawMessage{}, d.ParsedRules...)
	}
	if d.LastResponse != nil {
		next.LastResponse = *d.LastResponse
	}
	if d.DecodeFault != nil {
		next.DecodeFault = *d.DecodeFault
	}

	if d.ValidationErrors != nil {
		next.ValidationErrors = append([]string{}, (*d.ValidationErrors)...)
	}
	next.FailureLog = append(next.FailureLog, d.AppendFailures...)
	if d.IterationCount != nil {
		next.IterationCount = *d.IterationCount
	}

	if d.ReportPath != nil {
		next.ReportPath = *d.ReportPath
	}
	if d.OutputPath != nil {
		next.OutputPath = *d.OutputPath
	}
	return next
}

// IsEmpty reports whether the delta carries no change.
func (d Delta) IsEmpty() bool {
	return d.RulesSource == nil && !d.ClearSources &&
		d.RawRules == nil && d.RawKeywords == nil && d.RawSynonyms == nil &&
		d.AnalysisReport == nil && d.AnalysisRounds == nil && len(d.AppendReview) == 0 &&
		d.TransformedRules == nil && d.ParseInput == nil &&
		!d.ResetParse && d.ParsedRules == nil && d.LastResponse == nil && d.DecodeFault == nil &&
		d.ValidationErrors == nil && len(d.AppendFailures) == 0 && d.IterationCount == nil &&
		d.ReportPath == nil && d.OutputPath == nil
}
