package domain

import (
	"encoding/json"
	"time"
)

// Status describes where a session stands from the host's point of view.
type Status string

const (
	StatusInProgress Status = "in_progress" // Engine owns the session
	StatusPaused     Status = "paused"      // Waiting for a gatekeeper command
	StatusTerminated Status = "terminated"  // Sink state reached or node failed
)

// DefaultRulesFile is the rules source used until an edit command replaces it.
const DefaultRulesFile = "rules.csv"

// State is the single record carrying all workflow progress for one run.
// Nodes never mutate it; they return a Delta that the engine applies.
type State struct {
	SessionID        string `json:"session_id"`
	WorkingDirectory string `json:"working_directory"`
	Model            string `json:"model"`

	// Instructions are free-form user hints appended to the parse prompt.
	Instructions string `json:"instructions,omitempty"`

	// RulesSource is the rules file name, relative to WorkingDirectory unless absolute.
	RulesSource string `json:"rules_source"`

	// Presence of a raw text means the corresponding load succeeded.
	RawRules    *string `json:"raw_rules,omitempty"`
	RawKeywords *string `json:"raw_keywords,omitempty"`
	RawSynonyms *string `json:"raw_synonyms,omitempty"`

	AnalysisReport *AnalysisReport `json:"analysis_report,omitempty"`
	AnalysisRounds int             `json:"analysis_rounds"`

	// ReviewHistory is append-only: one entry per gatekeeper resumption.
	ReviewHistory []ReviewEntry `json:"review_history"`

	// TransformedRules is set only when the analysis phase ends in approve or skip.
	TransformedRules *string `json:"transformed_rules,omitempty"`

	// ParseInput is the rule text the parse phase consumes.
	ParseInput *string `json:"parse_input,omitempty"`

	// ParsedRules holds the last decoded model output, re-encoded as JSON with key order kept.
	ParsedRules  json.RawMessage `json:"parsed_rules,omitempty"`
	LastResponse string          `json:"last_response,omitempty"`
	DecodeFault  string          `json:"decode_fault,omitempty"`

	ValidationErrors []string `json:"validation_errors"`
	FailureLog       []string `json:"failure_log,omitempty"`
	IterationCount   int      `json:"iteration_count"`

	Status        Status   `json:"status"`
	CurrentNodeID NodeID   `json:"current_node_id"`
	Trail         []NodeID `json:"trail,omitempty"`

	ReportPath string `json:"report_path,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	LastError  string `json:"last_error,omitempty"`

	// Envelope carries ciphertext when a persistence middleware seals the record.
	Envelope string `json:"envelope,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a clean session positioned at the load node.
func NewState(sessionID, workingDirectory, model string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID:        sessionID,
		WorkingDirectory: workingDirectory,
		Model:            model,
		RulesSource:      DefaultRulesFile,
		ReviewHistory:    []ReviewEntry{},
		ValidationErrors: []string{},
		Status:           StatusInProgress,
		CurrentNodeID:    NodeLoadData,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy. Stores and the engine use it to keep callers
// from aliasing each other's slices.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.RawRules = cloneString(s.RawRules)
	c.RawKeywords = cloneString(s.RawKeywords)
	c.RawSynonyms = cloneString(s.RawSynonyms)
	c.TransformedRules = cloneString(s.TransformedRules)
	c.ParseInput = cloneString(s.ParseInput)
	c.AnalysisReport = s.AnalysisReport.Clone()
	c.ReviewHistory = append([]ReviewEntry{}, s.ReviewHistory...)
	c.ValidationErrors = append([]string{}, s.ValidationErrors...)
	if s.FailureLog != nil {
		c.FailureLog = append([]string{}, s.FailureLog...)
	}
	if s.Trail != nil {
		c.Trail = append([]NodeID{}, s.Trail...)
	}
	if s.ParsedRules != nil {
		c.ParsedRules = append(json.RawMessage{}, s.ParsedRules...)
	}
	return &c
}

// LastReview returns the most recent gatekeeper decision, if any.
func (s *State) LastReview() (ReviewEntry, bool) {
	if len(s.ReviewHistory) == 0 {
		return ReviewEntry{}, false
	}
	return s.ReviewHistory[len(s.ReviewHistory)-1], true
}

// Text dereferences an optional text field.
func Text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
