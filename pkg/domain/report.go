package domain

// Severity grades an analysis issue.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
)

// Issue is a problem the analysis found in the rule set.
type Issue struct {
	Issue          string   `json:"issue" mapstructure:"issue"`
	PriorityLevels []string `json:"priority_levels" mapstructure:"priority_levels"`
	Severity       Severity `json:"severity" mapstructure:"severity"`
	Impact         string   `json:"impact" mapstructure:"impact"`
}

// Optimization is a suggested rewrite of one priority level's rule text.
type Optimization struct {
	PriorityLevel string `json:"priority_level" mapstructure:"priority_level"`
	OriginalText  string `json:"original_text" mapstructure:"original_text"`
	SuggestedText string `json:"suggested_text" mapstructure:"suggested_text"`
	Rationale     string `json:"rationale" mapstructure:"rationale"`
}

// AnalysisReport is what the analyze node hands to the gatekeeper.
type AnalysisReport struct {
	Issues        []Issue        `json:"issues" mapstructure:"issues"`
	Optimizations []Optimization `json:"optimizations" mapstructure:"optimizations"`
}

// Clone returns a deep copy of the report.
func (r *AnalysisReport) Clone() *AnalysisReport {
	if r == nil {
		return nil
	}
	c := &AnalysisReport{
		Issues:        make([]Issue, len(r.Issues)),
		Optimizations: append([]Optimization{}, r.Optimizations...),
	}
	for i, is := range r.Issues {
		is.PriorityLevels = append([]string{}, is.PriorityLevels...)
		c.Issues[i] = is
	}
	return c
}

// CriticalCount returns how many issues are graded Critical.
func (r *AnalysisReport) CriticalCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			n++
		}
	}
	return n
}
