package domain

import (
	"sort"
	"strings"
)

// Priority is a rule bucket. Relevance gates inclusion; the others rank it.
type Priority string

const (
	PriorityRelevance   Priority = "Relevance"
	PriorityVeryHigh    Priority = "Very High"
	PriorityHigh        Priority = "High"
	PriorityInternal    Priority = "Internal"
	PriorityMedium      Priority = "Medium"
	PriorityLow         Priority = "Low"
	PriorityNotRelevant Priority = "Not Relevant"
)

// Hierarchy lists the ranked levels from most to least important.
var Hierarchy = []Priority{
	PriorityVeryHigh,
	PriorityHigh,
	PriorityInternal,
	PriorityMedium,
	PriorityLow,
	PriorityNotRelevant,
}

// AllowedPriorities is every level a rules source may name.
var AllowedPriorities = append([]Priority{PriorityRelevance}, Hierarchy...)

var matchOrder = func() []Priority {
	levels := append([]Priority{}, AllowedPriorities...)
	sort.SliceStable(levels, func(i, j int) bool { return len(levels[i]) > len(levels[j]) })
	return levels
}()

// MatchPriority resolves free text to a level with a case-insensitive prefix
// match. Longer names win so "Very High ..." never resolves to High.
func MatchPriority(s string) (Priority, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, p := range matchOrder {
		if strings.HasPrefix(v, strings.ToLower(string(p))) {
			return p, true
		}
	}
	return "", false
}

// Rank is the position in Hierarchy, or -1 for Relevance and unknown names.
func (p Priority) Rank() int {
	for i, h := range Hierarchy {
		if h == p {
			return i
		}
	}
	return -1
}

// IsRanked reports whether p belongs to Hierarchy.
func (p Priority) IsRanked() bool {
	return p.Rank() >= 0
}
