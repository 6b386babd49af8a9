// Package schema validates the structured output of the parse step.
//
// Validation never stops at the first defect: every check runs and every
// failure is reported, so a retry prompt carries the full correction list.
//
// Basic usage:
//
//	failures := schema.Check(parsed, schema.Options{Levels: levels})
//	for _, f := range failures {
//	    fmt.Println(f) // e.g. "MissingKey: priorities"
//	}
//
// Rule groups ({"rules": [...]}) are checked against an embedded JSON schema.
// Priority keys are checked against the fixed hierarchy
// Very High > High > Internal > Medium > Low > Not Relevant.
package schema
