package domain

// NodeID names a workflow step.
type NodeID string

const (
	NodeLoadData           NodeID = "load_data"
	NodeAnalyze            NodeID = "analyze"
	NodeGatekeeper         NodeID = "gatekeeper"
	NodeApplyOptimizations NodeID = "apply_optimizations"
	NodeSaveReport         NodeID = "save_report"
	NodePrepareParse       NodeID = "prepare_parse"
	NodeParse              NodeID = "parse"
	NodeValidate           NodeID = "validate"
	NodeSaveOutput         NodeID = "save_output"

	// NodeEnd is the sink. It never runs.
	NodeEnd NodeID = "end"
)

// Family groups nodes by how they behave.
type Family string

const (
	FamilyDeterministic Family = "deterministic"
	FamilyGenerative    Family = "generative"
	FamilyInteractive   Family = "interactive"
)

// FamilyOf reports the family of a built-in node.
func FamilyOf(id NodeID) Family {
	switch id {
	case NodeAnalyze, NodeParse:
		return FamilyGenerative
	case NodeGatekeeper:
		return FamilyInteractive
	default:
		return FamilyDeterministic
	}
}

// Phase returns 1 for the analysis nodes and 2 for the parsing nodes.
func Phase(id NodeID) int {
	switch id {
	case NodePrepareParse, NodeParse, NodeValidate, NodeSaveOutput:
		return 2
	case NodeEnd:
		return 0
	default:
		return 1
	}
}
