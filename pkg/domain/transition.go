package domain

// Signal is the routing outcome a node returns.
type Signal string

const (
	SignalNext     Signal = "next"
	SignalPaused   Signal = "paused"
	SignalApprove  Signal = "approve"
	SignalSkip     Signal = "skip"
	SignalReject   Signal = "reject"
	SignalEdit     Signal = "edit"
	SignalQuit     Signal = "quit"
	SignalContinue Signal = "continue"
	SignalExit     Signal = "exit"
	SignalValid    Signal = "valid"
	SignalRetry    Signal = "retry"
	SignalDone     Signal = "done"

	// SignalRejectExhausted ends phase 1 after too many analysis rounds.
	SignalRejectExhausted Signal = "reject_exhausted"
	// SignalPhaseFailed ends phase 2 once the retry cap is spent.
	SignalPhaseFailed Signal = "phase_failed"
)

// Transition moves the session from one node to the next on a signal.
type Transition struct {
	From   NodeID `json:"from"`
	Signal Signal `json:"signal"`
	To     NodeID `json:"to"`
}

// Transitions is the whole workflow graph, in presentation order.
var Transitions = []Transition{
	{NodeLoadData, SignalNext, NodeAnalyze},
	{NodeAnalyze, SignalNext, NodeGatekeeper},

	{NodeGatekeeper, SignalApprove, NodeApplyOptimizations},
	{NodeGatekeeper, SignalSkip, NodeSaveReport},
	{NodeGatekeeper, SignalReject, NodeAnalyze},
	{NodeGatekeeper, SignalEdit, NodeLoadData},
	{NodeGatekeeper, SignalQuit, NodeSaveReport},
	{NodeGatekeeper, SignalRejectExhausted, NodeSaveReport},

	{NodeApplyOptimizations, SignalNext, NodeSaveReport},
	{NodeSaveReport, SignalContinue, NodePrepareParse},
	{NodeSaveReport, SignalExit, NodeEnd},

	{NodePrepareParse, SignalNext, NodeParse},
	{NodeParse, SignalNext, NodeValidate},
	{NodeValidate, SignalValid, NodeSaveOutput},
	{NodeValidate, SignalRetry, NodeParse},
	{NodeValidate, SignalPhaseFailed, NodeSaveOutput},

	{NodeSaveOutput, SignalDone, NodeEnd},
	{NodeSaveOutput, SignalPhaseFailed, NodeEnd},
}

// Next resolves the target of (from, signal). ok is false when the pair is
// not part of the graph.
func Next(from NodeID, signal Signal) (NodeID, bool) {
	for _, t := range Transitions {
		if t.From == from && t.Signal == signal {
			return t.To, true
		}
	}
	return "", false
}

// Nodes returns every node referenced by the graph, in first-seen order.
func Nodes() []NodeID {
	seen := make(map[NodeID]bool)
	var out []NodeID
	for _, t := range Transitions {
		for _, id := range []NodeID{t.From, t.To} {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
