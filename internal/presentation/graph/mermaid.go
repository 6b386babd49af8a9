// Package graph renders the workflow transition table as a Mermaid diagram.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/sieve/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []domain.NodeID
	CurrentNode  domain.NodeID
}

// OverlayFromState marks the nodes a session went through and where it
// stands now.
func OverlayFromState(s *domain.State) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{VisitedNodes: s.Trail, CurrentNode: s.CurrentNodeID}
}

// GenerateMermaid produces a Mermaid flowchart from a transition table.
// It applies semantic styling:
// - End: ((Circle))
// - Generative (model call): [[Subroutine]]
// - Interactive (gatekeeper): [/Parallelogram/]
// - Default: [Rectangle]
// Loops back to an earlier node are dotted. Nodes are grouped by phase.
func GenerateMermaid(transitions []domain.Transition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	order := nodeOrder(transitions)
	position := make(map[domain.NodeID]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	for phase := 1; phase <= 2; phase++ {
		fmt.Fprintf(&sb, "    subgraph phase%d[\"Phase %d\"]\n", phase, phase)
		for _, id := range order {
			if domain.Phase(id) == phase {
				sb.WriteString("    " + nodeDecl(id))
			}
		}
		sb.WriteString("    end\n")
	}
	for _, id := range order {
		if domain.Phase(id) == 0 {
			sb.WriteString(nodeDecl(id))
		}
	}

	for _, t := range transitions {
		arrow := fmt.Sprintf("-- %s -->", t.Signal)
		if position[t.To] <= position[t.From] {
			arrow = fmt.Sprintf("-. %s .->", t.Signal)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(t.From), arrow, sanitizeMermaidID(t.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}
	return sb.String()
}

func nodeDecl(id domain.NodeID) string {
	opener, closer := "[", "]"
	switch {
	case id == domain.NodeEnd:
		opener, closer = "((", "))"
	case domain.FamilyOf(id) == domain.FamilyGenerative:
		opener, closer = "[[", "]]"
	case domain.FamilyOf(id) == domain.FamilyInteractive:
		opener, closer = "[/", "/]"
	}
	return fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(id), opener, id, closer)
}

func nodeOrder(transitions []domain.Transition) []domain.NodeID {
	seen := make(map[domain.NodeID]bool)
	var out []domain.NodeID
	for _, t := range transitions {
		for _, id := range []domain.NodeID{t.From, t.To} {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func sanitizeMermaidID(id domain.NodeID) string {
	s := strings.ReplaceAll(string(id), ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "end" {
		// reserved word in Mermaid
		return "end_"
	}
	return s
}
