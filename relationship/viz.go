package relationship

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallnest/memograph/memory"
)

// DrawMermaid renders the graph as a Mermaid flowchart. Node labels default
// to the memory IDs; pass a labels map to substitute readable content.
func (g *Graph) DrawMermaid(labels map[string]string) string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")

	nodes := make(map[string]struct{})
	for _, rel := range g.edges {
		nodes[rel.SourceID] = struct{}{}
		nodes[rel.TargetID] = struct{}{}
	}
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	alias := make(map[string]string, len(ids))
	for i, id := range ids {
		alias[id] = fmt.Sprintf("M%d", i)
		label := labels[id]
		if label == "" {
			label = id
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias[id], mermaidEscape(label)))
	}

	for _, rel := range g.edges {
		arrow := "-->"
		if rel.Type == memory.RelationContradicts {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%s %.2f| %s\n",
			alias[rel.SourceID], arrow, rel.Type, rel.Confidence, alias[rel.TargetID]))
	}
	return sb.String()
}

func mermaidEscape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

// Terminal color scheme for edge types.
var (
	contradictColor = lipgloss.AdaptiveColor{Light: "#FE5F86", Dark: "#FE5F86"}
	supportColor    = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"}
	supersedeColor  = lipgloss.AdaptiveColor{Light: "#FFC107", Dark: "#FFD54F"}
	neutralColor    = lipgloss.AdaptiveColor{Light: "#9E9E9E", Dark: "#BDBDBD"}

	edgeHeaderStyle = lipgloss.NewStyle().Bold(true)
	edgeMetaStyle   = lipgloss.NewStyle().Foreground(neutralColor)
)

func styleFor(t memory.RelationType) lipgloss.Style {
	switch t {
	case memory.RelationContradicts:
		return lipgloss.NewStyle().Foreground(contradictColor).Bold(true)
	case memory.RelationSupports, memory.RelationElaborates:
		return lipgloss.NewStyle().Foreground(supportColor)
	case memory.RelationSupersedes:
		return lipgloss.NewStyle().Foreground(supersedeColor)
	default:
		return lipgloss.NewStyle().Foreground(neutralColor)
	}
}

// Render writes a styled terminal summary of the graph, one edge per line,
// grouped by relation type.
func (g *Graph) Render() string {
	if len(g.edges) == 0 {
		return edgeMetaStyle.Render("no relationships")
	}

	byType := make(map[memory.RelationType][]*memory.Relationship)
	for _, rel := range g.edges {
		byType[rel.Type] = append(byType[rel.Type], rel)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)

	var sb strings.Builder
	for _, t := range types {
		relType := memory.RelationType(t)
		sb.WriteString(edgeHeaderStyle.Render(t))
		sb.WriteString("\n")
		for _, rel := range byType[relType] {
			line := fmt.Sprintf("  %s -> %s", rel.SourceID, rel.TargetID)
			meta := fmt.Sprintf(" (strength %.2f, confidence %.2f)", rel.Strength, rel.Confidence)
			sb.WriteString(styleFor(relType).Render(line))
			sb.WriteString(edgeMetaStyle.Render(meta))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
