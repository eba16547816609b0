package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"filon/domain/graphstate"
)

// FormatText renders the result as a human-readable listing: "+" for added,
// "-" for removed, "~" for changed entries, followed by a summary line.
func (r *Result) FormatText() string {
	if r.IsEmpty() {
		return "No changes\n"
	}

	var sb strings.Builder

	for _, n := range r.AddedNodes {
		fmt.Fprintf(&sb, "+ node %s %s\n", n.ID, quoteLabel(n))
	}
	for _, n := range r.RemovedNodes {
		fmt.Fprintf(&sb, "- node %s %s\n", n.ID, quoteLabel(n))
	}
	for _, c := range r.ChangedNodes {
		fmt.Fprintf(&sb, "~ node %s%s\n", c.ID, describeChange(c))
	}
	for _, e := range r.AddedEdges {
		fmt.Fprintf(&sb, "+ edge %s -> %s\n", e.Source, e.Target)
	}
	for _, e := range r.RemovedEdges {
		fmt.Fprintf(&sb, "- edge %s -> %s\n", e.Source, e.Target)
	}

	s := r.Summary()
	fmt.Fprintf(&sb, "\nSummary: nodes %d added, %d removed, %d changed; edges %d added, %d removed\n",
		s.NodesAdded, s.NodesRemoved, s.NodesChanged, s.EdgesAdded, s.EdgesRemoved)

	return sb.String()
}

// FormatJSON renders the result as indented JSON
func (r *Result) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func quoteLabel(n graphstate.Node) string {
	return fmt.Sprintf("%q", n.Data.Label)
}

func describeChange(c NodeChange) string {
	var parts []string
	if c.Before.Data.Label != c.After.Data.Label {
		parts = append(parts, fmt.Sprintf("label %q -> %q", c.Before.Data.Label, c.After.Data.Label))
	}
	if c.Before.Data.Note != c.After.Data.Note {
		parts = append(parts, "note edited")
	}
	if !c.Before.Position.Equals(c.After.Position) {
		parts = append(parts, fmt.Sprintf("moved (%g,%g) -> (%g,%g)",
			c.Before.Position.X, c.Before.Position.Y, c.After.Position.X, c.After.Position.Y))
	}
	if c.Before.Type != c.After.Type {
		parts = append(parts, fmt.Sprintf("type %q -> %q", c.Before.Type, c.After.Type))
	}
	if len(parts) == 0 {
		return " (data)"
	}
	return " " + strings.Join(parts, ", ")
}
