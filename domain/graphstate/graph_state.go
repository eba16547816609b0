// Package graphstate holds the plain snapshot model shared by the diff and
// merge engines: nodes keyed by id, edges keyed by their source/target pair,
// and a pass-through metadata bag.
package graphstate

import (
	"fmt"

	pkgerrors "filon/pkg/errors"
)

// Position is a 2D canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equals compares coordinates strictly, without tolerance
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Node is one idea/goal/track unit on the canvas
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Clone returns a copy that shares no maps with n
func (n Node) Clone() Node {
	n.Data = n.Data.Clone()
	return n
}

// EdgeKey identifies an edge by its ordered endpoint pair
type EdgeKey string

// MakeEdgeKey builds the pair key used for edge identity
func MakeEdgeKey(source, target string) EdgeKey {
	return EdgeKey(source + "-" + target)
}

// Edge is a directed relationship between two node ids.
// Only Source and Target take part in identity.
type Edge struct {
	ID     string
	Source string
	Target string
	Label  string
	Attrs  map[string]interface{}
}

// Key returns the pair key of the edge
func (e Edge) Key() EdgeKey {
	return MakeEdgeKey(e.Source, e.Target)
}

// Clone returns a copy that shares no maps with e
func (e Edge) Clone() Edge {
	e.Attrs = cloneMap(e.Attrs)
	return e
}

// GraphState is the unit of comparison and merge
type GraphState struct {
	Nodes []Node                 `json:"nodes"`
	Edges []Edge                 `json:"edges"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// New creates a graph state from nodes and edges
func New(nodes []Node, edges []Edge) GraphState {
	if nodes == nil {
		nodes = []Node{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	return GraphState{Nodes: nodes, Edges: edges}
}

// Clone deep-copies the state so callers can mutate the result freely
func (s GraphState) Clone() GraphState {
	out := GraphState{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
		Meta:  s.CloneMeta(),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range s.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// CloneMeta deep-copies the provenance bag
func (s GraphState) CloneMeta() map[string]interface{} {
	return cloneMap(s.Meta)
}

// NodeIDs returns the set of node ids
func (s GraphState) NodeIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		ids[n.ID] = struct{}{}
	}
	return ids
}

// EdgeKeys returns the set of edge pair keys
func (s GraphState) EdgeKeys() map[EdgeKey]struct{} {
	keys := make(map[EdgeKey]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		keys[e.Key()] = struct{}{}
	}
	return keys
}

// NodeByID finds a node by id
func (s GraphState) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeCount returns the number of nodes
func (s GraphState) NodeCount() int {
	return len(s.Nodes)
}

// EdgeCount returns the number of edges
func (s GraphState) EdgeCount() int {
	return len(s.Edges)
}

// Validate checks the invariants callers are responsible for: non-empty
// unique node ids and edges that reference existing nodes. The diff and
// merge engines never call it.
func (s GraphState) Validate() error {
	ids := make(map[string]struct{}, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			return invalid(fmt.Sprintf("node at index %d has an empty id", i))
		}
		if _, dup := ids[n.ID]; dup {
			return invalid(fmt.Sprintf("duplicate node id %q", n.ID))
		}
		ids[n.ID] = struct{}{}
	}

	for _, e := range s.Edges {
		if _, ok := ids[e.Source]; !ok {
			return invalid(fmt.Sprintf("edge %s references missing source node", e.Key()))
		}
		if _, ok := ids[e.Target]; !ok {
			return invalid(fmt.Sprintf("edge %s references missing target node", e.Key()))
		}
	}

	return nil
}

func invalid(msg string) error {
	return pkgerrors.NewValidationError(msg).WithCode(pkgerrors.CodeInvalidGraph)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
