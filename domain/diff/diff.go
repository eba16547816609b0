package diff

import (
	"filon/domain/graphstate"
)

// Options tunes change detection
type Options struct {
	// Fields compared for nodes present in both states. Empty means DefaultFields.
	Fields []Field
}

func (o Options) fields() []Field {
	if len(o.Fields) == 0 {
		return DefaultFields
	}
	return o.Fields
}

// Compute compares oldState against newState using DefaultFields.
// It never mutates its inputs and is safe for concurrent use.
func Compute(oldState, newState graphstate.GraphState) *Result {
	return ComputeWith(oldState, newState, Options{})
}

// ComputeWith compares two states with an explicit field selector.
// Nodes are keyed by id and edges by their source-target pair; when an input
// repeats a key, its first occurrence is used.
func ComputeWith(oldState, newState graphstate.GraphState, opts Options) *Result {
	fields := opts.fields()
	result := newResult()

	oldNodes := indexNodes(oldState.Nodes)
	newNodes := indexNodes(newState.Nodes)

	seen := make(map[string]struct{}, len(newState.Nodes))
	for _, n := range newState.Nodes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}

		before, existed := oldNodes[n.ID]
		if !existed {
			result.AddedNodes = append(result.AddedNodes, n)
			continue
		}
		after := newNodes[n.ID]
		if !NodesEqual(before, after, fields) {
			result.ChangedNodes = append(result.ChangedNodes, NodeChange{
				ID:     n.ID,
				Before: before,
				After:  after,
			})
		}
	}

	seen = make(map[string]struct{}, len(oldState.Nodes))
	for _, n := range oldState.Nodes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}

		if _, kept := newNodes[n.ID]; !kept {
			result.RemovedNodes = append(result.RemovedNodes, n)
		}
	}

	result.AddedEdges = edgesMissingFrom(newState.Edges, oldState.EdgeKeys())
	result.RemovedEdges = edgesMissingFrom(oldState.Edges, newState.EdgeKeys())

	return result
}

// indexNodes maps id to the first node carrying it
func indexNodes(nodes []graphstate.Node) map[string]graphstate.Node {
	idx := make(map[string]graphstate.Node, len(nodes))
	for _, n := range nodes {
		if _, dup := idx[n.ID]; !dup {
			idx[n.ID] = n
		}
	}
	return idx
}

// edgesMissingFrom returns edges whose pair key is absent from other,
// each key reported once.
func edgesMissingFrom(edges []graphstate.Edge, other map[graphstate.EdgeKey]struct{}) []graphstate.Edge {
	out := []graphstate.Edge{}
	seen := make(map[graphstate.EdgeKey]struct{}, len(edges))
	for _, e := range edges {
		key := e.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := other[key]; !ok {
			out = append(out, e)
		}
	}
	return out
}
