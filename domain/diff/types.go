// Package diff computes structural differences between two graph states.
package diff

import (
	"filon/domain/graphstate"
)

// NodeChange is a node present in both states whose compared fields differ
type NodeChange struct {
	ID     string          `json:"id"`
	Before graphstate.Node `json:"before"`
	After  graphstate.Node `json:"after"`
}

// Result is the outcome of comparing an old state against a new one.
// A node id appears in at most one of the three node buckets.
type Result struct {
	AddedNodes   []graphstate.Node `json:"addedNodes"`
	RemovedNodes []graphstate.Node `json:"removedNodes"`
	ChangedNodes []NodeChange      `json:"changedNodes"`
	AddedEdges   []graphstate.Edge `json:"addedEdges"`
	RemovedEdges []graphstate.Edge `json:"removedEdges"`
}

func newResult() *Result {
	return &Result{
		AddedNodes:   []graphstate.Node{},
		RemovedNodes: []graphstate.Node{},
		ChangedNodes: []NodeChange{},
		AddedEdges:   []graphstate.Edge{},
		RemovedEdges: []graphstate.Edge{},
	}
}

// Summary holds bucket sizes, as shown by the diff panel
type Summary struct {
	NodesAdded   int `json:"nodesAdded"`
	NodesRemoved int `json:"nodesRemoved"`
	NodesChanged int `json:"nodesChanged"`
	EdgesAdded   int `json:"edgesAdded"`
	EdgesRemoved int `json:"edgesRemoved"`
}

// Total returns the number of entries across all buckets
func (s Summary) Total() int {
	return s.NodesAdded + s.NodesRemoved + s.NodesChanged + s.EdgesAdded + s.EdgesRemoved
}

// Summary counts the entries of each bucket
func (r *Result) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	return Summary{
		NodesAdded:   len(r.AddedNodes),
		NodesRemoved: len(r.RemovedNodes),
		NodesChanged: len(r.ChangedNodes),
		EdgesAdded:   len(r.AddedEdges),
		EdgesRemoved: len(r.RemovedEdges),
	}
}

// IsEmpty reports whether the two compared states were equivalent
func (r *Result) IsEmpty() bool {
	return r.Summary().Total() == 0
}

// Touches reports whether the node id appears in any node bucket
func (r *Result) Touches(id string) bool {
	if r == nil {
		return false
	}
	for _, n := range r.AddedNodes {
		if n.ID == id {
			return true
		}
	}
	for _, n := range r.RemovedNodes {
		if n.ID == id {
			return true
		}
	}
	for _, c := range r.ChangedNodes {
		if c.ID == id {
			return true
		}
	}
	return false
}
