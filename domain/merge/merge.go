// Package merge applies diff results onto graph states and combines two
// states under a changed-node resolution policy.
package merge

import (
	"filon/domain/diff"
	"filon/domain/graphstate"
)

// Apply produces base with d applied. The result holds exactly
// (base minus removed) plus added; changed nodes keep their slot and take the
// change's After content. Entries that reference ids unknown to both base and
// the added set are ignored. base is never mutated and Meta is carried over.
func Apply(base graphstate.GraphState, d *diff.Result) graphstate.GraphState {
	if d == nil {
		return base.Clone()
	}

	type slot struct {
		node    graphstate.Node
		removed bool
	}

	order := make([]string, 0, len(base.Nodes)+len(d.AddedNodes))
	slots := make(map[string]*slot, len(base.Nodes)+len(d.AddedNodes))

	for _, n := range base.Nodes {
		if _, dup := slots[n.ID]; dup {
			continue
		}
		slots[n.ID] = &slot{node: n.Clone()}
		order = append(order, n.ID)
	}

	for _, n := range d.AddedNodes {
		if s, ok := slots[n.ID]; ok {
			s.node = n.Clone()
			continue
		}
		slots[n.ID] = &slot{node: n.Clone()}
		order = append(order, n.ID)
	}

	for _, n := range d.RemovedNodes {
		if s, ok := slots[n.ID]; ok {
			s.removed = true
		}
	}

	// Changed runs after removal, so a changed id always ends up present.
	for _, c := range d.ChangedNodes {
		s, ok := slots[c.ID]
		if !ok {
			continue
		}
		after := c.After.Clone()
		after.ID = c.ID
		s.node = after
		s.removed = false
	}

	nodes := make([]graphstate.Node, 0, len(order))
	for _, id := range order {
		if s := slots[id]; !s.removed {
			nodes = append(nodes, s.node)
		}
	}

	return graphstate.GraphState{
		Nodes: nodes,
		Edges: applyEdges(base.Edges, d.AddedEdges, d.RemovedEdges),
		Meta:  base.CloneMeta(),
	}
}

func applyEdges(base, added, removed []graphstate.Edge) []graphstate.Edge {
	drop := make(map[graphstate.EdgeKey]struct{}, len(removed))
	for _, e := range removed {
		drop[e.Key()] = struct{}{}
	}

	edges := make([]graphstate.Edge, 0, len(base)+len(added))
	present := make(map[graphstate.EdgeKey]struct{}, len(base)+len(added))

	keep := func(e graphstate.Edge) {
		key := e.Key()
		if _, dup := present[key]; dup {
			return
		}
		present[key] = struct{}{}
		edges = append(edges, e.Clone())
	}

	for _, e := range base {
		if _, gone := drop[e.Key()]; !gone {
			keep(e)
		}
	}
	// Removal runs after the adds, so a key listed on both sides is dropped.
	for _, e := range added {
		if _, gone := drop[e.Key()]; !gone {
			keep(e)
		}
	}

	return edges
}

// Snapshots merges incoming into base: the difference between the two is
// computed with the default fields and applied, with changed nodes settled
// by r.
func Snapshots(base, incoming graphstate.GraphState, r Resolution) graphstate.GraphState {
	merged, _ := Reconcile(base, incoming, r, diff.Options{})
	return merged
}

// SnapshotsWith is Snapshots with an explicit field selector
func SnapshotsWith(base, incoming graphstate.GraphState, r Resolution, opts diff.Options) graphstate.GraphState {
	merged, _ := Reconcile(base, incoming, r, opts)
	return merged
}

// Outcome describes how a two-way merge was settled
type Outcome struct {
	Resolution Resolution      `json:"resolution"`
	Diff       *diff.Result    `json:"diff"`
	Winners    map[string]Side `json:"winners"`
}

// Reconcile merges incoming into base and reports which side each changed
// node was taken from.
func Reconcile(base, incoming graphstate.GraphState, r Resolution, opts diff.Options) (graphstate.GraphState, Outcome) {
	d := diff.ComputeWith(base, incoming, opts)

	outcome := Outcome{
		Resolution: r,
		Diff:       d,
		Winners:    make(map[string]Side, len(d.ChangedNodes)),
	}

	resolved := *d
	resolved.ChangedNodes = make([]diff.NodeChange, 0, len(d.ChangedNodes))
	for _, c := range d.ChangedNodes {
		if r.keepsBase() {
			outcome.Winners[c.ID] = SideBase
			resolved.ChangedNodes = append(resolved.ChangedNodes, diff.NodeChange{
				ID:     c.ID,
				Before: c.Before,
				After:  c.Before,
			})
			continue
		}
		outcome.Winners[c.ID] = SideIncoming
		resolved.ChangedNodes = append(resolved.ChangedNodes, c)
	}

	return Apply(base, &resolved), outcome
}
