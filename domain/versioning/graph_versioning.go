package versioning

import (
	"fmt"
	"sort"
	"time"

	"filon/domain/diff"
	"filon/domain/graphstate"
	"filon/domain/snapshot"
)

// Change represents a single entry in a version's change log
type Change struct {
	Type        ChangeType `json:"type"`
	EntityID    string     `json:"entity_id"`
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ChangeType represents the type of change
type ChangeType string

const (
	ChangeTypeNodeAdded   ChangeType = "node_added"
	ChangeTypeNodeRemoved ChangeType = "node_removed"
	ChangeTypeNodeUpdated ChangeType = "node_updated"
	ChangeTypeEdgeAdded   ChangeType = "edge_added"
	ChangeTypeEdgeRemoved ChangeType = "edge_removed"
)

// ChangesFromDiff flattens a diff result into a change log
func ChangesFromDiff(d *diff.Result, at time.Time) []Change {
	if d == nil {
		return []Change{}
	}

	changes := make([]Change, 0, d.Summary().Total())
	for _, n := range d.AddedNodes {
		changes = append(changes, Change{
			Type:        ChangeTypeNodeAdded,
			EntityID:    n.ID,
			Description: fmt.Sprintf("added node %q", n.Data.Label),
			Timestamp:   at,
		})
	}
	for _, n := range d.RemovedNodes {
		changes = append(changes, Change{
			Type:        ChangeTypeNodeRemoved,
			EntityID:    n.ID,
			Description: fmt.Sprintf("removed node %q", n.Data.Label),
			Timestamp:   at,
		})
	}
	for _, c := range d.ChangedNodes {
		changes = append(changes, Change{
			Type:        ChangeTypeNodeUpdated,
			EntityID:    c.ID,
			Description: fmt.Sprintf("updated node %q", c.After.Data.Label),
			Timestamp:   at,
		})
	}
	for _, e := range d.AddedEdges {
		changes = append(changes, Change{
			Type:        ChangeTypeEdgeAdded,
			EntityID:    string(e.Key()),
			Description: fmt.Sprintf("connected %s to %s", e.Source, e.Target),
			Timestamp:   at,
		})
	}
	for _, e := range d.RemovedEdges {
		changes = append(changes, Change{
			Type:        ChangeTypeEdgeRemoved,
			EntityID:    string(e.Key()),
			Description: fmt.Sprintf("disconnected %s from %s", e.Source, e.Target),
			Timestamp:   at,
		})
	}
	return changes
}

// VersionDiff represents the difference between two versions
type VersionDiff struct {
	FromVersion int           `json:"from_version"`
	ToVersion   int           `json:"to_version"`
	NodesDiff   NodesDiff     `json:"nodes_diff"`
	EdgesDiff   EdgesDiff     `json:"edges_diff"`
	TimeDiff    time.Duration `json:"time_diff"`
	Changes     []Change      `json:"changes"`
}

// NodesDiff represents changes in nodes
type NodesDiff struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

// EdgesDiff represents changes in edges
type EdgesDiff struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// CompareVersions diffs the stored states of two snapshots
func CompareVersions(from, to *snapshot.Snapshot) (*VersionDiff, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("versions cannot be nil")
	}
	if from.GraphID != to.GraphID {
		return nil, fmt.Errorf("versions belong to different graphs")
	}

	d := diff.Compute(from.State, to.State)
	s := d.Summary()

	return &VersionDiff{
		FromVersion: from.Version,
		ToVersion:   to.Version,
		NodesDiff: NodesDiff{
			Added:   s.NodesAdded,
			Removed: s.NodesRemoved,
			Updated: s.NodesChanged,
		},
		EdgesDiff: EdgesDiff{
			Added:   s.EdgesAdded,
			Removed: s.EdgesRemoved,
		},
		TimeDiff: to.CreatedAt.Sub(from.CreatedAt),
		Changes:  ChangesFromDiff(d, to.CreatedAt),
	}, nil
}

// TimelineFrame is one step of timeline playback
type TimelineFrame struct {
	SnapshotID string          `json:"snapshot_id"`
	Version    int             `json:"version"`
	Label      string          `json:"label,omitempty"`
	Origin     snapshot.Origin `json:"origin"`
	CreatedAt  time.Time       `json:"created_at"`
	NodeCount  int             `json:"node_count"`
	EdgeCount  int             `json:"edge_count"`
	Diff       *diff.Result    `json:"diff"`
	Summary    diff.Summary    `json:"summary"`
}

// Replay orders snapshots by version and pairs each one with the diff from
// its predecessor. The first frame is diffed against an empty graph.
func Replay(snaps []*snapshot.Snapshot) []TimelineFrame {
	ordered := sortByVersion(snaps)

	frames := make([]TimelineFrame, 0, len(ordered))
	prev := graphstate.New(nil, nil)
	for _, s := range ordered {
		d := diff.Compute(prev, s.State)
		frames = append(frames, TimelineFrame{
			SnapshotID: s.ID,
			Version:    s.Version,
			Label:      s.Label,
			Origin:     s.Origin,
			CreatedAt:  s.CreatedAt,
			NodeCount:  s.NodeCount(),
			EdgeCount:  s.EdgeCount(),
			Diff:       d,
			Summary:    d.Summary(),
		})
		prev = s.State
	}
	return frames
}

// VersioningPolicy defines versioning behavior
type VersioningPolicy struct {
	AutoVersion          bool          `json:"auto_version"`
	MaxVersions          int           `json:"max_versions"`
	RetentionPeriod      time.Duration `json:"retention_period"`
	VersionOnNodeCount   int           `json:"version_on_node_count"`
	VersionOnTimeElapsed time.Duration `json:"version_on_time_elapsed"`
}

// DefaultVersioningPolicy returns the default versioning policy
func DefaultVersioningPolicy() VersioningPolicy {
	return VersioningPolicy{
		AutoVersion:          true,
		MaxVersions:          50,
		RetentionPeriod:      30 * 24 * time.Hour,
		VersionOnNodeCount:   10,
		VersionOnTimeElapsed: 5 * time.Minute,
	}
}

// ShouldCreateVersion decides whether an autosave becomes a new snapshot.
// Zero thresholds are ignored.
func (p VersioningPolicy) ShouldCreateVersion(last *snapshot.Snapshot, currentNodeCount int, currentTime time.Time) bool {
	if !p.AutoVersion {
		return false
	}

	if last == nil {
		return true
	}

	if p.VersionOnNodeCount > 0 && abs(currentNodeCount-last.NodeCount()) >= p.VersionOnNodeCount {
		return true
	}

	if p.VersionOnTimeElapsed > 0 && currentTime.Sub(last.CreatedAt) >= p.VersionOnTimeElapsed {
		return true
	}

	return false
}

// PruneCandidates returns the ids of snapshots that fall outside both the
// MaxVersions window and the retention period. The newest snapshot and any
// protected id are never returned.
func (p VersioningPolicy) PruneCandidates(snaps []*snapshot.Snapshot, now time.Time, protected ...string) []string {
	ordered := sortByVersion(snaps)
	keep := p.MaxVersions
	if keep < 1 {
		keep = 1
	}
	if len(ordered) <= keep {
		return []string{}
	}

	guard := make(map[string]struct{}, len(protected))
	for _, id := range protected {
		guard[id] = struct{}{}
	}

	cutoff := now.Add(-p.RetentionPeriod)
	ids := []string{}
	for _, s := range ordered[:len(ordered)-keep] {
		if _, ok := guard[s.ID]; ok {
			continue
		}
		if p.RetentionPeriod > 0 && s.CreatedAt.After(cutoff) {
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids
}

func sortByVersion(snaps []*snapshot.Snapshot) []*snapshot.Snapshot {
	ordered := make([]*snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s != nil {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Version != ordered[j].Version {
			return ordered[i].Version < ordered[j].Version
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
