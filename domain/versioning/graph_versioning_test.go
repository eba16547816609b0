package versioning

import (
	"testing"
	"time"

	"filon/domain/diff"
	"filon/domain/graphstate"
	"filon/domain/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func nodes(labels ...string) []graphstate.Node {
	out := make([]graphstate.Node, len(labels))
	for i, l := range labels {
		out[i] = graphstate.Node{ID: l, Data: graphstate.NodeData{Label: l}}
	}
	return out
}

func snap(t *testing.T, id string, version int, at time.Time, state graphstate.GraphState) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.New(snapshot.Params{
		ID: id, GraphID: "g1", BranchID: "b1", Version: version, CreatedAt: at, State: state,
	})
	require.NoError(t, err)
	return s
}

func TestShouldCreateVersion(t *testing.T) {
	policy := VersioningPolicy{AutoVersion: true, VersionOnNodeCount: 3, VersionOnTimeElapsed: time.Minute}
	last := snap(t, "s1", 1, t0, graphstate.New(nodes("a", "b", "c", "d"), nil))

	tests := []struct {
		name   string
		policy VersioningPolicy
		last   *snapshot.Snapshot
		count  int
		now    time.Time
		want   bool
	}{
		{"disabled", VersioningPolicy{}, nil, 0, t0, false},
		{"first version", policy, nil, 0, t0, true},
		{"below thresholds", policy, last, 5, t0.Add(30 * time.Second), false},
		{"node growth", policy, last, 7, t0, true},
		{"node shrink", policy, last, 1, t0, true},
		{"time elapsed", policy, last, 4, t0.Add(time.Minute), true},
		{"zero thresholds", VersioningPolicy{AutoVersion: true}, last, 100, t0.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ShouldCreateVersion(tt.last, tt.count, tt.now))
		})
	}
}

func TestChangesFromDiff(t *testing.T) {
	old := graphstate.New(nodes("a", "b"), []graphstate.Edge{{Source: "a", Target: "b"}})
	updated := old.Clone()
	updated.Nodes = append(updated.Nodes[:1], graphstate.Node{ID: "c", Data: graphstate.NodeData{Label: "c"}})
	updated.Nodes[0].Data.Label = "A"
	updated.Edges = []graphstate.Edge{{Source: "a", Target: "c"}}

	changes := ChangesFromDiff(diff.Compute(old, updated), t0)

	types := map[ChangeType][]string{}
	for _, c := range changes {
		assert.Equal(t, t0, c.Timestamp)
		types[c.Type] = append(types[c.Type], c.EntityID)
	}
	assert.Equal(t, []string{"c"}, types[ChangeTypeNodeAdded])
	assert.Equal(t, []string{"b"}, types[ChangeTypeNodeRemoved])
	assert.Equal(t, []string{"a"}, types[ChangeTypeNodeUpdated])
	assert.Equal(t, []string{"a-c"}, types[ChangeTypeEdgeAdded])
	assert.Equal(t, []string{"a-b"}, types[ChangeTypeEdgeRemoved])

	assert.Empty(t, ChangesFromDiff(nil, t0))
}

func TestCompareVersions(t *testing.T) {
	from := snap(t, "s1", 1, t0, graphstate.New(nodes("a", "b"), nil))
	to := snap(t, "s2", 2, t0.Add(time.Hour), graphstate.New(nodes("a", "c", "d"), []graphstate.Edge{{Source: "c", Target: "d"}}))

	vd, err := CompareVersions(from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, vd.FromVersion)
	assert.Equal(t, 2, vd.ToVersion)
	assert.Equal(t, NodesDiff{Added: 2, Removed: 1}, vd.NodesDiff)
	assert.Equal(t, EdgesDiff{Added: 1}, vd.EdgesDiff)
	assert.Equal(t, time.Hour, vd.TimeDiff)
	assert.Len(t, vd.Changes, 4)

	_, err = CompareVersions(nil, to)
	assert.Error(t, err)

	other, err := snapshot.New(snapshot.Params{GraphID: "g2", BranchID: "b1"})
	require.NoError(t, err)
	_, err = CompareVersions(from, other)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	s1 := snap(t, "s1", 1, t0, graphstate.New(nodes("a"), nil))
	s2 := snap(t, "s2", 2, t0.Add(time.Minute), graphstate.New(nodes("a", "b"), nil))
	s3 := snap(t, "s3", 3, t0.Add(2*time.Minute), graphstate.New(nodes("b"), nil))

	frames := Replay([]*snapshot.Snapshot{s3, nil, s1, s2})

	require.Len(t, frames, 3)
	assert.Equal(t, []string{"s1", "s2", "s3"}, []string{frames[0].SnapshotID, frames[1].SnapshotID, frames[2].SnapshotID})
	assert.Equal(t, diff.Summary{NodesAdded: 1}, frames[0].Summary)
	assert.Equal(t, diff.Summary{NodesAdded: 1}, frames[1].Summary)
	assert.Equal(t, diff.Summary{NodesRemoved: 1}, frames[2].Summary)
	assert.Equal(t, "a", frames[2].Diff.RemovedNodes[0].ID)

	assert.Empty(t, Replay(nil))
}

func TestPruneCandidates(t *testing.T) {
	now := t0.Add(60 * 24 * time.Hour)
	old := func(id string, v int) *snapshot.Snapshot { return snap(t, id, v, t0, graphstate.GraphState{}) }
	fresh := func(id string, v int) *snapshot.Snapshot { return snap(t, id, v, now.Add(-time.Hour), graphstate.GraphState{}) }

	snaps := []*snapshot.Snapshot{old("s1", 1), old("s2", 2), fresh("s3", 3), old("s4", 4), fresh("s5", 5)}
	policy := VersioningPolicy{MaxVersions: 2, RetentionPeriod: 30 * 24 * time.Hour}

	assert.Equal(t, []string{"s1", "s2"}, policy.PruneCandidates(snaps, now))
	assert.Equal(t, []string{"s2"}, policy.PruneCandidates(snaps, now, "s1"))

	policy.MaxVersions = 0
	policy.RetentionPeriod = 0
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, policy.PruneCandidates(snaps, now))

	policy.MaxVersions = 10
	assert.Empty(t, policy.PruneCandidates(snaps, now))
}
