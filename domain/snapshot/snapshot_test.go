package snapshot

import (
	"testing"
	"time"

	"filon/domain/graphstate"
	pkgerrors "filon/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() graphstate.GraphState {
	return graphstate.New(
		[]graphstate.Node{
			{ID: "1", Data: graphstate.NodeData{Label: "Goal", Extra: map[string]interface{}{"color": "red", "size": 2.0}}},
			{ID: "2", Position: graphstate.Position{X: 100}, Data: graphstate.NodeData{Label: "Track"}},
		},
		[]graphstate.Edge{{Source: "1", Target: "2"}, {Source: "2", Target: "1"}},
	)
}

func TestNew(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		snap, err := New(Params{GraphID: "g1", BranchID: "b1", State: sampleState()})
		require.NoError(t, err)

		assert.NotEmpty(t, snap.ID)
		assert.Equal(t, 1, snap.Version)
		assert.Equal(t, OriginManual, snap.Origin)
		assert.False(t, snap.CreatedAt.IsZero())
		assert.Len(t, snap.Checksum, 64)
		assert.True(t, snap.IsRoot())
		assert.Equal(t, 2, snap.NodeCount())
		assert.Equal(t, 2, snap.EdgeCount())
	})

	t.Run("keeps caller values", func(t *testing.T) {
		at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
		snap, err := New(Params{
			ID: "s9", GraphID: "g1", BranchID: "b1", ParentID: "s8",
			Version: 9, CreatedAt: at, Origin: OriginAutosave,
		})
		require.NoError(t, err)

		assert.Equal(t, "s9", snap.ID)
		assert.Equal(t, 9, snap.Version)
		assert.Equal(t, at, snap.CreatedAt)
		assert.Equal(t, OriginAutosave, snap.Origin)
		assert.False(t, snap.IsRoot())
		assert.NotNil(t, snap.State.Nodes)
		assert.NotNil(t, snap.State.Edges)
	})

	t.Run("copies state", func(t *testing.T) {
		state := sampleState()
		snap, err := New(Params{GraphID: "g1", BranchID: "b1", State: state})
		require.NoError(t, err)

		state.Nodes[0].Data.Label = "changed"
		assert.Equal(t, "Goal", snap.State.Nodes[0].Data.Label)
	})

	tests := []struct {
		name   string
		params Params
	}{
		{"missing graph", Params{BranchID: "b1"}},
		{"missing branch", Params{GraphID: "g1"}},
		{"negative version", Params{GraphID: "g1", BranchID: "b1", Version: -1}},
		{"unknown origin", Params{GraphID: "g1", BranchID: "b1", Origin: "imported"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestChecksum(t *testing.T) {
	base := sampleState()
	sum, err := Checksum(base)
	require.NoError(t, err)

	t.Run("ignores ordering", func(t *testing.T) {
		reordered := graphstate.New(
			[]graphstate.Node{base.Nodes[1], base.Nodes[0]},
			[]graphstate.Edge{base.Edges[1], base.Edges[0]},
		)
		got, err := Checksum(reordered)
		require.NoError(t, err)
		assert.Equal(t, sum, got)
	})

	t.Run("ignores meta", func(t *testing.T) {
		withMeta := base.Clone()
		withMeta.Meta = map[string]interface{}{"savedBy": "tab-2"}
		got, err := Checksum(withMeta)
		require.NoError(t, err)
		assert.Equal(t, sum, got)
	})

	t.Run("detects content changes", func(t *testing.T) {
		changes := []func(*graphstate.GraphState){
			func(s *graphstate.GraphState) { s.Nodes[0].Data.Label = "Other" },
			func(s *graphstate.GraphState) { s.Nodes[1].Position.Y = 0.5 },
			func(s *graphstate.GraphState) { s.Nodes[0].Data.Extra["color"] = "blue" },
			func(s *graphstate.GraphState) { s.Edges = s.Edges[:1] },
		}
		for i, change := range changes {
			edited := base.Clone()
			change(&edited)
			got, err := Checksum(edited)
			require.NoError(t, err)
			assert.NotEqual(t, sum, got, "change %d", i)
		}
	})
}

func TestSameContent(t *testing.T) {
	a, err := New(Params{GraphID: "g1", BranchID: "b1", State: sampleState()})
	require.NoError(t, err)
	b, err := New(Params{GraphID: "g1", BranchID: "b2", State: sampleState()})
	require.NoError(t, err)
	c, err := New(Params{GraphID: "g1", BranchID: "b1"})
	require.NoError(t, err)

	assert.True(t, a.SameContent(b))
	assert.False(t, a.SameContent(c))
	assert.False(t, a.SameContent(nil))
}
