package graphstate

import (
	"encoding/json"
	"testing"

	pkgerrors "filon/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeDataJSON_KeepsExtensionFields(t *testing.T) {
	raw := `{"id":"1","position":{"x":10,"y":-5.5},"data":{"label":"Goal","note":"ship it","color":"#f00","progress":0.4}}`

	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, "1", n.ID)
	assert.Equal(t, Position{X: 10, Y: -5.5}, n.Position)
	assert.Equal(t, "Goal", n.Data.Label)
	assert.Equal(t, "ship it", n.Data.Note)
	assert.Equal(t, "#f00", n.Data.Extra["color"])
	assert.Equal(t, 0.4, n.Data.Extra["progress"])

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestNodeDataJSON_OmitsEmptyNote(t *testing.T) {
	out, err := json.Marshal(NodeData{Label: "Track"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"Track"}`, string(out))
}

func TestEdgeJSON(t *testing.T) {
	raw := `{"id":"e1","source":"a","target":"b","animated":true}`

	var e Edge
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, EdgeKey("a-b"), e.Key())
	assert.Equal(t, true, e.Attrs["animated"])

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestGraphStateJSON_ToleratesWrongKinds(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		nodes int
		edges int
	}{
		{name: "nodes object", raw: `{"nodes":{"bad":true},"edges":[{"source":"a","target":"b"}]}`, edges: 1},
		{name: "edges string", raw: `{"nodes":[{"id":"a"}],"edges":"x"}`, nodes: 1},
		{name: "both wrong", raw: `{"nodes":{},"edges":"x","meta":[1]}`},
		{name: "null arrays", raw: `{"nodes":null,"edges":null}`},
		{name: "missing", raw: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s GraphState
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &s))
			assert.Len(t, s.Nodes, tt.nodes)
			assert.Len(t, s.Edges, tt.edges)
			assert.Nil(t, s.Meta)
		})
	}

	var s GraphState
	require.NoError(t, json.Unmarshal([]byte(`{"nodes":[],"edges":[],"meta":{"savedAt":"now"}}`), &s))
	assert.Equal(t, "now", s.Meta["savedAt"])

	assert.Error(t, json.Unmarshal([]byte(`{"nodes":[1]}`), &s), "array elements still decode strictly")
}

func TestGraphState_Clone(t *testing.T) {
	orig := GraphState{
		Nodes: []Node{{ID: "1", Data: NodeData{Label: "Goal", Extra: map[string]interface{}{
			"tags": []interface{}{"a"},
		}}}},
		Edges: []Edge{{Source: "1", Target: "1", Attrs: map[string]interface{}{"w": 1.0}}},
		Meta:  map[string]interface{}{"savedAt": "2026-01-01"},
	}

	cp := orig.Clone()
	cp.Nodes[0].Data.Label = "Changed"
	cp.Nodes[0].Data.Extra["tags"].([]interface{})[0] = "z"
	cp.Edges[0].Attrs["w"] = 2.0
	cp.Meta["savedAt"] = "never"

	assert.Equal(t, "Goal", orig.Nodes[0].Data.Label)
	assert.Equal(t, "a", orig.Nodes[0].Data.Extra["tags"].([]interface{})[0])
	assert.Equal(t, 1.0, orig.Edges[0].Attrs["w"])
	assert.Equal(t, "2026-01-01", orig.Meta["savedAt"])
}

func TestGraphState_Validate(t *testing.T) {
	tests := []struct {
		name    string
		state   GraphState
		wantErr string
	}{
		{
			name:  "valid",
			state: New([]Node{{ID: "1"}, {ID: "2"}}, []Edge{{Source: "1", Target: "2"}}),
		},
		{
			name:  "empty state",
			state: GraphState{},
		},
		{
			name:    "empty id",
			state:   New([]Node{{ID: ""}}, nil),
			wantErr: "empty id",
		},
		{
			name:    "duplicate id",
			state:   New([]Node{{ID: "1"}, {ID: "1"}}, nil),
			wantErr: "duplicate node id",
		},
		{
			name:    "dangling edge",
			state:   New([]Node{{ID: "1"}}, []Edge{{Source: "1", Target: "9"}}),
			wantErr: "missing target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidGraph))
		})
	}
}

func TestGraphState_Sets(t *testing.T) {
	s := New(
		[]Node{{ID: "1"}, {ID: "2"}},
		[]Edge{{Source: "1", Target: "2"}, {Source: "1", Target: "2", Label: "dup"}},
	)

	assert.Len(t, s.NodeIDs(), 2)
	assert.Len(t, s.EdgeKeys(), 1)

	n, ok := s.NodeByID("2")
	assert.True(t, ok)
	assert.Equal(t, "2", n.ID)

	_, ok = s.NodeByID("3")
	assert.False(t, ok)
}
