package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"filon/domain/graphstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseJSON = `{
  "nodes": [
    {"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Goal", "status": "todo"}},
    {"id": "2", "position": {"x": 100, "y": 0}, "data": {"label": "Track"}}
  ],
  "edges": [{"id": "e1-2", "source": "1", "target": "2"}]
}`

const incomingYAML = `nodes:
  - id: "1"
    position: {x: 0, y: 0}
    data:
      label: Goal v2
      status: done
  - id: "2"
    position: {x: 100, y: 0}
    data:
      label: Track
  - id: "3"
    position: {x: 50, y: 80}
    data:
      label: Idea
edges:
  - source: "1"
    target: "2"
  - source: "2"
    target: "3"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "graphdiff", root.Use)
	assert.True(t, root.HasSubCommands())

	names := make([]string, 0, 2)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"diff", "merge"}, names)
}

func TestLoadStateYAML(t *testing.T) {
	dir := t.TempDir()
	state, err := loadState(writeFile(t, dir, "incoming.yaml", incomingYAML))
	require.NoError(t, err)

	require.Len(t, state.Nodes, 3)
	assert.Equal(t, "Goal v2", state.Nodes[0].Data.Label)
	status, ok := state.Nodes[0].Data.Get("status")
	require.True(t, ok)
	assert.Equal(t, "done", status)
	assert.Len(t, state.Edges, 2)
}

func TestLoadStateDefaultsWrongKinds(t *testing.T) {
	dir := t.TempDir()
	state, err := loadState(writeFile(t, dir, "odd.json", `{"nodes": {"bad": true}, "edges": "x"}`))
	require.NoError(t, err)
	assert.Empty(t, state.Nodes)
	assert.Empty(t, state.Edges)
}

func TestLoadStateErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadState(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = loadState(writeFile(t, dir, "broken.json", `{"nodes": [`))
	assert.ErrorContains(t, err, "parse")

	_, err = loadState(writeFile(t, dir, "dangling.json",
		`{"nodes": [], "edges": [{"source": "a", "target": "b"}]}`))
	assert.ErrorContains(t, err, "missing source node")
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "base.json", baseJSON)
	newPath := writeFile(t, dir, "incoming.yml", incomingYAML)

	t.Run("text", func(t *testing.T) {
		out, _, err := run(t, "diff", oldPath, newPath)
		require.NoError(t, err)
		assert.Contains(t, out, `+ node 3 "Idea"`)
		assert.Contains(t, out, "~ node 1")
		assert.Contains(t, out, "+ edge 2 -> 3")
	})

	t.Run("summary", func(t *testing.T) {
		out, _, err := run(t, "diff", oldPath, newPath, "--summary")
		require.NoError(t, err)
		assert.Equal(t, "nodes: +1 -0 ~1  edges: +1 -0\n", out)
	})

	t.Run("field selector", func(t *testing.T) {
		out, _, err := run(t, "diff", oldPath, newPath, "--summary", "--field", "position")
		require.NoError(t, err)
		assert.Equal(t, "nodes: +1 -0 ~0  edges: +1 -0\n", out)
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, "diff", oldPath, newPath, "--json")
		require.NoError(t, err)
		var decoded map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Contains(t, decoded, "addedNodes")
	})

	t.Run("identical", func(t *testing.T) {
		out, _, err := run(t, "diff", oldPath, oldPath)
		require.NoError(t, err)
		assert.Equal(t, "No changes\n", out)
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, _, err := run(t, "diff", oldPath)
		assert.Error(t, err)
	})
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	basePath := writeFile(t, dir, "base.json", baseJSON)
	incomingPath := writeFile(t, dir, "incoming.yaml", incomingYAML)

	labels := func(t *testing.T, data []byte) map[string]string {
		t.Helper()
		var state graphstate.GraphState
		require.NoError(t, json.Unmarshal(data, &state))
		out := make(map[string]string, len(state.Nodes))
		for _, n := range state.Nodes {
			out[n.ID] = n.Data.Label
		}
		return out
	}

	t.Run("stdout combine", func(t *testing.T) {
		out, _, err := run(t, "merge", basePath, incomingPath)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"1": "Goal v2", "2": "Track", "3": "Idea"}, labels(t, []byte(out)))
	})

	t.Run("prefer base to file", func(t *testing.T) {
		outPath := filepath.Join(dir, "merged.json")
		_, stderr, err := run(t, "merge", basePath, incomingPath, "--strategy", "preferBase", "-o", outPath)
		require.NoError(t, err)
		assert.Contains(t, stderr, "preferBase")

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"1": "Goal", "2": "Track", "3": "Idea"}, labels(t, data))
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, _, err := run(t, "merge", basePath, incomingPath, "--strategy", "coinflip")
		assert.ErrorContains(t, err, "unknown merge strategy")
	})
}
