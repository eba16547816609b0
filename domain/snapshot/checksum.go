package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"filon/domain/graphstate"

	"lukechampine.com/blake3"
)

// Checksum hashes the content of a state with BLAKE3. Nodes are ordered by id
// and edges by pair key first, so two states that differ only in ordering
// share a checksum. Meta is not part of the content.
func Checksum(state graphstate.GraphState) (string, error) {
	data, err := canonicalJSON(state)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON relies on encoding/json writing map keys in sorted order,
// which makes NodeData extras and edge attrs stable.
func canonicalJSON(state graphstate.GraphState) ([]byte, error) {
	nodes := make([]graphstate.Node, len(state.Nodes))
	copy(nodes, state.Nodes)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]graphstate.Edge, len(state.Edges))
	copy(edges, state.Edges)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Key() < edges[j].Key() })

	return json.Marshal(struct {
		Nodes []graphstate.Node `json:"nodes"`
		Edges []graphstate.Edge `json:"edges"`
	}{nodes, edges})
}
