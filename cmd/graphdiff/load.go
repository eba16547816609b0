package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filon/domain/graphstate"

	"gopkg.in/yaml.v3"
)

// loadState reads a graph state file. YAML documents are converted to JSON
// first so node data and edge attributes go through the same decoder as API
// requests.
func loadState(path string) (graphstate.GraphState, error) {
	var state graphstate.GraphState

	raw, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return state, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := state.Validate(); err != nil {
		return state, fmt.Errorf("%s: %w", path, err)
	}
	normalized := graphstate.New(state.Nodes, state.Edges)
	normalized.Meta = state.Meta
	return normalized, nil
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func encodeState(state graphstate.GraphState) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
