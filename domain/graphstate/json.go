package graphstate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeData is the node payload. Label and Note are typed; every other key of
// the JSON "data" object is kept in Extra and written back at the same level.
type NodeData struct {
	Label string
	Note  string
	Extra map[string]interface{}
}

// Clone returns a copy that shares no maps with d
func (d NodeData) Clone() NodeData {
	d.Extra = cloneMap(d.Extra)
	return d
}

// Get returns an extension field
func (d NodeData) Get(key string) (interface{}, bool) {
	v, ok := d.Extra[key]
	return v, ok
}

// MarshalJSON flattens Extra next to label and note
func (d NodeData) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(d.Extra)+2)
	for k, v := range d.Extra {
		m[k] = v
	}
	m["label"] = d.Label
	if d.Note != "" {
		m["note"] = d.Note
	} else {
		delete(m, "note")
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits the flat data object into typed and extension fields
func (d *NodeData) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	*d = NodeData{}
	for k, v := range m {
		switch k {
		case "label":
			d.Label = stringify(v)
		case "note":
			d.Note = stringify(v)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]interface{})
			}
			d.Extra[k] = v
		}
	}
	return nil
}

var edgeKnownKeys = map[string]struct{}{"id": {}, "source": {}, "target": {}, "label": {}}

// MarshalJSON writes the edge in React Flow shape, attributes inline
func (e Edge) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(e.Attrs)+4)
	for k, v := range e.Attrs {
		if _, known := edgeKnownKeys[k]; known {
			continue
		}
		m[k] = v
	}
	if e.ID != "" {
		m["id"] = e.ID
	}
	if e.Label != "" {
		m["label"] = e.Label
	}
	m["source"] = e.Source
	m["target"] = e.Target
	return json.Marshal(m)
}

// UnmarshalJSON reads an edge, keeping unknown keys in Attrs
func (e *Edge) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	*e = Edge{}
	for k, v := range m {
		switch k {
		case "id":
			e.ID = stringify(v)
		case "source":
			e.Source = stringify(v)
		case "target":
			e.Target = stringify(v)
		case "label":
			e.Label = stringify(v)
		default:
			if e.Attrs == nil {
				e.Attrs = make(map[string]interface{})
			}
			e.Attrs[k] = v
		}
	}
	return nil
}

// UnmarshalJSON reads a graph state. A nodes, edges or meta value of the wrong
// JSON kind decodes as empty instead of failing.
func (s *GraphState) UnmarshalJSON(b []byte) error {
	var raw struct {
		Nodes json.RawMessage `json:"nodes"`
		Edges json.RawMessage `json:"edges"`
		Meta  json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var out GraphState
	if isKind(raw.Nodes, '[') {
		if err := json.Unmarshal(raw.Nodes, &out.Nodes); err != nil {
			return err
		}
	}
	if isKind(raw.Edges, '[') {
		if err := json.Unmarshal(raw.Edges, &out.Edges); err != nil {
			return err
		}
	}
	if isKind(raw.Meta, '{') {
		if err := json.Unmarshal(raw.Meta, &out.Meta); err != nil {
			return err
		}
	}
	*s = out
	return nil
}

func isKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
