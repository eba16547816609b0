package diff

import (
	"reflect"
	"strings"

	"filon/domain/graphstate"
)

// Field selects one part of a node that takes part in change detection
type Field string

const (
	FieldLabel    Field = "label"
	FieldNote     Field = "note"
	FieldPosition Field = "position"
	FieldType     Field = "type"

	dataFieldPrefix = "data."
)

// DefaultFields is the comparison used when no selector is given
var DefaultFields = []Field{FieldLabel, FieldNote, FieldPosition}

// DataField selects a key of the node's extension data
func DataField(key string) Field {
	return Field(dataFieldPrefix + key)
}

// ParseField accepts the named fields and "data.<key>"; any other bare name
// is treated as an extension key.
func ParseField(s string) Field {
	s = strings.TrimSpace(s)
	switch Field(strings.ToLower(s)) {
	case FieldLabel, FieldNote, FieldPosition, FieldType:
		return Field(strings.ToLower(s))
	}
	if strings.HasPrefix(s, dataFieldPrefix) {
		return Field(s)
	}
	return DataField(s)
}

// ParseFields parses a list of field names, dropping blanks
func ParseFields(names []string) []Field {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		fields = append(fields, ParseField(name))
	}
	return fields
}

// equal reports whether a and b agree on the given field
func (f Field) equal(a, b graphstate.Node) bool {
	switch f {
	case FieldLabel:
		return a.Data.Label == b.Data.Label
	case FieldNote:
		return a.Data.Note == b.Data.Note
	case FieldPosition:
		return a.Position.Equals(b.Position)
	case FieldType:
		return a.Type == b.Type
	}

	key := strings.TrimPrefix(string(f), dataFieldPrefix)
	av, aok := a.Data.Extra[key]
	bv, bok := b.Data.Extra[key]
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// NodesEqual applies the field selector to two nodes with the same id
func NodesEqual(a, b graphstate.Node, fields []Field) bool {
	for _, f := range fields {
		if !f.equal(a, b) {
			return false
		}
	}
	return true
}
