package merge

import (
	"strings"

	pkgerrors "filon/pkg/errors"
)

// Resolution decides which side wins for nodes that changed between the two
// states. It is a two-way tie-break, not an ancestor-aware merge.
type Resolution string

const (
	// ResolveCombine keeps every add and removal and takes incoming content
	ResolveCombine Resolution = "combine"
	// ResolvePreferIncoming takes incoming content for changed nodes
	ResolvePreferIncoming Resolution = "preferIncoming"
	// ResolvePreferBase keeps base content for changed nodes
	ResolvePreferBase Resolution = "preferBase"
)

// Resolutions lists the accepted policies
var Resolutions = []Resolution{ResolveCombine, ResolvePreferIncoming, ResolvePreferBase}

// ParseResolution reads a policy name. Case, dashes and underscores are
// ignored; an empty name means ResolveCombine.
func ParseResolution(s string) (Resolution, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "", "combine":
		return ResolveCombine, nil
	case "preferincoming", "incoming", "theirs":
		return ResolvePreferIncoming, nil
	case "preferbase", "base", "ours":
		return ResolvePreferBase, nil
	}
	return "", pkgerrors.NewValidationError("unknown merge strategy: "+s).
		WithCode(pkgerrors.CodeInvalidStrategy).
		WithDetail("accepted", Resolutions)
}

// keepsBase reports whether changed nodes keep their base content
func (r Resolution) keepsBase() bool {
	return r == ResolvePreferBase
}

// Side names the state whose content a changed node ended up with
type Side string

const (
	SideBase     Side = "base"
	SideIncoming Side = "incoming"
)
