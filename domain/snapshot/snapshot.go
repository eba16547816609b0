// Package snapshot holds the persisted, immutable graph state of a branch at a
// point in time.
package snapshot

import (
	"strings"
	"time"

	"filon/domain/graphstate"
	pkgerrors "filon/pkg/errors"

	"github.com/google/uuid"
)

// Origin records what produced a snapshot
type Origin string

const (
	OriginManual   Origin = "manual"
	OriginAutosave Origin = "autosave"
	OriginMerge    Origin = "merge"
	OriginRestore  Origin = "restore"
)

// Valid reports whether o is a known origin
func (o Origin) Valid() bool {
	switch o {
	case OriginManual, OriginAutosave, OriginMerge, OriginRestore:
		return true
	}
	return false
}

// Snapshot is an immutable graph state stored on a branch
type Snapshot struct {
	ID        string                `json:"id"`
	GraphID   string                `json:"graphId"`
	BranchID  string                `json:"branchId"`
	ParentID  string                `json:"parentId,omitempty"`
	Version   int                   `json:"version"`
	Label     string                `json:"label,omitempty"`
	State     graphstate.GraphState `json:"state"`
	Checksum  string                `json:"checksum"`
	CreatedBy string                `json:"createdBy,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	Origin    Origin                `json:"origin"`
}

// Params describes a snapshot to be created
type Params struct {
	ID        string
	GraphID   string
	BranchID  string
	ParentID  string
	Version   int
	Label     string
	State     graphstate.GraphState
	CreatedBy string
	CreatedAt time.Time
	Origin    Origin
}

// New validates p and builds a snapshot. A missing id is generated, a zero
// version becomes 1 and a missing origin defaults to manual.
func New(p Params) (*Snapshot, error) {
	if strings.TrimSpace(p.GraphID) == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	if strings.TrimSpace(p.BranchID) == "" {
		return nil, pkgerrors.NewValidationError("branchID cannot be empty")
	}
	if p.Version < 0 {
		return nil, pkgerrors.NewValidationError("version cannot be negative")
	}

	origin := p.Origin
	if origin == "" {
		origin = OriginManual
	}
	if !origin.Valid() {
		return nil, pkgerrors.NewValidationError("unknown snapshot origin").
			WithDetail("origin", string(origin))
	}

	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	version := p.Version
	if version == 0 {
		version = 1
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	state := p.State.Clone()
	if state.Nodes == nil {
		state.Nodes = []graphstate.Node{}
	}
	if state.Edges == nil {
		state.Edges = []graphstate.Edge{}
	}

	sum, err := Checksum(state)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to checksum snapshot state").WithCause(err)
	}

	return &Snapshot{
		ID:        id,
		GraphID:   p.GraphID,
		BranchID:  p.BranchID,
		ParentID:  p.ParentID,
		Version:   version,
		Label:     p.Label,
		State:     state,
		Checksum:  sum,
		CreatedBy: p.CreatedBy,
		CreatedAt: createdAt,
		Origin:    origin,
	}, nil
}

// NodeCount returns the number of nodes in the stored state
func (s *Snapshot) NodeCount() int { return len(s.State.Nodes) }

// EdgeCount returns the number of edges in the stored state
func (s *Snapshot) EdgeCount() int { return len(s.State.Edges) }

// SameContent reports whether other holds the same graph content
func (s *Snapshot) SameContent(other *Snapshot) bool {
	return other != nil && s.Checksum == other.Checksum
}

// IsRoot reports whether the snapshot has no parent
func (s *Snapshot) IsRoot() bool { return s.ParentID == "" }
