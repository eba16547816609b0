package commands

import (
	"filon/domain/diff"
	"filon/domain/graphstate"
	"filon/domain/merge"
	"filon/domain/snapshot"
	"filon/pkg/utils"
)

// SaveSnapshotCommand stores the current graph state as the new head of a
// branch. Autosaves may be skipped by the versioning policy.
type SaveSnapshotCommand struct {
	SnapshotID string                `json:"snapshot_id" validate:"required"`
	GraphID    string                `json:"graph_id" validate:"required"`
	BranchID   string                `json:"branch_id" validate:"required"`
	Label      string                `json:"label" validate:"max=200"`
	CreatedBy  string                `json:"created_by" validate:"max=200"`
	Autosave   bool                  `json:"autosave"`
	State      graphstate.GraphState `json:"state"`
}

// Validate validates the command
func (c SaveSnapshotCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	return c.State.Validate()
}

// Origin returns the snapshot origin recorded for the command
func (c SaveSnapshotCommand) Origin() snapshot.Origin {
	if c.Autosave {
		return snapshot.OriginAutosave
	}
	return snapshot.OriginManual
}

// RestoreSnapshotCommand makes an older snapshot's state the new head of a
// branch. BranchID defaults to the source snapshot's branch.
type RestoreSnapshotCommand struct {
	NewSnapshotID string `json:"new_snapshot_id" validate:"required"`
	SnapshotID    string `json:"snapshot_id" validate:"required,nefield=NewSnapshotID"`
	BranchID      string `json:"branch_id"`
	CreatedBy     string `json:"created_by" validate:"max=200"`
}

// Validate validates the command
func (c RestoreSnapshotCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// MergeSnapshotsCommand merges two stored snapshots and saves the result on
// the base snapshot's branch.
type MergeSnapshotsCommand struct {
	ResultID   string   `json:"result_id" validate:"required"`
	BaseID     string   `json:"base_id" validate:"required"`
	IncomingID string   `json:"incoming_id" validate:"required,nefield=BaseID"`
	Strategy   string   `json:"strategy"`
	Fields     []string `json:"fields" validate:"max=32"`
	Label      string   `json:"label" validate:"max=200"`
	CreatedBy  string   `json:"created_by" validate:"max=200"`
}

// Validate validates the command
func (c MergeSnapshotsCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	_, err := merge.ParseResolution(c.Strategy)
	return err
}

// Options returns the diff options selected by the command
func (c MergeSnapshotsCommand) Options() diff.Options {
	return diff.Options{Fields: diff.ParseFields(c.Fields)}
}

// Resolution returns the parsed strategy; Validate has already rejected
// unknown names.
func (c MergeSnapshotsCommand) Resolution() merge.Resolution {
	r, err := merge.ParseResolution(c.Strategy)
	if err != nil {
		return merge.ResolveCombine
	}
	return r
}

// PruneSnapshotsCommand deletes the snapshots of a branch that fall outside
// the versioning policy's window. Heads and fork points are kept.
type PruneSnapshotsCommand struct {
	BranchID string `json:"branch_id" validate:"required"`
}

// Validate validates the command
func (c PruneSnapshotsCommand) Validate() error {
	return utils.ValidateStruct(c)
}
