package commands

import (
	"filon/domain/branching"
	"filon/domain/diff"
	"filon/domain/merge"
	pkgerrors "filon/pkg/errors"
	"filon/pkg/utils"
)

// CreateBranchCommand forks a branch whose head is FromSnapshotID. With no
// FromSnapshotID it creates the graph's main branch.
type CreateBranchCommand struct {
	BranchID       string `json:"branch_id" validate:"required"`
	GraphID        string `json:"graph_id" validate:"required"`
	Name           string `json:"name" validate:"max=100"`
	FromSnapshotID string `json:"from_snapshot_id"`
}

// Validate validates the command
func (c CreateBranchCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.IsMain() {
		return nil
	}
	if c.FromSnapshotID == "" {
		return pkgerrors.NewValidationError("fromSnapshotID is required for branches other than main")
	}
	_, err := branching.ValidateName(c.Name)
	return err
}

// IsMain reports whether the command creates the root branch
func (c CreateBranchCommand) IsMain() bool {
	return c.FromSnapshotID == "" && (c.Name == "" || c.Name == branching.MainBranchName)
}

// MergeBranchCommand merges the head of SourceBranchID into the head of
// TargetBranchID and closes the source branch.
type MergeBranchCommand struct {
	ResultID       string   `json:"result_id" validate:"required"`
	SourceBranchID string   `json:"source_branch_id" validate:"required"`
	TargetBranchID string   `json:"target_branch_id" validate:"required,nefield=SourceBranchID"`
	Strategy       string   `json:"strategy"`
	Fields         []string `json:"fields" validate:"max=32"`
	CreatedBy      string   `json:"created_by" validate:"max=200"`
}

// Validate validates the command
func (c MergeBranchCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	_, err := merge.ParseResolution(c.Strategy)
	return err
}

// Options returns the diff options selected by the command
func (c MergeBranchCommand) Options() diff.Options {
	return diff.Options{Fields: diff.ParseFields(c.Fields)}
}

// Resolution returns the parsed strategy; Validate has already rejected
// unknown names.
func (c MergeBranchCommand) Resolution() merge.Resolution {
	r, err := merge.ParseResolution(c.Strategy)
	if err != nil {
		return merge.ResolveCombine
	}
	return r
}
