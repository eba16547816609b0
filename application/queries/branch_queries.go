package queries

import (
	"time"

	"filon/domain/branching"
	"filon/pkg/utils"
)

// ListBranchesQuery lists the branches of a graph
type ListBranchesQuery struct {
	GraphID string `json:"graph_id" validate:"required"`
	Status  string `json:"status" validate:"omitempty,oneof=active merged archived"`
}

// Validate validates the query
func (q ListBranchesQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetBranchQuery loads a single branch
type GetBranchQuery struct {
	BranchID string `json:"branch_id" validate:"required"`
}

// Validate validates the query
func (q GetBranchQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// BranchDTO is a data transfer object for branches
type BranchDTO struct {
	ID               string    `json:"id"`
	GraphID          string    `json:"graphId"`
	Name             string    `json:"name"`
	ParentSnapshotID string    `json:"parentSnapshotId,omitempty"`
	HeadSnapshotID   string    `json:"headSnapshotId,omitempty"`
	MergedInto       string    `json:"mergedInto,omitempty"`
	Status           string    `json:"status"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ToBranchDTO converts a branch for transport
func ToBranchDTO(b *branching.Branch) BranchDTO {
	return BranchDTO{
		ID:               b.ID(),
		GraphID:          b.GraphID(),
		Name:             b.Name(),
		ParentSnapshotID: b.ParentSnapshotID(),
		HeadSnapshotID:   b.HeadSnapshotID(),
		MergedInto:       b.MergedInto(),
		Status:           string(b.Status()),
		Version:          b.Version(),
		CreatedAt:        b.CreatedAt(),
		UpdatedAt:        b.UpdatedAt(),
	}
}

// ListBranchesResult is the answer to ListBranchesQuery
type ListBranchesResult struct {
	GraphID  string      `json:"graphId"`
	Branches []BranchDTO `json:"branches"`
}
