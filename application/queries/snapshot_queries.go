package queries

import (
	"strings"

	"filon/domain/diff"
	"filon/domain/versioning"
	"filon/pkg/utils"
)

// GetSnapshotQuery loads a single snapshot
type GetSnapshotQuery struct {
	SnapshotID string `json:"snapshot_id" validate:"required"`
}

// Validate validates the query
func (q GetSnapshotQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// DiffSnapshotsQuery diffs the states of two snapshots. Fields widens or
// narrows the compared node fields.
type DiffSnapshotsQuery struct {
	FromID string   `json:"from_id" validate:"required"`
	ToID   string   `json:"to_id" validate:"required"`
	Fields []string `json:"fields" validate:"max=32"`
}

// Validate validates the query
func (q DiffSnapshotsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// CacheKey identifies the result; snapshots never change once stored
func (q DiffSnapshotsQuery) CacheKey() string {
	return "diff:" + q.FromID + ":" + q.ToID + ":" + strings.Join(q.Fields, ",")
}

// Options returns the diff options selected by the query
func (q DiffSnapshotsQuery) Options() diff.Options {
	return diff.Options{Fields: diff.ParseFields(q.Fields)}
}

// DiffSnapshotsResult is the answer to DiffSnapshotsQuery
type DiffSnapshotsResult struct {
	FromID    string       `json:"fromId"`
	ToID      string       `json:"toId"`
	Diff      *diff.Result `json:"diff"`
	Summary   diff.Summary `json:"summary"`
	Identical bool         `json:"identical"`
}

// TimelineQuery replays the snapshots of a branch
type TimelineQuery struct {
	BranchID string `json:"branch_id" validate:"required"`
	Limit    int    `json:"limit" validate:"gte=0,lte=500"`
}

// Validate validates the query
func (q TimelineQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// TimelineResult is the answer to TimelineQuery
type TimelineResult struct {
	BranchID string                     `json:"branchId"`
	Frames   []versioning.TimelineFrame `json:"frames"`
}
