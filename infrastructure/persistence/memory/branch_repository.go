package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"filon/domain/branching"
	pkgerrors "filon/pkg/errors"
)

type branchRecord struct {
	id               string
	graphID          string
	name             string
	parentSnapshotID string
	headSnapshotID   string
	mergedInto       string
	status           branching.BranchStatus
	createdAt        time.Time
	updatedAt        time.Time
	version          int
}

// BranchRepository keeps branches in process memory with optimistic
// versioning on updates.
type BranchRepository struct {
	mu       sync.RWMutex
	branches map[string]branchRecord
}

// NewBranchRepository creates an empty in-memory branch repository
func NewBranchRepository() *BranchRepository {
	return &BranchRepository{
		branches: make(map[string]branchRecord),
	}
}

// Save creates or updates a branch. Updates must carry a higher version than
// the stored one.
func (r *BranchRepository) Save(ctx context.Context, b *branching.Branch) error {
	if b == nil || b.ID() == "" {
		return pkgerrors.NewValidationError("branch id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.branches[b.ID()]; ok && existing.version >= b.Version() {
		return pkgerrors.NewConflictError("branch was modified concurrently").
			WithDetail("branchID", b.ID()).
			WithDetail("storedVersion", existing.version)
	}

	r.branches[b.ID()] = branchRecord{
		id:               b.ID(),
		graphID:          b.GraphID(),
		name:             b.Name(),
		parentSnapshotID: b.ParentSnapshotID(),
		headSnapshotID:   b.HeadSnapshotID(),
		mergedInto:       b.MergedInto(),
		status:           b.Status(),
		createdAt:        b.CreatedAt(),
		updatedAt:        b.UpdatedAt(),
		version:          b.Version(),
	}
	return nil
}

// GetByID retrieves a branch by its ID
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*branching.Branch, error) {
	r.mu.RLock()
	rec, ok := r.branches[id]
	r.mu.RUnlock()

	if !ok {
		return nil, pkgerrors.NewNotFoundError("branch").
			WithCode(pkgerrors.CodeBranchNotFound).
			WithDetail("branchID", id)
	}
	return rec.toBranch()
}

// ListByGraph returns the branches of a graph ordered by creation time
func (r *BranchRepository) ListByGraph(ctx context.Context, graphID string) ([]*branching.Branch, error) {
	r.mu.RLock()
	records := make([]branchRecord, 0)
	for _, rec := range r.branches {
		if rec.graphID == graphID {
			records = append(records, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].createdAt.Equal(records[j].createdAt) {
			return records[i].createdAt.Before(records[j].createdAt)
		}
		return records[i].id < records[j].id
	})

	out := make([]*branching.Branch, 0, len(records))
	for _, rec := range records {
		b, err := rec.toBranch()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// FindByName retrieves a branch of a graph by name
func (r *BranchRepository) FindByName(ctx context.Context, graphID, name string) (*branching.Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.branches {
		if rec.graphID == graphID && rec.name == name {
			return rec.toBranch()
		}
	}
	return nil, pkgerrors.NewNotFoundError("branch").
		WithCode(pkgerrors.CodeBranchNotFound).
		WithDetail("graphID", graphID).
		WithDetail("name", name)
}

func (rec branchRecord) toBranch() (*branching.Branch, error) {
	return branching.ReconstructBranch(
		rec.id, rec.graphID, rec.name, rec.parentSnapshotID, rec.headSnapshotID, rec.mergedInto,
		rec.status, rec.createdAt, rec.updatedAt, rec.version,
	)
}
