package memory

import (
	"context"
	"sort"
	"sync"

	"filon/application/ports"
	"filon/domain/snapshot"
	pkgerrors "filon/pkg/errors"
)

// SnapshotRepository keeps snapshots in process memory
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*snapshot.Snapshot
	byBranch  map[string][]string
}

// NewSnapshotRepository creates an empty in-memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		snapshots: make(map[string]*snapshot.Snapshot),
		byBranch:  make(map[string][]string),
	}
}

// Save stores a copy of snap
func (r *SnapshotRepository) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return pkgerrors.NewValidationError("snapshot id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.snapshots[snap.ID]; exists {
		return pkgerrors.NewConflictError("snapshot already exists").WithDetail("snapshotID", snap.ID)
	}
	r.snapshots[snap.ID] = copySnapshot(snap)
	r.byBranch[snap.BranchID] = append(r.byBranch[snap.BranchID], snap.ID)
	return nil
}

// GetByID returns a copy of the stored snapshot
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("snapshot").
			WithCode(pkgerrors.CodeSnapshotNotFound).
			WithDetail("snapshotID", id)
	}
	return copySnapshot(snap), nil
}

// ListByBranch returns the snapshots of a branch ordered by version
func (r *SnapshotRepository) ListByBranch(ctx context.Context, branchID string, opts ports.ListOptions) ([]*snapshot.Snapshot, error) {
	r.mu.RLock()
	ids := r.byBranch[branchID]
	out := make([]*snapshot.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, copySnapshot(r.snapshots[id]))
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if opts.Descending {
			return out[i].Version > out[j].Version
		}
		return out[i].Version < out[j].Version
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Latest returns the highest version on a branch
func (r *SnapshotRepository) Latest(ctx context.Context, branchID string) (*snapshot.Snapshot, error) {
	snaps, err := r.ListByBranch(ctx, branchID, ports.ListOptions{Limit: 1, Descending: true})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, pkgerrors.NewNotFoundError("snapshot").
			WithCode(pkgerrors.CodeSnapshotNotFound).
			WithDetail("branchID", branchID)
	}
	return snaps[0], nil
}

// Delete removes a snapshot; deleting a missing id is not an error
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.snapshots[id]
	if !ok {
		return nil
	}
	delete(r.snapshots, id)

	ids := r.byBranch[snap.BranchID]
	for i, existing := range ids {
		if existing == id {
			r.byBranch[snap.BranchID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func copySnapshot(s *snapshot.Snapshot) *snapshot.Snapshot {
	out := *s
	out.State = s.State.Clone()
	return &out
}
