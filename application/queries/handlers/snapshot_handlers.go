package handlers

import (
	"context"
	"fmt"

	"filon/application/ports"
	"filon/application/queries"
	"filon/application/queries/bus"
	"filon/domain/diff"
	"filon/domain/snapshot"
	"filon/domain/versioning"
	pkgerrors "filon/pkg/errors"

	"go.uber.org/zap"
)

// GetSnapshotHandler handles GetSnapshotQuery
type GetSnapshotHandler struct {
	snapshots ports.SnapshotRepository
}

// NewGetSnapshotHandler creates a new get snapshot handler
func NewGetSnapshotHandler(snapshots ports.SnapshotRepository) *GetSnapshotHandler {
	return &GetSnapshotHandler{snapshots: snapshots}
}

// Handle returns the *snapshot.Snapshot
func (h *GetSnapshotHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetSnapshotQuery)
	if !ok {
		return nil, unexpected(q)
	}
	snap, err := h.snapshots.GetByID(ctx, query.SnapshotID)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// DiffSnapshotsHandler handles DiffSnapshotsQuery
type DiffSnapshotsHandler struct {
	snapshots ports.SnapshotRepository
	metrics   ports.Metrics
	logger    *zap.Logger
}

// NewDiffSnapshotsHandler creates a new diff snapshots handler
func NewDiffSnapshotsHandler(snapshots ports.SnapshotRepository, metrics ports.Metrics, logger *zap.Logger) *DiffSnapshotsHandler {
	return &DiffSnapshotsHandler{
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
	}
}

// Handle returns a *queries.DiffSnapshotsResult
func (h *DiffSnapshotsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.DiffSnapshotsQuery)
	if !ok {
		return nil, unexpected(q)
	}

	from, err := h.snapshots.GetByID(ctx, query.FromID)
	if err != nil {
		return nil, err
	}
	to, err := h.snapshots.GetByID(ctx, query.ToID)
	if err != nil {
		return nil, err
	}
	if from.GraphID != to.GraphID {
		return nil, pkgerrors.NewValidationError("snapshots belong to different graphs").
			WithCode(pkgerrors.CodeInvalidGraph)
	}

	d := diff.ComputeWith(from.State, to.State, query.Options())
	summary := d.Summary()
	if h.metrics != nil {
		h.metrics.Count(ctx, "DiffChanges", "DiffSnapshots", float64(summary.Total()))
	}
	h.logger.Debug("Snapshots diffed",
		zap.String("fromID", from.ID),
		zap.String("toID", to.ID),
		zap.Int("changes", summary.Total()))

	return &queries.DiffSnapshotsResult{
		FromID:    from.ID,
		ToID:      to.ID,
		Diff:      d,
		Summary:   summary,
		Identical: d.IsEmpty(),
	}, nil
}

// TimelineHandler handles TimelineQuery
type TimelineHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
}

// NewTimelineHandler creates a new timeline handler
func NewTimelineHandler(snapshots ports.SnapshotRepository, branches ports.BranchRepository) *TimelineHandler {
	return &TimelineHandler{snapshots: snapshots, branches: branches}
}

// Handle returns a *queries.TimelineResult. The first frame of a forked
// branch is diffed against the snapshot it was forked from.
func (h *TimelineHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.TimelineQuery)
	if !ok {
		return nil, unexpected(q)
	}

	branch, err := h.branches.GetByID(ctx, query.BranchID)
	if err != nil {
		return nil, err
	}
	snaps, err := h.snapshots.ListByBranch(ctx, branch.ID(), ports.ListOptions{Limit: query.Limit})
	if err != nil {
		return nil, err
	}

	var frames []versioning.TimelineFrame
	if fork := branch.ParentSnapshotID(); fork != "" && len(snaps) > 0 && snaps[0].ParentID == fork {
		parent, err := h.snapshots.GetByID(ctx, fork)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to load fork point")
		}
		frames = versioning.Replay(append([]*snapshot.Snapshot{parent}, snaps...))[1:]
	} else {
		frames = versioning.Replay(snaps)
	}

	return &queries.TimelineResult{
		BranchID: branch.ID(),
		Frames:   frames,
	}, nil
}

// ListBranchesHandler handles ListBranchesQuery
type ListBranchesHandler struct {
	branches ports.BranchRepository
}

// NewListBranchesHandler creates a new list branches handler
func NewListBranchesHandler(branches ports.BranchRepository) *ListBranchesHandler {
	return &ListBranchesHandler{branches: branches}
}

// Handle returns a *queries.ListBranchesResult
func (h *ListBranchesHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.ListBranchesQuery)
	if !ok {
		return nil, unexpected(q)
	}

	branches, err := h.branches.ListByGraph(ctx, query.GraphID)
	if err != nil {
		return nil, err
	}

	dtos := make([]queries.BranchDTO, 0, len(branches))
	for _, b := range branches {
		if query.Status != "" && string(b.Status()) != query.Status {
			continue
		}
		dtos = append(dtos, queries.ToBranchDTO(b))
	}
	return &queries.ListBranchesResult{GraphID: query.GraphID, Branches: dtos}, nil
}

// GetBranchHandler handles GetBranchQuery
type GetBranchHandler struct {
	branches ports.BranchRepository
}

// NewGetBranchHandler creates a new get branch handler
func NewGetBranchHandler(branches ports.BranchRepository) *GetBranchHandler {
	return &GetBranchHandler{branches: branches}
}

// Handle returns a queries.BranchDTO
func (h *GetBranchHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetBranchQuery)
	if !ok {
		return nil, unexpected(q)
	}
	b, err := h.branches.GetByID(ctx, query.BranchID)
	if err != nil {
		return nil, err
	}
	return queries.ToBranchDTO(b), nil
}

func unexpected(q bus.Query) error {
	return pkgerrors.NewInternalError(fmt.Sprintf("unexpected query type %T", q))
}
