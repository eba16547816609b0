package handlers

import (
	"context"
	"fmt"
	"time"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/domain/events"
	"filon/domain/merge"
	"filon/domain/snapshot"
	pkgerrors "filon/pkg/errors"

	"go.uber.org/zap"
)

// MergeSnapshotsHandler handles MergeSnapshotsCommand
type MergeSnapshotsHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewMergeSnapshotsHandler creates a new merge snapshots handler
func NewMergeSnapshotsHandler(
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *MergeSnapshotsHandler {
	return &MergeSnapshotsHandler{
		snapshots: snapshots,
		branches:  branches,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle merges incoming into base and saves the result as the new head of
// the base snapshot's branch.
func (h *MergeSnapshotsHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(commands.MergeSnapshotsCommand)
	if !ok {
		return unexpected(c)
	}

	base, err := h.snapshots.GetByID(ctx, cmd.BaseID)
	if err != nil {
		return err
	}
	incoming, err := h.snapshots.GetByID(ctx, cmd.IncomingID)
	if err != nil {
		return err
	}
	if err := sameGraph(base.GraphID, incoming.GraphID); err != nil {
		return err
	}

	branch, err := activeBranch(ctx, h.branches, base.BranchID)
	if err != nil {
		return err
	}
	head, err := headOf(ctx, h.snapshots, branch)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load branch head")
	}

	resolution := cmd.Resolution()
	merged, outcome := merge.Reconcile(base.State, incoming.State, resolution, cmd.Options())
	merged.Meta = mergeMeta(base.ID, incoming.ID, resolution)

	label := cmd.Label
	if label == "" {
		label = fmt.Sprintf("Merge v%d into v%d", incoming.Version, base.Version)
	}

	snap, err := snapshot.New(snapshot.Params{
		ID:        cmd.ResultID,
		GraphID:   base.GraphID,
		BranchID:  branch.ID(),
		ParentID:  parentID(head),
		Version:   nextVersion(head),
		Label:     label,
		State:     merged,
		CreatedBy: cmd.CreatedBy,
		CreatedAt: time.Now().UTC(),
		Origin:    snapshot.OriginMerge,
	})
	if err != nil {
		return err
	}

	if err := commitHead(ctx, "merge-snapshots", h.snapshots, h.branches, branch, snap, h.logger); err != nil {
		return err
	}

	summary := outcome.Diff.Summary()
	h.logger.Info("Snapshots merged",
		zap.String("snapshotID", snap.ID),
		zap.String("baseID", base.ID),
		zap.String("incomingID", incoming.ID),
		zap.String("strategy", string(resolution)),
		zap.Int("changes", summary.Total()))

	publishEvents(ctx, h.publisher, h.logger, events.NewSnapshotMerged(
		snap.ID, base.ID, incoming.ID, string(resolution), summary.Total(), snap.Version, snap.CreatedAt,
	))
	return nil
}

func mergeMeta(baseID, incomingID string, r merge.Resolution) map[string]interface{} {
	return map[string]interface{}{
		"mergedFrom": []interface{}{baseID, incomingID},
		"strategy":   string(r),
	}
}
