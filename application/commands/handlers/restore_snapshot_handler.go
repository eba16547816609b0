package handlers

import (
	"context"
	"fmt"
	"time"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/domain/events"
	"filon/domain/snapshot"
	pkgerrors "filon/pkg/errors"

	"go.uber.org/zap"
)

// RestoreSnapshotHandler handles RestoreSnapshotCommand
type RestoreSnapshotHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewRestoreSnapshotHandler creates a new restore snapshot handler
func NewRestoreSnapshotHandler(
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *RestoreSnapshotHandler {
	return &RestoreSnapshotHandler{
		snapshots: snapshots,
		branches:  branches,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle writes a new head snapshot carrying the source snapshot's state
func (h *RestoreSnapshotHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(commands.RestoreSnapshotCommand)
	if !ok {
		return unexpected(c)
	}

	source, err := h.snapshots.GetByID(ctx, cmd.SnapshotID)
	if err != nil {
		return err
	}

	branchID := cmd.BranchID
	if branchID == "" {
		branchID = source.BranchID
	}
	branch, err := activeBranch(ctx, h.branches, branchID)
	if err != nil {
		return err
	}
	if err := sameGraph(source.GraphID, branch.GraphID()); err != nil {
		return err
	}

	head, err := headOf(ctx, h.snapshots, branch)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load branch head")
	}

	state := source.State.Clone()
	state.Meta = map[string]interface{}{"restoredFrom": source.ID}

	snap, err := snapshot.New(snapshot.Params{
		ID:        cmd.NewSnapshotID,
		GraphID:   source.GraphID,
		BranchID:  branch.ID(),
		ParentID:  parentID(head),
		Version:   nextVersion(head),
		Label:     fmt.Sprintf("Restored from v%d", source.Version),
		State:     state,
		CreatedBy: cmd.CreatedBy,
		CreatedAt: time.Now().UTC(),
		Origin:    snapshot.OriginRestore,
	})
	if err != nil {
		return err
	}
	if err := commitHead(ctx, "restore-snapshot", h.snapshots, h.branches, branch, snap, h.logger); err != nil {
		return err
	}

	h.logger.Info("Snapshot restored",
		zap.String("snapshotID", snap.ID),
		zap.String("restoredFrom", source.ID),
		zap.String("branchID", branch.ID()))

	publishEvents(ctx, h.publisher, h.logger,
		events.NewSnapshotRestored(snap.ID, source.ID, branch.ID(), snap.Version, snap.CreatedAt))
	return nil
}
