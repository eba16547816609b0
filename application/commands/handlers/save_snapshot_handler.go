package handlers

import (
	"context"
	"time"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/domain/events"
	"filon/domain/snapshot"
	"filon/domain/versioning"
	pkgerrors "filon/pkg/errors"

	"go.uber.org/zap"
)

// SaveSnapshotHandler handles SaveSnapshotCommand
type SaveSnapshotHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
	publisher ports.EventPublisher
	policy    versioning.VersioningPolicy
	logger    *zap.Logger
}

// NewSaveSnapshotHandler creates a new save snapshot handler
func NewSaveSnapshotHandler(
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	publisher ports.EventPublisher,
	policy versioning.VersioningPolicy,
	logger *zap.Logger,
) *SaveSnapshotHandler {
	return &SaveSnapshotHandler{
		snapshots: snapshots,
		branches:  branches,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// Handle executes the save snapshot command. A skipped autosave returns nil
// without writing anything; callers detect it by the missing snapshot id.
func (h *SaveSnapshotHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(commands.SaveSnapshotCommand)
	if !ok {
		return unexpected(c)
	}

	branch, err := activeBranch(ctx, h.branches, cmd.BranchID)
	if err != nil {
		return err
	}
	if err := sameGraph(cmd.GraphID, branch.GraphID()); err != nil {
		return err
	}

	head, err := headOf(ctx, h.snapshots, branch)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load branch head")
	}

	now := time.Now().UTC()
	if cmd.Autosave && h.skipAutosave(cmd, head, now) {
		return nil
	}

	snap, err := snapshot.New(snapshot.Params{
		ID:        cmd.SnapshotID,
		GraphID:   cmd.GraphID,
		BranchID:  branch.ID(),
		ParentID:  parentID(head),
		Version:   nextVersion(head),
		Label:     cmd.Label,
		State:     cmd.State,
		CreatedBy: cmd.CreatedBy,
		CreatedAt: now,
		Origin:    cmd.Origin(),
	})
	if err != nil {
		return err
	}

	if err := commitHead(ctx, "save-snapshot", h.snapshots, h.branches, branch, snap, h.logger); err != nil {
		return err
	}

	h.logger.Info("Snapshot saved",
		zap.String("snapshotID", snap.ID),
		zap.String("branchID", snap.BranchID),
		zap.Int("version", snap.Version),
		zap.String("origin", string(snap.Origin)),
		zap.Int("nodes", snap.NodeCount()),
		zap.Int("edges", snap.EdgeCount()))

	publishEvents(ctx, h.publisher, h.logger, events.NewSnapshotSaved(
		snap.ID, snap.GraphID, snap.BranchID, string(snap.Origin), snap.Checksum,
		snap.NodeCount(), snap.EdgeCount(), snap.Version, snap.CreatedAt,
	))
	return nil
}

// skipAutosave drops autosaves that repeat the head or fall inside the
// versioning policy's thresholds.
func (h *SaveSnapshotHandler) skipAutosave(cmd commands.SaveSnapshotCommand, head *snapshot.Snapshot, now time.Time) bool {
	if head != nil {
		sum, err := snapshot.Checksum(cmd.State)
		if err == nil && sum == head.Checksum {
			h.logger.Debug("Autosave matches branch head",
				zap.String("branchID", cmd.BranchID),
				zap.String("headID", head.ID))
			return true
		}
	}
	if !h.policy.ShouldCreateVersion(head, len(cmd.State.Nodes), now) {
		h.logger.Debug("Autosave below versioning thresholds",
			zap.String("branchID", cmd.BranchID))
		return true
	}
	return false
}
