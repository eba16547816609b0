package handlers

import (
	"context"
	"fmt"
	"time"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/application/sagas"
	"filon/domain/events"
	"filon/domain/merge"
	"filon/domain/snapshot"
	pkgerrors "filon/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergeBranchHandler handles MergeBranchCommand
type MergeBranchHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
	publisher ports.EventPublisher
	locker    ports.Locker
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewMergeBranchHandler creates a new merge branch handler
func NewMergeBranchHandler(
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	publisher ports.EventPublisher,
	locker ports.Locker,
	lockTTL time.Duration,
	logger *zap.Logger,
) *MergeBranchHandler {
	return &MergeBranchHandler{
		snapshots: snapshots,
		branches:  branches,
		publisher: publisher,
		locker:    locker,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// Handle merges the source head into the target head while holding a lock
// on the target branch, so two merges never advance it from the same head.
func (h *MergeBranchHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(commands.MergeBranchCommand)
	if !ok {
		return unexpected(c)
	}

	lock, err := h.locker.Acquire(ctx, "branch#"+cmd.TargetBranchID, uuid.New().String(), h.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("Failed to release merge lock",
				zap.String("branchID", cmd.TargetBranchID),
				zap.Error(err))
		}
	}()

	return h.merge(ctx, cmd)
}

func (h *MergeBranchHandler) merge(ctx context.Context, cmd commands.MergeBranchCommand) error {
	source, err := activeBranch(ctx, h.branches, cmd.SourceBranchID)
	if err != nil {
		return err
	}
	target, err := activeBranch(ctx, h.branches, cmd.TargetBranchID)
	if err != nil {
		return err
	}
	if err := sameGraph(target.GraphID(), source.GraphID()); err != nil {
		return err
	}

	sourceHead, err := headOf(ctx, h.snapshots, source)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load source head")
	}
	targetHead, err := headOf(ctx, h.snapshots, target)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load target head")
	}
	if sourceHead == nil || targetHead == nil {
		return pkgerrors.NewValidationError("both branches need a head snapshot to merge").
			WithDetail("sourceBranchID", source.ID()).
			WithDetail("targetBranchID", target.ID())
	}

	resolution := cmd.Resolution()
	merged, outcome := merge.Reconcile(targetHead.State, sourceHead.State, resolution, cmd.Options())
	merged.Meta = mergeMeta(targetHead.ID, sourceHead.ID, resolution)
	merged.Meta["sourceBranchID"] = source.ID()

	snap, err := snapshot.New(snapshot.Params{
		ID:        cmd.ResultID,
		GraphID:   target.GraphID(),
		BranchID:  target.ID(),
		ParentID:  targetHead.ID,
		Version:   nextVersion(targetHead),
		Label:     fmt.Sprintf("Merge %s into %s", source.Name(), target.Name()),
		State:     merged,
		CreatedBy: cmd.CreatedBy,
		CreatedAt: time.Now().UTC(),
		Origin:    snapshot.OriginMerge,
	})
	if err != nil {
		return err
	}

	// The three writes run as a saga: a failed branch save removes the
	// merge snapshot and points the target back at its previous head.
	saga := sagas.New("merge-branch", h.logger).
		Step(sagas.Step{
			Name:       "save-merge-snapshot",
			Execute:    func(ctx context.Context) error { return h.snapshots.Save(ctx, snap) },
			Compensate: func(ctx context.Context) error { return h.snapshots.Delete(ctx, snap.ID) },
		}).
		Step(sagas.Step{
			Name: "advance-target",
			Execute: func(ctx context.Context) error {
				if err := target.Advance(snap.ID); err != nil {
					return err
				}
				return h.branches.Save(ctx, target)
			},
			Compensate: func(ctx context.Context) error {
				if err := target.Advance(targetHead.ID); err != nil {
					return err
				}
				return h.branches.Save(ctx, target)
			},
		}).
		Step(sagas.Step{
			Name: "close-source",
			Execute: func(ctx context.Context) error {
				if err := source.MarkMerged(target.ID(), snap.ID, string(resolution)); err != nil {
					return err
				}
				return h.branches.Save(ctx, source)
			},
		})
	if err := saga.Execute(ctx); err != nil {
		return err
	}

	summary := outcome.Diff.Summary()
	h.logger.Info("Branch merged",
		zap.String("sourceBranchID", source.ID()),
		zap.String("targetBranchID", target.ID()),
		zap.String("snapshotID", snap.ID),
		zap.String("strategy", string(resolution)),
		zap.Int("changedNodes", summary.NodesChanged),
		zap.Int("changes", summary.Total()))

	evts := []events.DomainEvent{events.NewSnapshotMerged(
		snap.ID, targetHead.ID, sourceHead.ID, string(resolution), summary.Total(), snap.Version, snap.CreatedAt,
	)}
	evts = append(evts, source.GetUncommittedEvents()...)
	publishEvents(ctx, h.publisher, h.logger, evts...)
	source.MarkEventsAsCommitted()
	return nil
}
