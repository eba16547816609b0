package handlers

import (
	"context"
	"fmt"

	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/application/sagas"
	"filon/domain/branching"
	"filon/domain/events"
	"filon/domain/snapshot"
	pkgerrors "filon/pkg/errors"

	"go.uber.org/zap"
)

// publishEvents sends events after persistence succeeded. Failures are logged
// and never undo the write.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts ...events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, evts); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.String("firstType", evts[0].GetEventType()),
			zap.Error(err))
	}
}

func activeBranch(ctx context.Context, repo ports.BranchRepository, branchID string) (*branching.Branch, error) {
	branch, err := repo.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !branch.IsActive() {
		return nil, pkgerrors.NewConflictError("branch is not active").
			WithCode(pkgerrors.CodeBranchInactive).
			WithDetail("branchID", branchID).
			WithDetail("status", string(branch.Status()))
	}
	return branch, nil
}

// headOf returns the head snapshot of a branch, or nil for a branch that has
// no snapshots yet. A branch without a recorded head falls back to its
// highest stored version.
func headOf(ctx context.Context, repo ports.SnapshotRepository, branch *branching.Branch) (*snapshot.Snapshot, error) {
	if branch.HeadSnapshotID() != "" {
		return repo.GetByID(ctx, branch.HeadSnapshotID())
	}
	latest, err := repo.Latest(ctx, branch.ID())
	if pkgerrors.IsNotFound(err) {
		return nil, nil
	}
	return latest, err
}

// commitHead stores snap and moves branch onto it. When the branch write
// fails the snapshot is deleted again, so no version is left that no branch
// reaches.
func commitHead(
	ctx context.Context,
	name string,
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	branch *branching.Branch,
	snap *snapshot.Snapshot,
	logger *zap.Logger,
) error {
	return sagas.New(name, logger).
		Step(sagas.Step{
			Name:       "save-snapshot",
			Execute:    func(ctx context.Context) error { return snapshots.Save(ctx, snap) },
			Compensate: func(ctx context.Context) error { return snapshots.Delete(ctx, snap.ID) },
		}).
		Step(sagas.Step{
			Name: "advance-branch",
			Execute: func(ctx context.Context) error {
				if err := branch.Advance(snap.ID); err != nil {
					return err
				}
				return branches.Save(ctx, branch)
			},
		}).
		Execute(ctx)
}

func nextVersion(head *snapshot.Snapshot) int {
	if head == nil {
		return 1
	}
	return head.Version + 1
}

func parentID(head *snapshot.Snapshot) string {
	if head == nil {
		return ""
	}
	return head.ID
}

func sameGraph(graphID string, ids ...string) error {
	for _, id := range ids {
		if id != graphID {
			return pkgerrors.NewValidationError("resources belong to different graphs").
				WithCode(pkgerrors.CodeInvalidGraph).
				WithDetail("graphID", graphID).
				WithDetail("other", id)
		}
	}
	return nil
}

func unexpected(cmd bus.Command) error {
	return pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
}
