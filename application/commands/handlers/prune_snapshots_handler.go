package handlers

import (
	"context"
	"time"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/domain/versioning"

	"go.uber.org/zap"
)

// PruneSnapshotsHandler applies the versioning policy's retention to a branch
type PruneSnapshotsHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
	policy    versioning.VersioningPolicy
	logger    *zap.Logger
}

// NewPruneSnapshotsHandler creates a new prune snapshots handler
func NewPruneSnapshotsHandler(
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	policy versioning.VersioningPolicy,
	logger *zap.Logger,
) *PruneSnapshotsHandler {
	return &PruneSnapshotsHandler{
		snapshots: snapshots,
		branches:  branches,
		policy:    policy,
		logger:    logger,
	}
}

// Handle deletes prune candidates. The head of every branch of the graph and
// every fork point stay, so no branch loses its starting state.
func (h *PruneSnapshotsHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(commands.PruneSnapshotsCommand)
	if !ok {
		return unexpected(c)
	}

	branch, err := h.branches.GetByID(ctx, cmd.BranchID)
	if err != nil {
		return err
	}
	siblings, err := h.branches.ListByGraph(ctx, branch.GraphID())
	if err != nil {
		return err
	}
	protected := make([]string, 0, 2*len(siblings))
	for _, b := range siblings {
		protected = append(protected, b.HeadSnapshotID(), b.ParentSnapshotID())
	}

	snaps, err := h.snapshots.ListByBranch(ctx, branch.ID(), ports.ListOptions{})
	if err != nil {
		return err
	}

	candidates := h.policy.PruneCandidates(snaps, time.Now().UTC(), protected...)
	for _, id := range candidates {
		if err := h.snapshots.Delete(ctx, id); err != nil {
			return err
		}
	}

	h.logger.Info("Pruned snapshots",
		zap.String("branchID", branch.ID()),
		zap.Int("deleted", len(candidates)),
		zap.Int("remaining", len(snaps)-len(candidates)))
	return nil
}
