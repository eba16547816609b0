package handlers

import (
	"context"
	"strings"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/ports"
	"filon/domain/branching"
	pkgerrors "filon/pkg/errors"

	"go.uber.org/zap"
)

// CreateBranchHandler handles CreateBranchCommand
type CreateBranchHandler struct {
	snapshots ports.SnapshotRepository
	branches  ports.BranchRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewCreateBranchHandler creates a new create branch handler
func NewCreateBranchHandler(
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *CreateBranchHandler {
	return &CreateBranchHandler{
		snapshots: snapshots,
		branches:  branches,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle creates the branch. Names are unique within a graph.
func (h *CreateBranchHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(commands.CreateBranchCommand)
	if !ok {
		return unexpected(c)
	}

	name := strings.TrimSpace(cmd.Name)
	if cmd.IsMain() {
		name = branching.MainBranchName
	}
	if err := h.ensureNameFree(ctx, cmd.GraphID, name); err != nil {
		return err
	}

	var (
		branch *branching.Branch
		err    error
	)
	if cmd.IsMain() {
		branch, err = branching.NewMainBranch(cmd.BranchID, cmd.GraphID)
	} else {
		from, getErr := h.snapshots.GetByID(ctx, cmd.FromSnapshotID)
		if getErr != nil {
			return getErr
		}
		if err := sameGraph(cmd.GraphID, from.GraphID); err != nil {
			return err
		}
		branch, err = branching.NewBranch(cmd.BranchID, cmd.GraphID, name, from.ID)
	}
	if err != nil {
		return err
	}

	if err := h.branches.Save(ctx, branch); err != nil {
		return err
	}

	h.logger.Info("Branch created",
		zap.String("branchID", branch.ID()),
		zap.String("graphID", branch.GraphID()),
		zap.String("name", branch.Name()),
		zap.String("fromSnapshotID", branch.ParentSnapshotID()))

	publishEvents(ctx, h.publisher, h.logger, branch.GetUncommittedEvents()...)
	branch.MarkEventsAsCommitted()
	return nil
}

func (h *CreateBranchHandler) ensureNameFree(ctx context.Context, graphID, name string) error {
	existing, err := h.branches.FindByName(ctx, graphID, name)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return pkgerrors.NewConflictError("branch name already in use").
		WithCode(pkgerrors.CodeBranchExists).
		WithDetail("name", name).
		WithDetail("branchID", existing.ID())
}
