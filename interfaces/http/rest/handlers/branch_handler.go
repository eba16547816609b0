package handlers

import (
	"net/http"
	"strconv"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/queries"
	querybus "filon/application/queries/bus"
	"filon/pkg/common"
	pkgerrors "filon/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BranchHandler handles branch-related HTTP requests
type BranchHandler struct {
	commands *bus.CommandBus
	queries  *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewBranchHandler creates a new branch handler
func NewBranchHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *BranchHandler {
	return &BranchHandler{
		commands: commandBus,
		queries:  queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// CreateBranchRequest represents the request body for creating a branch.
// Leaving FromSnapshotID empty creates the graph's main branch.
type CreateBranchRequest struct {
	Name           string `json:"name" validate:"max=100"`
	FromSnapshotID string `json:"fromSnapshotId"`
}

// MergeBranchRequest represents the request body for merging a branch
type MergeBranchRequest struct {
	TargetBranchID string   `json:"targetBranchId" validate:"required"`
	Strategy       string   `json:"strategy"`
	Fields         []string `json:"fields" validate:"max=32"`
	CreatedBy      string   `json:"createdBy" validate:"max=200"`
}

// MergeBranchResponse reports the merge result snapshot
type MergeBranchResponse struct {
	ResultSnapshotID string      `json:"resultSnapshotId"`
	Target           interface{} `json:"target"`
}

// CreateBranch handles POST /graphs/{graphID}/branches
func (h *BranchHandler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.CreateBranchCommand{
		BranchID:       uuid.New().String(),
		GraphID:        chi.URLParam(r, "graphID"),
		Name:           req.Name,
		FromSnapshotID: req.FromSnapshotID,
	}
	if err := h.commands.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queries.Ask(r.Context(), queries.GetBranchQuery{BranchID: cmd.BranchID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, result)
}

// ListBranches handles GET /graphs/{graphID}/branches?status=
func (h *BranchHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.ListBranchesQuery{
		GraphID: chi.URLParam(r, "graphID"),
		Status:  r.URL.Query().Get("status"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

// Timeline handles GET /branches/{branchID}/timeline?limit=
func (h *BranchHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("limit must be an integer").
				WithDetail("limit", raw))
			return
		}
		limit = n
	}

	result, err := h.queries.Ask(r.Context(), queries.TimelineQuery{
		BranchID: chi.URLParam(r, "branchID"),
		Limit:    limit,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

// MergeBranch handles POST /branches/{branchID}/merge
func (h *BranchHandler) MergeBranch(w http.ResponseWriter, r *http.Request) {
	var req MergeBranchRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.MergeBranchCommand{
		ResultID:       uuid.New().String(),
		SourceBranchID: chi.URLParam(r, "branchID"),
		TargetBranchID: req.TargetBranchID,
		Strategy:       req.Strategy,
		Fields:         req.Fields,
		CreatedBy:      req.CreatedBy,
	}
	if err := h.commands.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	target, err := h.queries.Ask(r.Context(), queries.GetBranchQuery{BranchID: cmd.TargetBranchID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, MergeBranchResponse{
		ResultSnapshotID: cmd.ResultID,
		Target:           target,
	})
}

func (h *BranchHandler) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := common.RespondJSON(w, r, status, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
