package handlers

import (
	"net/http"

	"filon/application/commands"
	"filon/application/commands/bus"
	"filon/application/queries"
	querybus "filon/application/queries/bus"
	"filon/domain/graphstate"
	"filon/domain/snapshot"
	"filon/pkg/common"
	pkgerrors "filon/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotHandler handles snapshot-related HTTP requests
type SnapshotHandler struct {
	commands *bus.CommandBus
	queries  *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		commands: commandBus,
		queries:  queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// SaveSnapshotRequest represents the request body for saving a snapshot
type SaveSnapshotRequest struct {
	Label     string                `json:"label" validate:"max=200"`
	CreatedBy string                `json:"createdBy" validate:"max=200"`
	Autosave  bool                  `json:"autosave"`
	State     graphstate.GraphState `json:"state"`
}

// SaveSnapshotResponse reports the stored snapshot, or that an autosave was
// dropped by the versioning policy.
type SaveSnapshotResponse struct {
	Saved    bool               `json:"saved"`
	Snapshot *snapshot.Snapshot `json:"snapshot,omitempty"`
}

// RestoreSnapshotRequest represents the request body for a restore
type RestoreSnapshotRequest struct {
	BranchID  string `json:"branchId"`
	CreatedBy string `json:"createdBy" validate:"max=200"`
}

// MergeStoredSnapshotsRequest represents the request body for merging two
// stored snapshots.
type MergeStoredSnapshotsRequest struct {
	BaseID     string   `json:"baseId" validate:"required"`
	IncomingID string   `json:"incomingId" validate:"required"`
	Strategy   string   `json:"strategy"`
	Fields     []string `json:"fields" validate:"max=32"`
	Label      string   `json:"label" validate:"max=200"`
	CreatedBy  string   `json:"createdBy" validate:"max=200"`
}

// SaveSnapshot handles POST /graphs/{graphID}/branches/{branchID}/snapshots
func (h *SnapshotHandler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SaveSnapshotRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.SaveSnapshotCommand{
		SnapshotID: uuid.New().String(),
		GraphID:    chi.URLParam(r, "graphID"),
		BranchID:   chi.URLParam(r, "branchID"),
		Label:      req.Label,
		CreatedBy:  req.CreatedBy,
		Autosave:   req.Autosave,
		State:      req.State,
	}
	if err := h.commands.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queries.Ask(r.Context(), queries.GetSnapshotQuery{SnapshotID: cmd.SnapshotID})
	if err != nil {
		if cmd.Autosave && pkgerrors.IsNotFound(err) {
			h.respond(w, r, http.StatusOK, SaveSnapshotResponse{Saved: false})
			return
		}
		h.errors.Handle(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, SaveSnapshotResponse{
		Saved:    true,
		Snapshot: result.(*snapshot.Snapshot),
	})
}

// GetSnapshot handles GET /snapshots/{snapshotID}
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.GetSnapshotQuery{
		SnapshotID: chi.URLParam(r, "snapshotID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

// DiffSnapshots handles GET /snapshots/{snapshotID}/diff/{otherID}. The
// optional fields parameter is a comma separated field list.
func (h *SnapshotHandler) DiffSnapshots(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.DiffSnapshotsQuery{
		FromID: chi.URLParam(r, "snapshotID"),
		ToID:   chi.URLParam(r, "otherID"),
		Fields: splitList(r, "fields"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

// RestoreSnapshot handles POST /snapshots/{snapshotID}/restore
func (h *SnapshotHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var req RestoreSnapshotRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.RestoreSnapshotCommand{
		NewSnapshotID: uuid.New().String(),
		SnapshotID:    chi.URLParam(r, "snapshotID"),
		BranchID:      req.BranchID,
		CreatedBy:     req.CreatedBy,
	}
	if err := h.commands.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondSnapshot(w, r, cmd.NewSnapshotID)
}

// MergeSnapshots handles POST /snapshots/merge
func (h *SnapshotHandler) MergeSnapshots(w http.ResponseWriter, r *http.Request) {
	var req MergeStoredSnapshotsRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.MergeSnapshotsCommand{
		ResultID:   uuid.New().String(),
		BaseID:     req.BaseID,
		IncomingID: req.IncomingID,
		Strategy:   req.Strategy,
		Fields:     req.Fields,
		Label:      req.Label,
		CreatedBy:  req.CreatedBy,
	}
	if err := h.commands.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondSnapshot(w, r, cmd.ResultID)
}

// PruneSnapshots handles POST /branches/{branchID}/prune
func (h *SnapshotHandler) PruneSnapshots(w http.ResponseWriter, r *http.Request) {
	cmd := commands.PruneSnapshotsCommand{BranchID: chi.URLParam(r, "branchID")}
	if err := h.commands.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SnapshotHandler) respondSnapshot(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.queries.Ask(r.Context(), queries.GetSnapshotQuery{SnapshotID: id})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, result)
}

func (h *SnapshotHandler) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := common.RespondJSON(w, r, status, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
