package handlers

import (
	"context"
	"net/http"

	"filon/domain/diff"
	"filon/domain/graphstate"
	"filon/domain/merge"
	"filon/pkg/common"
	pkgerrors "filon/pkg/errors"
	"filon/pkg/observability"

	"go.uber.org/zap"
)

// DiffRecorder receives the size of every diff the engine computes
type DiffRecorder interface {
	RecordDiff(ctx context.Context, operation string, size observability.DiffSize)
}

// EngineHandler exposes the stateless diff and merge engine. States pass
// through as sent; dangling edges and unknown ids are the engine's to tolerate.
type EngineHandler struct {
	metrics DiffRecorder
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(metrics DiffRecorder, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{
		metrics: metrics,
		errors:  errorHandler,
		logger:  logger,
	}
}

// DiffRequest represents the request body for diffing two states
type DiffRequest struct {
	Old    graphstate.GraphState `json:"old"`
	New    graphstate.GraphState `json:"new"`
	Fields []string              `json:"fields,omitempty" validate:"max=32"`
}

// DiffResponse represents the response for a diff
type DiffResponse struct {
	Diff      *diff.Result `json:"diff"`
	Summary   diff.Summary `json:"summary"`
	Identical bool         `json:"identical"`
	Text      string       `json:"text,omitempty"`
}

// MergeRequest represents the request body for applying a diff
type MergeRequest struct {
	Base graphstate.GraphState `json:"base"`
	Diff *diff.Result          `json:"diff" validate:"required"`
}

// MergeSnapshotsRequest represents the request body for a two-way merge
type MergeSnapshotsRequest struct {
	Base     graphstate.GraphState `json:"base"`
	Incoming graphstate.GraphState `json:"incoming"`
	Strategy string                `json:"strategy,omitempty"`
	Fields   []string              `json:"fields,omitempty" validate:"max=32"`
}

// StateResponse carries a merged graph state
type StateResponse struct {
	State   graphstate.GraphState `json:"state"`
	Outcome *merge.Outcome        `json:"outcome,omitempty"`
}

// Diff handles POST /diff. ?format=text adds the human readable rendering.
func (h *EngineHandler) Diff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	d := diff.ComputeWith(req.Old, req.New, diff.Options{Fields: diff.ParseFields(req.Fields)})
	h.record(r.Context(), "diff", d)

	resp := DiffResponse{
		Diff:      d,
		Summary:   d.Summary(),
		Identical: d.IsEmpty(),
	}
	if r.URL.Query().Get("format") == "text" {
		resp.Text = d.FormatText()
	}
	h.respond(w, r, http.StatusOK, resp)
}

// Merge handles POST /merge
func (h *EngineHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.record(r.Context(), "merge", req.Diff)
	h.respond(w, r, http.StatusOK, StateResponse{State: merge.Apply(req.Base, req.Diff)})
}

// MergeSnapshots handles POST /merge-snapshots
func (h *EngineHandler) MergeSnapshots(w http.ResponseWriter, r *http.Request) {
	var req MergeSnapshotsRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	resolution, err := merge.ParseResolution(req.Strategy)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	state, outcome := merge.Reconcile(req.Base, req.Incoming, resolution,
		diff.Options{Fields: diff.ParseFields(req.Fields)})
	h.record(r.Context(), "merge-snapshots", outcome.Diff)

	h.logger.Debug("Merged states",
		zap.String("strategy", string(resolution)),
		zap.Int("changes", outcome.Diff.Summary().Total()))
	h.respond(w, r, http.StatusOK, StateResponse{State: state, Outcome: &outcome})
}

func (h *EngineHandler) record(ctx context.Context, operation string, d *diff.Result) {
	s := d.Summary()
	h.metrics.RecordDiff(ctx, operation, observability.DiffSize{
		NodesAdded:   s.NodesAdded,
		NodesRemoved: s.NodesRemoved,
		NodesChanged: s.NodesChanged,
		EdgesAdded:   s.EdgesAdded,
		EdgesRemoved: s.EdgesRemoved,
	})
}

func (h *EngineHandler) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := common.RespondJSON(w, r, status, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
