package api

import (
	"fmt"
	"net/http"

	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/internal/domain/types"
	"github.com/okian/regionsel/pkg/logger"
)

type selectRequest struct {
	Vector []float64 `json:"vector"`
}

type batchRequest struct {
	Queries []types.BatchQuery `json:"queries"`
}

type batchResponse struct {
	Results []types.BatchResult `json:"results"`
}

// SelectHandler handles selection requests.
type SelectHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewSelectHandler creates a new select handler.
func NewSelectHandler(deps Dependencies, log logger.Logger) *SelectHandler {
	return &SelectHandler{deps: deps, log: log}
}

// HandleSelect handles POST /select requests.
func (h *SelectHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req selectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeSelectError(w, err)
		return
	}
	if len(req.Vector) == 0 {
		writeSelectError(w, fmt.Errorf("%w: missing vector", ErrBadRequest))
		return
	}
	x, err := model.VectorOf(req.Vector...)
	if err != nil {
		writeSelectError(w, err)
		return
	}

	sel, err := h.deps.Select(r.Context(), x)
	if err != nil {
		h.log.Debug(r.Context(), "selection failed", logger.Error(err))
		writeSelectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SelectionOf(sel))
}

// HandleSelectBatch handles POST /select/batch requests.
func (h *SelectHandler) HandleSelectBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeSelectError(w, err)
		return
	}

	results, err := h.deps.SelectQueries(r.Context(), req.Queries)
	if err != nil {
		h.log.Warn(r.Context(), "batch selection failed",
			logger.Int("queries", len(req.Queries)),
			logger.Error(err),
		)
		writeSelectError(w, err)
		return
	}
	if results == nil {
		results = []types.BatchResult{}
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}
