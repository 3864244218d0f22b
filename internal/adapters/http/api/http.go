// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/regionsel/internal/domain/model"
	"github.com/okian/regionsel/internal/domain/selector"
	"github.com/okian/regionsel/internal/domain/types"
	"github.com/okian/regionsel/pkg/logger"
)

// maxBodyBytes bounds request bodies; a 512-dim batch of a few thousand
// queries fits comfortably.
const maxBodyBytes = 32 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Select resolves one query against the current profile set.
	Select(ctx context.Context, x model.FeatureVector) (model.Selection, error)

	// SelectQueries resolves queries through the worker pool. It fails
	// with an error matching ErrBackpressure when the queue is full.
	SelectQueries(ctx context.Context, queries []types.BatchQuery) ([]types.BatchResult, error)

	// Profiles describes the current profile set.
	Profiles(ctx context.Context) (types.ProfileSummary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	selectHandler   *SelectHandler
	profilesHandler *ProfilesHandler
	log             logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		statsHandler:    NewStatsHandler(statsProvider),
		selectHandler:   NewSelectHandler(deps, log),
		profilesHandler: NewProfilesHandler(deps),
		log:             log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", s.instrument("healthz", s.healthHandler.HandleHealth))
	mux.HandleFunc("/readyz", s.instrument("readyz", s.healthHandler.HandleReady))
	mux.HandleFunc("/stats", s.instrument("stats", s.statsHandler.HandleStats))
	mux.HandleFunc("/profiles", s.instrument("profiles", s.profilesHandler.HandleGetProfiles))
	mux.HandleFunc("/select/batch", s.instrument("select_batch", s.selectHandler.HandleSelectBatch))
	mux.HandleFunc("/select", s.instrument("select", s.selectHandler.HandleSelect))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Error: msg, Kind: kind})
}

// writeSelectError maps selection failures onto status codes.
func writeSelectError(w http.ResponseWriter, err error) {
	var noUsable *selector.NoUsableProfileError
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, types.KindInvalidRequest, err)
	case errors.Is(err, model.ErrDimensionMismatch), errors.Is(err, model.ErrInvalidDimension), errors.Is(err, model.ErrNonFinite):
		writeError(w, http.StatusBadRequest, types.KindDimensionMismatch, err)
	case errors.Is(err, selector.ErrEmptyProfileSet):
		writeError(w, http.StatusServiceUnavailable, types.KindEmptyProfileSet, err)
	case errors.As(err, &noUsable):
		writeJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{
			Error: err.Error(),
			Kind:  types.KindNoUsableProfile,
			Skip:  types.SkipsOf(noUsable.Skipped),
		})
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, types.KindBackpressure, err)
	default:
		writeError(w, http.StatusInternalServerError, types.KindInternal, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
