// Package types contains the JSON views shared by the HTTP API and the CLI.
package types

import (
	"time"

	"github.com/okian/regionsel/internal/domain/model"
)

// Skip is one region left out of a selection.
type Skip struct {
	Region string `json:"region"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// Selection is the public form of a selection result.
type Selection struct {
	Region         string  `json:"region"`
	Distance       float64 `json:"distance"`
	PseudoInverse  bool    `json:"pseudo_inverse"`
	Skipped        []Skip  `json:"skipped"`
	Model          string  `json:"model,omitempty"`
	ProfileVersion string  `json:"profile_version,omitempty"`
}

// SelectionOf converts a model selection.
func SelectionOf(sel model.Selection) Selection {
	return Selection{
		Region:         sel.Region,
		Distance:       sel.Distance,
		PseudoInverse:  sel.PseudoInverse,
		Skipped:        SkipsOf(sel.Skipped),
		Model:          sel.Model,
		ProfileVersion: sel.ProfileVersion,
	}
}

// SkipsOf converts skip records; the result is never nil.
func SkipsOf(skips []model.Skip) []Skip {
	out := make([]Skip, 0, len(skips))
	for _, s := range skips {
		v := Skip{Region: s.Region, Kind: s.Kind.String()}
		if s.Err != nil {
			v.Reason = s.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// RegionSummary describes one published region profile.
type RegionSummary struct {
	Region      string  `json:"region"`
	Samples     int     `json:"samples"`
	Regularized bool    `json:"regularized"`
	Method      string  `json:"method,omitempty"`
	Rank        int     `json:"rank"`
	Condition   float64 `json:"condition,omitempty"`
	Usable      bool    `json:"usable"`
	Reason      string  `json:"reason,omitempty"`
}

// ProfileSummary describes a published profile set.
type ProfileSummary struct {
	Version     string          `json:"version"`
	Source      string          `json:"source,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
	Dim         int             `json:"dim"`
	Labels      []string        `json:"labels"`
	Regions     []RegionSummary `json:"regions"`
}

// BatchQuery is one entry of a batch selection request.
type BatchQuery struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector"`
}

// BatchResult is the outcome of one batch query. Exactly one of Selection
// and Error is set.
type BatchResult struct {
	ID        string     `json:"id"`
	Selection *Selection `json:"selection,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// BatchResultOf builds a batch result from a selection or its error.
func BatchResultOf(id string, sel model.Selection, err error) BatchResult {
	if err != nil {
		return BatchResult{ID: id, Error: err.Error()}
	}
	v := SelectionOf(sel)
	return BatchResult{ID: id, Selection: &v}
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Skip  []Skip `json:"skipped,omitempty"`
}

// Kinds carried in ErrorResponse.Kind.
const (
	KindInvalidRequest    = "invalid_request"
	KindDimensionMismatch = "dimension_mismatch"
	KindEmptyProfileSet   = "empty_profile_set"
	KindNoUsableProfile   = "no_usable_profile"
	KindBackpressure      = "backpressure"
	KindInternal          = "internal"
)

