// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultDimension is the embedding width produced by the upstream extractor.
const DefaultDimension = 512

// FeatureVector is an immutable, fixed-length embedding.
type FeatureVector struct {
	values []float64
}

// NewFeatureVector copies values into a FeatureVector of length dim.
// It never pads or truncates: a length other than dim is an error.
func NewFeatureVector(values []float64, dim int) (FeatureVector, error) {
	if dim < 1 {
		return FeatureVector{}, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	if len(values) != dim {
		return FeatureVector{}, &DimensionMismatchError{Index: -1, Expected: dim, Got: len(values)}
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return FeatureVector{}, fmt.Errorf("%w at component %d", ErrNonFinite, i)
		}
	}
	out := make([]float64, dim)
	copy(out, values)
	return FeatureVector{values: out}, nil
}

// VectorOf builds a FeatureVector whose dimension is len(values).
func VectorOf(values ...float64) (FeatureVector, error) {
	return NewFeatureVector(values, len(values))
}

// FromFloat32 widens a float32 embedding into a FeatureVector of length dim.
func FromFloat32(values []float32, dim int) (FeatureVector, error) {
	wide := make([]float64, len(values))
	for i, v := range values {
		wide[i] = float64(v)
	}
	return NewFeatureVector(wide, dim)
}

// Dim returns the vector length. The zero FeatureVector has dimension 0.
func (v FeatureVector) Dim() int { return len(v.values) }

// At returns component i.
func (v FeatureVector) At(i int) float64 { return v.values[i] }

// Values returns a copy of the components.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Vec returns the vector as a gonum column vector backed by a copy.
func (v FeatureVector) Vec() *mat.VecDense {
	return mat.NewVecDense(len(v.values), v.Values())
}

// Equal reports whether both vectors have identical components.
func (v FeatureVector) Equal(o FeatureVector) bool {
	if len(v.values) != len(o.values) {
		return false
	}
	for i := range v.values {
		if v.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// LabeledSample pairs an embedding with the region it was recorded in.
type LabeledSample struct {
	ID     string // sample identifier, e.g. the embedding file name
	Region string
	Vector FeatureVector
}
