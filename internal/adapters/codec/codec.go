// Package codec serializes profile sets as a mapping from region label to
// {"mean": [...], "cov": [[...]]}, optionally wrapped in msgpack or a
// compression envelope chosen by object name.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/okian/regionsel/internal/domain/model"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the structural encoding of the mapping.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// Compression is the envelope around the encoded mapping.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// wireProfile is the persisted shape of one region. "cov" is the key written
// by the profile generator; "covariance" is accepted on read.
type wireProfile struct {
	Mean        []float64   `json:"mean" msgpack:"mean"`
	Cov         [][]float64 `json:"cov,omitempty" msgpack:"cov,omitempty"`
	Covariance  [][]float64 `json:"covariance,omitempty" msgpack:"covariance,omitempty"`
	Samples     int         `json:"samples,omitempty" msgpack:"samples,omitempty"`
	Regularized bool        `json:"regularized,omitempty" msgpack:"regularized,omitempty"`
}

// Codec encodes and decodes profile sets.
type Codec struct {
	Format      Format
	Compression Compression
	Indent      bool
}

// ForName picks a codec from an object name: ".msgpack" selects msgpack,
// a trailing ".zst" or ".lz4" selects the compression envelope, anything
// else is plain JSON.
func ForName(name string) Codec {
	var c Codec
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zst"):
		c.Compression = CompressionZstd
		lower = strings.TrimSuffix(lower, ".zst")
	case strings.HasSuffix(lower, ".lz4"):
		c.Compression = CompressionLZ4
		lower = strings.TrimSuffix(lower, ".lz4")
	}
	if strings.HasSuffix(lower, ".msgpack") || strings.HasSuffix(lower, ".mpk") {
		c.Format = FormatMsgpack
	}
	return c
}

// Marshal encodes set.
func (c Codec) Marshal(set *model.ProfileSet) ([]byte, error) {
	wire := make(map[string]wireProfile, set.Len())
	set.Each(func(p *model.RegionProfile) {
		wire[p.Region()] = wireProfile{
			Mean:        p.Mean().Values(),
			Cov:         p.CovarianceRows(),
			Samples:     p.Samples(),
			Regularized: p.Regularized(),
		}
	})

	var (
		raw []byte
		err error
	)
	switch c.Format {
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		err = enc.Encode(wire)
		raw = buf.Bytes()
	default:
		if c.Indent {
			raw, err = json.MarshalIndent(wire, "", "  ")
		} else {
			raw, err = json.Marshal(wire)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return compress(raw, c.Compression)
}

// Unmarshal decodes data into a ProfileSet.
func (c Codec) Unmarshal(data []byte) (*model.ProfileSet, error) {
	raw, err := decompress(data, c.Compression)
	if err != nil {
		return nil, err
	}

	var wire map[string]wireProfile
	switch c.Format {
	case FormatMsgpack:
		err = msgpack.Unmarshal(raw, &wire)
	default:
		err = json.Unmarshal(raw, &wire)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	profiles := make([]*model.RegionProfile, 0, len(wire))
	for label, w := range wire {
		p, err := fromWire(label, w)
		if err != nil {
			return nil, fmt.Errorf("%w: region %q: %w", ErrDecode, label, err)
		}
		profiles = append(profiles, p)
	}
	set, err := model.NewProfileSet(profiles...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return set, nil
}

func fromWire(label string, w wireProfile) (*model.RegionProfile, error) {
	mean, err := model.NewFeatureVector(w.Mean, len(w.Mean))
	if err != nil {
		return nil, err
	}
	rows := w.Cov
	if rows == nil {
		rows = w.Covariance
	}
	cov, err := model.CovarianceFromRows(rows)
	if err != nil {
		return nil, err
	}
	return model.NewRegionProfile(label, mean, cov,
		model.WithSamples(w.Samples),
		model.WithRegularized(w.Regularized),
	)
}

func compress(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		defer func() { _ = enc.Close() }()
		return enc.EncodeAll(raw, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		return buf.Bytes(), nil
	default:
		return raw, nil
	}
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return out, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return out, nil
	default:
		return data, nil
	}
}
