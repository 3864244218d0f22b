package embeddings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MapEntry binds one embedding object to a region label.
type MapEntry struct {
	Line     int
	Filename string
	Region   string
}

// ParseRegionMap reads a "filename,region" CSV with a header line. Blank
// lines are ignored; rows with a missing field fail the whole map.
func ParseRegionMap(r io.Reader) ([]MapEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var entries []MapEntry
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRegionMap, err)
		}
		line, _ := cr.FieldPos(0)
		if header {
			header = false
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields, expected 2", ErrInvalidRegionMap, line, len(rec))
		}
		name, region := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if name == "" || region == "" {
			return nil, fmt.Errorf("%w: line %d has an empty field", ErrInvalidRegionMap, line)
		}
		entries = append(entries, MapEntry{Line: line, Filename: name, Region: region})
	}
	return entries, nil
}
