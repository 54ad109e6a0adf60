// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index resolves logical frame indexes to storage-row offsets in a
// diffraction stack. The catalog's index array is neither unique nor
// sorted; on duplicates the first occurrence (lowest row offset) wins, and
// later duplicates are unreachable. That tie-break is deliberate and
// stable, not an error.
package index

import "fmt"

// MissingIndexError reports a requested frame index with no catalog entry
// (mapped mode) or no storage row (identity mode). Fatal for the run.
type MissingIndexError struct {
	Index int64
}

func (e *MissingIndexError) Error() string {
	return fmt.Sprintf("frame index %d not present in catalog", e.Index)
}

// Lookup maps frame indexes to row offsets. Build one with NewLookup when
// the source container carries an index array, or Identity when it does
// not. A Lookup never mutates its inputs.
type Lookup struct {
	rows    map[int64]int // nil in identity mode
	numRows int
}

// NewLookup builds a lookup from a catalog index array in a single pass.
// catalog[row] is the frame index stored at that row; rows are dense
// 0..N-1. The first row carrying a given index wins.
func NewLookup(catalog []int64) *Lookup {
	rows := make(map[int64]int, len(catalog))
	for row, idx := range catalog {
		if _, seen := rows[idx]; !seen {
			rows[idx] = row
		}
	}
	return &Lookup{rows: rows, numRows: len(catalog)}
}

// Identity returns the degenerate lookup used when the source container
// has no index array: requested values are taken directly as row offsets
// into a stack of numRows frames.
func Identity(numRows int) *Lookup {
	return &Lookup{numRows: numRows}
}

// Mapped reports whether the lookup was built from an explicit catalog.
func (l *Lookup) Mapped() bool { return l.rows != nil }

// Resolve returns one row offset per requested frame index, in request
// order. Any request that cannot be satisfied fails the whole call with a
// MissingIndexError naming the offending value.
func (l *Lookup) Resolve(requested []int64) ([]int, error) {
	offsets := make([]int, len(requested))
	for i, idx := range requested {
		if l.rows == nil {
			if idx < 0 || idx >= int64(l.numRows) {
				return nil, &MissingIndexError{Index: idx}
			}
			offsets[i] = int(idx)
			continue
		}
		row, ok := l.rows[idx]
		if !ok {
			return nil, &MissingIndexError{Index: idx}
		}
		offsets[i] = row
	}
	return offsets, nil
}
