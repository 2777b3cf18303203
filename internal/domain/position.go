package domain

import (
	"fmt"
	"sort"
)

// NextPosition returns the position to assign to a newly created todo.
// A requested position strictly greater than the current maximum is
// honored as-is, so clients may pre-compute gaps; anything else
// appends. An empty list has maxPos 0, so the first default insert
// lands at 1.
func NextPosition(maxPos, requested int) int {
	if requested > maxPos {
		return requested
	}
	return maxPos + 1
}

// NormalizeReorder validates a reorder batch and returns a copy sorted
// by ascending position. A valid batch references each todo at most
// once and its positions form exactly the sequence 0..n-1.
func NormalizeReorder(entries []ReorderEntry) ([]ReorderEntry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty reorder batch")
	}

	seen := make(map[int]bool, len(entries))
	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Position < 0 || e.Position >= len(entries) {
			return nil, fmt.Errorf("position %d out of range for batch of %d", e.Position, len(entries))
		}
		if seen[e.Position] {
			return nil, fmt.Errorf("duplicate position %d", e.Position)
		}
		if ids[e.ID.String()] {
			return nil, fmt.Errorf("todo %s listed twice", e.ID)
		}
		seen[e.Position] = true
		ids[e.ID.String()] = true
	}

	sorted := make([]ReorderEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return sorted, nil
}
