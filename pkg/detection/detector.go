// Package detection turns raw object detector output into a compact,
// thresholded detection set.
package detection

import (
	"fmt"
	"sort"
)

// DefaultThreshold is the confidence threshold used when none is given.
const DefaultThreshold float32 = 0.5

// Box is a bounding box as (ymin, xmin, ymax, xmax), normalized to 0-1.
type Box [4]float32

// RawBatch is the unfiltered per-candidate model output. The three slices
// are parallel and have the same length N.
type RawBatch struct {
	Scores  []float32
	Boxes   []Box
	Classes []float32 // integer-valued label ids
}

// Len returns the number of candidates.
func (b RawBatch) Len() int {
	return len(b.Scores)
}

// Validate checks that the three slices are parallel.
func (b RawBatch) Validate() error {
	if len(b.Boxes) != len(b.Scores) || len(b.Classes) != len(b.Scores) {
		return fmt.Errorf("ragged batch: %d scores, %d boxes, %d classes",
			len(b.Scores), len(b.Boxes), len(b.Classes))
	}
	return nil
}

// FilteredSet holds the candidates kept by Filter. Count equals the length
// of each slice.
type FilteredSet struct {
	Scores  []float32 `json:"scores"`
	Boxes   []Box     `json:"boxes"`
	Classes []int64   `json:"classes"`
	Count   int       `json:"count"`
}

// Batch converts f back into a RawBatch, e.g. to filter it again.
func (f FilteredSet) Batch() RawBatch {
	classes := make([]float32, len(f.Classes))
	for i, c := range f.Classes {
		classes[i] = float32(c)
	}
	return RawBatch{
		Scores:  append([]float32(nil), f.Scores...),
		Boxes:   append([]Box(nil), f.Boxes...),
		Classes: classes,
	}
}

// Filter keeps the candidates scoring strictly above threshold.
//
// M is the number of scores above threshold, and the result is the first M
// entries of each slice in their original order. That is the top M by
// confidence only when b.Scores is sorted descending, which detectors
// normally guarantee; Filter does not check it. Use FilterTopK when the
// ordering cannot be relied on.
//
// Filter never fails: an empty set is a valid result.
func Filter(b RawBatch, threshold float32) FilteredSet {
	m := 0
	for _, s := range b.Scores {
		if s > threshold {
			m++
		}
	}
	return truncate(b, m)
}

// FilterDefault applies Filter with DefaultThreshold.
func FilterDefault(b RawBatch) FilteredSet {
	return Filter(b, DefaultThreshold)
}

// FilterTopK sorts the candidates by score descending (stable) before
// applying Filter, so the result is the true top M whatever the input order.
func FilterTopK(b RawBatch, threshold float32) FilteredSet {
	return Filter(SortByScore(b), threshold)
}

// SortByScore returns a copy of b ordered by score descending. Equal scores
// keep their relative order. Ragged input is cut at the shortest slice.
func SortByScore(b RawBatch) RawBatch {
	n := min(len(b.Scores), len(b.Boxes), len(b.Classes))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return b.Scores[idx[i]] > b.Scores[idx[j]]
	})

	sorted := RawBatch{
		Scores:  make([]float32, n),
		Boxes:   make([]Box, n),
		Classes: make([]float32, n),
	}
	for to, from := range idx {
		sorted.Scores[to] = b.Scores[from]
		sorted.Boxes[to] = b.Boxes[from]
		sorted.Classes[to] = b.Classes[from]
	}
	return sorted
}

// IsSortedDescending reports whether scores are in non-increasing order.
func IsSortedDescending(scores []float32) bool {
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			return false
		}
	}
	return true
}

// truncate copies the first m entries of each slice. Ragged input is cut
// at the shortest slice rather than panicking.
func truncate(b RawBatch, m int) FilteredSet {
	m = min(m, len(b.Scores), len(b.Boxes), len(b.Classes))

	out := FilteredSet{
		Scores:  make([]float32, m),
		Boxes:   make([]Box, m),
		Classes: make([]int64, m),
		Count:   m,
	}
	copy(out.Scores, b.Scores[:m])
	copy(out.Boxes, b.Boxes[:m])
	for i := 0; i < m; i++ {
		out.Classes[i] = int64(b.Classes[i])
	}
	return out
}
