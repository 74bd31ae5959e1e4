package search

import (
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// unionAll ORs the sets. Inputs are not modified.
func unionAll(sets []*roaring.Bitmap) *roaring.Bitmap {
	switch len(sets) {
	case 0:
		return roaring.New()
	case 1:
		return sets[0]
	}
	return roaring.FastOr(sets...)
}

// intersectAll ANDs the sets, smallest first, stopping once the running
// result is empty. Inputs are not modified.
func intersectAll(sets []*roaring.Bitmap) *roaring.Bitmap {
	if len(sets) == 0 {
		return roaring.New()
	}
	if len(sets) == 1 {
		return sets[0]
	}

	sorted := slices.Clone(sets)
	slices.SortFunc(sorted, func(a, b *roaring.Bitmap) int {
		ca, cb := a.GetCardinality(), b.GetCardinality()
		switch {
		case ca < cb:
			return -1
		case ca > cb:
			return 1
		}
		return 0
	})

	result := sorted[0].Clone()
	for _, set := range sorted[1:] {
		result.And(set)
		if result.IsEmpty() {
			break
		}
	}
	return result
}
