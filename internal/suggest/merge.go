package suggest

import (
	"cmp"
	"slices"
)

// Merge combines per-partition results into the best size items overall.
// Each list must already hold its partition's top size items; the combined
// result is then exact since every term is scored in one partition only.
// Items are returned by descending score, ties in input order.
func Merge(lists [][]Item, size int) []Item {
	if size <= 0 {
		return nil
	}

	total := 0
	for _, l := range lists {
		total += len(l)
	}

	if total <= size {
		merged := make([]Item, 0, total)
		for _, l := range lists {
			merged = append(merged, l...)
		}
		slices.SortStableFunc(merged, func(a, b Item) int {
			return cmp.Compare(b.Score, a.Score)
		})
		return merged
	}

	queue := NewQueue(size)
	for _, l := range lists {
		for _, it := range l {
			queue.Insert(it)
		}
	}
	return queue.Drain()
}
