package suggest

import (
	"math/rand"
	"reflect"
	"slices"
	"testing"
)

func TestMerge_FitsReturnsAllSorted(t *testing.T) {
	lists := [][]Item{
		{{Term: "alpha", Partition: "p1", Score: 5}},
		{{Term: "alpha", Partition: "p2", Score: 3}, {Term: "beta", Partition: "p2", Score: 1}},
		nil,
	}

	got := Merge(lists, 10)
	want := []Item{
		{Term: "alpha", Partition: "p1", Score: 5},
		{Term: "alpha", Partition: "p2", Score: 3},
		{Term: "beta", Partition: "p2", Score: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func TestMerge_Truncates(t *testing.T) {
	lists := [][]Item{
		{{Term: "a", Score: 9}, {Term: "b", Score: 2}},
		{{Term: "c", Score: 7}, {Term: "d", Score: 4}},
	}

	if got, want := terms(Merge(lists, 3)), []string{"a", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
	if got := Merge(lists, 0); len(got) != 0 {
		t.Errorf("Merge with size 0 = %v, want empty", got)
	}
}

// TestMerge_MatchesGlobalTopK truncates random partitions locally, merges,
// and compares with sorting everything at once.
func TestMerge_MatchesGlobalTopK(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 200; round++ {
		size := rng.Intn(8)
		var all []Item
		var lists [][]Item
		numParts := 1 + rng.Intn(5)
		for p := 0; p < numParts; p++ {
			q := NewQueue(size)
			numTerms := rng.Intn(20)
			for i := 0; i < numTerms; i++ {
				it := Item{Term: string(rune('a' + i)), Partition: string(rune('0' + p)), Score: uint64(rng.Intn(50))}
				all = append(all, it)
				q.Insert(it)
			}
			lists = append(lists, q.Drain())
		}

		got := Merge(lists, size)

		slices.SortFunc(all, func(a, b Item) int { return int(b.Score) - int(a.Score) })
		want := all[:min(size, len(all))]

		if len(got) != len(want) {
			t.Fatalf("round %d: got %d items, want %d", round, len(got), len(want))
		}
		for i := range got {
			if got[i].Score != want[i].Score {
				t.Fatalf("round %d: scores %v, want %v", round, scores(got), scores(want))
			}
		}
	}
}

func scores(items []Item) []uint64 {
	out := make([]uint64, len(items))
	for i, it := range items {
		out[i] = it.Score
	}
	return out
}
