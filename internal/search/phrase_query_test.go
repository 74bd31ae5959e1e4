package search

import (
	"reflect"
	"testing"

	"harshagw/suggester/internal/query"
)

func TestPhraseQuery_RecordsSpannedPositions(t *testing.T) {
	forEachPartition(t, func(t *testing.T, s *Searcher) {
		r := run(t, s, `body:"hello from go"`)
		assertDocs(t, r, 2)

		positions, ok := r.PhrasePositions()
		if !ok {
			t.Fatal("expected phrase positions")
		}
		if got := positions.At(2).ToArray(); !reflect.DeepEqual(got, []uint32{0, 1, 2}) {
			t.Errorf("positions = %v, want [0 1 2]", got)
		}
		if positions.At(0) != nil {
			t.Error("non-matching doc should have no positions")
		}
	})
}

func TestPhraseQuery_SlotRecordsNextPosition(t *testing.T) {
	forEachPartition(t, func(t *testing.T, s *Searcher) {
		slot := 1
		q := &query.PhraseQuery{Field: "title", Phrase: "hello", Terms: []string{"hello"}, Slot: &slot}
		r := runQuery(t, s, q)
		assertDocs(t, r, 0, 2)

		positions, _ := r.PhrasePositions()
		for _, doc := range []uint32{0, 2} {
			if got := positions.At(doc).ToArray(); !reflect.DeepEqual(got, []uint32{1}) {
				t.Errorf("doc %d positions = %v, want [1]", doc, got)
			}
		}
	})
}

func TestPhraseQuery_RepeatedMatches(t *testing.T) {
	idx := createTestIndex(t)
	if err := idx.Index("doc6", map[string]any{"body": "go fast go fast go"}); err != nil {
		t.Fatalf("Index error: %v", err)
	}
	s := New(onlyPartition(t, idx))

	r := run(t, s, `body:"go fast"`)
	assertDocs(t, r, 5)

	positions, _ := r.PhrasePositions()
	if got := positions.At(5).ToArray(); !reflect.DeepEqual(got, []uint32{0, 1, 2, 3}) {
		t.Errorf("positions = %v, want [0 1 2 3]", got)
	}
}

func TestPhraseMatches(t *testing.T) {
	tests := []struct {
		name      string
		positions [][]uint64
		want      []uint64
	}{
		{"empty", nil, nil},
		{"single term", [][]uint64{{3, 7}}, []uint64{3, 7}},
		{"adjacent", [][]uint64{{0, 4}, {1, 9}}, []uint64{0}},
		{"gap", [][]uint64{{0}, {2}}, nil},
		{"three terms", [][]uint64{{1, 5}, {2, 6}, {3}}, []uint64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := phraseMatches(tt.positions); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("phraseMatches = %v, want %v", got, tt.want)
			}
		})
	}
}
