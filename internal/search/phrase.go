package search

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/query"
)

// phraseResult finds documents where the phrase terms occur at consecutive
// positions. Each match contributes valid positions: the slot position when
// the phrase has a slot, otherwise every position the match spans.
func (s *Searcher) phraseResult(ctx context.Context, q *query.PhraseQuery) (*Result, error) {
	terms := q.Terms
	if len(terms) == 0 {
		terms = strings.Fields(q.Phrase)
	}
	if len(terms) == 0 {
		return &Result{Docs: roaring.New(), isPhrase: true}, nil
	}

	// docNum -> positions of each phrase term
	var docPositions map[uint64][][]uint64
	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := s.part.Postings(q.Field, term, true)
		if err != nil {
			return nil, fmt.Errorf("postings %s:%s: %w", q.Field, term, err)
		}

		if i == 0 {
			docPositions = make(map[uint64][][]uint64)
			for it.Next() {
				positions := make([][]uint64, len(terms))
				positions[0] = it.Positions()
				docPositions[it.DocNum()] = positions
			}
		} else {
			seen := make(map[uint64]bool, len(docPositions))
			for it.Next() {
				if positions, ok := docPositions[it.DocNum()]; ok {
					positions[i] = it.Positions()
					seen[it.DocNum()] = true
				}
			}
			for docNum := range docPositions {
				if !seen[docNum] {
					delete(docPositions, docNum)
				}
			}
		}
		if len(docPositions) == 0 {
			return &Result{Docs: roaring.New(), isPhrase: true}, nil
		}
	}

	result := &Result{Docs: roaring.New(), positions: make(Positions), isPhrase: true}
	for docNum, positions := range docPositions {
		starts := phraseMatches(positions)
		if len(starts) == 0 {
			continue
		}

		valid := roaring.New()
		for _, start := range starts {
			if q.Slot != nil {
				valid.Add(uint32(start + uint64(*q.Slot)))
				continue
			}
			valid.AddRange(start, start+uint64(len(terms)))
		}
		result.Docs.Add(uint32(docNum))
		result.positions[uint32(docNum)] = valid
	}

	return result, nil
}

// phraseMatches returns every start position of positions[0] at which each
// following term occurs at the next position. Position lists are sorted.
func phraseMatches(positions [][]uint64) []uint64 {
	if len(positions) == 0 {
		return nil
	}

	var starts []uint64
	for _, start := range positions[0] {
		ok := true
		for i := 1; i < len(positions); i++ {
			if _, found := slices.BinarySearch(positions[i], start+uint64(i)); !found {
				ok = false
				break
			}
		}
		if ok {
			starts = append(starts, start)
		}
	}
	return starts
}
