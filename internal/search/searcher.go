// Package search evaluates queries against one partition. It reports which
// documents match and, for phrase queries, which token positions the phrase
// matched in each of them.
package search

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/segment"
)

// Result is the outcome of evaluating one query node in a partition.
type Result struct {
	// Docs holds the matching docNums. Callers must not modify it.
	Docs *roaring.Bitmap

	positions Positions
	isPhrase  bool
	clauses   []*Result
}

// Positions maps a docNum to the token positions a phrase validated in it.
type Positions map[uint32]*roaring.Bitmap

// At returns the valid positions in doc, or nil.
func (p Positions) At(doc uint32) *roaring.Bitmap {
	if p == nil {
		return nil
	}
	return p[doc]
}

// PhrasePositions returns the positions recorded by a phrase query. Results
// of any other query report false.
func (r *Result) PhrasePositions() (Positions, bool) {
	if !r.isPhrase {
		return nil, false
	}
	return r.positions, true
}

// Clauses returns the results of a boolean query's positive clauses, must
// clauses first. Other results have none.
func (r *Result) Clauses() []*Result { return r.clauses }

// Count returns the number of matching documents.
func (r *Result) Count() uint64 { return r.Docs.GetCardinality() }

func emptyResult() *Result {
	return &Result{Docs: roaring.New()}
}

// Searcher evaluates queries against a single partition.
type Searcher struct {
	part segment.Partition
}

// New creates a searcher for part.
func New(part segment.Partition) *Searcher {
	return &Searcher{part: part}
}

// Partition returns the partition the searcher reads.
func (s *Searcher) Partition() segment.Partition { return s.part }

// Run evaluates q. A nil query matches nothing. Queries are expected to be
// rewritten first so that fields are set and text is analyzed.
func (s *Searcher) Run(ctx context.Context, q query.Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q == nil {
		return emptyResult(), nil
	}

	switch v := q.(type) {
	case *query.TermQuery:
		return s.termResult(v.Field, v.Term)
	case *query.PhraseQuery:
		return s.phraseResult(ctx, v)
	case *query.BoolQuery:
		return s.boolResult(ctx, v)
	case *query.MatchAllQuery:
		return &Result{Docs: s.part.LiveDocs().Clone()}, nil
	case *query.MatchNoneQuery:
		return emptyResult(), nil
	case *query.PrefixQuery, *query.WildcardQuery, *query.RegexQuery,
		*query.FuzzyQuery, *query.TermRangeQuery, *query.SuggestQuery:
		return s.multiTermResult(ctx, q)
	default:
		return nil, fmt.Errorf("unknown query type: %T", q)
	}
}
