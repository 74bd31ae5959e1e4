package search

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/query"
)

// boolResult combines clause results: must clauses intersect, should
// clauses union (and narrow the must result when both are present), and
// must-not clauses are subtracted.
func (s *Searcher) boolResult(ctx context.Context, q *query.BoolQuery) (*Result, error) {
	must, mustNot, should := flattenBoolQuery(q)

	if len(must) == 0 && len(should) == 0 {
		if len(mustNot) > 0 {
			return nil, query.ErrNegativeOnly
		}
		return emptyResult(), nil
	}

	result := &Result{}

	mustSets := make([]*roaring.Bitmap, 0, len(must))
	for _, c := range must {
		r, err := s.Run(ctx, c)
		if err != nil {
			return nil, err
		}
		result.clauses = append(result.clauses, r)
		mustSets = append(mustSets, r.Docs)
	}

	shouldSets := make([]*roaring.Bitmap, 0, len(should))
	for _, c := range should {
		r, err := s.Run(ctx, c)
		if err != nil {
			return nil, err
		}
		result.clauses = append(result.clauses, r)
		if !r.Docs.IsEmpty() {
			shouldSets = append(shouldSets, r.Docs)
		}
	}

	var docs *roaring.Bitmap
	switch {
	case len(must) > 0 && len(shouldSets) > 0:
		docs = roaring.And(intersectAll(mustSets), unionAll(shouldSets))
	case len(must) > 0:
		docs = intersectAll(mustSets)
	default:
		docs = unionAll(shouldSets)
	}

	if len(mustNot) > 0 && !docs.IsEmpty() {
		notSets := make([]*roaring.Bitmap, 0, len(mustNot))
		for _, c := range mustNot {
			r, err := s.Run(ctx, c)
			if err != nil {
				return nil, err
			}
			notSets = append(notSets, r.Docs)
		}
		docs = roaring.AndNot(docs, unionAll(notSets))
	}

	result.Docs = docs
	return result, nil
}

// flattenBoolQuery extracts nested MustNot clauses from Must/Should.
// For example, "A AND NOT B" parses as BoolQuery{Must: [A, BoolQuery{MustNot: [B]}]}
// This flattens it to Must: [A], MustNot: [B]
func flattenBoolQuery(q *query.BoolQuery) (must, mustNot, should []query.Query) {
	mustNot = append(mustNot, q.MustNot...)

	for _, m := range q.Must {
		if neg, ok := pureNot(m); ok {
			mustNot = append(mustNot, neg...)
			continue
		}
		must = append(must, m)
	}
	for _, sh := range q.Should {
		if neg, ok := pureNot(sh); ok {
			mustNot = append(mustNot, neg...)
			continue
		}
		should = append(should, sh)
	}

	return must, mustNot, should
}

func pureNot(q query.Query) ([]query.Query, bool) {
	bq, ok := q.(*query.BoolQuery)
	if !ok || len(bq.Must) > 0 || len(bq.Should) > 0 || len(bq.MustNot) == 0 {
		return nil, false
	}
	return bq.MustNot, true
}
