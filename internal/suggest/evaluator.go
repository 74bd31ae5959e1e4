package suggest

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/search"
	"harshagw/suggester/internal/segment"
)

// matchContext is what a constraining query matched in one partition.
type matchContext struct {
	docs *roaring.Bitmap

	// positions holds the phrase-valid positions when the constraint is a
	// phrase, or has one among its immediate clauses.
	positions search.Positions
	hasPhrase bool
}

func emptyMatch() *matchContext {
	return &matchContext{docs: roaring.New()}
}

// evaluate runs the constraint against part. Suggestion predicates and nil
// queries constrain to nothing. Evaluation failures are logged and yield an
// empty context so that only this partition is affected.
func (s *Suggester) evaluate(ctx context.Context, q query.Query, part segment.Partition) *matchContext {
	switch q.(type) {
	case nil, *query.SuggestQuery:
		return emptyMatch()
	}

	r, err := search.New(part).Run(ctx, q)
	if err != nil {
		s.logger.Warn("could not evaluate constraint", "partition", part.ID(), "query", q.String(), "err", err)
		s.metrics.partitionFailed("constraint")
		return emptyMatch()
	}

	mc := &matchContext{docs: r.Docs}
	mc.positions, mc.hasPhrase = phrasePositions(r)
	if !mc.hasPhrase && q.RequiresPositions() {
		s.logger.Debug("phrase positions not reachable", "partition", part.ID(), "query", q.String())
	}
	return mc
}

// phrasePositions looks for phrase positions on the result itself, then on
// its immediate clauses, where the last phrase clause wins. Deeper clauses
// are not searched.
func phrasePositions(r *search.Result) (search.Positions, bool) {
	if positions, ok := r.PhrasePositions(); ok {
		return positions, true
	}

	var (
		found     search.Positions
		hasPhrase bool
	)
	for _, c := range r.Clauses() {
		if positions, ok := c.PhrasePositions(); ok {
			found, hasPhrase = positions, true
		}
	}
	return found, hasPhrase
}
