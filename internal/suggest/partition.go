package suggest

import (
	"context"
	"fmt"

	"harshagw/suggester/internal/popularity"
	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/search"
	"harshagw/suggester/internal/segment"
)

// SearchPartition scores every term the predicate selects in part and
// returns the best ResultSize of them by descending score. q is the
// constraint, already rewritten. Reading the dictionary or postings can
// fail; the error is returned and no items are.
func (s *Suggester) SearchPartition(ctx context.Context, q query.Query, part segment.Partition, pred *query.SuggestQuery, pop popularity.Store) ([]Item, error) {
	if s.opts.ResultSize <= 0 {
		return nil, nil
	}

	var mc *matchContext
	if !query.IsMatchAll(q) {
		mc = s.evaluate(ctx, q, part)
	}
	phrase := q != nil && q.RequiresPositions()

	field, sel, err := search.Selector(pred)
	if err != nil {
		return nil, err
	}
	terms, err := part.Terms(field, sel)
	if err != nil {
		return nil, fmt.Errorf("terms of %s: %w", field, err)
	}
	defer terms.Close()

	queue := NewQueue(s.opts.ResultSize)
	var scored uint64
	for terms.Next() {
		if scored%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scored++

		term := terms.Term()
		raw, err := scoreTerm(terms, mc, phrase)
		if err != nil {
			return nil, fmt.Errorf("postings %s:%s: %w", field, term, err)
		}
		if raw == 0 {
			continue
		}

		var count uint64
		if pop != nil {
			count = pop.Count(term)
		}
		queue.Insert(Item{
			Term:      term,
			Source:    s.opts.Source,
			Partition: part.ID(),
			Score:     AdjustScore(raw, count, s.opts.PopularityMultiplier),
		})
	}
	if err := terms.Err(); err != nil {
		return nil, fmt.Errorf("terms of %s: %w", field, err)
	}

	s.metrics.termsScored(scored)
	s.logger.Debug("partition searched", "partition", part.ID(), "terms", scored, "kept", queue.Len())
	return queue.Drain(), nil
}
