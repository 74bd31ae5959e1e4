// Package suggest ranks term completions for partially typed queries. Each
// partition of an index snapshot is scored on its own, in parallel, and the
// per-partition top lists are merged into one.
package suggest

import (
	"context"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"harshagw/suggester/internal/analysis"
	"harshagw/suggester/internal/logger"
	"harshagw/suggester/internal/popularity"
	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/search"
	"harshagw/suggester/internal/segment"
)

// Options configures a Suggester.
type Options struct {
	// Field is used for queries and predicates that name none.
	Field string
	// ResultSize is the number of items returned. Zero returns nothing.
	ResultSize int
	// PopularityMultiplier weighs each recorded search of a term. Zero
	// means DefaultPopularityMultiplier.
	PopularityMultiplier uint64
	// Workers bounds how many partitions are scored at once. Zero or less
	// means GOMAXPROCS.
	Workers int
	// Source is copied into every item.
	Source string
	// Analyzer rewrites constraint text. Nil means analysis.NewSimple.
	Analyzer analysis.Analyzer
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Field:                "body",
		ResultSize:           10,
		PopularityMultiplier: DefaultPopularityMultiplier,
		Source:               "default",
	}
}

// Request is one suggestion lookup.
type Request struct {
	// Query constrains suggestions to documents it matches. Nil means no
	// constraint.
	Query query.Query
	// Predicate selects the candidate terms. Required.
	Predicate *query.SuggestQuery
	// Popularity boosts previously searched terms. Nil counts every term 0.
	Popularity popularity.Store
}

// Suggester produces ranked term completions. It is safe for concurrent
// use.
type Suggester struct {
	opts    Options
	logger  *log.Logger
	metrics *Metrics
}

// New creates a Suggester. logger and metrics may be nil.
func New(opts Options, l *log.Logger, metrics *Metrics) *Suggester {
	if opts.PopularityMultiplier == 0 {
		opts.PopularityMultiplier = DefaultPopularityMultiplier
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.NewSimple()
	}
	return &Suggester{opts: opts, logger: logger.OrDiscard(l), metrics: metrics}
}

// Options returns the effective options.
func (s *Suggester) Options() Options { return s.opts }

// Search returns up to ResultSize suggestions over parts. It never fails: a
// constraint that cannot be rewritten yields no items, and a partition that
// cannot be read contributes none. Cancelling ctx stops unfinished
// partitions; the finished ones are still merged.
func (s *Suggester) Search(ctx context.Context, parts []segment.Partition, req Request) []Item {
	start := time.Now()
	if s.opts.ResultSize <= 0 || req.Predicate == nil {
		s.metrics.observe("empty", start)
		return nil
	}

	q, pred, err := s.rewrite(req)
	if err != nil {
		s.logger.Warn("could not rewrite query", "query", req.Query, "err", err)
		s.metrics.observe("rewrite_error", start)
		return nil
	}

	lists := make([][]Item, len(parts))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, part := range parts {
		g.Go(func() error {
			items, err := s.SearchPartition(ctx, q, part, pred, req.Popularity)
			if err != nil {
				s.logger.Warn("cannot perform suggester search", "partition", part.ID(), "err", err)
				s.metrics.partitionFailed("postings")
				return nil
			}
			lists[i] = items
			return nil
		})
	}
	g.Wait()

	items := Merge(lists, s.opts.ResultSize)
	if len(items) == 0 {
		s.metrics.observe("empty", start)
	} else {
		s.metrics.observe("hit", start)
	}
	return items
}

// Suggest parses raw typed input into a constraint and predicate and
// searches with them. Input with nothing to complete returns
// query.ErrEmptyPredicate.
func (s *Suggester) Suggest(ctx context.Context, parts []segment.Partition, input string, pop popularity.Store) ([]Item, error) {
	q, pred, err := query.ParseSuggestion(input, s.opts.Field, s.opts.Analyzer)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, parts, Request{Query: q, Predicate: pred, Popularity: pop}), nil
}

// rewrite normalizes the constraint, fills in the predicate's field and
// checks that the predicate compiles.
func (s *Suggester) rewrite(req Request) (query.Query, *query.SuggestQuery, error) {
	pred := *req.Predicate
	if pred.Field == "" {
		pred.Field = s.opts.Field
	}
	if _, _, err := search.Selector(&pred); err != nil {
		return nil, nil, err
	}

	q, err := query.Rewrite(req.Query, s.opts.Analyzer, s.opts.Field)
	if err != nil {
		return nil, nil, err
	}
	return q, &pred, nil
}
