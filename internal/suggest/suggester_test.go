package suggest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/prometheus/client_golang/prometheus"

	"harshagw/suggester/internal/analysis"
	"harshagw/suggester/internal/popularity"
	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/segment"
)

// newPartition indexes each text as the body of one document.
func newPartition(t *testing.T, id string, texts ...string) segment.Partition {
	t.Helper()
	b := segment.NewBuilder(analysis.NewSimple())
	for i, text := range texts {
		b.Add(fmt.Sprintf("%s-%d", id, i), map[string]any{"body": text})
	}
	return b.Partition(id)
}

func newSuggester(size int) *Suggester {
	opts := DefaultOptions()
	opts.ResultSize = size
	opts.Source = "test"
	return New(opts, nil, nil)
}

func prefix(value string) *query.SuggestQuery {
	return &query.SuggestQuery{Kind: query.SuggestPrefix, Value: value}
}

func itemScores(items []Item) map[string]uint64 {
	out := make(map[string]uint64, len(items))
	for _, it := range items {
		out[it.Term+"@"+it.Partition] = it.Score
	}
	return out
}

func TestSearch_DocFreqWithoutConstraint(t *testing.T) {
	part := newPartition(t, "p1", "apple pie", "apple tart apple", "apricot jam", "banana")

	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, Request{Predicate: prefix("ap")})

	want := []Item{
		{Term: "apple", Source: "test", Partition: "p1", Score: 2},
		{Term: "apricot", Source: "test", Partition: "p1", Score: 1},
	}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %+v, want %+v", items, want)
	}
}

func TestSearch_SameTermInTwoPartitions(t *testing.T) {
	p1 := newPartition(t, "p1", "alpha", "alpha", "alpha", "alpha", "alpha")
	p2 := newPartition(t, "p2", "alpha", "alpha", "alpha")

	items := newSuggester(10).Search(context.Background(), []segment.Partition{p1, p2}, Request{Predicate: prefix("al")})

	want := map[string]uint64{"alpha@p1": 5, "alpha@p2": 3}
	if got := itemScores(items); !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
	if items[0].Partition != "p1" {
		t.Errorf("higher score should come first, got %+v", items)
	}
}

func TestSearch_PopularityBoost(t *testing.T) {
	part := newPartition(t, "p1", "foo", "fob", "fob", "fob")
	pop := popularity.CountsOf(map[string]uint64{"foo": 2})

	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, Request{
		Predicate:  prefix("fo"),
		Popularity: pop,
	})

	if len(items) != 2 || items[0].Term != "foo" || items[0].Score != 2001 {
		t.Fatalf("items = %+v, want foo scored 2001 first", items)
	}
	if items[1].Term != "fob" || items[1].Score != 3 {
		t.Errorf("items[1] = %+v, want fob scored 3", items[1])
	}
}

func TestSearch_FilteredDocFreq(t *testing.T) {
	part := newPartition(t, "p1",
		"quick fox jumps",
		"quick fox runs",
		"lazy fox jumps",
		"quick dog jumps",
	)
	req := Request{
		Query:     &query.TermQuery{Term: "fox"},
		Predicate: prefix("j"),
	}

	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, req)
	if got, want := itemScores(items), map[string]uint64{"jumps@p1": 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}

	req.Query = &query.BoolQuery{Must: []query.Query{
		&query.TermQuery{Term: "fox"},
		&query.TermQuery{Term: "quick"},
	}}
	items = newSuggester(10).Search(context.Background(), []segment.Partition{part}, req)
	if got, want := itemScores(items), map[string]uint64{"jumps@p1": 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
}

func TestSearch_PhraseOverlap(t *testing.T) {
	part := newPartition(t, "p1",
		"brown bear",
		"the quick fox",
		"brown quick",
		"a b c d quick brown fox brown",
	)
	req := Request{
		Query:     &query.PhraseQuery{Phrase: "quick brown"},
		Predicate: prefix("br"),
	}

	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, req)

	// Only the brown at position 5 of document 3 lies inside the match.
	if got, want := itemScores(items), map[string]uint64{"brown@p1": 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
}

func TestSearch_PhraseInsideBoolean(t *testing.T) {
	part := newPartition(t, "p1",
		"red quick brown fox",
		"blue quick brown fox",
		"red brown",
	)
	req := Request{
		Query: &query.BoolQuery{Must: []query.Query{
			&query.TermQuery{Term: "red"},
			&query.PhraseQuery{Phrase: "quick brown"},
		}},
		Predicate: prefix(""),
	}

	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, req)
	want := map[string]uint64{"quick@p1": 1, "brown@p1": 1}
	if got := itemScores(items); !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
}

func TestSearch_UnreachablePhraseScoresZero(t *testing.T) {
	part := newPartition(t, "p1",
		"red quick brown",
		"red fox brown",
		"blue fox brown",
	)
	// The phrase sits two levels down, so no phrase positions are reachable
	// and no term can score.
	req := Request{
		Query: &query.BoolQuery{Must: []query.Query{
			&query.TermQuery{Term: "red"},
			&query.BoolQuery{Should: []query.Query{
				&query.PhraseQuery{Phrase: "quick brown"},
				&query.TermQuery{Term: "fox"},
			}},
		}},
		Predicate: prefix("br"),
	}

	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, req)
	if len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}

	// Without the phrase the same documents count by filtered df.
	req.Query = &query.BoolQuery{Must: []query.Query{
		&query.TermQuery{Term: "red"},
		&query.BoolQuery{Should: []query.Query{
			&query.TermQuery{Term: "quick"},
			&query.TermQuery{Term: "fox"},
		}},
	}}
	items = newSuggester(10).Search(context.Background(), []segment.Partition{part}, req)
	if got, want := itemScores(items), map[string]uint64{"brown@p1": 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}
}

func TestSearch_PhraseSlotSuggestsNextWord(t *testing.T) {
	part := newPartition(t, "p1",
		"quick brown fox",
		"quick brown dog",
		"quick red fox",
		"brown quick",
	)

	items, err := newSuggester(10).Suggest(context.Background(), []segment.Partition{part}, `"quick `, nil)
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	want := []Item{
		{Term: "brown", Source: "test", Partition: "p1", Score: 2},
		{Term: "red", Source: "test", Partition: "p1", Score: 1},
	}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %+v, want %+v", items, want)
	}
}

func TestSearch_ResultSize(t *testing.T) {
	part := newPartition(t, "p1", "aa ab ac ad", "aa ab ac", "aa ab", "aa")
	parts := []segment.Partition{part}

	for size := 0; size <= 5; size++ {
		items := newSuggester(size).Search(context.Background(), parts, Request{Predicate: prefix("a")})
		if len(items) != min(size, 4) {
			t.Errorf("size %d: got %d items", size, len(items))
		}
	}

	items := newSuggester(2).Search(context.Background(), parts, Request{Predicate: prefix("a")})
	if got, want := terms(items), []string{"aa", "ab"}; !reflect.DeepEqual(got, want) {
		t.Errorf("top 2 = %v, want %v", got, want)
	}
}

func TestSearch_DegenerateConstraints(t *testing.T) {
	part := newPartition(t, "p1", "apple", "apple pie")
	parts := []segment.Partition{part}
	s := newSuggester(10)

	// Match-all behaves like no constraint.
	items := s.Search(context.Background(), parts, Request{Query: &query.MatchAllQuery{}, Predicate: prefix("ap")})
	if len(items) != 1 || items[0].Score != 2 {
		t.Errorf("match-all: items = %+v", items)
	}

	// A suggestion predicate as the constraint matches nothing.
	items = s.Search(context.Background(), parts, Request{Query: prefix("pi"), Predicate: prefix("ap")})
	if len(items) != 0 {
		t.Errorf("predicate constraint: items = %+v, want none", items)
	}

	// A constraint that cannot be rewritten yields nothing.
	items = s.Search(context.Background(), parts, Request{
		Query:     &query.BoolQuery{MustNot: []query.Query{&query.TermQuery{Term: "pie"}}},
		Predicate: prefix("ap"),
	})
	if len(items) != 0 {
		t.Errorf("negative-only constraint: items = %+v, want none", items)
	}

	// So does a predicate that does not compile.
	items = s.Search(context.Background(), parts, Request{Predicate: &query.SuggestQuery{Kind: query.SuggestRegex, Value: "a("}})
	if len(items) != 0 {
		t.Errorf("bad regex: items = %+v, want none", items)
	}
}

// failingPartition fails every dictionary read.
type failingPartition struct{ segment.Partition }

var errBroken = errors.New("broken partition")

func (failingPartition) ID() string { return "broken" }

func (failingPartition) Terms(string, segment.Selector) (segment.TermIterator, error) {
	return nil, errBroken
}

func TestSearch_FailedPartitionIsSkipped(t *testing.T) {
	good := newPartition(t, "good", "apple")
	reg := prometheus.NewRegistry()
	s := New(Options{Field: "body", ResultSize: 10}, nil, NewMetrics(reg))

	items := s.Search(context.Background(), []segment.Partition{failingPartition{}, good}, Request{Predicate: prefix("ap")})
	if got, want := itemScores(items), map[string]uint64{"apple@good": 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("scores = %v, want %v", got, want)
	}

	if _, err := s.SearchPartition(context.Background(), nil, failingPartition{}, &query.SuggestQuery{Field: "body"}, nil); !errors.Is(err, errBroken) {
		t.Errorf("SearchPartition error = %v, want errBroken", err)
	}

	if got := counterValue(t, reg, "suggest_partition_failures_total", "postings"); got != 1 {
		t.Errorf("partition failures = %v, want 1", got)
	}
	if got := counterValue(t, reg, "suggest_requests_total", "hit"); got != 1 {
		t.Errorf("hit requests = %v, want 1", got)
	}
}

// flakyTerms wraps a partition so that enumeration breaks on the second
// term, either in Postings or by stopping with an error.
type flakyTerms struct {
	segment.Partition
	failPostings bool
}

func (p flakyTerms) Terms(field string, sel segment.Selector) (segment.TermIterator, error) {
	it, err := p.Partition.Terms(field, sel)
	if err != nil {
		return nil, err
	}
	return &flakyTermIterator{TermIterator: it, failPostings: p.failPostings}, nil
}

type flakyTermIterator struct {
	segment.TermIterator
	failPostings bool
	n            int
}

func (it *flakyTermIterator) Next() bool {
	it.n++
	if it.n == 2 && !it.failPostings {
		return false
	}
	return it.TermIterator.Next()
}

func (it *flakyTermIterator) Postings(withPositions bool) (segment.PostingsIterator, error) {
	if it.n == 2 && it.failPostings {
		return nil, errBroken
	}
	return it.TermIterator.Postings(withPositions)
}

func (it *flakyTermIterator) Err() error {
	if it.n == 2 && !it.failPostings {
		return errBroken
	}
	return it.TermIterator.Err()
}

func TestSearch_EnumerationFailureDropsPartition(t *testing.T) {
	tests := []struct {
		name         string
		failPostings bool
		constraint   query.Query
	}{
		{"postings", true, &query.TermQuery{Term: "pie"}},
		{"iterator", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky := flakyTerms{
				Partition:    newPartition(t, "flaky", "apple pie", "apricot pie", "aptitude pie"),
				failPostings: tt.failPostings,
			}
			good := newPartition(t, "good", "apple pie")
			reg := prometheus.NewRegistry()
			s := New(Options{Field: "body", ResultSize: 10}, nil, NewMetrics(reg))

			req := Request{Query: tt.constraint, Predicate: prefix("ap")}
			items := s.Search(context.Background(), []segment.Partition{flaky, good}, req)
			if got, want := itemScores(items), map[string]uint64{"apple@good": 1}; !reflect.DeepEqual(got, want) {
				t.Errorf("scores = %v, want %v", got, want)
			}
			if got := counterValue(t, reg, "suggest_partition_failures_total", "postings"); got != 1 {
				t.Errorf("partition failures = %v, want 1", got)
			}

			q, pred, err := s.rewrite(req)
			if err != nil {
				t.Fatalf("rewrite error: %v", err)
			}
			if _, err := s.SearchPartition(context.Background(), q, flaky, pred, nil); !errors.Is(err, errBroken) {
				t.Errorf("SearchPartition error = %v, want errBroken", err)
			}
		})
	}
}

// brokenPostings serves the dictionary but fails every constraint lookup.
type brokenPostings struct{ segment.Partition }

func (brokenPostings) Postings(string, string, bool) (segment.PostingsIterator, error) {
	return nil, errBroken
}

func TestSearch_ConstraintFailureEmptiesPartition(t *testing.T) {
	part := brokenPostings{newPartition(t, "p1", "apple pie")}
	items := newSuggester(10).Search(context.Background(), []segment.Partition{part}, Request{
		Query:     &query.TermQuery{Term: "pie"},
		Predicate: prefix("ap"),
	})
	if len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
}

func TestSearch_CanceledContext(t *testing.T) {
	part := newPartition(t, "p1", "apple")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if items := newSuggester(10).Search(ctx, []segment.Partition{part}, Request{Predicate: prefix("ap")}); len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
}

func TestPhrasePositions_LastPhraseClauseWins(t *testing.T) {
	part := newPartition(t, "p1", "a b c d")
	s := newSuggester(10)

	q := &query.BoolQuery{Should: []query.Query{
		&query.PhraseQuery{Field: "body", Phrase: "a b", Terms: []string{"a", "b"}},
		&query.PhraseQuery{Field: "body", Phrase: "c d", Terms: []string{"c", "d"}},
	}}
	mc := s.evaluate(context.Background(), q, part)
	if !mc.hasPhrase {
		t.Fatal("expected phrase positions")
	}
	if got := mc.positions.At(0); !got.Equals(roaring.BitmapOf(2, 3)) {
		t.Errorf("positions = %v, want [2 3]", got.ToArray())
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
