package segment

import (
	"reflect"
	"testing"

	"github.com/couchbase/vellum/levenshtein"
	"github.com/couchbase/vellum/regexp"

	"harshagw/suggester/internal/analysis"
)

var partitionDocs = []testDoc{
	{"doc1", map[string]any{"title": "the quick brown fox"}},
	{"doc2", map[string]any{"title": "quick brown foxes jump"}},
	{"doc3", map[string]any{"title": "a quiet brown fog"}},
	{"doc4", map[string]any{"body": "only body text"}},
}

// partitionKinds builds the same documents as an on-disk segment view and as
// an in-memory builder partition, both with doc3 deleted.
func partitionKinds(t *testing.T) map[string]Partition {
	t.Helper()

	seg := makeSegment(t, partitionDocs...)

	b := NewBuilder(analysis.NewSimple())
	for _, doc := range partitionDocs {
		b.Add(doc.id, doc.fields)
	}
	b.Delete("doc3")

	return map[string]Partition{
		"segment": seg.View(newTestBitmap(2)),
		"memory":  b.Partition("mem"),
	}
}

func collectTerms(t *testing.T, p Partition, field string, sel Selector) []string {
	t.Helper()
	it, err := p.Terms(field, sel)
	if err != nil {
		t.Fatalf("Terms error: %v", err)
	}
	defer it.Close()

	var terms []string
	for it.Next() {
		terms = append(terms, it.Term())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	return terms
}

func docFreq(t *testing.T, p Partition, field, term string) uint64 {
	t.Helper()
	it, err := p.Terms(field, RangeSelector(term, term+"\x00"))
	if err != nil {
		t.Fatalf("Terms error: %v", err)
	}
	defer it.Close()
	if !it.Next() {
		return 0
	}
	n, err := it.DocFreq()
	if err != nil {
		t.Fatalf("DocFreq error: %v", err)
	}
	return n
}

func TestPartition_TermsAll(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			got := collectTerms(t, p, "title", All())
			want := []string{"a", "brown", "fog", "fox", "foxes", "jump", "quick", "quiet", "the"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestPartition_PrefixSelector(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			got := collectTerms(t, p, "title", PrefixSelector("fo"))
			want := []string{"fog", "fox", "foxes"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
			if got := collectTerms(t, p, "title", PrefixSelector("zz")); len(got) != 0 {
				t.Errorf("expected no terms, got %v", got)
			}
		})
	}
}

func TestPartition_RangeSelector(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			got := collectTerms(t, p, "title", RangeSelector("fox", "quick"))
			want := []string{"fox", "foxes", "jump"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestPartition_RegexSelector(t *testing.T) {
	re, err := regexp.New("qu.*")
	if err != nil {
		t.Fatalf("regexp: %v", err)
	}
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			got := collectTerms(t, p, "title", AutomatonSelector(re))
			want := []string{"quick", "quiet"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestPartition_FuzzySelector(t *testing.T) {
	lb, err := levenshtein.NewLevenshteinAutomatonBuilder(1, true)
	if err != nil {
		t.Fatalf("levenshtein builder: %v", err)
	}
	dfa, err := lb.BuildDfa("fob", 1)
	if err != nil {
		t.Fatalf("BuildDfa: %v", err)
	}
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			got := collectTerms(t, p, "title", AutomatonSelector(dfa))
			want := []string{"fog", "fox"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestPartition_MissingField(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			if got := collectTerms(t, p, "missing", All()); len(got) != 0 {
				t.Errorf("expected no terms, got %v", got)
			}
			it, err := p.Postings("missing", "fox", true)
			if err != nil {
				t.Fatalf("Postings error: %v", err)
			}
			if it.Next() {
				t.Error("expected empty postings")
			}
		})
	}
}

func TestPartition_DocFreqExcludesDeleted(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			if n := docFreq(t, p, "title", "brown"); n != 2 {
				t.Errorf("docFreq(brown): got %d, want 2", n)
			}
			// "fog" only occurs in the deleted doc, the dictionary still has it.
			if n := docFreq(t, p, "title", "fog"); n != 0 {
				t.Errorf("docFreq(fog): got %d, want 0", n)
			}
			if n := docFreq(t, p, "title", "quick"); n != 2 {
				t.Errorf("docFreq(quick): got %d, want 2", n)
			}
		})
	}
}

func TestPartition_LiveDocs(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			if p.MaxDoc() != 4 {
				t.Errorf("MaxDoc: got %d, want 4", p.MaxDoc())
			}
			if got := p.LiveDocs().ToArray(); !reflect.DeepEqual(got, []uint32{0, 1, 3}) {
				t.Errorf("live docs: got %v", got)
			}
		})
	}
}

func TestPartition_PostingsPositions(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			it, err := p.Postings("title", "brown", true)
			if err != nil {
				t.Fatalf("Postings error: %v", err)
			}
			var docs []uint64
			var positions [][]uint64
			for it.Next() {
				docs = append(docs, it.DocNum())
				positions = append(positions, it.Positions())
			}
			if !reflect.DeepEqual(docs, []uint64{0, 1}) {
				t.Errorf("docs: got %v, want [0 1]", docs)
			}
			if !reflect.DeepEqual(positions, [][]uint64{{2}, {1}}) {
				t.Errorf("positions: got %v", positions)
			}

			it, err = p.Postings("title", "brown", false)
			if err != nil {
				t.Fatalf("Postings error: %v", err)
			}
			for it.Next() {
				if it.Positions() != nil {
					t.Errorf("doc %d: positions decoded without request", it.DocNum())
				}
				if it.Freq() != 1 {
					t.Errorf("doc %d: freq %d, want 1", it.DocNum(), it.Freq())
				}
			}
		})
	}
}

func TestPartition_TermIteratorPostings(t *testing.T) {
	for name, p := range partitionKinds(t) {
		t.Run(name, func(t *testing.T) {
			it, err := p.Terms("title", PrefixSelector("fox"))
			if err != nil {
				t.Fatalf("Terms error: %v", err)
			}
			defer it.Close()

			got := map[string][]uint64{}
			for it.Next() {
				postings, err := it.Postings(false)
				if err != nil {
					t.Fatalf("Postings error: %v", err)
				}
				for postings.Next() {
					got[it.Term()] = append(got[it.Term()], postings.DocNum())
				}
			}
			want := map[string][]uint64{"fox": {0}, "foxes": {1}}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestSelector_Matches(t *testing.T) {
	re, err := regexp.New("b.*n")
	if err != nil {
		t.Fatalf("regexp: %v", err)
	}
	tests := []struct {
		sel  Selector
		term string
		want bool
	}{
		{All(), "anything", true},
		{PrefixSelector("br"), "brown", true},
		{PrefixSelector("br"), "bq", false},
		{RangeSelector("b", "c"), "c", false},
		{RangeSelector("b", ""), "zzz", true},
		{AutomatonSelector(re), "brown", true},
		{AutomatonSelector(re), "browns", false},
	}
	for _, tt := range tests {
		if got := tt.sel.Matches([]byte(tt.term)); got != tt.want {
			t.Errorf("Matches(%q) with %+v = %v, want %v", tt.term, tt.sel, got, tt.want)
		}
	}
}
