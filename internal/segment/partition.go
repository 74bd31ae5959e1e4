package segment

import (
	"bytes"
	"errors"

	"github.com/RoaringBitmap/roaring"
	"github.com/couchbase/vellum"
)

// ErrFieldNotFound is returned when a partition has no dictionary for a field.
var ErrFieldNotFound = errors.New("field not found")

// Partition is a read-only view of one independently readable slice of the
// index. Implementations are safe for concurrent use.
type Partition interface {
	// ID identifies the partition in logs and results.
	ID() string

	// MaxDoc is one past the largest docNum the partition can return.
	MaxDoc() uint64

	// LiveDocs returns every docNum that is not deleted. Callers must not
	// modify the returned bitmap.
	LiveDocs() *roaring.Bitmap

	// Terms enumerates the field's dictionary in ascending byte order,
	// restricted by sel. A field missing from the partition yields no terms.
	Terms(field string, sel Selector) (TermIterator, error)

	// Postings returns the live postings of a single term. Positions are
	// decoded only when withPositions is set. A missing term yields an empty
	// iterator.
	Postings(field, term string, withPositions bool) (PostingsIterator, error)
}

// TermIterator walks a term dictionary. It starts before the first term.
type TermIterator interface {
	Next() bool
	Term() string

	// DocFreq counts live documents containing the current term.
	DocFreq() (uint64, error)

	// Postings returns the current term's live postings.
	Postings(withPositions bool) (PostingsIterator, error)

	// Err reports the error that stopped iteration, if any.
	Err() error
	Close() error
}

// PostingsIterator walks a postings list in ascending docNum order.
type PostingsIterator interface {
	Next() bool
	DocNum() uint64
	Freq() uint64

	// Positions of the term in the current document, ascending. Nil when
	// positions were not requested.
	Positions() []uint64
}

// Selector restricts which dictionary terms an enumeration visits.
// Start is inclusive and End exclusive; nil bounds are open. A nil Automaton
// accepts every term inside the bounds.
type Selector struct {
	Start     []byte
	End       []byte
	Automaton vellum.Automaton
}

// All selects every term of a field.
func All() Selector { return Selector{} }

// PrefixSelector selects terms starting with prefix.
func PrefixSelector(prefix string) Selector {
	start := []byte(prefix)
	return Selector{Start: start, End: PrefixSuccessor(start)}
}

// RangeSelector selects terms in [start, end). Empty strings are open bounds.
func RangeSelector(start, end string) Selector {
	var sel Selector
	if start != "" {
		sel.Start = []byte(start)
	}
	if end != "" {
		sel.End = []byte(end)
	}
	return sel
}

// AutomatonSelector selects terms accepted by aut.
func AutomatonSelector(aut vellum.Automaton) Selector {
	return Selector{Automaton: aut}
}

// Matches reports whether term falls inside the selector. Used by partitions
// that do not keep their dictionary in an FST.
func (s Selector) Matches(term []byte) bool {
	if s.Start != nil && bytes.Compare(term, s.Start) < 0 {
		return false
	}
	if s.End != nil && bytes.Compare(term, s.End) >= 0 {
		return false
	}
	if s.Automaton == nil {
		return true
	}

	aut := s.Automaton
	state := aut.Start()
	for _, b := range term {
		if !aut.CanMatch(state) {
			return false
		}
		if aut.WillAlwaysMatch(state) {
			return true
		}
		state = aut.Accept(state, b)
	}
	return aut.IsMatch(state)
}

// postingsList iterates decoded postings.
type postingsList struct {
	postings []Posting
	i        int
}

func newPostingsList(postings []Posting) *postingsList {
	return &postingsList{postings: postings, i: -1}
}

func (p *postingsList) Next() bool {
	if p.i+1 >= len(p.postings) {
		p.i = len(p.postings)
		return false
	}
	p.i++
	return true
}

func (p *postingsList) DocNum() uint64 { return p.postings[p.i].DocNum }
func (p *postingsList) Freq() uint64 { return p.postings[p.i].Frequency }
func (p *postingsList) Positions() []uint64 { return p.postings[p.i].Positions }

// filterDeleted drops postings of deleted documents. The input is never
// modified since in-memory partitions share it with the builder.
func filterDeleted(postings []Posting, deleted *roaring.Bitmap) []Posting {
	if deleted == nil || deleted.IsEmpty() {
		return postings
	}
	live := make([]Posting, 0, len(postings))
	for _, p := range postings {
		if !deleted.Contains(uint32(p.DocNum)) {
			live = append(live, p)
		}
	}
	return live
}

// liveRange returns [0, maxDoc) without the deleted docNums.
func liveRange(maxDoc uint64, deleted *roaring.Bitmap) *roaring.Bitmap {
	live := roaring.New()
	live.AddRange(0, maxDoc)
	if deleted != nil && !deleted.IsEmpty() {
		live.AndNot(deleted)
	}
	return live
}

// emptyTerms is returned for fields a partition does not contain.
type emptyTerms struct{}

func (emptyTerms) Next() bool { return false }
func (emptyTerms) Term() string { return "" }
func (emptyTerms) DocFreq() (uint64, error) { return 0, nil }
func (emptyTerms) Postings(bool) (PostingsIterator, error) { return newPostingsList(nil), nil }
func (emptyTerms) Err() error { return nil }
func (emptyTerms) Close() error { return nil }
