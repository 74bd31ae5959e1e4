package segment

import (
	"bytes"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Partition freezes the builder's current contents into a read-only
// partition. Later Add and Delete calls on the builder are not visible
// through it.
func (b *Builder) Partition(id string) Partition {
	fields := make(map[string]*memField, len(b.Fields))
	for name, terms := range b.Fields {
		postings := make(map[string][]Posting, len(terms))
		for term, list := range terms {
			// Builder postings are appended in docNum order, and the slice
			// header pins the visible length.
			postings[term] = list[:len(list):len(list)]
		}
		fields[name] = &memField{terms: sortedTerms(terms), postings: postings}
	}

	deleted := b.Deleted.Clone()
	return &memPartition{
		id:      id,
		maxDoc:  b.numDocs,
		fields:  fields,
		deleted: deleted,
		live:    liveRange(b.numDocs, deleted),
	}
}

type memField struct {
	terms    []string
	postings map[string][]Posting
}

type memPartition struct {
	id      string
	maxDoc  uint64
	fields  map[string]*memField
	deleted *roaring.Bitmap
	live    *roaring.Bitmap
}

func (p *memPartition) ID() string { return p.id }
func (p *memPartition) MaxDoc() uint64 { return p.maxDoc }
func (p *memPartition) LiveDocs() *roaring.Bitmap { return p.live }

func (p *memPartition) Terms(field string, sel Selector) (TermIterator, error) {
	f, ok := p.fields[field]
	if !ok {
		return emptyTerms{}, nil
	}
	return &memTermIterator{part: p, field: f, sel: sel, i: -1}, nil
}

func (p *memPartition) Postings(field, term string, withPositions bool) (PostingsIterator, error) {
	f, ok := p.fields[field]
	if !ok {
		return newPostingsList(nil), nil
	}
	return newPostingsList(p.livePostings(f.postings[term], withPositions)), nil
}

func (p *memPartition) livePostings(postings []Posting, withPositions bool) []Posting {
	live := filterDeleted(postings, p.deleted)
	if withPositions {
		return live
	}

	stripped := make([]Posting, len(live))
	for i, posting := range live {
		stripped[i] = Posting{DocNum: posting.DocNum, Frequency: posting.Frequency}
	}
	return stripped
}

// memTermIterator scans the sorted term list, skipping terms the selector
// rejects.
type memTermIterator struct {
	part  *memPartition
	field *memField
	sel   Selector
	i     int
}

func (it *memTermIterator) Next() bool {
	terms := it.field.terms
	if it.i < 0 && it.sel.Start != nil {
		it.i = sort.SearchStrings(terms, string(it.sel.Start)) - 1
	}
	for it.i+1 < len(terms) {
		it.i++
		term := []byte(terms[it.i])
		if it.sel.End != nil && bytes.Compare(term, it.sel.End) >= 0 {
			break
		}
		if it.sel.Matches(term) {
			return true
		}
	}
	it.i = len(terms)
	return false
}

func (it *memTermIterator) Term() string { return it.field.terms[it.i] }

func (it *memTermIterator) DocFreq() (uint64, error) {
	postings := it.field.postings[it.Term()]
	if it.part.deleted.IsEmpty() {
		return uint64(len(postings)), nil
	}
	return uint64(len(filterDeleted(postings, it.part.deleted))), nil
}

func (it *memTermIterator) Postings(withPositions bool) (PostingsIterator, error) {
	return newPostingsList(it.part.livePostings(it.field.postings[it.Term()], withPositions)), nil
}

func (it *memTermIterator) Err() error { return nil }
func (it *memTermIterator) Close() error { return nil }
