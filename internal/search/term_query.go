package search

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/segment"
)

// termResult returns the live documents containing term.
func (s *Searcher) termResult(field, term string) (*Result, error) {
	it, err := s.part.Postings(field, term, false)
	if err != nil {
		return nil, fmt.Errorf("postings %s:%s: %w", field, term, err)
	}
	return &Result{Docs: collectDocs(it)}, nil
}

// multiTermResult unions the postings of every dictionary term the query
// selects.
func (s *Searcher) multiTermResult(ctx context.Context, q query.Query) (*Result, error) {
	field, sel, err := Selector(q)
	if err != nil {
		return nil, err
	}

	terms, err := s.part.Terms(field, sel)
	if err != nil {
		return nil, fmt.Errorf("terms of %s: %w", field, err)
	}
	defer terms.Close()

	var sets []*roaring.Bitmap
	for n := 0; terms.Next(); n++ {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		it, err := terms.Postings(false)
		if err != nil {
			return nil, fmt.Errorf("postings %s:%s: %w", field, terms.Term(), err)
		}
		if docs := collectDocs(it); !docs.IsEmpty() {
			sets = append(sets, docs)
		}
	}
	if err := terms.Err(); err != nil {
		return nil, fmt.Errorf("terms of %s: %w", field, err)
	}

	return &Result{Docs: unionAll(sets)}, nil
}

func collectDocs(it segment.PostingsIterator) *roaring.Bitmap {
	docs := roaring.New()
	for it.Next() {
		docs.Add(uint32(it.DocNum()))
	}
	return docs
}
