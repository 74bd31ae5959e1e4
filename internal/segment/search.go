package segment

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/couchbase/vellum"
)

// getFST returns the FST for a field, loading it lazily.
func (s *Segment) getFST(fieldName string) (*vellum.FST, *FieldMeta, error) {
	meta := s.fieldMetaByName[fieldName]
	if meta == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldName)
	}

	s.fstsMu.RLock()
	fst, ok := s.fsts[fieldName]
	s.fstsMu.RUnlock()
	if ok {
		return fst, meta, nil
	}

	s.fstsMu.Lock()
	defer s.fstsMu.Unlock()

	if s.fsts == nil {
		return nil, nil, fmt.Errorf("segment %s is closed", s.id)
	}

	// Double-check after acquiring write lock
	if fst, ok := s.fsts[fieldName]; ok {
		return fst, meta, nil
	}

	// FST data starts after the 8-byte size prefix
	fstSize := binary.BigEndian.Uint64(s.data[meta.DictOffset:])
	fstData := s.data[meta.DictOffset+8 : meta.DictOffset+8+fstSize]

	fst, err := vellum.Load(fstData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load FST for field %s: %w", fieldName, err)
	}

	s.fsts[fieldName] = fst
	return fst, meta, nil
}

// postingsData returns the encoded postings stored at a dictionary value.
func (s *Segment) postingsData(meta *FieldMeta, val uint64) ([]byte, error) {
	start := meta.PostingsOffset + val
	end := meta.PostingsOffset + meta.PostingsSize
	if val >= meta.PostingsSize || end > uint64(len(s.data)) {
		return nil, fmt.Errorf("postings offset %d out of bounds for field %s", val, meta.Name)
	}
	return s.data[start:end], nil
}

// postings decodes the full posting list of a term, deleted documents included.
func (s *Segment) postings(field, term string, withPositions bool) ([]Posting, error) {
	fst, meta, err := s.getFST(field)
	if err != nil {
		return nil, err
	}

	val, exists, err := fst.Get([]byte(term))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	data, err := s.postingsData(meta, val)
	if err != nil {
		return nil, err
	}
	return DecodePostings(data, withPositions)
}

// View returns the segment as a Partition hiding the deleted docNums.
func (s *Segment) View(deleted *roaring.Bitmap) Partition {
	if deleted == nil {
		deleted = roaring.New()
	}
	return &segmentView{seg: s, deleted: deleted, live: liveRange(s.NumDocs(), deleted)}
}

type segmentView struct {
	seg     *Segment
	deleted *roaring.Bitmap
	live    *roaring.Bitmap
}

func (v *segmentView) ID() string { return v.seg.ID() }
func (v *segmentView) MaxDoc() uint64 { return v.seg.NumDocs() }
func (v *segmentView) LiveDocs() *roaring.Bitmap { return v.live }

func (v *segmentView) Postings(field, term string, withPositions bool) (PostingsIterator, error) {
	postings, err := v.seg.postings(field, term, withPositions)
	if err != nil {
		if isMissingField(err) {
			return newPostingsList(nil), nil
		}
		return nil, err
	}
	return newPostingsList(filterDeleted(postings, v.deleted)), nil
}

func (v *segmentView) Terms(field string, sel Selector) (TermIterator, error) {
	fst, meta, err := v.seg.getFST(field)
	if err != nil {
		if isMissingField(err) {
			return emptyTerms{}, nil
		}
		return nil, err
	}

	var iter *vellum.FSTIterator
	if sel.Automaton != nil {
		iter, err = fst.Search(sel.Automaton, sel.Start, sel.End)
	} else {
		iter, err = fst.Iterator(sel.Start, sel.End)
	}
	if err == vellum.ErrIteratorDone {
		return emptyTerms{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}

	return &fstTermIterator{view: v, meta: meta, iter: iter}, nil
}

// fstTermIterator lazily walks a vellum iterator. The vellum iterator is
// already positioned on its first key when created.
type fstTermIterator struct {
	view    *segmentView
	meta    *FieldMeta
	iter    *vellum.FSTIterator
	started bool
	done    bool
	term    string
	val     uint64
	err     error
}

func (it *fstTermIterator) Next() bool {
	if it.done {
		return false
	}
	if it.started {
		if err := it.iter.Next(); err != nil {
			it.done = true
			if err != vellum.ErrIteratorDone {
				it.err = err
			}
			return false
		}
	}
	it.started = true

	key, val := it.iter.Current()
	it.term = string(key)
	it.val = val
	return true
}

func (it *fstTermIterator) Term() string { return it.term }

func (it *fstTermIterator) DocFreq() (uint64, error) {
	data, err := it.view.seg.postingsData(it.meta, it.val)
	if err != nil {
		return 0, err
	}
	if it.view.deleted.IsEmpty() {
		return PostingsCount(data)
	}

	postings, err := DecodePostings(data, false)
	if err != nil {
		return 0, err
	}
	return uint64(len(filterDeleted(postings, it.view.deleted))), nil
}

func (it *fstTermIterator) Postings(withPositions bool) (PostingsIterator, error) {
	data, err := it.view.seg.postingsData(it.meta, it.val)
	if err != nil {
		return nil, err
	}
	postings, err := DecodePostings(data, withPositions)
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", it.term, err)
	}
	return newPostingsList(filterDeleted(postings, it.view.deleted)), nil
}

func (it *fstTermIterator) Err() error { return it.err }

func (it *fstTermIterator) Close() error {
	it.done = true
	return it.iter.Close()
}

func isMissingField(err error) bool {
	return errors.Is(err, ErrFieldNotFound)
}
