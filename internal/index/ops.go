package index

import (
	"fmt"
	"os"

	"harshagw/suggester/internal/segment"
	"harshagw/suggester/internal/store"
)

// Flush writes buffered documents to a new segment and persists pending
// deletions.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}

	return idx.flushLocked()
}

func (idx *Index) flushLocked() error {
	if idx.builder.NumDocs() == 0 {
		if len(idx.dirty) > 0 {
			if err := idx.meta.Update(idx.writeDeletions); err != nil {
				return err
			}
			idx.dirty = make(map[string]struct{})
		}
		idx.resetBuilder()
		return nil
	}

	segmentID := fmt.Sprintf("%012d", idx.epoch+1)

	segPath, err := idx.builder.Build(idx.dir, segmentID)
	if err != nil {
		return err
	}
	seg, err := segment.Open(segPath, segmentID)
	if err != nil {
		os.Remove(segPath)
		return err
	}

	builderDeleted := idx.builder.Deleted

	var epoch uint64
	err = idx.meta.Update(func(tx *store.Tx) error {
		manifest, err := tx.Manifest()
		if err != nil {
			return err
		}
		manifest.Epoch++
		epoch = manifest.Epoch
		manifest.Partitions = append(manifest.Partitions, store.PartitionMeta{
			ID:      segmentID,
			NumDocs: seg.NumDocs(),
			Epoch:   epoch,
		})

		if err := idx.writeDeletions(tx); err != nil {
			return err
		}
		if !builderDeleted.IsEmpty() {
			if err := tx.PutDeletions(segmentID, builderDeleted); err != nil {
				return err
			}
		}
		return tx.PutManifest(manifest)
	})
	if err != nil {
		seg.Close()
		os.Remove(segPath)
		return err
	}

	if !builderDeleted.IsEmpty() {
		idx.deletions[segmentID] = builderDeleted.Clone()
	}
	idx.segments = append(idx.segments, newSegmentRef(seg))
	idx.dirty = make(map[string]struct{})
	idx.epoch = epoch
	idx.logger.Debug("flushed segment", "segment", segmentID, "docs", seg.NumDocs(), "epoch", epoch)

	idx.resetBuilder()
	return nil
}

func (idx *Index) writeDeletions(tx *store.Tx) error {
	for segID := range idx.dirty {
		if err := tx.PutDeletions(segID, idx.deletions[segID]); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) resetBuilder() {
	idx.builder = segment.NewBuilder(idx.analyzer)
	idx.memPart = nil
}

func (idx *Index) segmentIDs() []string {
	ids := make([]string, len(idx.segments))
	for i, ref := range idx.segments {
		ids[i] = ref.seg.ID()
	}
	return ids
}

func (idx *Index) findSegment(segID string) (*segment.Segment, error) {
	for _, ref := range idx.segments {
		if ref.seg.ID() == segID {
			return ref.seg, nil
		}
	}
	return nil, fmt.Errorf("segment not found: %s", segID)
}

// NumSegments returns the number of segments.
func (idx *Index) NumSegments() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.segments)
}

// BufferedDocs returns the number of live documents not yet flushed.
func (idx *Index) BufferedDocs() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0
	}
	return idx.builder.NumDocs()
}

// SegmentInfo holds info about a segment.
type SegmentInfo struct {
	ID      string
	Path    string
	NumDocs uint64
}

// Segments returns info about all segments.
func (idx *Index) Segments() []SegmentInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	info := make([]SegmentInfo, len(idx.segments))
	for i, ref := range idx.segments {
		info[i] = SegmentInfo{
			ID:      ref.seg.ID(),
			Path:    ref.seg.Path(),
			NumDocs: ref.seg.NumDocs(),
		}
	}
	return info
}

// SegmentStats holds detailed stats for a segment.
type SegmentStats struct {
	NumDocs    uint64
	NumDeleted uint64
	Fields     []string
}

// SegmentStats returns detailed stats for a segment.
func (idx *Index) SegmentStats(segID string) (*SegmentStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seg, err := idx.findSegment(segID)
	if err != nil {
		return nil, err
	}
	return &SegmentStats{
		NumDocs:    seg.NumDocs(),
		NumDeleted: idx.deletedOf(segID).GetCardinality(),
		Fields:     seg.Fields(),
	}, nil
}

// LoadDoc loads a document from a segment by docNum.
func (idx *Index) LoadDoc(segID string, docNum uint64) (map[string]any, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seg, err := idx.findSegment(segID)
	if err != nil {
		return nil, err
	}
	return seg.LoadDoc(docNum)
}

type PostingEntry struct {
	Partition string
	DocNum    uint64
	Freq      uint64
	Positions []uint64
}

// DumpPostings returns the live postings of field:term in every partition of
// a fresh snapshot.
func (idx *Index) DumpPostings(field, term string) ([]PostingEntry, error) {
	snap, err := idx.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	var results []PostingEntry
	for _, part := range snap.Partitions() {
		it, err := part.Postings(field, term, true)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", part.ID(), err)
		}
		for it.Next() {
			results = append(results, PostingEntry{
				Partition: part.ID(),
				DocNum:    it.DocNum(),
				Freq:      it.Freq(),
				Positions: it.Positions(),
			})
		}
	}
	return results, nil
}

// DumpDeletions returns the deleted docNums for a segment, pending ones
// included.
func (idx *Index) DumpDeletions(segID string) ([]uint32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if _, err := idx.findSegment(segID); err != nil {
		return nil, err
	}
	return idx.deletedOf(segID).ToArray(), nil
}
