package index

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/analysis"
	"harshagw/suggester/internal/segment"
)

// MemPartitionID identifies the partition built from unflushed documents.
const MemPartitionID = "mem"

// segmentRef counts the index and every open snapshot holding a segment.
// The segment is unmapped when the last holder releases it, and its file is
// removed when it was merged away.
type segmentRef struct {
	seg    *segment.Segment
	refs   atomic.Int64
	remove atomic.Bool
}

func newSegmentRef(seg *segment.Segment) *segmentRef {
	r := &segmentRef{seg: seg}
	r.refs.Store(1)
	return r
}

func (r *segmentRef) acquire() { r.refs.Add(1) }

func (r *segmentRef) release() error {
	if r.refs.Add(-1) != 0 {
		return nil
	}
	path := r.seg.Path()
	err := r.seg.Close()
	if r.remove.Load() {
		os.Remove(path)
	}
	return err
}

// Snapshot is a point-in-time view of the index. Later writes are not
// visible through it. Close must be called to release its segments.
type Snapshot struct {
	segments []*segmentRef
	parts    []segment.Partition
	epoch    uint64
	analyzer analysis.Analyzer

	closeOnce sync.Once
}

// Snapshot returns a point-in-time view for searching.
func (idx *Index) Snapshot() (*Snapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, ErrClosed
	}

	snap := &Snapshot{
		segments: make([]*segmentRef, 0, len(idx.segments)),
		parts:    make([]segment.Partition, 0, len(idx.segments)+1),
		epoch:    idx.epoch,
		analyzer: idx.analyzer,
	}
	for _, ref := range idx.segments {
		ref.acquire()
		snap.segments = append(snap.segments, ref)
		snap.parts = append(snap.parts, ref.seg.View(idx.deletedOf(ref.seg.ID())))
	}
	if mem := idx.memPartition(); mem != nil {
		snap.parts = append(snap.parts, mem)
	}

	return snap, nil
}

// deletedOf returns a private copy of a segment's deletions.
func (idx *Index) deletedOf(segID string) *roaring.Bitmap {
	if deleted := idx.deletions[segID]; deleted != nil {
		return deleted.Clone()
	}
	return roaring.New()
}

// memPartition freezes the builder, reusing the last frozen copy until the
// next write. Callers hold at least the read lock.
func (idx *Index) memPartition() segment.Partition {
	idx.memMu.Lock()
	defer idx.memMu.Unlock()

	if idx.builder.NumDocs() == 0 {
		return nil
	}
	if idx.memPart == nil {
		idx.memPart = idx.builder.Partition(MemPartitionID)
	}
	return idx.memPart
}

// Partitions returns the snapshot's partitions: one per flushed segment in
// flush order, then the in-memory buffer when it holds live documents.
func (s *Snapshot) Partitions() []segment.Partition { return s.parts }

// Epoch returns the flush epoch the snapshot was taken at.
func (s *Snapshot) Epoch() uint64 { return s.epoch }

// Analyzer returns the index's analyzer.
func (s *Snapshot) Analyzer() analysis.Analyzer { return s.analyzer }

// NumDocs returns the number of live documents across all partitions.
func (s *Snapshot) NumDocs() uint64 {
	var total uint64
	for _, p := range s.parts {
		total += p.LiveDocs().GetCardinality()
	}
	return total
}

// Close releases the snapshot's segments. It is safe to call more than once.
func (s *Snapshot) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		for _, ref := range s.segments {
			if err := ref.release(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		s.segments = nil
	})
	return firstErr
}
