package index

import (
	"fmt"
	"os"

	"harshagw/suggester/internal/segment"
	"harshagw/suggester/internal/store"
)

// Merge rewrites the live documents of the given segments into one new
// segment. Merged segments stay readable through older snapshots and their
// files are removed once the last snapshot is closed.
func (idx *Index) Merge(segmentIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}

	if len(segmentIDs) < 2 {
		return fmt.Errorf("need at least 2 segments to merge")
	}

	idSet := make(map[string]bool, len(segmentIDs))
	for _, id := range segmentIDs {
		idSet[id] = true
	}

	var merged []*segmentRef
	for _, ref := range idx.segments {
		if idSet[ref.seg.ID()] {
			merged = append(merged, ref)
		}
	}
	if len(merged) != len(idSet) {
		return fmt.Errorf("some segments not found")
	}

	builder := segment.NewBuilder(idx.analyzer)
	for _, ref := range merged {
		if err := idx.copyLiveDocs(builder, ref.seg); err != nil {
			return err
		}
	}

	newSegmentID := fmt.Sprintf("%012d", idx.epoch+1)

	segPath, err := builder.Build(idx.dir, newSegmentID)
	if err != nil {
		return err
	}
	newSeg, err := segment.Open(segPath, newSegmentID)
	if err != nil {
		os.Remove(segPath)
		return err
	}

	// Replace the merged segments at the position of the first one so the
	// flush order of the rest is kept.
	newSegments := make([]*segmentRef, 0, len(idx.segments)-len(merged)+1)
	inserted := false
	for _, ref := range idx.segments {
		if !idSet[ref.seg.ID()] {
			newSegments = append(newSegments, ref)
			continue
		}
		if !inserted {
			newSegments = append(newSegments, newSegmentRef(newSeg))
			inserted = true
		}
	}
	var epoch uint64
	err = idx.meta.Update(func(tx *store.Tx) error {
		manifest, err := tx.Manifest()
		if err != nil {
			return err
		}
		epoch = manifest.Epoch + 1
		manifest = manifest.Replace(segmentIDs, store.PartitionMeta{
			ID:      newSegmentID,
			NumDocs: newSeg.NumDocs(),
			Epoch:   epoch,
		})
		manifest.Epoch = epoch

		if err := idx.writeDeletions(tx); err != nil {
			return err
		}
		for _, segID := range segmentIDs {
			if err := tx.DropDeletions(segID); err != nil {
				return err
			}
		}
		return tx.PutManifest(manifest)
	})
	if err != nil {
		newSeg.Close()
		os.Remove(segPath)
		return err
	}

	for _, ref := range merged {
		segID := ref.seg.ID()
		delete(idx.deletions, segID)
		ref.remove.Store(true)
		if err := ref.release(); err != nil {
			idx.logger.Warn("failed to close merged segment", "segment", segID, "err", err)
		}
	}
	idx.segments = newSegments
	idx.dirty = make(map[string]struct{})
	idx.epoch = epoch
	idx.logger.Debug("merged segments", "from", segmentIDs, "into", newSegmentID, "docs", newSeg.NumDocs())

	return nil
}

func (idx *Index) copyLiveDocs(builder *segment.Builder, seg *segment.Segment) error {
	deleted := idx.deletions[seg.ID()]
	for docNum := uint64(0); docNum < seg.NumDocs(); docNum++ {
		if deleted != nil && deleted.Contains(uint32(docNum)) {
			continue
		}

		doc, err := seg.LoadDoc(docNum)
		if err != nil {
			return fmt.Errorf("segment %s doc %d: %w", seg.ID(), docNum, err)
		}
		extID, ok := seg.ExternalID(docNum)
		if !ok {
			continue
		}

		builder.Add(extID, doc)
	}
	return nil
}

// ForceMerge merges all segments into one.
func (idx *Index) ForceMerge() error {
	idx.mu.RLock()
	segmentIDs := idx.segmentIDs()
	idx.mu.RUnlock()

	if len(segmentIDs) < 2 {
		return nil
	}

	return idx.Merge(segmentIDs)
}
