package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/charmbracelet/log"

	"harshagw/suggester/internal/analysis"
	"harshagw/suggester/internal/logger"
	"harshagw/suggester/internal/segment"
	"harshagw/suggester/internal/store"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("index is closed")

// Index is a segmented inverted index. Documents are buffered in an
// in-memory builder and flushed into immutable segment files; every flushed
// segment and the buffer are exposed to readers as partitions.
type Index struct {
	mu sync.RWMutex

	dir      string
	meta     *store.Metadata
	segments []*segmentRef
	builder  *segment.Builder
	epoch    uint64

	// deletions holds persisted and pending deletions per segment; dirty
	// names the segments whose bitmap changed since the last flush.
	deletions map[string]*roaring.Bitmap
	dirty     map[string]struct{}

	memMu   sync.Mutex
	memPart segment.Partition

	analyzer       analysis.Analyzer
	flushThreshold int
	logger         *log.Logger

	closed bool
}

type Config struct {
	Dir            string
	FlushThreshold int
	Analyzer       analysis.Analyzer
	Logger         *log.Logger
}

func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		FlushThreshold: 1000,
		Analyzer:       analysis.NewSimple(),
	}
}

// New creates or opens an index at the given directory.
func New(config Config) (*Index, error) {
	if config.Analyzer == nil {
		config.Analyzer = analysis.NewSimple()
	}
	if config.FlushThreshold <= 0 {
		config.FlushThreshold = DefaultConfig(config.Dir).FlushThreshold
	}

	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	meta, err := store.NewMetadata(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	idx := &Index{
		dir:            config.Dir,
		meta:           meta,
		dirty:          make(map[string]struct{}),
		analyzer:       config.Analyzer,
		flushThreshold: config.FlushThreshold,
		logger:         logger.OrDiscard(config.Logger),
	}
	idx.builder = segment.NewBuilder(idx.analyzer)

	if err := idx.load(); err != nil {
		idx.releaseSegments()
		meta.Close()
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}

	return idx, nil
}

// load opens every segment listed in the metadata store together with its
// deletions.
func (idx *Index) load() error {
	manifest, err := idx.meta.Manifest()
	if err != nil {
		return err
	}

	for _, segID := range manifest.IDs() {
		seg, err := segment.Open(idx.segmentPath(segID), segID)
		if err != nil {
			return fmt.Errorf("failed to open segment %s: %w", segID, err)
		}
		idx.segments = append(idx.segments, newSegmentRef(seg))
	}

	if idx.deletions, err = idx.meta.Deletions(); err != nil {
		return err
	}
	idx.epoch = manifest.Epoch

	idx.logger.Debug("index opened", "dir", idx.dir, "segments", len(idx.segments), "epoch", idx.epoch)
	return nil
}

func (idx *Index) segmentPath(segID string) string {
	return filepath.Join(idx.dir, segID+".seg")
}

// Index indexes a document, replacing any earlier document with the same ID.
func (idx *Index) Index(docID string, doc map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}

	idx.builder.Delete(docID)
	idx.markObsolete(docID)
	idx.builder.Add(docID, doc)
	idx.memPart = nil

	if idx.builder.NumDocs() >= uint64(idx.flushThreshold) {
		return idx.flushLocked()
	}

	return nil
}

// Delete removes a document from the buffer and every segment. Deleting an
// unknown ID is a no-op.
func (idx *Index) Delete(docID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}

	if idx.builder.Delete(docID) {
		idx.memPart = nil
	}
	idx.markObsolete(docID)
	return nil
}

// markObsolete records deletions for docID in persisted segments.
func (idx *Index) markObsolete(docID string) {
	for _, ref := range idx.segments {
		segID := ref.seg.ID()
		for _, docNum := range ref.seg.DocNums(docID) {
			deleted := idx.deletions[segID]
			if deleted == nil {
				deleted = roaring.New()
				idx.deletions[segID] = deleted
			}
			if deleted.CheckedAdd(uint32(docNum)) {
				idx.dirty[segID] = struct{}{}
			}
		}
	}
}

// Close closes the index. Segments still held by open snapshots stay mapped
// until those snapshots are closed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}

	if idx.builder.TotalDocs() > 0 || len(idx.dirty) > 0 {
		idx.logger.Warn("closing with unflushed changes", "docs", idx.builder.NumDocs(), "segments", len(idx.dirty))
	}

	idx.closed = true
	idx.builder = nil
	idx.memPart = nil
	idx.releaseSegments()

	return idx.meta.Close()
}

func (idx *Index) releaseSegments() {
	for _, ref := range idx.segments {
		if err := ref.release(); err != nil {
			idx.logger.Warn("failed to close segment", "segment", ref.seg.ID(), "err", err)
		}
	}
	idx.segments = nil
}
