package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/couchbase/vellum"
	"github.com/edsrzf/mmap-go"
	"github.com/golang/snappy"
)

// Segment represents an immutable, mmap'd segment.
type Segment struct {
	id     string
	path   string
	file   *os.File
	data   mmap.MMap
	footer Footer

	fieldMetaByName map[string]*FieldMeta

	fsts   map[string]*vellum.FST
	fstsMu sync.RWMutex
}

// Open opens an existing segment file with mmap.
func Open(path, segmentID string) (*Segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if stat.Size() < int64(headerSize+trailerSize) {
		file.Close()
		return nil, fmt.Errorf("segment file too small: %s", path)
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap segment %s: %w", path, err)
	}

	footer, err := readFooter(data)
	if err != nil {
		data.Unmap()
		file.Close()
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}

	fieldMetaByName := make(map[string]*FieldMeta, len(footer.FieldsMeta))
	for i := range footer.FieldsMeta {
		fieldMetaByName[footer.FieldsMeta[i].Name] = &footer.FieldsMeta[i]
	}

	return &Segment{
		id:              segmentID,
		path:            path,
		file:            file,
		data:            data,
		footer:          footer,
		fieldMetaByName: fieldMetaByName,
		fsts:            make(map[string]*vellum.FST),
	}, nil
}

func readFooter(data []byte) (Footer, error) {
	var footer Footer

	if string(data[:len(SegmentMagic)]) != SegmentMagic {
		return footer, fmt.Errorf("invalid segment magic")
	}
	if v := binary.BigEndian.Uint32(data[len(SegmentMagic):]); v != SegmentVersion {
		return footer, fmt.Errorf("unsupported segment version %d", v)
	}

	footerOffset := binary.BigEndian.Uint64(data[len(data)-16 : len(data)-8])
	footerSize := binary.BigEndian.Uint64(data[len(data)-8:])
	if footerOffset+footerSize > uint64(len(data)-trailerSize) {
		return footer, fmt.Errorf("footer out of bounds")
	}

	if err := json.Unmarshal(data[footerOffset:footerOffset+footerSize], &footer); err != nil {
		return footer, fmt.Errorf("failed to parse segment footer: %w", err)
	}
	return footer, nil
}

// ID returns the segment ID.
func (s *Segment) ID() string { return s.id }

// Path returns the segment file path.
func (s *Segment) Path() string { return s.path }

// NumDocs returns the total number of documents, deleted ones included.
func (s *Segment) NumDocs() uint64 { return s.footer.NumDocs }

// ExternalID returns the external ID for a given docNum.
func (s *Segment) ExternalID(docNum uint64) (string, bool) {
	if docNum >= s.footer.NumDocs {
		return "", false
	}
	return s.footer.DocIDs[docNum], true
}

// DocNums looks up every docNum indexed under an external ID through the _id
// dictionary. An ID re-added before a flush appears more than once.
func (s *Segment) DocNums(externalID string) []uint64 {
	postings, err := s.postings(IDField, externalID, false)
	if err != nil {
		return nil
	}
	docNums := make([]uint64, len(postings))
	for i, p := range postings {
		docNums[i] = p.DocNum
	}
	return docNums
}

// Fields returns the list of indexed field names.
func (s *Segment) Fields() []string {
	fields := make([]string, len(s.footer.FieldsMeta))
	for i, fm := range s.footer.FieldsMeta {
		fields[i] = fm.Name
	}
	return fields
}

// NumTerms returns the dictionary size of a field.
func (s *Segment) NumTerms(field string) uint64 {
	if meta := s.fieldMetaByName[field]; meta != nil {
		return meta.NumTerms
	}
	return 0
}

// LoadDoc loads a document by docNum from stored fields.
func (s *Segment) LoadDoc(docNum uint64) (map[string]any, error) {
	if docNum >= s.footer.NumDocs {
		return nil, fmt.Errorf("docNum %d out of range", docNum)
	}

	chunkIdx := docNum / ChunkSize
	if int(chunkIdx) >= len(s.footer.ChunkOffsets) {
		return nil, fmt.Errorf("chunk index out of range")
	}

	offset := s.footer.ChunkOffsets[chunkIdx]
	chunkLen := binary.BigEndian.Uint32(s.data[offset:])
	compressed := s.data[offset+4 : offset+4+uint64(chunkLen)]

	decompressed, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk: %w", err)
	}

	var chunk []map[string]any
	if err := json.Unmarshal(decompressed, &chunk); err != nil {
		return nil, fmt.Errorf("failed to parse chunk: %w", err)
	}

	docInChunk := docNum % ChunkSize
	if int(docInChunk) >= len(chunk) {
		return nil, fmt.Errorf("document index out of range in chunk")
	}

	return chunk[docInChunk], nil
}

// Close releases segment resources.
func (s *Segment) Close() error {
	s.fstsMu.Lock()
	defer s.fstsMu.Unlock()

	for _, fst := range s.fsts {
		fst.Close()
	}
	s.fsts = nil

	if s.data != nil {
		s.data.Unmap()
		s.data = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
