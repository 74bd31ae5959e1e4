package segment

import (
	"encoding/binary"
	"fmt"
)

// Segment file format constants
const (
	SegmentMagic   = "SUG\x00"
	SegmentVersion = uint32(2)
	ChunkSize      = 1024 // Documents per chunk for stored fields

	headerSize  = len(SegmentMagic) + 4 + 8 // magic, version, doc count
	trailerSize = 16                        // footer offset, footer size
)

type Posting struct {
	DocNum    uint64
	Frequency uint64
	Positions []uint64
}

type Footer struct {
	StoredFieldsOffset uint64      `json:"stored_offset"`
	FieldsIndexOffset  uint64      `json:"fields_offset"`
	ChunkOffsets       []uint64    `json:"chunks"`
	FieldsMeta         []FieldMeta `json:"fields"`
	DocIDs             []string    `json:"doc_ids"`
	NumDocs            uint64      `json:"num_docs"`
}

type FieldMeta struct {
	Name           string `json:"name"`
	DictOffset     uint64 `json:"dict_offset"`
	DictSize       uint64 `json:"dict_size"`
	PostingsOffset uint64 `json:"postings_offset"`
	PostingsSize   uint64 `json:"postings_size"`
	NumTerms       uint64 `json:"num_terms"`
}

// EncodePostings encodes a posting list as three delta/varint blocks:
// doc numbers, then frequencies, then positions. Keeping positions last lets
// readers that only need document ids stop early.
func EncodePostings(postings []Posting) []byte {
	buf := make([]byte, 0, len(postings)*16)

	buf = binary.AppendUvarint(buf, uint64(len(postings)))

	var prevDocNum uint64
	for _, p := range postings {
		buf = binary.AppendUvarint(buf, p.DocNum-prevDocNum)
		prevDocNum = p.DocNum
	}

	for _, p := range postings {
		buf = binary.AppendUvarint(buf, p.Frequency)
	}

	for _, p := range postings {
		buf = binary.AppendUvarint(buf, uint64(len(p.Positions)))
		var prevPos uint64
		for _, pos := range p.Positions {
			buf = binary.AppendUvarint(buf, pos-prevPos)
			prevPos = pos
		}
	}

	return buf
}

// PostingsCount reads only the length header of an encoded posting list.
func PostingsCount(data []byte) (uint64, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, fmt.Errorf("corrupt postings header")
	}
	return count, nil
}

// DecodePostings decodes a posting list. Positions are only decoded when
// withPositions is set; otherwise Posting.Positions is nil.
func DecodePostings(data []byte, withPositions bool) ([]Posting, error) {
	r := newByteReader(data)

	count, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("corrupt postings: count %d exceeds %d bytes", count, len(data))
	}

	postings := make([]Posting, count)

	var prevDocNum uint64
	for i := range postings {
		delta, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		postings[i].DocNum = prevDocNum + delta
		prevDocNum = postings[i].DocNum
	}

	for i := range postings {
		freq, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		postings[i].Frequency = freq
	}

	if !withPositions {
		return postings, nil
	}

	for i := range postings {
		posCount, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		postings[i].Positions = make([]uint64, posCount)

		var prevPos uint64
		for j := range postings[i].Positions {
			delta, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			postings[i].Positions[j] = prevPos + delta
			prevPos = postings[i].Positions[j]
		}
	}

	return postings, nil
}
