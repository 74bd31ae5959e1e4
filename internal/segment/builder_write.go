package segment

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/couchbase/vellum"
	"github.com/golang/snappy"
)

// offsetWriter tracks how many bytes have been written so sections can
// record their absolute file offsets without seeking.
type offsetWriter struct {
	w   *bufio.Writer
	off uint64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	o.off += uint64(n)
	return n, err
}

func (o *offsetWriter) writeUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := o.Write(buf[:])
	return err
}

func (o *offsetWriter) writeUint64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := o.Write(buf[:])
	return err
}

// Build writes the segment to dir/<segmentID>.seg and returns its path.
// The file is written under a temporary name and renamed when complete.
func (b *Builder) Build(dir, segmentID string) (string, error) {
	segPath := filepath.Join(dir, segmentID+".seg")
	tmpPath := segPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	if err := b.writeTo(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write segment %s: %w", segmentID, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, segPath); err != nil {
		return "", err
	}

	return segPath, nil
}

func (b *Builder) writeTo(file io.Writer) error {
	bw := bufio.NewWriter(file)
	w := &offsetWriter{w: bw}

	if _, err := io.WriteString(w, SegmentMagic); err != nil {
		return err
	}
	if err := w.writeUint32(SegmentVersion); err != nil {
		return err
	}
	if err := w.writeUint64(b.TotalDocs()); err != nil {
		return err
	}

	storedFieldsOffset := w.off
	chunkOffsets, err := b.writeStoredFields(w)
	if err != nil {
		return err
	}

	fieldsIndexOffset := w.off
	fieldsMeta, err := b.writeFieldsIndex(w)
	if err != nil {
		return err
	}

	footerOffset := w.off
	footerData, err := json.Marshal(Footer{
		StoredFieldsOffset: storedFieldsOffset,
		FieldsIndexOffset:  fieldsIndexOffset,
		ChunkOffsets:       chunkOffsets,
		FieldsMeta:         fieldsMeta,
		DocIDs:             b.DocIDs,
		NumDocs:            b.TotalDocs(),
	})
	if err != nil {
		return err
	}
	if _, err := w.Write(footerData); err != nil {
		return err
	}
	if err := w.writeUint64(footerOffset); err != nil {
		return err
	}
	if err := w.writeUint64(uint64(len(footerData))); err != nil {
		return err
	}

	return bw.Flush()
}

// writeStoredFields writes chunked, compressed stored documents.
func (b *Builder) writeStoredFields(w *offsetWriter) ([]uint64, error) {
	var chunkOffsets []uint64

	for chunk := range slices.Chunk(b.Docs, ChunkSize) {
		chunkData, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		compressed := snappy.Encode(nil, chunkData)

		chunkOffsets = append(chunkOffsets, w.off)
		if err := w.writeUint32(uint32(len(compressed))); err != nil {
			return nil, err
		}
		if _, err := w.Write(compressed); err != nil {
			return nil, err
		}
	}

	return chunkOffsets, nil
}

// writeFieldsIndex writes the FST dictionary and postings for each field.
func (b *Builder) writeFieldsIndex(w *offsetWriter) ([]FieldMeta, error) {
	fieldNames := make([]string, 0, len(b.Fields))
	for name := range b.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	fieldsMeta := make([]FieldMeta, 0, len(fieldNames))
	for _, fieldName := range fieldNames {
		meta, err := b.writeFieldIndex(w, fieldName, b.Fields[fieldName])
		if err != nil {
			return nil, err
		}
		fieldsMeta = append(fieldsMeta, meta)
	}

	return fieldsMeta, nil
}

// writeFieldIndex writes postings for every term of a field followed by the
// FST mapping each term to its postings offset relative to the section start.
func (b *Builder) writeFieldIndex(w *offsetWriter, fieldName string, terms map[string][]Posting) (FieldMeta, error) {
	meta := FieldMeta{Name: fieldName, NumTerms: uint64(len(terms))}

	termList := sortedTerms(terms)

	meta.PostingsOffset = w.off
	termOffsets := make([]uint64, len(termList))
	for i, term := range termList {
		postings := slices.Clone(terms[term])
		slices.SortFunc(postings, func(a, b Posting) int {
			switch {
			case a.DocNum < b.DocNum:
				return -1
			case a.DocNum > b.DocNum:
				return 1
			}
			return 0
		})

		termOffsets[i] = w.off - meta.PostingsOffset
		if _, err := w.Write(EncodePostings(postings)); err != nil {
			return meta, err
		}
	}
	meta.PostingsSize = w.off - meta.PostingsOffset

	var fstBuf bytes.Buffer
	fstBuilder, err := vellum.New(&fstBuf, nil)
	if err != nil {
		return meta, err
	}
	for i, term := range termList {
		if err := fstBuilder.Insert([]byte(term), termOffsets[i]); err != nil {
			return meta, err
		}
	}
	if err := fstBuilder.Close(); err != nil {
		return meta, err
	}

	meta.DictOffset = w.off
	if err := w.writeUint64(uint64(fstBuf.Len())); err != nil {
		return meta, err
	}
	if _, err := w.Write(fstBuf.Bytes()); err != nil {
		return meta, err
	}
	meta.DictSize = w.off - meta.DictOffset

	return meta, nil
}

func sortedTerms(terms map[string][]Posting) []string {
	termList := make([]string, 0, len(terms))
	for term := range terms {
		termList = append(termList, term)
	}
	sort.Strings(termList)
	return termList
}
