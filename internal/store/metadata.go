package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/boltdb/bolt"
)

var (
	bucketManifest  = []byte("manifest")
	bucketDeletions = []byte("deletions")
	keyCurrent      = []byte("current")
)

// PartitionMeta describes one flushed partition file.
type PartitionMeta struct {
	ID      string `json:"id"`
	NumDocs uint64 `json:"docs"`
	// Epoch is the flush or merge that wrote the partition.
	Epoch uint64 `json:"epoch"`
}

// Manifest lists the live partitions in flush order. Epoch grows by one on
// every committed flush or merge.
type Manifest struct {
	Epoch      uint64          `json:"epoch"`
	Partitions []PartitionMeta `json:"partitions"`
}

// IDs returns the partition IDs in manifest order.
func (m Manifest) IDs() []string {
	ids := make([]string, len(m.Partitions))
	for i, p := range m.Partitions {
		ids[i] = p.ID
	}
	return ids
}

// Replace returns a copy of the manifest in which the partitions named in
// ids are replaced by p, placed where the first of them was.
func (m Manifest) Replace(ids []string, p PartitionMeta) Manifest {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	out := Manifest{Epoch: m.Epoch, Partitions: make([]PartitionMeta, 0, len(m.Partitions)+1)}
	inserted := false
	for _, meta := range m.Partitions {
		if !drop[meta.ID] {
			out.Partitions = append(out.Partitions, meta)
			continue
		}
		if !inserted {
			out.Partitions = append(out.Partitions, p)
			inserted = true
		}
	}
	if !inserted {
		out.Partitions = append(out.Partitions, p)
	}
	return out
}

// Metadata persists the partition manifest and per-partition deletion
// bitmaps in a BoltDB file next to the partition files.
type Metadata struct {
	db *bolt.DB
}

// NewMetadata opens or creates the metadata store in dir.
func NewMetadata(dir string) (*Metadata, error) {
	dbPath := filepath.Join(dir, "meta.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketManifest, bucketDeletions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Metadata{db: db}, nil
}

// Manifest returns the committed manifest. A new store has an empty one at
// epoch 0.
func (m *Metadata) Manifest() (Manifest, error) {
	var manifest Manifest
	err := m.db.View(func(tx *bolt.Tx) error {
		var err error
		manifest, err = readManifest(tx)
		return err
	})
	return manifest, err
}

// Deletions returns every persisted deletion bitmap keyed by partition ID.
func (m *Metadata) Deletions() (map[string]*roaring.Bitmap, error) {
	all := make(map[string]*roaring.Bitmap)
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeletions).ForEach(func(k, v []byte) error {
			bm, err := decodeBitmap(v)
			if err != nil {
				return fmt.Errorf("deletions of %s: %w", k, err)
			}
			all[string(k)] = bm
			return nil
		})
	})
	return all, err
}

func (m *Metadata) Close() error {
	return m.db.Close()
}

// Update runs fn within a write transaction. Nothing fn writes is visible
// unless it returns nil.
func (m *Metadata) Update(fn func(*Tx) error) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// Tx provides reads and writes within one transaction.
type Tx struct {
	tx *bolt.Tx
}

func (t *Tx) Manifest() (Manifest, error) {
	return readManifest(t.tx)
}

func (t *Tx) PutManifest(m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketManifest).Put(keyCurrent, data)
}

// Deletions returns the bitmap stored for a partition, empty if none is.
func (t *Tx) Deletions(partitionID string) (*roaring.Bitmap, error) {
	data := t.tx.Bucket(bucketDeletions).Get([]byte(partitionID))
	if data == nil {
		return roaring.New(), nil
	}
	return decodeBitmap(data)
}

func (t *Tx) PutDeletions(partitionID string, bm *roaring.Bitmap) error {
	var buf bytes.Buffer
	if _, err := bm.WriteTo(&buf); err != nil {
		return err
	}
	return t.tx.Bucket(bucketDeletions).Put([]byte(partitionID), buf.Bytes())
}

func (t *Tx) DropDeletions(partitionID string) error {
	return t.tx.Bucket(bucketDeletions).Delete([]byte(partitionID))
}

func readManifest(tx *bolt.Tx) (Manifest, error) {
	var m Manifest
	data := tx.Bucket(bucketManifest).Get(keyCurrent)
	if data == nil {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("manifest: %w", err)
	}
	return m, nil
}

// decodeBitmap copies data out of the bolt page before decoding, since the
// page is only valid inside the transaction.
func decodeBitmap(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if _, err := bm.ReadFrom(bytes.NewReader(bytes.Clone(data))); err != nil {
		return nil, err
	}
	return bm, nil
}
