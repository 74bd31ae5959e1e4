package popularity

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var bucketCounts = []byte("popularity")

// Bolt persists counts in a BoltDB file. Reads are served from memory; the
// file is read once on open and written through on every Record.
type Bolt struct {
	db    *bolt.DB
	cache *Counts
}

// OpenBolt opens or creates the counts file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open popularity db: %w", err)
	}

	cache := NewCounts()
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCounts)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("count of %q: want 8 bytes, got %d", k, len(v))
			}
			cache.counts[string(k)] = binary.BigEndian.Uint64(v)
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load popularity db: %w", err)
	}

	return &Bolt{db: db, cache: cache}, nil
}

func (b *Bolt) Count(term string) uint64 {
	return b.cache.Count(term)
}

func (b *Bolt) Record(_ context.Context, term string) error {
	return b.Add(term, 1)
}

// Add increments term by delta on disk and in memory.
func (b *Bolt) Add(term string, delta uint64) error {
	var n uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCounts)
		if v := bucket.Get([]byte(term)); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}
		n += delta

		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], n)
		return bucket.Put([]byte(term), buf[:])
	})
	if err != nil {
		return fmt.Errorf("record %q: %w", term, err)
	}
	b.cache.Set(term, n)
	return nil
}

// Len returns the number of counted terms.
func (b *Bolt) Len() int { return b.cache.Len() }

func (b *Bolt) Close() error {
	return b.db.Close()
}
