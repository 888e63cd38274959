package svn2svn

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.etcd.io/bbolt"
)

const REV_MAP_BUCKET = "revmap"

// MapCache is an optional bbolt-backed cache of the revision map, so a
// resumed run can skip rescanning a long target history. It is derived
// state only: on resume the map rebuilt from target history is
// authoritative, and the cache is reset whenever the two disagree.
type MapCache struct {
	db *bbolt.DB

	tmpPath string
}

// OpenMapCache opens (creating if needed) a cache file. An empty path
// uses a throwaway temporary file.
func OpenMapCache(path string) (*MapCache, error) {
	c := &MapCache{}

	var err error
	if path == "" {
		path, err = tempfile()
		if err != nil {
			return nil, err
		}
		c.tmpPath = path
	}

	c.db, err = bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open map cache %s: %w", path, err)
	}

	return c, nil
}

// tempfile provides a temporary file path, adopted from the example on
// [bbolt doc]
//
// [bbolt doc]: https://pkg.go.dev/go.etcd.io/bbolt#example-DB.Begin
func tempfile() (string, error) {
	f, err := os.CreateTemp("", "svn2svn-map-")
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Remove(f.Name()); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func (c *MapCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return err
	}
	if c.tmpPath != "" {
		return os.Remove(c.tmpPath)
	}

	return nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))

	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// Put appends one pair to the cache.
func (c *MapCache) Put(source, target int64) error {
	if c == nil || c.db == nil {
		return ErrNilCache
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(REV_MAP_BUCKET))
		if err != nil {
			return err
		}

		return b.Put(itob(source), itob(target))
	})
}

// Load reads the cached mapping. bbolt iterates keys in byte order,
// which for big-endian encoded revisions is ascending source order, so
// the monotonic invariant is re-checked for free by [RevMap.Record].
func (c *MapCache) Load() (*RevMap, error) {
	if c == nil || c.db == nil {
		return nil, ErrNilCache
	}

	m := NewRevMap()
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(REV_MAP_BUCKET))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			return m.Record(btoi(k), btoi(v))
		})
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Reset rewrites the cache from an authoritative map, used when the
// cache and the map rebuilt from target history disagree.
func (c *MapCache) Reset(m *RevMap) error {
	if c == nil || c.db == nil {
		return ErrNilCache
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(REV_MAP_BUCKET)) != nil {
			if err := tx.DeleteBucket([]byte(REV_MAP_BUCKET)); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket([]byte(REV_MAP_BUCKET))
		if err != nil {
			return err
		}
		for _, pair := range m.Pairs() {
			if err := b.Put(itob(pair.Source), itob(pair.Target)); err != nil {
				return err
			}
		}

		return nil
	})
}
