// Package boltkv implements kv.Store over go.etcd.io/bbolt, directly
// adapted from the teacher's backend/cache/storage_persistent.go: one
// *bolt.DB, os.MkdirAll of the data directory before connect, a single
// bucket holding all keys in their natural byte order (bbolt buckets are
// already a byte-ordered B+tree, which is exactly what spec.md §4.3
// requires for big-endian-offset extent scans).
package boltkv

import (
	"os"
	"path/filepath"

	"github.com/chimera-nas/chimera/kv"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("chimera")

// Store is a kv.Store backed by a single bbolt database file.
type Store struct {
	db     *bolt.DB
	opts   kv.Options
	log    *logrus.Entry
	filter *bloomFilter // only populated when opts.BloomFilter is set
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// Open opens (creating if necessary) a bbolt database under opts.Path.
// When opts.Initialize is set the existing database file, if any, is
// removed first — matching cairn's "initialize" config flag.
func Open(opts kv.Options) (*Store, error) {
	log := logrus.WithField("component", "boltkv")

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "boltkv: creating data directory")
	}
	if opts.Initialize {
		if err := os.Remove(opts.Path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "boltkv: removing existing database for initialize")
		}
	}

	boltOpts := &bolt.Options{}
	db, err := bolt.Open(opts.Path, 0o644, boltOpts)
	if err != nil {
		return nil, errors.Wrap(err, "boltkv: opening database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "boltkv: creating root bucket")
	}

	s := &Store{db: db, opts: opts, log: log}
	if opts.BloomFilter {
		s.filter = newBloomFilter(1 << 20)
		if err := s.warmFilter(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if opts.Compression {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "boltkv: creating zstd encoder")
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "boltkv: creating zstd decoder")
		}
		s.enc, s.dec = enc, dec
	}
	log.WithField("path", opts.Path).Info("opened cairn store")
	return s, nil
}

func (s *Store) warmFilter() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			s.filter.add(k)
		}
		return nil
	})
}

// Close flushes and closes the underlying database file.
func (s *Store) Close() error {
	if s.dec != nil {
		s.dec.Close()
	}
	return s.db.Close()
}

func (s *Store) compress(v []byte) []byte {
	if s.enc == nil || v == nil {
		return v
	}
	return s.enc.EncodeAll(v, make([]byte, 0, len(v)))
}

func (s *Store) decompress(v []byte) ([]byte, error) {
	if s.dec == nil || v == nil {
		return v, nil
	}
	return s.dec.DecodeAll(v, nil)
}

// Update runs fn inside a bbolt read-write transaction.
func (s *Store) Update(fn func(kv.Txn) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTxn{tx: tx.Bucket(rootBucket), store: s})
	})
}

// View runs fn inside a bbolt read-only transaction.
func (s *Store) View(fn func(kv.Txn) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTxn{tx: tx.Bucket(rootBucket), store: s})
	})
}

type boltTxn struct {
	tx    *bolt.Bucket
	store *Store
}

func (t *boltTxn) Get(key []byte) ([]byte, error) {
	if t.store.filter != nil && !t.store.filter.mayContain(key) {
		return nil, kv.ErrNotFound
	}
	v := t.tx.Get(key)
	if v == nil {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return t.store.decompress(out)
}

func (t *boltTxn) Put(key, val []byte) error {
	if t.store.filter != nil {
		t.store.filter.add(key)
	}
	return t.tx.Put(key, t.store.compress(val))
}

func (t *boltTxn) Delete(key []byte) error {
	return t.tx.Delete(key)
}

func (t *boltTxn) Cursor() kv.Cursor {
	return &boltCursor{c: t.tx.Cursor(), store: t.store}
}

type boltCursor struct {
	c     *bolt.Cursor
	store *Store
}

func (c *boltCursor) decoded(k, v []byte) ([]byte, []byte, bool) {
	if k == nil {
		return nil, nil, false
	}
	out, err := c.store.decompress(append([]byte(nil), v...))
	if err != nil {
		// Corruption of a stored value is a FAULT condition for the
		// caller; surfacing it as "not found" would silently mask data
		// loss, so callers that need strict handling should re-read via
		// Txn.Get which returns the error directly. Cursor scans treat a
		// decode failure as "nothing more to offer" rather than panic.
		return nil, nil, false
	}
	return append([]byte(nil), k...), out, true
}

func (c *boltCursor) First() ([]byte, []byte, bool) {
	k, v := c.c.First()
	return c.decoded(k, v)
}

func (c *boltCursor) Seek(target []byte) ([]byte, []byte, bool) {
	k, v := c.c.Seek(target)
	return c.decoded(k, v)
}

func (c *boltCursor) SeekPrev(target []byte) ([]byte, []byte, bool) {
	k, v := c.c.Seek(target)
	if k != nil && string(k) == string(target) {
		return c.decoded(k, v)
	}
	if k == nil {
		// target is past the end of the keyspace: the last key is the floor.
		k, v = c.c.Last()
		return c.decoded(k, v)
	}
	k, v = c.c.Prev()
	return c.decoded(k, v)
}

func (c *boltCursor) Next() ([]byte, []byte, bool) {
	k, v := c.c.Next()
	return c.decoded(k, v)
}
