// Package kv specifies the ordered key-value transactional store that the
// cairn back end persists to. Per spec.md §1 this store is an external
// collaborator: the core only depends on this interface. kv/boltkv
// supplies a concrete, exercised implementation over go.etcd.io/bbolt,
// grounded on the teacher's own use of bbolt in
// backend/cache/storage_persistent.go (single *bolt.DB, Update/View
// closures, one bucket holding byte-ordered keys).
package kv

import "errors"

// ErrNotFound is returned by Txn.Get when the key is absent. Cursor
// operations report no matching key with ok == false instead.
var ErrNotFound = errors.New("kv: key not found")

// Options configures a Store. Fields map directly onto cairn's config
// keys (spec.md §6): Path, CacheMB, Compression, BloomFilter, and
// Initialize (destroy and recreate on open).
type Options struct {
	Path        string
	CacheMB     int
	Compression bool
	BloomFilter bool
	Initialize  bool
}

// Store is an ordered key-value transactional store. Each worker holds at
// most one open transaction at a time (spec.md §4.3); the store itself
// provides whatever internal concurrency control is needed to serialize
// concurrent Update calls from different workers.
type Store interface {
	// Update runs fn within a read-write transaction, committing on a nil
	// return and rolling back otherwise.
	Update(fn func(Txn) error) error
	// View runs fn within a read-only transaction.
	View(fn func(Txn) error) error
	Close() error
}

// Txn is a single read-write or read-only transaction.
type Txn interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Put stores val at key, overwriting any existing value.
	Put(key, val []byte) error
	// Delete removes key. It is not an error for key to be absent.
	Delete(key []byte) error
	// Cursor returns a new ordered cursor over the transaction's keyspace.
	Cursor() Cursor
}

// Cursor provides ordered forward iteration and floor/seek queries,
// matching the lexicographic byte-ordering spec.md §4.3 relies on for
// big-endian file offsets to sort correctly within an inode's extents.
type Cursor interface {
	// First seeks to the smallest key in the keyspace.
	First() (key, val []byte, ok bool)
	// Seek moves to the smallest key >= target.
	Seek(target []byte) (key, val []byte, ok bool)
	// SeekPrev moves to the largest key <= target ("seek-for-prev").
	SeekPrev(target []byte) (key, val []byte, ok bool)
	// Next advances to the next key in ascending order.
	Next() (key, val []byte, ok bool)
}
