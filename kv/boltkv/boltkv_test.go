package boltkv

import (
	"path/filepath"
	"testing"

	"github.com/chimera-nas/chimera/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts kv.Options) *Store {
	t.Helper()
	opts.Path = filepath.Join(t.TempDir(), "chimera.db")
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t, kv.Options{})
	err := s.Update(func(txn kv.Txn) error {
		return txn.Put([]byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	err = s.View(func(txn kv.Txn) error {
		v, err := txn.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, "1", string(v))
		return nil
	})
	require.NoError(t, err)

	err = s.Update(func(txn kv.Txn) error {
		return txn.Delete([]byte("a"))
	})
	require.NoError(t, err)

	err = s.View(func(txn kv.Txn) error {
		_, err := txn.Get([]byte("a"))
		assert.ErrorIs(t, err, kv.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestCursorOrderingAndSeekPrev(t *testing.T) {
	s := openTestStore(t, kv.Options{})
	err := s.Update(func(txn kv.Txn) error {
		for _, k := range []string{"a", "c", "e", "g"} {
			if err := txn.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(func(txn kv.Txn) error {
		c := txn.Cursor()
		k, _, ok := c.First()
		require.True(t, ok)
		assert.Equal(t, "a", string(k))

		k, _, ok = c.SeekPrev([]byte("d"))
		require.True(t, ok)
		assert.Equal(t, "c", string(k))

		k, _, ok = c.SeekPrev([]byte("c"))
		require.True(t, ok)
		assert.Equal(t, "c", string(k))

		k, _, ok = c.SeekPrev([]byte("z"))
		require.True(t, ok)
		assert.Equal(t, "g", string(k))

		_, _, ok = c.SeekPrev([]byte(" "))
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	s := openTestStore(t, kv.Options{Compression: true})
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 7)
	}
	err := s.Update(func(txn kv.Txn) error {
		return txn.Put([]byte("blob"), payload)
	})
	require.NoError(t, err)

	err = s.View(func(txn kv.Txn) error {
		v, err := txn.Get([]byte("blob"))
		require.NoError(t, err)
		assert.Equal(t, payload, v)
		return nil
	})
	require.NoError(t, err)
}

func TestBloomFilterDoesNotHideRealKeys(t *testing.T) {
	s := openTestStore(t, kv.Options{BloomFilter: true})
	err := s.Update(func(txn kv.Txn) error {
		return txn.Put([]byte("present"), []byte("v"))
	})
	require.NoError(t, err)

	err = s.View(func(txn kv.Txn) error {
		v, err := txn.Get([]byte("present"))
		require.NoError(t, err)
		assert.Equal(t, "v", string(v))
		_, err = txn.Get([]byte("absent"))
		assert.ErrorIs(t, err, kv.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
