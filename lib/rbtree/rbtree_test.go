package rbtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lessInt(a, b int) bool { return a < b }

func TestInsertGetDuplicate(t *testing.T) {
	tr := New[int, string](lessInt)
	require.NoError(t, tr.Insert(5, "five"))
	require.ErrorIs(t, tr.Insert(5, "dup"), ErrDuplicateKey)
	v, ok := tr.Get(5)
	require.True(t, ok)
	assert.Equal(t, "five", v)
	_, ok = tr.Get(6)
	assert.False(t, ok)
}

func TestFloorCeil(t *testing.T) {
	tr := New[int, int](lessInt)
	for _, k := range []int{10, 20, 30, 40} {
		require.NoError(t, tr.Insert(k, k))
	}
	k, _, ok := tr.Floor(25)
	require.True(t, ok)
	assert.Equal(t, 20, k)

	k, _, ok = tr.Floor(10)
	require.True(t, ok)
	assert.Equal(t, 10, k)

	_, _, ok = tr.Floor(5)
	assert.False(t, ok)

	k, _, ok = tr.Ceil(25)
	require.True(t, ok)
	assert.Equal(t, 30, k)

	_, _, ok = tr.Ceil(41)
	assert.False(t, ok)
}

func TestFirstNext(t *testing.T) {
	tr := New[int, int](lessInt)
	keys := []int{5, 1, 9, 3, 7}
	for _, k := range keys {
		require.NoError(t, tr.Insert(k, k))
	}
	k, _, ok := tr.First()
	require.True(t, ok)
	assert.Equal(t, 1, k)

	var order []int
	cur, _, ok := tr.First()
	for ok {
		order = append(order, cur)
		cur, _, ok = tr.Next(cur)
	}
	assert.Equal(t, []int{1, 3, 5, 7, 9}, order)
}

func TestRemove(t *testing.T) {
	tr := New[int, int](lessInt)
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.Insert(i, i))
	}
	for i := 0; i < 100; i += 2 {
		assert.True(t, tr.Remove(i))
	}
	assert.False(t, tr.Remove(0))
	assert.Equal(t, 50, tr.Len())
	for i := 1; i < 100; i += 2 {
		_, ok := tr.Get(i)
		assert.True(t, ok)
	}
}

func TestRandomizedAgainstSortedSlice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := New[int, int](lessInt)
	present := map[int]bool{}
	for i := 0; i < 2000; i++ {
		k := rng.Intn(500)
		if rng.Intn(3) == 0 && present[k] {
			tr.Remove(k)
			delete(present, k)
		} else if !present[k] {
			require.NoError(t, tr.Insert(k, k))
			present[k] = true
		}
	}
	var want []int
	for k := range present {
		want = append(want, k)
	}
	sort.Ints(want)

	var got []int
	cur, _, ok := tr.First()
	for ok {
		got = append(got, cur)
		cur, _, ok = tr.Next(cur)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), tr.Len())
}

func TestWalkStopsEarly(t *testing.T) {
	tr := New[int, int](lessInt)
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.Insert(i, i))
	}
	var seen []int
	tr.Walk(func(k, v int) bool {
		seen = append(seen, k)
		return k < 4
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}
