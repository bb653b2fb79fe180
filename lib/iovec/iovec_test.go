package iovec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefRelease(t *testing.T) {
	freed := false
	v := New([]byte("hello"), func() { freed = true })
	v2 := v.Ref()
	v.Release()
	assert.False(t, freed, "still one ref outstanding")
	v2.Release()
	assert.True(t, freed)
}

func TestSub(t *testing.T) {
	v := New([]byte("hello world"), nil)
	s := v.Sub(6, 5)
	assert.Equal(t, "world", string(s.Bytes()))
	s.Release()
	v.Release()
}

func TestCursorCopy(t *testing.T) {
	v1 := New([]byte("abc"), nil)
	v2 := New([]byte("defgh"), nil)
	c := NewCursor([]Iovec{v1, v2})
	buf := make([]byte, 6)
	n := c.Copy(buf)
	require.Equal(t, 6, n)
	assert.Equal(t, "abcdef", string(buf))
	assert.Equal(t, 2, c.Remaining())
}

func TestCursorSkipAndMove(t *testing.T) {
	v1 := New([]byte("0123456789"), nil)
	c := NewCursor([]Iovec{v1})
	skipped := c.Skip(3)
	assert.Equal(t, 3, skipped)
	parts := c.Move(4)
	require.Len(t, parts, 1)
	assert.Equal(t, "3456", string(parts[0].Bytes()))
	for _, p := range parts {
		p.Release()
	}
	buf := make([]byte, 10)
	n := c.Copy(buf)
	assert.Equal(t, "789", string(buf[:n]))
}
