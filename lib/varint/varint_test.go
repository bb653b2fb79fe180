package varint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)} {
		buf := Append(nil, v)
		assert.Equal(t, Len(v), len(buf))
		got, n, err := Read(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}

func TestReadTruncated(t *testing.T) {
	_, _, err := Read([]byte{0x80, 0x80})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReadOverflow(t *testing.T) {
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	_, _, err := Read(buf)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAppendCapped(t *testing.T) {
	_, err := AppendCapped(nil, 1<<40, 5)
	assert.Error(t, err)
	buf, err := AppendCapped(nil, 42, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, buf)
}

func TestMultipleValues(t *testing.T) {
	var buf []byte
	buf = Append(buf, 3)
	buf = Append(buf, 1<<15)
	v1, n1, err := Read(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v1)
	v2, n2, err := Read(buf[n1:])
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<15), v2)
	assert.Equal(t, len(buf), n1+n2)
}
