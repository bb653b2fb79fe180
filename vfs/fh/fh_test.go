package fh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMountDecodeRoundTrip(t *testing.T) {
	var fsid [16]byte
	copy(fsid[:], "0123456789abcdef")
	frag, err := EncodeInum(42, 1)
	require.NoError(t, err)

	h, err := EncodeMount(fsid, 0xCA, frag)
	require.NoError(t, err)

	mountID, magic, fragment, err := Decode(h)
	require.NoError(t, err)
	assert.Equal(t, fsid, mountID)
	assert.Equal(t, byte(0xCA), magic)

	inum, gen, err := DecodeInum(fragment)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), inum)
	assert.Equal(t, uint32(1), gen)
}

func TestEncodeParentPropagatesMountID(t *testing.T) {
	var fsid [16]byte
	copy(fsid[:], "mount-id-1234567")
	rootFrag, _ := EncodeInum(2, 1)
	root, err := EncodeMount(fsid, 0xCA, rootFrag)
	require.NoError(t, err)

	childFrag, _ := EncodeInum(99, 3)
	child, err := EncodeParent(root, childFrag)
	require.NoError(t, err)

	mountID, magic, fragment, err := Decode(child)
	require.NoError(t, err)
	assert.Equal(t, fsid, mountID)
	assert.Equal(t, byte(0xCA), magic)
	inum, gen, err := DecodeInum(fragment)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), inum)
	assert.Equal(t, uint32(3), gen)
}

func TestDecodeTooShort(t *testing.T) {
	_, _, _, err := Decode(make([]byte, 10))
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestEncodeTooLong(t *testing.T) {
	var fsid [16]byte
	_, err := EncodeMount(fsid, 1, make([]byte, 200))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestGenerationCapRejectsOverflow(t *testing.T) {
	_, err := EncodeInum(1, 1<<31)
	assert.ErrorIs(t, err, ErrGenerationOverflow)
}

func TestHandlesStayUnder32BytesForTypicalInums(t *testing.T) {
	frag, err := EncodeInum(1<<20, 7)
	require.NoError(t, err)
	var fsid [16]byte
	h, err := EncodeMount(fsid, 1, frag)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(h), 32)
}
