// Package fh implements the file-handle codec (spec.md §4.2): an opaque
// byte string of at most 128 bytes carrying a 16-byte mount id, a 1-byte
// module magic, and a module-specific fragment.
package fh

import (
	"errors"

	"github.com/chimera-nas/chimera/lib/varint"
)

// MaxLen is the maximum encoded handle length (spec.md §4.2).
const MaxLen = 128

// MountIDLen is the fixed width of the mount-id prefix.
const MountIDLen = 16

// MagicOffset is the byte offset of the module-magic discriminator.
const MagicOffset = MountIDLen

// FragmentOffset is the byte offset where the module-specific fragment
// begins.
const FragmentOffset = MagicOffset + 1

var (
	// ErrTooShort is returned by Decode when the handle is shorter than
	// the fixed mount-id+magic prefix.
	ErrTooShort = errors.New("fh: handle shorter than fixed prefix")
	// ErrTooLong is returned by Encode* when the encoded handle would
	// exceed MaxLen.
	ErrTooLong = errors.New("fh: encoded handle exceeds maximum length")
	// ErrGenerationOverflow is returned by EncodeInum when gen would need
	// more varint bytes than the capped maximum (Design Note / Open
	// Question (c)).
	ErrGenerationOverflow = errors.New("fh: generation exceeds capped varint width")
)

// maxGenBytes caps the varint width of an encoded generation at 5 bytes
// (32-bit domain), per Open Question (c): "Cap at the varint's natural
// maximum or reject once generation overflows" — this module rejects.
const maxGenBytes = 5

// EncodeMount builds a new handle stamping fsid as the mount id — used
// once at MOUNT to mint a fresh mount identity (Design Note "Random
// FSID": fsid itself is generated by the caller with a cryptographic
// RNG, this function only packs it).
func EncodeMount(fsid [MountIDLen]byte, magic byte, fragment []byte) ([]byte, error) {
	return encode(fsid[:], magic, fragment)
}

// EncodeParent builds a child-of handle copying parent's mount id, used
// for every operation that returns a handle derived from an existing
// object (spec.md §4.2: "used for all child-of operations").
func EncodeParent(parent []byte, fragment []byte) ([]byte, error) {
	if len(parent) < FragmentOffset {
		return nil, ErrTooShort
	}
	return encode(parent[:MountIDLen], parent[MagicOffset], fragment)
}

func encode(mountID []byte, magic byte, fragment []byte) ([]byte, error) {
	total := MountIDLen + 1 + len(fragment)
	if total > MaxLen {
		return nil, ErrTooLong
	}
	out := make([]byte, 0, total)
	out = append(out, mountID...)
	out = append(out, magic)
	out = append(out, fragment...)
	return out, nil
}

// Decode splits h into its mount id, module magic, and fragment. The
// mount id is propagated unchanged (not validated) so a client's later
// stateful identification stays consistent, per spec.md §4.2; only the
// magic byte determines routing.
func Decode(h []byte) (mountID [MountIDLen]byte, magic byte, fragment []byte, err error) {
	if len(h) < FragmentOffset {
		return mountID, 0, nil, ErrTooShort
	}
	copy(mountID[:], h[:MountIDLen])
	magic = h[MagicOffset]
	fragment = h[FragmentOffset:]
	return mountID, magic, fragment, nil
}

// EncodeInum builds an inode-addressed fragment: varint(inum) +
// varint(generation), per spec.md §4.2, capped per Open Question (c).
func EncodeInum(inum uint64, gen uint32) ([]byte, error) {
	var buf []byte
	buf = varint.Append(buf, inum)
	genBuf, err := varint.AppendCapped(nil, uint64(gen), maxGenBytes)
	if err != nil {
		return nil, ErrGenerationOverflow
	}
	buf = append(buf, genBuf...)
	return buf, nil
}

// DecodeInum parses a fragment built by EncodeInum.
func DecodeInum(fragment []byte) (inum uint64, gen uint32, err error) {
	inum, n, err := varint.Read(fragment)
	if err != nil {
		return 0, 0, err
	}
	g, _, err := varint.Read(fragment[n:])
	if err != nil {
		return 0, 0, err
	}
	return inum, uint32(g), nil
}
