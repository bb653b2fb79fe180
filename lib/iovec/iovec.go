// Package iovec implements a reference-counted scatter/gather buffer and a
// cursor over a vector of such buffers, redesigning the teacher's
// evpl_iovec_cursor.h (original_source/src/vfs/cairn/evpl_iovec_cursor.h)
// per Design Note "Explicit refcounts on buffers": instead of callers
// manually incrementing a refcount field, Iovec.Ref returns a new shared
// handle and Release decrements it, freeing the backing array only when
// the last holder releases.
package iovec

import "sync/atomic"

// buffer is the shared backing store for one or more Iovec views.
type buffer struct {
	data refs
}

type refs struct {
	b   []byte
	n   int32
	rel func()
}

// Iovec is a reference-counted view (ptr, len) over a shared backing
// buffer. The zero value is not valid; use New or Ref.
type Iovec struct {
	buf    *refs
	offset int
	length int
}

// New wraps an existing byte slice as a freshly-owned Iovec with refcount
// 1. rel, if non-nil, is invoked when the last reference is released
// (e.g. to return the slice to a slab arena).
func New(b []byte, rel func()) Iovec {
	r := &refs{b: b, n: 1, rel: rel}
	return Iovec{buf: r, offset: 0, length: len(b)}
}

// Len returns the number of bytes this view covers.
func (v Iovec) Len() int { return v.length }

// Bytes returns the byte slice this view covers. The caller must not
// retain it past Release.
func (v Iovec) Bytes() []byte {
	return v.buf.b[v.offset : v.offset+v.length]
}

// Ref increments the backing buffer's refcount and returns a new handle
// sharing the same storage — the "move" operation from the design note,
// used when a write path hands the same data to multiple submissions.
func (v Iovec) Ref() Iovec {
	atomic.AddInt32(&v.buf.n, 1)
	return v
}

// Sub returns a new reference-counted view over [off, off+n) of v,
// bumping the shared refcount.
func (v Iovec) Sub(off, n int) Iovec {
	if off < 0 || n < 0 || off+n > v.length {
		panic("iovec: sub range out of bounds")
	}
	atomic.AddInt32(&v.buf.n, 1)
	return Iovec{buf: v.buf, offset: v.offset + off, length: n}
}

// Release drops this handle's reference. When the last reference is
// dropped the optional release callback runs.
func (v Iovec) Release() {
	if atomic.AddInt32(&v.buf.n, -1) == 0 && v.buf.rel != nil {
		v.buf.rel()
	}
}

// Cursor treats a vector of Iovecs as a single byte stream.
type Cursor struct {
	vec []Iovec
	idx int
	off int
}

// NewCursor builds a Cursor over vec. The cursor takes ownership of the
// slice header but not of the Iovecs' references — callers retain
// responsibility for eventually calling Release on each.
func NewCursor(vec []Iovec) *Cursor {
	return &Cursor{vec: vec}
}

// Remaining returns the number of bytes left unread in the cursor.
func (c *Cursor) Remaining() int {
	n := 0
	if c.idx < len(c.vec) {
		n += c.vec[c.idx].Len() - c.off
	}
	for i := c.idx + 1; i < len(c.vec); i++ {
		n += c.vec[i].Len()
	}
	return n
}

// Copy copies up to len(dst) bytes from the cursor into dst, advancing the
// cursor, and returns the number of bytes copied.
func (c *Cursor) Copy(dst []byte) int {
	total := 0
	for total < len(dst) && c.idx < len(c.vec) {
		cur := c.vec[c.idx]
		avail := cur.Len() - c.off
		n := len(dst) - total
		if n > avail {
			n = avail
		}
		copy(dst[total:total+n], cur.Bytes()[c.off:c.off+n])
		total += n
		c.off += n
		if c.off == cur.Len() {
			c.idx++
			c.off = 0
		}
	}
	return total
}

// Skip advances the cursor by n bytes without copying, returning the
// number of bytes actually skipped (may be less than n at end of stream).
func (c *Cursor) Skip(n int) int {
	skipped := 0
	for n > 0 && c.idx < len(c.vec) {
		cur := c.vec[c.idx]
		avail := cur.Len() - c.off
		s := n
		if s > avail {
			s = avail
		}
		c.off += s
		skipped += s
		n -= s
		if c.off == cur.Len() {
			c.idx++
			c.off = 0
		}
	}
	return skipped
}

// Move returns a new slice of Iovecs covering the next n bytes of the
// cursor, each a reference-counted sub-view (advancing shared refcounts),
// and advances the cursor past them.
func (c *Cursor) Move(n int) []Iovec {
	var out []Iovec
	for n > 0 && c.idx < len(c.vec) {
		cur := c.vec[c.idx]
		avail := cur.Len() - c.off
		take := n
		if take > avail {
			take = avail
		}
		out = append(out, cur.Sub(c.off, take))
		c.off += take
		n -= take
		if c.off == cur.Len() {
			c.idx++
			c.off = 0
		}
	}
	return out
}
