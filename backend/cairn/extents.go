package cairn

import (
	"github.com/chimera-nas/chimera/kv"
	"github.com/chimera-nas/chimera/vfs"
)

// truncateExtents drops the portion of inum's data at or past newSize:
// extents entirely beyond newSize are deleted, and the one extent
// straddling newSize (if any) is trimmed to end exactly at newSize
// (spec.md §4.4 "Truncation", reused here for cairn's SETATTR size path
// since the bookkeeping is identical). Returns the number of bytes
// freed, for space_used accounting.
func truncateExtents(txn kv.Txn, inum uint64, newSize int64) (uint64, error) {
	prefix := extentPrefix(inum)
	var freed uint64

	c := txn.Cursor()
	for k, v, ok := c.Seek(prefix); ok && hasPrefix(k, prefix); k, v, ok = c.Next() {
		_, offset := decodeExtentKey(k)
		end := offset + int64(len(v))

		switch {
		case offset >= newSize:
			if err := txn.Delete(k); err != nil {
				return 0, vfs.NewError(vfs.ErrFault, err)
			}
			freed += uint64(len(v))
		case end > newSize:
			keep := newSize - offset
			freed += uint64(len(v)) - uint64(keep)
			if err := txn.Put(k, v[:keep]); err != nil {
				return 0, vfs.NewError(vfs.ErrFault, err)
			}
		}
	}
	return freed, nil
}

type extentSpan struct {
	offset int64
	data   []byte
}

// punchRange clears [start, end) from inum's extent space ahead of a
// write, trimming or splitting any extent that straddles an edge
// (spec.md §4.3 "Write / Hole-punch": "Hole-punch removes fully-contained
// extents, trims the ones that straddle an edge, and splits an extent
// entirely containing the hole"). Returns the number of bytes freed.
//
// Overlapping extents are gathered into a slice before any mutation so
// the cursor never has to observe a key it just rewrote.
func punchRange(txn kv.Txn, inum uint64, start, end int64) (int64, error) {
	prefix := extentPrefix(inum)
	var overlapping []extentSpan

	c := txn.Cursor()
	k, v, ok := c.SeekPrev(ExtentKey(inum, start))
	if !ok || !hasPrefix(k, prefix) {
		k, v, ok = c.Seek(prefix)
	}
	for ok && hasPrefix(k, prefix) {
		_, offset := decodeExtentKey(k)
		extEnd := offset + int64(len(v))
		if offset >= end {
			break
		}
		if extEnd > start {
			overlapping = append(overlapping, extentSpan{offset: offset, data: append([]byte(nil), v...)})
		}
		k, v, ok = c.Next()
	}

	var freed int64
	for _, ext := range overlapping {
		offset, data := ext.offset, ext.data
		extEnd := offset + int64(len(data))

		if err := txn.Delete(ExtentKey(inum, offset)); err != nil {
			return 0, vfs.NewError(vfs.ErrFault, err)
		}

		switch {
		case offset >= start && extEnd <= end:
			// Fully contained.
			freed += int64(len(data))

		case offset < start && extEnd <= end:
			// Straddles the left edge: keep the prefix before start.
			keep := data[:start-offset]
			freed += int64(len(data)) - int64(len(keep))
			if err := txn.Put(ExtentKey(inum, offset), keep); err != nil {
				return 0, vfs.NewError(vfs.ErrFault, err)
			}

		case offset >= start && extEnd > end:
			// Straddles the right edge: keep the suffix after end.
			keep := data[end-offset:]
			freed += int64(len(data)) - int64(len(keep))
			if err := txn.Put(ExtentKey(inum, end), keep); err != nil {
				return 0, vfs.NewError(vfs.ErrFault, err)
			}

		default:
			// Strictly contains the hole: split into before/after.
			before := data[:start-offset]
			after := data[end-offset:]
			freed += int64(len(data)) - int64(len(before)) - int64(len(after))
			if len(before) > 0 {
				if err := txn.Put(ExtentKey(inum, offset), before); err != nil {
					return 0, vfs.NewError(vfs.ErrFault, err)
				}
			}
			if len(after) > 0 {
				if err := txn.Put(ExtentKey(inum, end), after); err != nil {
					return 0, vfs.NewError(vfs.ErrFault, err)
				}
			}
		}
	}

	return freed, nil
}
