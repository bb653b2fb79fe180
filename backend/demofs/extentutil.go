package demofs

import (
	"context"
	"sync"

	"github.com/chimera-nas/chimera/lib/iovec"
	"github.com/chimera-nas/chimera/lib/rbtree"
	"github.com/chimera-nas/chimera/vfs"
)

// maxOffset stands in for "infinity" when truncateExtents reuses
// punchExtents to drop everything at or past a new EOF.
const maxOffset = int64(1) << 62

// punchExtents clears [start, end) from tree, trimming or splitting any
// extent that straddles an edge — the same algorithm cairn's punchRange
// uses against its KV-backed extent keys (spec.md §4.4 write path:
// "Remove or trim extents overlapping the new aligned range as in cairn:
// full removal, prefix trim, suffix trim, or split"). Returns the number
// of bytes freed, for space_used accounting.
func punchExtents(ws *workerState, tree *rbtree.Tree[int64, *extentRecord], start, end int64) int64 {
	type span struct {
		offset int64
		rec    *extentRecord
	}
	var overlapping []span
	tree.Walk(func(offset int64, rec *extentRecord) bool {
		if offset < end && offset+rec.length > start {
			overlapping = append(overlapping, span{offset, rec})
		}
		return true
	})

	var freed int64
	for _, s := range overlapping {
		offset, rec := s.offset, s.rec
		extEnd := offset + rec.length
		tree.Remove(offset)

		switch {
		case offset >= start && extEnd <= end:
			// Fully contained.
			freed += rec.length
			ws.extentArena.Put(rec)

		case offset < start && extEnd <= end:
			// Straddles the left edge: keep the prefix before start.
			freed += extEnd - start
			rec.length = start - offset
			_ = tree.Insert(offset, rec)

		case offset >= start && extEnd > end:
			// Straddles the right edge: keep the suffix after end.
			freed += end - offset
			after := ws.extentArena.Get()
			*after = extentRecord{deviceID: rec.deviceID, deviceOffset: rec.deviceOffset + (end - offset), length: extEnd - end}
			_ = tree.Insert(end, after)
			ws.extentArena.Put(rec)

		default:
			// Strictly contains the hole: split into before/after.
			freed += end - start
			before := ws.extentArena.Get()
			*before = extentRecord{deviceID: rec.deviceID, deviceOffset: rec.deviceOffset, length: start - offset}
			_ = tree.Insert(offset, before)
			after := ws.extentArena.Get()
			*after = extentRecord{deviceID: rec.deviceID, deviceOffset: rec.deviceOffset + (end - offset), length: extEnd - end}
			_ = tree.Insert(end, after)
			ws.extentArena.Put(rec)
		}
	}
	return freed
}

// truncateExtents drops the portion of a file's data at or past newSize,
// trimming the one extent that straddles newSize if any (spec.md §4.4
// "Truncation").
func truncateExtents(ws *workerState, tree *rbtree.Tree[int64, *extentRecord], newSize int64) uint64 {
	return uint64(punchExtents(ws, tree, newSize, maxOffset))
}

// readIntoBuffer fills buf — representing the byte range
// [start, start+len(buf)) of n's data — from n's extent tree, submitting
// one block_read per overlapping extent (spec.md §4.4 "Read path": "For
// each overlapping extent, issue one or more block_read submissions").
// buf must already be zero-valued so hole regions read as zero. Blocks
// until every submitted read completes.
func (m *Module) readIntoBuffer(ctx context.Context, w *vfs.Worker, ws *workerState, n *inode, buf []byte, start int64) error {
	if n.extents == nil || len(buf) == 0 {
		return nil
	}
	end := start + int64(len(buf))
	view := iovec.New(buf, nil)
	defer view.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	n.extents.Walk(func(offset int64, rec *extentRecord) bool {
		extEnd := offset + rec.length
		if offset >= end || extEnd <= start {
			return true
		}
		overlapStart := offset
		if start > overlapStart {
			overlapStart = start
		}
		overlapEnd := extEnd
		if end < overlapEnd {
			overlapEnd = end
		}
		overlapLen := overlapEnd - overlapStart
		sub := view.Sub(int(overlapStart-start), int(overlapLen))
		devOff := rec.deviceOffset + (overlapStart - offset)
		dev := m.deviceByID(rec.deviceID)
		if dev == nil {
			sub.Release()
			return true
		}

		wg.Add(1)
		ws.acquireIO(w)
		dev.SubmitRead(ctx, devOff, sub.Bytes(), func(err error) {
			defer wg.Done()
			defer ws.releaseIO(w)
			defer sub.Release()
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		return true
	})

	wg.Wait()
	return firstErr
}

// submitWrite issues a single block_write and blocks until it completes.
func (m *Module) submitWrite(ctx context.Context, w *vfs.Worker, ws *workerState, deviceID uint32, offset int64, data []byte) error {
	dev := m.deviceByID(deviceID)
	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	ws.acquireIO(w)
	dev.SubmitWrite(ctx, offset, data, func(e error) {
		defer wg.Done()
		defer ws.releaseIO(w)
		err = e
	})
	wg.Wait()
	return err
}
