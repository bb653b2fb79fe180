package cairn

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// read implements spec.md §4.3 "Read": seek-for-prev onto the extent
// that might contain the start of the request, then walk forward
// zero-filling any gaps between extents (and any trailing gap past the
// last extent) until the requested length is covered.
func (m *Module) read(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	start := req.Offset
	want := req.Length
	reqEnd := start + want
	out := make([]byte, want) // zero-valued; gaps between extents read as zero

	prefix := extentPrefix(inum)
	c := txn.Cursor()
	k, v, ok := c.SeekPrev(ExtentKey(inum, start))
	if !ok || !hasPrefix(k, prefix) {
		k, v, ok = c.Seek(prefix)
	}

	for ok && hasPrefix(k, prefix) {
		extInum, offset := decodeExtentKey(k)
		if extInum != inum || offset >= reqEnd {
			break
		}
		extEnd := offset + int64(len(v))
		if extEnd <= start {
			k, v, ok = c.Next()
			continue
		}

		copyFrom := int64(0)
		if start > offset {
			copyFrom = start - offset
		}
		copyTo := int64(len(v))
		if offset+copyTo > reqEnd {
			copyTo = reqEnd - offset
		}
		if copyTo > copyFrom {
			dstStart := offset + copyFrom - start
			copy(out[dstStart:], v[copyFrom:copyTo])
		}
		k, v, ok = c.Next()
	}

	if !m.cfg.NoAtime {
		rec.Atime = time.Now().UnixNano()
		if err := putInode(txn, inum, rec); err != nil {
			req.Fail(err.(*vfs.Error))
			return
		}
	}

	req.ResultData = out
	req.Eof = start+want >= int64(rec.Size)
	ws.txn.complete(req, vfs.OK)
}

// write implements spec.md §4.3 "Write / Hole-punch": punch the target
// range clear of overlapping extents, then write the new data as one
// extent at the request's offset.
func (m *Module) write(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	start := req.Offset
	end := start + int64(len(req.Data))

	freed, perr := punchRange(txn, inum, start, end)
	if perr != nil {
		req.Fail(perr.(*vfs.Error))
		return
	}
	if len(req.Data) > 0 {
		if err := txn.Put(ExtentKey(inum, start), req.Data); err != nil {
			req.Fail(vfs.NewError(vfs.ErrFault, err))
			return
		}
	}

	rec.SpaceUsed = rec.SpaceUsed + uint64(len(req.Data)) - uint64(freed)
	if end > int64(rec.Size) {
		rec.Size = uint64(end)
	}
	rec.Mtime = time.Now().UnixNano()
	if err := putInode(txn, inum, rec); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	post := rec.attr(inum)
	req.Post = &post
	ws.txn.complete(req, vfs.OK)
}

// commit is a no-op beyond waiting for the worker's current transaction
// to land: cairn always commits atomically at the end of a tick, so
// there is no separate buffered-write state to flush (spec.md §4.3
// "Reply sync flag is always true: commits run atomically").
func (m *Module) commit(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	ws.txn.ensure(w)
	ws.txn.complete(req, vfs.OK)
}
