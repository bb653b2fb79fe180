package demofs

import (
	"context"
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// read implements spec.md §4.4 "Read path": fill the requested range
// from n's extent tree, submitting one block_read per overlapping
// extent and zero-filling holes. demofs has no equivalent of cairn's
// NoAtime config flag, so atime is always bumped on read.
func (m *Module) read(ctx context.Context, w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	start := req.Offset
	want := req.Length
	buf := make([]byte, want) // zero-valued; holes between extents read as zero
	if ierr := m.readIntoBuffer(ctx, w, ws, n, buf, start); ierr != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, ierr))
		return
	}

	n.atime = time.Now().UnixNano()

	req.ResultData = buf
	req.Eof = start+want >= int64(n.size)
	req.Complete(vfs.OK)
}

// write implements spec.md §4.4 "Write path": 4-KiB-align the target
// range, read-modify-write the edge blocks when the request isn't
// already aligned, carve fresh device storage for the aligned range,
// submit the write, then punch any overlapping old extents and insert
// the one new extent record.
func (m *Module) write(ctx context.Context, w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	start := req.Offset
	data := req.Data
	end := start + int64(len(data))

	alignedStart := start &^ (blockSize - 1)
	alignedEnd := (end + blockSize - 1) &^ (blockSize - 1)

	var scratch []byte
	if alignedStart == start && alignedEnd == end {
		scratch = data
	} else {
		scratch = make([]byte, alignedEnd-alignedStart)
		if n.extents != nil {
			if start > alignedStart {
				if ierr := m.readIntoBuffer(ctx, w, ws, n, scratch[:start-alignedStart], alignedStart); ierr != nil {
					req.Fail(vfs.NewError(vfs.ErrFault, ierr))
					return
				}
			}
			if alignedEnd > end {
				if ierr := m.readIntoBuffer(ctx, w, ws, n, scratch[end-alignedStart:], end); ierr != nil {
					req.Fail(vfs.NewError(vfs.ErrFault, ierr))
					return
				}
			}
		}
		copy(scratch[start-alignedStart:], data)
	}

	if n.extents == nil {
		n.extents = newExtentTree()
	}

	_, deviceID, devOff, cerr := ws.res.carve(m.pool, int64(len(scratch)))
	if cerr != nil {
		req.Fail(cerr.(*vfs.Error))
		return
	}
	if werr := m.submitWrite(ctx, w, ws, deviceID, devOff, scratch); werr != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, werr))
		return
	}

	freed := punchExtents(ws, n.extents, alignedStart, alignedEnd)
	rec := ws.extentArena.Get()
	*rec = extentRecord{deviceID: deviceID, deviceOffset: devOff, length: int64(len(scratch))}
	_ = n.extents.Insert(alignedStart, rec)

	n.spaceUsed = n.spaceUsed + uint64(len(scratch)) - uint64(freed)
	if end > int64(n.size) {
		n.size = uint64(end)
	}
	n.mtime = time.Now().UnixNano()

	post := n.attr()
	req.Post = &post
	req.Complete(vfs.OK)
}
