package cairn

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
	"github.com/chimera-nas/chimera/vfs/fh"
)

func (m *Module) mount(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	rec, err := getInode(txn, rootInum)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	frag, ferr := fh.EncodeInum(rootInum, rec.Generation)
	if ferr != nil {
		req.Complete(vfs.ErrStale)
		return
	}
	h, ferr := fh.EncodeMount(m.fsid, Magic, frag)
	if ferr != nil {
		req.Complete(vfs.ErrStale)
		return
	}
	req.ResultFH = vfs.FileHandle(h)
	attr := rec.attr(rootInum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) lookup(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	parentInum, parent, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if !parent.IsDirMode() {
		req.Complete(vfs.ErrNotdir)
		return
	}

	// "." and ".." never hit the dirent table: "." is the directory
	// itself, ".." is the stored parent inum/generation (spec.md §4.1
	// "Name semantics" — the root is its own parent).
	targetInum, targetRec := parentInum, parent
	switch req.Name {
	case ".":
	case "..":
		rec, perr := getInode(txn, parent.ParentInum)
		if perr != nil {
			req.Fail(perr.(*vfs.Error))
			return
		}
		targetInum, targetRec = parent.ParentInum, rec
	default:
		childInum, lerr := lookupDirent(txn, parentInum, req.Name)
		if lerr != nil {
			req.Fail(lerr.(*vfs.Error))
			return
		}
		child, gerr := getInode(txn, childInum)
		if gerr != nil {
			req.Fail(gerr.(*vfs.Error))
			return
		}
		targetInum, targetRec = childInum, child
	}

	h, herr := childHandle(req.FH, targetInum, targetRec.Generation)
	if herr != nil {
		req.Fail(herr.(*vfs.Error))
		return
	}
	req.ResultFH = h
	attr := targetRec.attr(targetInum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) getattr(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	attr := rec.attr(inum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) setattr(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	pre := rec.attr(inum)
	req.Pre = &pre

	if req.AttrMask.Has(vfs.MaskMode) {
		rec.Mode = rec.Mode&vfs.ModeTypeMask | req.Mode&vfs.ModePermMask
	}
	if req.AttrMask.Has(vfs.MaskUid) {
		rec.Uid = req.Uid
	}
	if req.AttrMask.Has(vfs.MaskGid) {
		rec.Gid = req.Gid
	}
	if req.SetSize != nil {
		newSize := uint64(*req.SetSize)
		if newSize < rec.Size {
			freed, terr := truncateExtents(txn, inum, *req.SetSize)
			if terr != nil {
				req.Fail(terr.(*vfs.Error))
				return
			}
			rec.SpaceUsed -= freed
		}
		rec.Size = newSize
	}
	rec.Ctime = time.Now().UnixNano()

	if err := putInode(txn, inum, rec); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	post := rec.attr(inum)
	req.Post = &post
	ws.txn.complete(req, vfs.OK)
}
