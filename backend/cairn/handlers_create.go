package cairn

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// newChild allocates an inum, writes its inode record and dirent, and
// bumps the parent's mtime (spec.md §4.3 "mkdir / mknod / symlink /
// open-with-create"). For a directory child it also bumps the parent's
// nlink and records the parent for "..".
func (m *Module) newChild(w *vfs.Worker, ws *workerState, req *vfs.Request, parentInum uint64, parent *inodeRecord, mode uint32) (uint64, *inodeRecord, error) {
	inum := ws.allocInum(w.ID)
	now := time.Now().UnixNano()
	rec := &inodeRecord{
		Mode:       mode,
		Nlink:      1,
		Uid:        req.Uid,
		Gid:        req.Gid,
		Generation: 1,
		Rdev:       req.Rdev,
		Atime:      now,
		Mtime:      now,
		Ctime:      now,
	}
	if mode&vfs.ModeTypeMask == vfs.ModeDir {
		rec.Nlink = 2
		rec.ParentInum = parentInum
		rec.ParentGen = parent.Generation
		parent.Nlink++
	}

	txn := ws.txn.ensure(w)
	if err := putInode(txn, inum, rec); err != nil {
		return 0, nil, err
	}
	if err := txn.Put(DirentKey(parentInum, vfs.HashName(req.Name)), encodeDirentValue(inum, req.Name)); err != nil {
		return 0, nil, vfs.NewError(vfs.ErrFault, err)
	}
	parent.Mtime = now
	if err := putInode(txn, parentInum, parent); err != nil {
		return 0, nil, err
	}
	return inum, rec, nil
}

func (m *Module) prepareCreate(w *vfs.Worker, ws *workerState, req *vfs.Request) (parentInum uint64, parent *inodeRecord, exists bool, existingInum uint64, fail bool) {
	txn := ws.txn.ensure(w)
	parentInum, parent, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return 0, nil, false, 0, true
	}
	if !parent.IsDirMode() {
		req.Complete(vfs.ErrNotdir)
		return 0, nil, false, 0, true
	}
	if len(req.Name) > 255 {
		req.Complete(vfs.ErrNametoolong)
		return 0, nil, false, 0, true
	}
	childInum, lerr := lookupDirent(txn, parentInum, req.Name)
	if lerr == nil {
		return parentInum, parent, true, childInum, false
	}
	return parentInum, parent, false, 0, false
}

// IsDirMode reports whether rec is a directory; a small alias kept local
// to this package so handler code reads like the spec's prose.
func (r *inodeRecord) IsDirMode() bool { return r.Mode&vfs.ModeTypeMask == vfs.ModeDir }

func (m *Module) mkdir(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parentInum, parent, exists, _, fail := m.prepareCreate(w, ws, req)
	if fail {
		return
	}
	if exists {
		req.Complete(vfs.ErrExist)
		return
	}
	mode := vfs.ModeDir | (req.Mode & vfs.ModePermMask)
	inum, rec, err := m.newChild(w, ws, req, parentInum, parent, mode)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	m.finishCreate(w, ws, req, parentInum, inum, rec)
}

func (m *Module) mknod(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parentInum, parent, exists, existingInum, fail := m.prepareCreate(w, ws, req)
	if fail {
		return
	}
	if exists {
		if req.Exclusive {
			req.Complete(vfs.ErrExist)
			return
		}
		txn := ws.txn.ensure(w)
		rec, err := getInode(txn, existingInum)
		if err != nil {
			req.Fail(err.(*vfs.Error))
			return
		}
		m.finishCreate(w, ws, req, parentInum, existingInum, rec)
		return
	}
	inum, rec, err := m.newChild(w, ws, req, parentInum, parent, req.Mode)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	m.finishCreate(w, ws, req, parentInum, inum, rec)
}

func (m *Module) symlink(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parentInum, parent, exists, _, fail := m.prepareCreate(w, ws, req)
	if fail {
		return
	}
	if exists {
		req.Complete(vfs.ErrExist)
		return
	}
	mode := vfs.ModeSymlink | 0o777
	inum, rec, err := m.newChild(w, ws, req, parentInum, parent, mode)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	txn := ws.txn.ensure(w)
	if err := txn.Put(SymlinkKey(inum), []byte(req.Target)); err != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, err))
		return
	}
	m.finishCreate(w, ws, req, parentInum, inum, rec)
}

func (m *Module) createUnlinked(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	_, parent, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	_ = parent
	inum := ws.allocInum(w.ID)
	now := time.Now().UnixNano()
	rec := &inodeRecord{
		Mode:       req.Mode,
		Nlink:      0,
		RefCount:   1,
		Uid:        req.Uid,
		Gid:        req.Gid,
		Generation: 1,
		Atime:      now,
		Mtime:      now,
		Ctime:      now,
	}
	if err := putInode(txn, inum, rec); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	h, herr := childHandle(req.FH, inum, rec.Generation)
	if herr != nil {
		req.Fail(herr.(*vfs.Error))
		return
	}
	req.ResultFH = h
	attr := rec.attr(inum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) finishCreate(w *vfs.Worker, ws *workerState, req *vfs.Request, parentInum, inum uint64, rec *inodeRecord) {
	h, err := childHandle(req.FH, inum, rec.Generation)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	req.ResultFH = h
	attr := rec.attr(inum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) readlink(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if rec.Mode&vfs.ModeTypeMask != vfs.ModeSymlink {
		req.Complete(vfs.ErrInval)
		return
	}
	target, gerr := txn.Get(SymlinkKey(inum))
	if gerr != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, gerr))
		return
	}
	req.ResultData = target
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) open(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if !req.Inferred {
		rec.RefCount++
		if err := putInode(txn, inum, rec); err != nil {
			req.Fail(err.(*vfs.Error))
			return
		}
	}
	req.ResultFH = req.FH
	attr := rec.attr(inum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) openAt(w *vfs.Worker, ws *workerState, req *vfs.Request) {
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
	childInum, lerr := lookupDirent(txn, parentInum, req.Name)
	if lerr != nil {
		req.Fail(lerr.(*vfs.Error))
		return
	}
	rec, gerr := getInode(txn, childInum)
	if gerr != nil {
		req.Fail(gerr.(*vfs.Error))
		return
	}
	if req.Exclusive {
		req.Complete(vfs.ErrExist)
		return
	}
	if !req.Inferred {
		rec.RefCount++
		if err := putInode(txn, childInum, rec); err != nil {
			req.Fail(err.(*vfs.Error))
			return
		}
	}
	h, herr := childHandle(req.FH, childInum, rec.Generation)
	if herr != nil {
		req.Fail(herr.(*vfs.Error))
		return
	}
	req.ResultFH = h
	attr := rec.attr(childInum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}

func (m *Module) close(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if !req.Inferred && rec.RefCount > 0 {
		rec.RefCount--
	}
	if derr := destroyIfOrphaned(txn, inum, rec); derr != nil {
		req.Fail(derr.(*vfs.Error))
		return
	}
	ws.txn.complete(req, vfs.OK)
}
