package cairn

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// rename implements spec.md §4.3 "Rename". cairn does not need the
// explicit lock-ordering dance spec.md describes for multi-object
// operations: the whole rename runs inside the worker's single open
// write transaction, so the KV store's own serialization is the
// atomicity boundary, not a pair of held mutexes.
func (m *Module) rename(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)

	oldParentInum, oldParent, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	newParentInum, newParent, err := decodeHandle(txn, req.NewParent)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	childInum, lerr := lookupDirent(txn, oldParentInum, req.Name)
	if lerr != nil {
		req.Fail(lerr.(*vfs.Error))
		return
	}
	child, gerr := getInode(txn, childInum)
	if gerr != nil {
		req.Fail(gerr.(*vfs.Error))
		return
	}

	if destInum, derr := lookupDirent(txn, newParentInum, req.NewName); derr == nil {
		if destInum == childInum {
			ws.txn.complete(req, vfs.OK)
			return
		}
		dest, derr := getInode(txn, destInum)
		if derr != nil {
			req.Fail(derr.(*vfs.Error))
			return
		}
		if dest.IsDirMode() && directoryHasEntries(txn, destInum) {
			req.Complete(vfs.ErrNotempty)
			return
		}
		dest.Nlink--
		if dest.IsDirMode() {
			newParent.Nlink--
		}
		if derr := destroyIfOrphaned(txn, destInum, dest); derr != nil {
			req.Fail(derr.(*vfs.Error))
			return
		}
	}

	now := time.Now().UnixNano()

	if err := txn.Put(DirentKey(newParentInum, vfs.HashName(req.NewName)), encodeDirentValue(childInum, req.NewName)); err != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, err))
		return
	}
	if err := txn.Delete(DirentKey(oldParentInum, vfs.HashName(req.Name))); err != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, err))
		return
	}

	if child.IsDirMode() && oldParentInum != newParentInum {
		oldParent.Nlink--
		newParent.Nlink++
		child.ParentInum = newParentInum
		child.ParentGen = newParent.Generation
	}
	child.Ctime = now
	oldParent.Mtime = now
	newParent.Mtime = now

	if err := putInode(txn, childInum, child); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if err := putInode(txn, oldParentInum, oldParent); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if oldParentInum != newParentInum {
		if err := putInode(txn, newParentInum, newParent); err != nil {
			req.Fail(err.(*vfs.Error))
			return
		}
	}

	ws.txn.complete(req, vfs.OK)
}

// link creates an additional directory entry for an existing file
// (hardlink); directories may not be linked.
func (m *Module) link(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)

	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if rec.IsDirMode() {
		req.Complete(vfs.ErrPerm)
		return
	}
	newParentInum, newParent, err := decodeHandle(txn, req.NewParent)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if !newParent.IsDirMode() {
		req.Complete(vfs.ErrNotdir)
		return
	}
	if _, lerr := lookupDirent(txn, newParentInum, req.NewName); lerr == nil {
		req.Complete(vfs.ErrExist)
		return
	}

	now := time.Now().UnixNano()
	if err := txn.Put(DirentKey(newParentInum, vfs.HashName(req.NewName)), encodeDirentValue(inum, req.NewName)); err != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, err))
		return
	}
	rec.Nlink++
	rec.Ctime = now
	newParent.Mtime = now
	if err := putInode(txn, inum, rec); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if err := putInode(txn, newParentInum, newParent); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	h, herr := childHandle(req.NewParent, inum, rec.Generation)
	if herr != nil {
		req.Fail(herr.(*vfs.Error))
		return
	}
	req.ResultFH = h
	attr := rec.attr(inum)
	req.Post = &attr
	ws.txn.complete(req, vfs.OK)
}
