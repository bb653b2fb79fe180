package cairn

import (
	"time"

	"github.com/chimera-nas/chimera/kv"
	"github.com/chimera-nas/chimera/vfs"
)

// directoryHasEntries reports whether parent has any dirents at all,
// used to enforce ENOTEMPTY on rmdir/rename-over-directory.
func directoryHasEntries(txn kv.Txn, parentInum uint64) bool {
	prefix := direntPrefix(parentInum)
	k, _, ok := txn.Cursor().Seek(prefix)
	return ok && hasPrefix(k, prefix)
}

func (m *Module) remove(w *vfs.Worker, ws *workerState, req *vfs.Request) {
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
	child, gerr := getInode(txn, childInum)
	if gerr != nil {
		req.Fail(gerr.(*vfs.Error))
		return
	}

	if child.IsDirMode() && directoryHasEntries(txn, childInum) {
		req.Complete(vfs.ErrNotempty)
		return
	}

	now := time.Now().UnixNano()
	child.Nlink--
	if child.IsDirMode() {
		parent.Nlink--
	}
	if derr := destroyIfOrphaned(txn, childInum, child); derr != nil {
		req.Fail(derr.(*vfs.Error))
		return
	}

	if err := txn.Delete(DirentKey(parentInum, vfs.HashName(req.Name))); err != nil {
		req.Fail(vfs.NewError(vfs.ErrFault, err))
		return
	}
	parent.Mtime = now
	if err := putInode(txn, parentInum, parent); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	ws.txn.complete(req, vfs.OK)
}
