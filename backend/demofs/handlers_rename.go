package demofs

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// lockParents locks the two (possibly identical) parent inodes in a
// deterministic order derived from their file handles, the demofs
// analogue of the single-KV-transaction atomicity boundary cairn's
// rename relies on instead (spec.md §4.4 "Per-inode concurrency": "lock
// in ascending FileHandle order to avoid AB-BA deadlock"). Returns
// whether the two handles named the same inode.
func lockParents(oldFH, newFH vfs.FileHandle, oldParent, newParent *inode) bool {
	if oldParent == newParent {
		oldParent.mu.Lock()
		return true
	}
	if oldFH.Less(newFH) {
		oldParent.mu.Lock()
		newParent.mu.Lock()
	} else {
		newParent.mu.Lock()
		oldParent.mu.Lock()
	}
	return false
}

func unlockParents(same bool, oldParent, newParent *inode) {
	if same {
		oldParent.mu.Unlock()
		return
	}
	oldParent.mu.Unlock()
	newParent.mu.Unlock()
}

// rename implements spec.md §4.4 "Rename". Locking order is parents (by
// FileHandle.Less) -> destination inode, if any exists and differs from
// the source -> source inode, matching the order link uses so the two
// operations can never deadlock against each other.
func (m *Module) rename(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	oldParent, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	newParent, err := m.decodeHandle(req.NewParent)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	same := lockParents(req.FH, req.NewParent, oldParent, newParent)
	if !oldParent.isDir() || !newParent.isDir() {
		unlockParents(same, oldParent, newParent)
		req.Complete(vfs.ErrNotdir)
		return
	}

	d, ok := oldParent.dirents.Get(vfs.HashName(req.Name))
	if !ok {
		unlockParents(same, oldParent, newParent)
		req.Complete(vfs.ErrNoent)
		return
	}
	child := m.table.get(d.inum)
	if child == nil {
		unlockParents(same, oldParent, newParent)
		req.Complete(vfs.ErrNoent)
		return
	}

	destD, destExists := newParent.dirents.Get(vfs.HashName(req.NewName))
	var destChild *inode
	if destExists {
		destChild = m.table.get(destD.inum)
	}

	if destChild != nil && destChild != child {
		destChild.mu.Lock()
	}
	child.mu.Lock()

	if child.generation != d.generation {
		child.mu.Unlock()
		if destChild != nil && destChild != child {
			destChild.mu.Unlock()
		}
		unlockParents(same, oldParent, newParent)
		req.Complete(vfs.ErrNoent)
		return
	}

	if destChild == child {
		// Renaming onto the same inode under a different alias: a no-op.
		child.mu.Unlock()
		unlockParents(same, oldParent, newParent)
		req.Complete(vfs.OK)
		return
	}

	if destChild != nil {
		if destChild.isDir() && directoryHasEntries(destChild) {
			destChild.mu.Unlock()
			child.mu.Unlock()
			unlockParents(same, oldParent, newParent)
			req.Complete(vfs.ErrNotempty)
			return
		}
		destChild.nlink--
		if destChild.isDir() {
			newParent.nlink--
		}
		m.destroyIfOrphaned(destChild)
		destChild.mu.Unlock()
		newParent.dirents.Remove(vfs.HashName(req.NewName))
		ws.direntArena.Put(destD)
	}

	now := time.Now().UnixNano()
	newD := ws.direntArena.Get()
	*newD = dirent{name: req.NewName, inum: child.inum, generation: child.generation}
	_ = newParent.dirents.Insert(vfs.HashName(req.NewName), newD)
	oldParent.dirents.Remove(vfs.HashName(req.Name))
	ws.direntArena.Put(d)

	if child.isDir() && oldParent != newParent {
		oldParent.nlink--
		newParent.nlink++
		child.parentInum = newParent.inum
		child.parentGen = newParent.generation
	}
	child.ctime = now
	oldParent.mtime = now
	newParent.mtime = now

	child.mu.Unlock()
	unlockParents(same, oldParent, newParent)
	req.Complete(vfs.OK)
}

// link creates an additional directory entry for an existing file;
// directories may not be linked (spec.md §4.4 "Link").
func (m *Module) link(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	newParent, err := m.decodeHandle(req.NewParent)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}

	first, second := n, newParent
	if !req.FH.Less(req.NewParent) {
		first, second = newParent, n
	}
	first.mu.Lock()
	if second != first {
		second.mu.Lock()
	}
	unlock := func() {
		if second != first {
			second.mu.Unlock()
		}
		first.mu.Unlock()
	}

	if n.isDir() {
		unlock()
		req.Complete(vfs.ErrPerm)
		return
	}
	if !newParent.isDir() {
		unlock()
		req.Complete(vfs.ErrNotdir)
		return
	}
	if _, ok := newParent.dirents.Get(vfs.HashName(req.NewName)); ok {
		unlock()
		req.Complete(vfs.ErrExist)
		return
	}

	now := time.Now().UnixNano()
	d := ws.direntArena.Get()
	*d = dirent{name: req.NewName, inum: n.inum, generation: n.generation}
	_ = newParent.dirents.Insert(vfs.HashName(req.NewName), d)
	n.nlink++
	n.ctime = now
	newParent.mtime = now

	h, herr := childHandle(req.NewParent, n)
	attr := n.attr()
	unlock()
	if herr != nil {
		req.Fail(herr.(*vfs.Error))
		return
	}
	req.ResultFH = h
	req.Post = &attr
	req.Complete(vfs.OK)
}
