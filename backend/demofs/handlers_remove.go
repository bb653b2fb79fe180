package demofs

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

func (m *Module) remove(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parent, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	parent.mu.Lock()
	if !parent.isDir() {
		parent.mu.Unlock()
		req.Complete(vfs.ErrNotdir)
		return
	}
	d, ok := parent.dirents.Get(vfs.HashName(req.Name))
	if !ok {
		parent.mu.Unlock()
		req.Complete(vfs.ErrNoent)
		return
	}
	child := m.table.get(d.inum)
	if child == nil {
		parent.mu.Unlock()
		req.Complete(vfs.ErrNoent)
		return
	}

	child.mu.Lock()
	if child.generation != d.generation {
		child.mu.Unlock()
		parent.mu.Unlock()
		req.Complete(vfs.ErrNoent)
		return
	}
	if child.isDir() && directoryHasEntries(child) {
		child.mu.Unlock()
		parent.mu.Unlock()
		req.Complete(vfs.ErrNotempty)
		return
	}

	child.nlink--
	if child.isDir() {
		parent.nlink--
	}
	m.destroyIfOrphaned(child)
	child.mu.Unlock()

	parent.dirents.Remove(vfs.HashName(req.Name))
	ws.direntArena.Put(d)
	parent.mtime = time.Now().UnixNano()
	parent.mu.Unlock()

	req.Complete(vfs.OK)
}
