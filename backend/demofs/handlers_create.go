package demofs

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// newChild allocates an inode and links it into parent's dirents
// (spec.md §4.4 "mkdir / mknod / symlink / open-with-create"). Callers
// must already hold parent.mu; the returned child is not yet published
// to any other goroutine until the caller releases that lock.
func (m *Module) newChild(ws *workerState, req *vfs.Request, parent *inode, mode uint32) *inode {
	child := m.table.allocate()
	now := time.Now().UnixNano()
	child.mode = mode
	child.nlink = 1
	child.uid = req.Uid
	child.gid = req.Gid
	child.rdev = req.Rdev
	child.atime, child.mtime, child.ctime = now, now, now

	if mode&vfs.ModeTypeMask == vfs.ModeDir {
		child.nlink = 2
		child.dirents = newDirentTree()
		child.parentInum = parent.inum
		child.parentGen = parent.generation
		parent.nlink++
	}

	d := ws.direntArena.Get()
	*d = dirent{name: req.Name, inum: child.inum, generation: child.generation}
	_ = parent.dirents.Insert(vfs.HashName(req.Name), d)
	parent.mtime = now
	return child
}

// prepareCreate decodes req.FH as a directory and looks up req.Name in
// it, returning with parent.mu held so the caller can atomically decide
// between "create" and "already exists" without a second lookup racing
// a concurrent create of the same name.
func (m *Module) prepareCreate(req *vfs.Request) (parent *inode, existing *dirent, fail bool) {
	parent, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return nil, nil, true
	}
	if len(req.Name) > 255 {
		req.Complete(vfs.ErrNametoolong)
		return nil, nil, true
	}
	parent.mu.Lock()
	if !parent.isDir() {
		parent.mu.Unlock()
		req.Complete(vfs.ErrNotdir)
		return nil, nil, true
	}
	if d, ok := parent.dirents.Get(vfs.HashName(req.Name)); ok {
		return parent, d, false
	}
	return parent, nil, false
}

// finishCreate builds the result handle and Post attribute for a
// newly-created or newly-opened child. Must not be called with any
// inode lock held.
func (m *Module) finishCreate(req *vfs.Request, child *inode) {
	child.mu.Lock()
	h, err := childHandle(req.FH, child)
	attr := child.attr()
	child.mu.Unlock()
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	req.ResultFH = h
	req.Post = &attr
	req.Complete(vfs.OK)
}

func (m *Module) mkdir(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parent, existing, fail := m.prepareCreate(req)
	if fail {
		return
	}
	if existing != nil {
		parent.mu.Unlock()
		req.Complete(vfs.ErrExist)
		return
	}
	mode := vfs.ModeDir | (req.Mode & vfs.ModePermMask)
	child := m.newChild(ws, req, parent, mode)
	parent.mu.Unlock()
	m.finishCreate(req, child)
}

func (m *Module) mknod(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parent, existing, fail := m.prepareCreate(req)
	if fail {
		return
	}
	if existing != nil {
		if req.Exclusive {
			parent.mu.Unlock()
			req.Complete(vfs.ErrExist)
			return
		}
		child := m.table.get(existing.inum)
		parent.mu.Unlock()
		if child == nil {
			req.Complete(vfs.ErrNoent)
			return
		}
		m.finishCreate(req, child)
		return
	}
	child := m.newChild(ws, req, parent, req.Mode)
	parent.mu.Unlock()
	m.finishCreate(req, child)
}

func (m *Module) symlink(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	parent, existing, fail := m.prepareCreate(req)
	if fail {
		return
	}
	if existing != nil {
		parent.mu.Unlock()
		req.Complete(vfs.ErrExist)
		return
	}
	child := m.newChild(ws, req, parent, vfs.ModeSymlink|0o777)
	child.symlink = []byte(req.Target)
	parent.mu.Unlock()
	m.finishCreate(req, child)
}

// createUnlinked allocates an inode with no directory entry, nlink 0
// and refCount 1, for O_TMPFILE-style anonymous files (spec.md §4.3
// "create_unlinked").
func (m *Module) createUnlinked(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	if _, err := m.decodeHandle(req.FH); err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	child := m.table.allocate()
	now := time.Now().UnixNano()
	child.mode = req.Mode
	child.nlink = 0
	child.refCount = 1
	child.uid = req.Uid
	child.gid = req.Gid
	child.rdev = req.Rdev
	child.atime, child.mtime, child.ctime = now, now, now

	m.finishCreate(req, child)
}

func (m *Module) readlink(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.isSymlink() {
		req.Complete(vfs.ErrInval)
		return
	}
	req.ResultData = append([]byte(nil), n.symlink...)
	req.Complete(vfs.OK)
}

func (m *Module) open(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	if !req.Inferred {
		n.refCount++
	}
	attr := n.attr()
	n.mu.Unlock()

	req.ResultFH = req.FH
	req.Post = &attr
	req.Complete(vfs.OK)
}

func (m *Module) openAt(w *vfs.Worker, ws *workerState, req *vfs.Request) {
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
	parent.mu.Unlock()
	if !ok {
		req.Complete(vfs.ErrNoent)
		return
	}
	if req.Exclusive {
		req.Complete(vfs.ErrExist)
		return
	}
	child := m.table.get(d.inum)
	if child == nil {
		req.Complete(vfs.ErrNoent)
		return
	}
	child.mu.Lock()
	if child.generation != d.generation {
		child.mu.Unlock()
		req.Complete(vfs.ErrNoent)
		return
	}
	if !req.Inferred {
		child.refCount++
	}
	h, herr := childHandle(req.FH, child)
	attr := child.attr()
	child.mu.Unlock()
	if herr != nil {
		req.Fail(herr.(*vfs.Error))
		return
	}
	req.ResultFH = h
	req.Post = &attr
	req.Complete(vfs.OK)
}

func (m *Module) close(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	if !req.Inferred && n.refCount > 0 {
		n.refCount--
	}
	m.destroyIfOrphaned(n)
	n.mu.Unlock()
	req.Complete(vfs.OK)
}
