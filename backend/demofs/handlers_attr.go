package demofs

import (
	"time"

	"github.com/chimera-nas/chimera/vfs"
	"github.com/chimera-nas/chimera/vfs/fh"
)

// mount returns a handle for the root inode. demofs metadata is
// memory-only and never persists across a restart, so there is no
// durable filesystem id to carry in the handle's mount field; an
// all-zero mount id is as stable as the process itself (spec.md §3
// "mount id... all zero or an fsid-derived tag").
func (m *Module) mount(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	root := m.table.get(m.rootInum)
	root.mu.Lock()
	frag, ferr := fh.EncodeInum(root.inum, root.generation)
	attr := root.attr()
	root.mu.Unlock()
	if ferr != nil {
		req.Complete(vfs.ErrStale)
		return
	}
	var fsid [16]byte
	h, ferr := fh.EncodeMount(fsid, Magic, frag)
	if ferr != nil {
		req.Complete(vfs.ErrStale)
		return
	}
	req.ResultFH = vfs.FileHandle(h)
	req.Post = &attr
	req.Complete(vfs.OK)
}

func (m *Module) lookup(w *vfs.Worker, ws *workerState, req *vfs.Request) {
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

	// "." and ".." never hit the dirent tree: "." is the directory
	// itself, ".." is the stored parent inum/generation (spec.md §4.1
	// "Name semantics" — the root is its own parent).
	switch req.Name {
	case ".":
		h, herr := childHandle(req.FH, parent)
		attr := parent.attr()
		parent.mu.Unlock()
		if herr != nil {
			req.Fail(herr.(*vfs.Error))
			return
		}
		req.ResultFH = h
		req.Post = &attr
		req.Complete(vfs.OK)
		return
	case "..":
		parentInum, parentGen := parent.parentInum, parent.parentGen
		parent.mu.Unlock()
		up := m.table.get(parentInum)
		if up == nil {
			req.Complete(vfs.ErrStale)
			return
		}
		up.mu.Lock()
		if up.generation != parentGen {
			up.mu.Unlock()
			req.Complete(vfs.ErrStale)
			return
		}
		h, herr := childHandle(req.FH, up)
		attr := up.attr()
		up.mu.Unlock()
		if herr != nil {
			req.Fail(herr.(*vfs.Error))
			return
		}
		req.ResultFH = h
		req.Post = &attr
		req.Complete(vfs.OK)
		return
	}

	d, ok := parent.dirents.Get(vfs.HashName(req.Name))
	parent.mu.Unlock()
	if !ok {
		req.Complete(vfs.ErrNoent)
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

func (m *Module) getattr(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	attr := n.attr()
	n.mu.Unlock()
	req.Post = &attr
	req.Complete(vfs.OK)
}

func (m *Module) setattr(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	pre := n.attr()
	req.Pre = &pre

	if req.AttrMask.Has(vfs.MaskMode) {
		n.mode = n.mode&vfs.ModeTypeMask | req.Mode&vfs.ModePermMask
	}
	if req.AttrMask.Has(vfs.MaskUid) {
		n.uid = req.Uid
	}
	if req.AttrMask.Has(vfs.MaskGid) {
		n.gid = req.Gid
	}
	if req.SetSize != nil {
		newSize := uint64(*req.SetSize)
		if newSize < n.size && n.extents != nil {
			freed := truncateExtents(ws, n.extents, *req.SetSize)
			n.spaceUsed -= freed
		}
		n.size = newSize
	}
	n.ctime = time.Now().UnixNano()

	post := n.attr()
	req.Post = &post
	req.Complete(vfs.OK)
}
