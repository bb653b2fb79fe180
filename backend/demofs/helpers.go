package demofs

import (
	"github.com/chimera-nas/chimera/lib/rbtree"
	"github.com/chimera-nas/chimera/vfs"
	"github.com/chimera-nas/chimera/vfs/fh"
)

func newDirentTree() *rbtree.Tree[uint64, *dirent] {
	return rbtree.New[uint64, *dirent](func(a, b uint64) bool { return a < b })
}

func newExtentTree() *rbtree.Tree[int64, *extentRecord] {
	return rbtree.New[int64, *extentRecord](func(a, b int64) bool { return a < b })
}

// decodeHandle extracts the inum/generation fragment from a file handle
// and resolves the live inode, rejecting an unknown inum or a generation
// mismatch as STALE (spec.md §3: "memory-only modules (demofs) reuse
// generations to invalidate stale handles").
func (m *Module) decodeHandle(h vfs.FileHandle) (*inode, error) {
	_, _, frag, derr := fh.Decode(h)
	if derr != nil {
		return nil, vfs.NewError(vfs.ErrStale, derr)
	}
	inum, gen, derr := fh.DecodeInum(frag)
	if derr != nil {
		return nil, vfs.NewError(vfs.ErrStale, derr)
	}
	n := m.table.get(inum)
	if n == nil || n.generation != gen {
		return nil, vfs.NewError(vfs.ErrStale, nil)
	}
	return n, nil
}

// childHandle builds a handle for n that inherits parent's mount id and
// module magic (spec.md §4.2 "used for all child-of operations").
func childHandle(parent vfs.FileHandle, n *inode) (vfs.FileHandle, error) {
	frag, err := fh.EncodeInum(n.inum, n.generation)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrStale, err)
	}
	h, err := fh.EncodeParent(parent, frag)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrInval, err)
	}
	return vfs.FileHandle(h), nil
}

// destroyIfOrphaned releases n back to the inode table once both nlink
// and refcount have reached zero (spec.md §4.5 "ORPHANED -> FREED");
// otherwise it is left as is, still reachable through open handles.
// Callers must hold n.mu.
func (m *Module) destroyIfOrphaned(n *inode) {
	if n.nlink != 0 || n.refCount != 0 {
		return
	}
	m.table.free(n)
}

// directoryHasEntries reports whether dir has any dirents at all, used
// to enforce ENOTEMPTY on rmdir/rename-over-directory. Callers must hold
// dir.mu.
func directoryHasEntries(dir *inode) bool {
	return dir.dirents != nil && dir.dirents.Len() > 0
}
