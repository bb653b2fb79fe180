package demofs

import (
	"sync"
	"time"

	"github.com/chimera-nas/chimera/lib/rbtree"
	"github.com/chimera-nas/chimera/vfs"
)

// dirent is one directory entry, keyed in its parent's dirents tree by
// the VFS-supplied 64-bit name hash (spec.md §4.4 "Directory"). The full
// name rides along to resolve hash collisions on readdir output and to
// answer LOOKUP without a second pass.
type dirent struct {
	name       string
	inum       uint64
	generation uint32
}

// extentRecord maps a byte range of a file's logical offset space onto a
// single (device, device_offset) run (spec.md §4.4 "Extent tree").
type extentRecord struct {
	deviceID     uint32
	deviceOffset int64
	length       int64
}

// inode is demofs's in-memory metadata record (spec.md §4.4 "Inode
// table"). Each inode carries its own mutex; multi-object operations
// (rename, link) lock in deterministic file-handle order to avoid
// deadlock (spec.md §4.4 "Per-inode concurrency").
type inode struct {
	mu sync.Mutex

	inum       uint64
	generation uint32
	allocated  bool

	mode      uint32
	nlink     uint32
	uid       uint32
	gid       uint32
	size      uint64
	spaceUsed uint64
	rdev      uint64
	refCount  uint32
	atime     int64
	mtime     int64
	ctime     int64

	// parentInum/parentGen resolve ".." for directories; the root is its
	// own parent.
	parentInum uint64
	parentGen  uint32

	dirents *rbtree.Tree[uint64, *dirent]
	extents *rbtree.Tree[int64, *extentRecord]
	symlink []byte

	nextFree *inode // free-list link when not allocated
}

func (n *inode) isDir() bool     { return n.mode&vfs.ModeTypeMask == vfs.ModeDir }
func (n *inode) isRegular() bool { return n.mode&vfs.ModeTypeMask == vfs.ModeRegular }
func (n *inode) isSymlink() bool { return n.mode&vfs.ModeTypeMask == vfs.ModeSymlink }

// attr snapshots n under its own lock; callers must already hold n.mu.
func (n *inode) attr() vfs.Attr {
	return vfs.Attr{
		Inum:       n.inum,
		Generation: n.generation,
		Mode:       n.mode,
		Nlink:      n.nlink,
		Uid:        n.uid,
		Gid:        n.gid,
		Size:       n.size,
		SpaceUsed:  n.spaceUsed,
		Rdev:       n.rdev,
		Atime:      time.Unix(0, n.atime),
		Mtime:      time.Unix(0, n.mtime),
		Ctime:      time.Unix(0, n.ctime),
		Atomic:     true,
	}
}
