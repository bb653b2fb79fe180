package cairn

import (
	"github.com/chimera-nas/chimera/kv"
	"github.com/chimera-nas/chimera/vfs"
	"github.com/chimera-nas/chimera/vfs/fh"
)

// getInode fetches and decodes the inode record for inum. A missing
// record is reported as vfs.ErrStale: the only way to reference an inum
// with no backing record is a file handle that outlived its object.
func getInode(txn kv.Txn, inum uint64) (*inodeRecord, error) {
	raw, err := txn.Get(InodeKey(inum))
	if err == kv.ErrNotFound {
		return nil, vfs.NewError(vfs.ErrStale, nil)
	}
	if err != nil {
		return nil, vfs.NewError(vfs.ErrFault, err)
	}
	return decodeInode(raw)
}

func putInode(txn kv.Txn, inum uint64, rec *inodeRecord) error {
	if err := txn.Put(InodeKey(inum), encodeInode(rec)); err != nil {
		return vfs.NewError(vfs.ErrFault, err)
	}
	return nil
}

// decodeHandle extracts the inum/generation fragment from a file handle
// and loads the current inode, rejecting a generation mismatch as STALE
// (spec.md §4.2: handles embed a generation to detect exactly this).
func decodeHandle(txn kv.Txn, h vfs.FileHandle) (inum uint64, rec *inodeRecord, err error) {
	_, _, frag, derr := fh.Decode(h)
	if derr != nil {
		return 0, nil, vfs.NewError(vfs.ErrStale, derr)
	}
	inum, gen, derr := fh.DecodeInum(frag)
	if derr != nil {
		return 0, nil, vfs.NewError(vfs.ErrStale, derr)
	}
	rec, err = getInode(txn, inum)
	if err != nil {
		return 0, nil, err
	}
	if rec.Generation != gen {
		return 0, nil, vfs.NewError(vfs.ErrStale, nil)
	}
	return inum, rec, nil
}

// childHandle builds a handle for inum/gen that inherits parent's mount
// id and module magic (spec.md §4.2 "used for all child-of operations").
func childHandle(parent vfs.FileHandle, inum uint64, gen uint32) (vfs.FileHandle, error) {
	frag, err := fh.EncodeInum(inum, gen)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrStale, err)
	}
	h, err := fh.EncodeParent(parent, frag)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrInval, err)
	}
	return vfs.FileHandle(h), nil
}

// lookupDirent returns the child inum named name under parent, or
// vfs.ErrNoent if absent.
func lookupDirent(txn kv.Txn, parent uint64, name string) (uint64, error) {
	raw, err := txn.Get(DirentKey(parent, vfs.HashName(name)))
	if err == kv.ErrNotFound {
		return 0, vfs.NewError(vfs.ErrNoent, nil)
	}
	if err != nil {
		return 0, vfs.NewError(vfs.ErrFault, err)
	}
	childInum, _, derr := decodeDirentValue(raw)
	if derr != nil {
		return 0, vfs.NewError(vfs.ErrFault, derr)
	}
	return childInum, nil
}

// deleteExtents removes every EXTENT key belonging to inum, used when an
// object's last reference is destroyed.
func deleteExtents(txn kv.Txn, inum uint64) error {
	prefix := extentPrefix(inum)
	c := txn.Cursor()
	for k, _, ok := c.Seek(prefix); ok && hasPrefix(k, prefix); k, _, ok = c.Next() {
		if err := txn.Delete(k); err != nil {
			return vfs.NewError(vfs.ErrFault, err)
		}
	}
	return nil
}

// destroyIfOrphaned deletes inum's inode (and any extents/symlink data)
// once both nlink and refcount have reached zero (spec.md §4.5 "ORPHANED
// -> FREED"), otherwise persists the mutated record.
func destroyIfOrphaned(txn kv.Txn, inum uint64, rec *inodeRecord) error {
	if rec.Nlink != 0 || rec.RefCount != 0 {
		return putInode(txn, inum, rec)
	}
	if err := deleteExtents(txn, inum); err != nil {
		return err
	}
	if rec.Mode&vfs.ModeTypeMask == vfs.ModeSymlink {
		if err := txn.Delete(SymlinkKey(inum)); err != nil {
			return vfs.NewError(vfs.ErrFault, err)
		}
	}
	if err := txn.Delete(InodeKey(inum)); err != nil {
		return vfs.NewError(vfs.ErrFault, err)
	}
	return nil
}
