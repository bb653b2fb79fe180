package cairn

import (
	"encoding/binary"
	"time"

	"github.com/chimera-nas/chimera/vfs"
)

// inodeRecord is the fixed-layout value stored under an INODE key.
// RefCount tracks outstanding OPEN handles independent of nlink, so a
// file unlinked while open (nlink reaches 0 but refcount is still
// positive) stays on disk until the last CLOSE (spec.md §4.5 "File-handle
// lifecycle": ALLOCATED -> ACTIVE -> ORPHANED -> FREED).
type inodeRecord struct {
	Mode       uint32
	Nlink      uint32
	Uid        uint32
	Gid        uint32
	RefCount   uint32
	Generation uint32
	Size       uint64
	SpaceUsed  uint64
	Rdev       uint64
	Atime      int64
	Mtime      int64
	Ctime      int64

	// ParentInum/ParentGen resolve ".." for directories; the root is its
	// own parent (spec.md §3 "plus the parent inum/generation for `..`
	// lookup").
	ParentInum uint64
	ParentGen  uint32
}

const inodeRecordSize = 4*6 + 8*3 + 8*3 + 8 + 4

func encodeInode(r *inodeRecord) []byte {
	buf := make([]byte, inodeRecordSize)
	be := binary.BigEndian
	be.PutUint32(buf[0:4], r.Mode)
	be.PutUint32(buf[4:8], r.Nlink)
	be.PutUint32(buf[8:12], r.Uid)
	be.PutUint32(buf[12:16], r.Gid)
	be.PutUint32(buf[16:20], r.RefCount)
	be.PutUint32(buf[20:24], r.Generation)
	be.PutUint64(buf[24:32], r.Size)
	be.PutUint64(buf[32:40], r.SpaceUsed)
	be.PutUint64(buf[40:48], r.Rdev)
	be.PutUint64(buf[48:56], uint64(r.Atime))
	be.PutUint64(buf[56:64], uint64(r.Mtime))
	be.PutUint64(buf[64:72], uint64(r.Ctime))
	be.PutUint64(buf[72:80], r.ParentInum)
	be.PutUint32(buf[80:84], r.ParentGen)
	return buf
}

func decodeInode(buf []byte) (*inodeRecord, error) {
	if len(buf) != inodeRecordSize {
		return nil, vfs.NewError(vfs.ErrFault, nil)
	}
	be := binary.BigEndian
	return &inodeRecord{
		Mode:       be.Uint32(buf[0:4]),
		Nlink:      be.Uint32(buf[4:8]),
		Uid:        be.Uint32(buf[8:12]),
		Gid:        be.Uint32(buf[12:16]),
		RefCount:   be.Uint32(buf[16:20]),
		Generation: be.Uint32(buf[20:24]),
		Size:       be.Uint64(buf[24:32]),
		SpaceUsed:  be.Uint64(buf[32:40]),
		Rdev:       be.Uint64(buf[40:48]),
		Atime:      int64(be.Uint64(buf[48:56])),
		Mtime:      int64(be.Uint64(buf[56:64])),
		Ctime:      int64(be.Uint64(buf[64:72])),
		ParentInum: be.Uint64(buf[72:80]),
		ParentGen:  be.Uint32(buf[80:84]),
	}, nil
}

func (r *inodeRecord) attr(inum uint64) vfs.Attr {
	return vfs.Attr{
		Inum:       inum,
		Generation: r.Generation,
		Mode:       r.Mode,
		Nlink:      r.Nlink,
		Uid:        r.Uid,
		Gid:        r.Gid,
		Size:       r.Size,
		SpaceUsed:  r.SpaceUsed,
		Rdev:       r.Rdev,
		Atime:      time.Unix(0, r.Atime),
		Mtime:      time.Unix(0, r.Mtime),
		Ctime:      time.Unix(0, r.Ctime),
		Atomic:     true,
	}
}

// encodeDirentValue packs a dirent's child inum and full name; the name
// is kept alongside the hash so READDIR can report it without a second
// lookup (spec.md §4.3 table: "{child_inum, name_len, name[<=255]}").
func encodeDirentValue(childInum uint64, name string) []byte {
	buf := make([]byte, 9+len(name))
	binary.BigEndian.PutUint64(buf[0:8], childInum)
	buf[8] = byte(len(name))
	copy(buf[9:], name)
	return buf
}

func decodeDirentValue(buf []byte) (childInum uint64, name string, err error) {
	if len(buf) < 9 {
		return 0, "", vfs.NewError(vfs.ErrFault, nil)
	}
	childInum = binary.BigEndian.Uint64(buf[0:8])
	n := int(buf[8])
	if len(buf) < 9+n {
		return 0, "", vfs.NewError(vfs.ErrFault, nil)
	}
	name = string(buf[9 : 9+n])
	return childInum, name, nil
}
