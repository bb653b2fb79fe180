package cairn

import "encoding/binary"

// Key type bytes (spec.md §4.3 table). Values match the spec's own
// numbering so the on-disk layout matches the document exactly.
const (
	keyTypeInode   byte = 0
	keyTypeDirent  byte = 1
	keyTypeSymlink byte = 2
	keyTypeExtent  byte = 3
	keyTypeSuper   byte = 4
)

// SuperKey addresses the single filesystem-identity record.
func SuperKey() []byte {
	return []byte{keyTypeSuper}
}

// InodeKey addresses an inode record. Big-endian throughout so that byte
// order matches numeric order, which readdir/extent scans rely on.
func InodeKey(inum uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = keyTypeInode
	binary.BigEndian.PutUint64(buf[1:], inum)
	return buf
}

// DirentKey addresses one directory entry by its parent inode and the
// VFS-supplied 64-bit name hash (spec.md §3).
func DirentKey(parent, nameHash uint64) []byte {
	buf := make([]byte, 17)
	buf[0] = keyTypeDirent
	binary.BigEndian.PutUint64(buf[1:9], parent)
	binary.BigEndian.PutUint64(buf[9:17], nameHash)
	return buf
}

// direntPrefix is the common prefix of every DIRENT key for parent,
// used both as the low end of a readdir range scan and to recognize
// when a cursor has walked past the directory's own entries.
func direntPrefix(parent uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = keyTypeDirent
	binary.BigEndian.PutUint64(buf[1:], parent)
	return buf
}

// SymlinkKey addresses a symlink's target bytes.
func SymlinkKey(inum uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = keyTypeSymlink
	binary.BigEndian.PutUint64(buf[1:], inum)
	return buf
}

// ExtentKey addresses one extent of inum's data, starting at offset.
func ExtentKey(inum uint64, offset int64) []byte {
	buf := make([]byte, 17)
	buf[0] = keyTypeExtent
	binary.BigEndian.PutUint64(buf[1:9], inum)
	binary.BigEndian.PutUint64(buf[9:17], uint64(offset))
	return buf
}

// extentPrefix is the common prefix of every EXTENT key for inum.
func extentPrefix(inum uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = keyTypeExtent
	binary.BigEndian.PutUint64(buf[1:], inum)
	return buf
}

// hasPrefix reports whether key starts with prefix.
func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// decodeDirentKey extracts the name hash from a DIRENT key known to share
// prefix (parent inum); used while walking a readdir range.
func decodeDirentKey(key []byte) (parent, nameHash uint64) {
	parent = binary.BigEndian.Uint64(key[1:9])
	nameHash = binary.BigEndian.Uint64(key[9:17])
	return parent, nameHash
}

// decodeExtentKey extracts the inum and file offset from an EXTENT key.
func decodeExtentKey(key []byte) (inum uint64, offset int64) {
	inum = binary.BigEndian.Uint64(key[1:9])
	offset = int64(binary.BigEndian.Uint64(key[9:17]))
	return inum, offset
}
