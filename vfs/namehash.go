package vfs

import "hash/fnv"

// HashName computes the 64-bit directory-entry name hash shared by both
// back ends (spec.md §3 "Dirent": "name_hash ... supplied by VFS"). Having
// one implementation keeps cairn and demofs in agreement on collision
// behavior for a given name; neither back end is expected to see a real
// collision, and both treat one as the caller's problem rather than
// building chaining to resolve it.
func HashName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}
