package demofs

import "sync"

// inodePartitions is the number of partitions the inode table splits
// across by the low 8 bits of inum (spec.md §4.4 "Inode table": "up to
// 256 partitions").
const inodePartitions = 256

// inodePartition owns a growable list of inode slots plus an intrusive
// free list threaded through unallocated slots, so allocation is O(1)
// and reuses locality-friendly slots instead of growing unboundedly
// (spec.md §4.4: "Free inodes are threaded through a per-partition free
// list").
type inodePartition struct {
	mu       sync.Mutex
	slots    []*inode
	freeHead *inode
}

// allocate returns a free inode from this partition, growing the slot
// list if the free list is empty. generation is bumped so a handle built
// against the slot's previous occupant decodes as STALE.
func (p *inodePartition) allocate(partIdx byte) *inode {
	p.mu.Lock()
	defer p.mu.Unlock()

	var n *inode
	if p.freeHead != nil {
		n = p.freeHead
		p.freeHead = n.nextFree
		n.nextFree = nil
	} else {
		slot := len(p.slots)
		n = &inode{inum: (uint64(slot) << 8) | uint64(partIdx)}
		p.slots = append(p.slots, n)
	}
	n.allocated = true
	n.generation++
	if n.generation == 0 {
		n.generation = 1
	}
	return n
}

// free returns n to the partition's free list, bumping its generation a
// second time (spec.md §4.4 "Allocation bumps generation; destruction
// bumps generation again so outstanding handles return STALE").
func (p *inodePartition) free(n *inode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n.allocated = false
	n.generation++
	if n.generation == 0 {
		n.generation = 1
	}
	n.dirents = nil
	n.extents = nil
	n.symlink = nil
	n.nextFree = p.freeHead
	p.freeHead = n
}

// inodeTable is the two-level array from spec.md §4.4, partitioned by
// the low 8 bits of inum. A round-robin selector spreads new allocations
// across partitions so concurrent creates from different workers rarely
// contend on the same partition mutex.
type inodeTable struct {
	mu         sync.Mutex
	next       uint64
	partitions [inodePartitions]*inodePartition
}

func newInodeTable() *inodeTable {
	t := &inodeTable{}
	for i := range t.partitions {
		t.partitions[i] = &inodePartition{}
	}
	return t
}

// allocate picks the next partition round-robin and allocates a slot
// from it.
func (t *inodeTable) allocate() *inode {
	t.mu.Lock()
	idx := byte(t.next % inodePartitions)
	t.next++
	t.mu.Unlock()
	return t.partitions[idx].allocate(idx)
}

// get returns the inode addressed by inum, or nil if the slot is out of
// range or not currently allocated. Callers must still check generation
// against the caller's file-handle fragment.
func (t *inodeTable) get(inum uint64) *inode {
	partIdx := byte(inum)
	slot := inum >> 8
	part := t.partitions[partIdx]

	part.mu.Lock()
	defer part.mu.Unlock()
	if slot >= uint64(len(part.slots)) {
		return nil
	}
	n := part.slots[slot]
	if !n.allocated {
		return nil
	}
	return n
}

// free releases n back to its partition's free list.
func (t *inodeTable) free(n *inode) {
	partIdx := byte(n.inum)
	t.partitions[partIdx].free(n)
}
