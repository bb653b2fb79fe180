package demofs

import (
	"sync"

	"github.com/chimera-nas/chimera/blockdev"
	"github.com/chimera-nas/chimera/vfs"
)

// reservationSize is the chunk size a worker pre-reserves from a device
// before carving thread-local allocations out of it (spec.md §4.4
// "Device pool and free-space reservation": "Workers pre-reserve a 1-GiB
// chunk from a rotating device").
const reservationSize int64 = 1 << 30

// blockSize is demofs's write alignment unit (spec.md §4.4 "Writes are
// 4-KiB aligned").
const blockSize int64 = 4096

// devicePool tracks each configured device's single free-space run
// (spec.md §4.4: "Each device tracks a single free-space run (offset,
// length)") and hands out reservationSize-byte chunks to workers in
// round-robin order. This is the only device-pool state shared across
// workers; everything past a worker's own reservation is carved locally.
type devicePool struct {
	mu      sync.Mutex
	devices []blockdev.Device
	next    int
	free    []int64 // free[i] is the next unreserved offset on devices[i]
}

func newDevicePool(devices []blockdev.Device) *devicePool {
	return &devicePool{devices: devices, free: make([]int64, len(devices))}
}

// reserve carves a new chunk (at most reservationSize bytes) from the
// next device with remaining space, rotating across all devices once per
// call so no single device is starved.
func (p *devicePool) reserve() (blockdev.Device, uint32, int64, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.devices) == 0 {
		return nil, 0, 0, 0, vfs.NewError(vfs.ErrNospc, nil)
	}
	for i := 0; i < len(p.devices); i++ {
		idx := p.next
		p.next = (p.next + 1) % len(p.devices)
		dev := p.devices[idx]
		off := p.free[idx]
		remaining := dev.Size() - off
		if remaining <= 0 {
			continue
		}
		size := reservationSize
		if size > remaining {
			size = remaining - (remaining % blockSize)
			if size <= 0 {
				continue
			}
		}
		p.free[idx] = off + size
		return dev, dev.ID(), off, size, nil
	}
	return nil, 0, 0, 0, vfs.NewError(vfs.ErrNospc, nil)
}

// workerReservation is a worker-local carve-out of one device's address
// space, refilled from the shared devicePool only when exhausted (spec.md
// §4.4: "carve thread-local allocations from it without global contention;
// shared device state is updated only when reserving a new chunk").
type workerReservation struct {
	device    blockdev.Device
	deviceID  uint32
	offset    int64
	remaining int64
}

// carve returns n contiguous, block-aligned bytes of device address
// space, reserving a fresh chunk from pool if the current one cannot
// satisfy the request.
func (r *workerReservation) carve(pool *devicePool, n int64) (blockdev.Device, uint32, int64, error) {
	if r.remaining < n {
		dev, devID, base, size, err := pool.reserve()
		if err != nil {
			return nil, 0, 0, err
		}
		r.device = dev
		r.deviceID = devID
		r.offset = base
		r.remaining = size
	}
	if r.remaining < n {
		return nil, 0, 0, vfs.NewError(vfs.ErrNospc, nil)
	}
	off := r.offset
	r.offset += n
	r.remaining -= n
	return r.device, r.deviceID, off, nil
}
