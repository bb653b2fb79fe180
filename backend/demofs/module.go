package demofs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chimera-nas/chimera/blockdev"
	"github.com/chimera-nas/chimera/lib/slab"
	"github.com/chimera-nas/chimera/vfs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// maxPendingIO bounds the number of concurrent block-device submissions a
// single worker may have outstanding, the "bounded-inflight gate" spec.md
// §5 describes for the (out-of-scope) io_uring front end — demofs's own
// worker adopts the same gate via golang.org/x/sync/semaphore.Weighted.
const maxPendingIO = 256

// Module implements vfs.Module over in-memory metadata and a pool of raw
// block devices (spec.md §4.4).
type Module struct {
	cfg     Config
	log     *logrus.Entry
	devices []blockdev.Device
	pool    *devicePool
	table   *inodeTable

	rootInum uint64
	rootGen  uint32
}

// New constructs an unconfigured Module; Init must be called before use.
func New() *Module {
	return &Module{log: logrus.WithField("module", Name)}
}

func (m *Module) Magic() byte    { return Magic }
func (m *Module) Name() string   { return Name }
func (m *Module) Blocking() bool { return true }

// Init opens every configured device, builds the in-memory inode table,
// and creates the root directory. Metadata never outlives the process
// (spec.md §6 "Persistence": "Demofs metadata is not durable").
func (m *Module) Init(raw json.RawMessage) error {
	cfg, err := parseConfig(raw)
	if err != nil {
		return errors.Wrap(err, "demofs: parsing config")
	}
	m.cfg = cfg

	devices := make([]blockdev.Device, 0, len(cfg.Devices))
	for i, dc := range cfg.Devices {
		dev, err := openDevice(uint32(i), dc)
		if err != nil {
			return errors.Wrapf(err, "demofs: opening device %d", i)
		}
		devices = append(devices, dev)
	}
	m.devices = devices
	m.pool = newDevicePool(devices)
	m.table = newInodeTable()

	root := m.table.allocate()
	now := time.Now().UnixNano()
	root.mode = vfs.ModeDir | 0o755
	root.nlink = 2
	root.parentInum = root.inum
	root.parentGen = root.generation
	root.dirents = newDirentTree()
	root.atime, root.mtime, root.ctime = now, now, now
	m.rootInum = root.inum
	m.rootGen = root.generation

	return nil
}

// Destroy closes every configured device.
func (m *Module) Destroy() {
	for _, dev := range m.devices {
		_ = dev.Close()
	}
}

// deviceByID returns the device registered with the given index, or nil
// if out of range. Devices are indexed by their position in the
// configured devices[] array (spec.md §6), which openDevice also uses as
// the device's blockdev.Device.ID().
func (m *Module) deviceByID(id uint32) blockdev.Device {
	if int(id) < len(m.devices) {
		return m.devices[id]
	}
	return nil
}

// workerState is the per-worker state bag demofs keeps in vfs.Worker,
// keyed by Magic: a carved-out device reservation, slab arenas for
// dirent/extent records (spec.md §4.5 "Slab allocator"), and a semaphore
// bounding in-flight device submissions.
type workerState struct {
	res         workerReservation
	direntArena *slab.Arena[dirent]
	extentArena *slab.Arena[extentRecord]
	sem         *semaphore.Weighted
}

func newWorkerState() *workerState {
	return &workerState{
		direntArena: slab.New(func() *dirent { return &dirent{} }, func(d *dirent) { *d = dirent{} }, 1024),
		extentArena: slab.New(func() *extentRecord { return &extentRecord{} }, func(e *extentRecord) { *e = extentRecord{} }, 1024),
		sem:         semaphore.NewWeighted(maxPendingIO),
	}
}

func (m *Module) WorkerInit(w *vfs.Worker) error {
	w.Set(Magic, newWorkerState())
	return nil
}

func (m *Module) WorkerDestroy(w *vfs.Worker) {
	w.Set(Magic, nil)
}

func (m *Module) worker(w *vfs.Worker) *workerState {
	v, _ := w.Get(Magic)
	return v.(*workerState)
}

// acquireIO bounds the worker's in-flight device submissions (spec.md §5
// "Backpressure"); releaseIO must run from the submission's completion.
func (ws *workerState) acquireIO(w *vfs.Worker) {
	_ = ws.sem.Acquire(context.Background(), 1)
	w.BeginIO()
}

func (ws *workerState) releaseIO(w *vfs.Worker) {
	w.EndIO()
	ws.sem.Release(1)
}

// Dispatch routes req to the handler for its Op.
func (m *Module) Dispatch(ctx context.Context, w *vfs.Worker, req *vfs.Request) {
	ws := m.worker(w)
	switch req.Op {
	case vfs.OpMount:
		m.mount(w, ws, req)
	case vfs.OpUmount:
		req.Complete(vfs.OK)
	case vfs.OpLookup:
		m.lookup(w, ws, req)
	case vfs.OpGetattr:
		m.getattr(w, ws, req)
	case vfs.OpSetattr:
		m.setattr(w, ws, req)
	case vfs.OpMkdir:
		m.mkdir(w, ws, req)
	case vfs.OpMknod:
		m.mknod(w, ws, req)
	case vfs.OpRemove:
		m.remove(w, ws, req)
	case vfs.OpReaddir:
		m.readdir(w, ws, req)
	case vfs.OpOpen:
		m.open(w, ws, req)
	case vfs.OpOpenAt:
		m.openAt(w, ws, req)
	case vfs.OpClose:
		m.close(w, ws, req)
	case vfs.OpRead:
		m.read(ctx, w, ws, req)
	case vfs.OpWrite:
		m.write(ctx, w, ws, req)
	case vfs.OpCommit:
		req.Complete(vfs.OK)
	case vfs.OpSymlink:
		m.symlink(w, ws, req)
	case vfs.OpReadlink:
		m.readlink(w, ws, req)
	case vfs.OpRename:
		m.rename(w, ws, req)
	case vfs.OpLink:
		m.link(w, ws, req)
	case vfs.OpCreateUnlinked:
		m.createUnlinked(w, ws, req)
	default:
		req.Complete(vfs.ErrNotsup)
	}
}
