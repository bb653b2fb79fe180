package cairn

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/chimera-nas/chimera/kv"
	"github.com/chimera-nas/chimera/kv/boltkv"
	"github.com/chimera-nas/chimera/vfs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// rootInum is reserved for the filesystem root, and 0/1 are reserved
// scratch values below the first worker-allocated inum (spec.md §4.3
// "Inum allocation": "inums 0-2 reserved; 2 is root").
const rootInum uint64 = 2

// firstAllocatedCounter is the starting value of each worker's
// monotonic inum counter.
const firstAllocatedCounter uint64 = 3

// Module implements vfs.Module over an ordered KV store (spec.md §4.3).
type Module struct {
	cfg   Config
	log   *logrus.Entry
	store kv.Store
	fsid  [16]byte
}

// New constructs an unconfigured Module; Init must be called before use.
func New() *Module {
	return &Module{log: logrus.WithField("module", Name)}
}

func (m *Module) Magic() byte   { return Magic }
func (m *Module) Name() string  { return Name }
func (m *Module) Blocking() bool { return true }

// Init opens the backing KV store, reading (or minting, per Design Note
// "Random FSID") the filesystem identity and the root inode.
func (m *Module) Init(raw json.RawMessage) error {
	cfg, err := parseConfig(raw)
	if err != nil {
		return errors.Wrap(err, "cairn: parsing config")
	}
	m.cfg = cfg

	store, err := boltkv.Open(kv.Options{
		Path:        filepath.Join(cfg.Path, "cairn.db"),
		CacheMB:     cfg.CacheMB,
		Compression: *cfg.Compression,
		BloomFilter: *cfg.BloomFilter,
		Initialize:  cfg.Initialize,
	})
	if err != nil {
		return errors.Wrap(err, "cairn: opening store")
	}
	m.store = store

	return m.store.Update(func(txn kv.Txn) error {
		super, err := txn.Get(SuperKey())
		if err == kv.ErrNotFound {
			if _, err := rand.Read(m.fsid[:]); err != nil {
				return errors.Wrap(err, "cairn: generating fsid")
			}
			if err := txn.Put(SuperKey(), m.fsid[:]); err != nil {
				return err
			}
			return m.createRootLocked(txn)
		}
		if err != nil {
			return err
		}
		copy(m.fsid[:], super)
		return nil
	})
}

func (m *Module) createRootLocked(txn kv.Txn) error {
	now := time.Now().UnixNano()
	root := &inodeRecord{
		Mode:       vfs.ModeDir | 0o755,
		Nlink:      2,
		Generation: 1,
		Atime:      now,
		Mtime:      now,
		Ctime:      now,
		ParentInum: rootInum,
		ParentGen:  1,
	}
	return txn.Put(InodeKey(rootInum), encodeInode(root))
}

// Destroy closes the backing store.
func (m *Module) Destroy() {
	if m.store != nil {
		_ = m.store.Close()
	}
}

// workerState is the per-worker state bag cairn keeps in vfs.Worker,
// keyed by Magic (spec.md §4.3 "Inum allocation" is per worker).
type workerState struct {
	counter uint64
	txn     *txnManager
}

func (m *Module) WorkerInit(w *vfs.Worker) error {
	w.Set(Magic, &workerState{
		counter: firstAllocatedCounter,
		txn:     newTxnManager(m.store, m.log),
	})
	return nil
}

func (m *Module) WorkerDestroy(w *vfs.Worker) {
	w.Set(Magic, nil)
}

func (m *Module) worker(w *vfs.Worker) *workerState {
	v, _ := w.Get(Magic)
	return v.(*workerState)
}

// allocInum composes a new, worker-exclusive inum (spec.md §4.3 "Composed
// id = (counter << 8) | worker_id").
func (ws *workerState) allocInum(workerID int) uint64 {
	id := (ws.counter << 8) | uint64(byte(workerID))
	ws.counter++
	return id
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
		m.read(w, ws, req)
	case vfs.OpWrite:
		m.write(w, ws, req)
	case vfs.OpCommit:
		m.commit(w, ws, req)
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
