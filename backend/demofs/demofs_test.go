package demofs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/chimera-nas/chimera/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupModule(t *testing.T) (*Module, *vfs.Worker) {
	t.Helper()
	m := New()
	dir := t.TempDir()
	cfg, err := json.Marshal(Config{
		Devices: []DeviceConfig{
			{Type: "io_uring", Path: filepath.Join(dir, "dev0"), Size: 4 << 20},
		},
	})
	require.NoError(t, err)
	require.NoError(t, m.Init(cfg))
	t.Cleanup(m.Destroy)

	w := vfs.NewWorker(0)
	require.NoError(t, m.WorkerInit(w))
	return m, w
}

// run dispatches req and blocks for completion. demofs never defers a
// commit past the triggering tick (its worker is Blocking()), so unlike
// cairn's equivalent helper there is no w.RunDeferred() to drain.
func run(m *Module, w *vfs.Worker, req *vfs.Request) {
	done := make(chan struct{})
	req.Done = func(*vfs.Request) { close(done) }
	m.Dispatch(context.Background(), w, req)
	<-done
}

func mountRoot(t *testing.T, m *Module, w *vfs.Worker) vfs.FileHandle {
	t.Helper()
	req := &vfs.Request{Op: vfs.OpMount, Name: Name}
	run(m, w, req)
	require.Equal(t, vfs.OK, req.Status)
	return req.ResultFH
}

func TestMountReturnsStableRootHandle(t *testing.T) {
	m, w := setupModule(t)
	root1 := mountRoot(t, m, w)
	root2 := mountRoot(t, m, w)
	assert.True(t, root1.Equal(root2))
}

func TestMkdirLookupGetattr(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mkdirReq := &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "sub", Mode: 0o755}
	run(m, w, mkdirReq)
	require.Equal(t, vfs.OK, mkdirReq.Status)
	require.NotNil(t, mkdirReq.Post)
	assert.True(t, mkdirReq.Post.IsDir())

	lookupReq := &vfs.Request{Op: vfs.OpLookup, FH: root, Name: "sub"}
	run(m, w, lookupReq)
	require.Equal(t, vfs.OK, lookupReq.Status)
	assert.True(t, lookupReq.ResultFH.Equal(mkdirReq.ResultFH))

	getattrReq := &vfs.Request{Op: vfs.OpGetattr, FH: lookupReq.ResultFH}
	run(m, w, getattrReq)
	require.Equal(t, vfs.OK, getattrReq.Status)
	assert.True(t, getattrReq.Post.IsDir())
}

func TestMkdirDuplicateNameFails(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	run(m, w, &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "sub", Mode: 0o755})
	dup := &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "sub", Mode: 0o755}
	run(m, w, dup)
	assert.Equal(t, vfs.ErrExist, dup.Status)
}

func TestLookupMissingIsNoent(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)
	req := &vfs.Request{Op: vfs.OpLookup, FH: root, Name: "nope"}
	run(m, w, req)
	assert.Equal(t, vfs.ErrNoent, req.Status)
}

// TestLookupDotAndDotDot covers spec.md §4.1 "Name semantics": LOOKUP of
// "." resolves to the directory itself, and LOOKUP of ".." resolves to
// the stored parent, never to a dirent named "." or "..".
func TestLookupDotAndDotDot(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mkdirReq := &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "sub", Mode: 0o755}
	run(m, w, mkdirReq)
	require.Equal(t, vfs.OK, mkdirReq.Status)
	sub := mkdirReq.ResultFH

	dot := &vfs.Request{Op: vfs.OpLookup, FH: sub, Name: "."}
	run(m, w, dot)
	require.Equal(t, vfs.OK, dot.Status)
	assert.True(t, dot.ResultFH.Equal(sub))

	dotdot := &vfs.Request{Op: vfs.OpLookup, FH: sub, Name: ".."}
	run(m, w, dotdot)
	require.Equal(t, vfs.OK, dotdot.Status)
	assert.True(t, dotdot.ResultFH.Equal(root))

	rootDotDot := &vfs.Request{Op: vfs.OpLookup, FH: root, Name: ".."}
	run(m, w, rootDotDot)
	require.Equal(t, vfs.OK, rootDotDot.Status)
	assert.True(t, rootDotDot.ResultFH.Equal(root))
}

// TestExtentRoundTrip mirrors spec scenario S1: write into a fresh file,
// then read the same range back unaligned and well within one extent.
func TestExtentRoundTrip(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mknod := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, mknod)
	require.Equal(t, vfs.OK, mknod.Status)
	fh := mknod.ResultFH

	payload := []byte("Hello, world!")
	writeReq := &vfs.Request{Op: vfs.OpWrite, FH: fh, Offset: 0, Data: payload}
	run(m, w, writeReq)
	require.Equal(t, vfs.OK, writeReq.Status)

	readReq := &vfs.Request{Op: vfs.OpRead, FH: fh, Offset: 0, Length: int64(len(payload))}
	run(m, w, readReq)
	require.Equal(t, vfs.OK, readReq.Status)
	assert.Equal(t, payload, readReq.ResultData)
	assert.True(t, readReq.Eof)
}

// TestSparseReadZeroFillsGaps covers a read spanning never-written bytes
// between two unaligned writes that share one block: the read-modify-write
// leaves those bytes zero.
func TestSparseReadZeroFillsGaps(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mknod := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, mknod)
	fh := mknod.ResultFH

	run(m, w, &vfs.Request{Op: vfs.OpWrite, FH: fh, Offset: 0, Data: []byte("AAAA")})
	run(m, w, &vfs.Request{Op: vfs.OpWrite, FH: fh, Offset: 10, Data: []byte("BBBB")})

	readReq := &vfs.Request{Op: vfs.OpRead, FH: fh, Offset: 0, Length: 14}
	run(m, w, readReq)
	require.Equal(t, vfs.OK, readReq.Status)
	expect := append([]byte("AAAA"), make([]byte, 6)...)
	expect = append(expect, []byte("BBBB")...)
	assert.Equal(t, expect, readReq.ResultData)
}

// TestWriteRMWBoundary covers spec scenario S3: an unaligned write that
// straddles an existing aligned extent must read-modify-write the
// surrounding bytes rather than clobbering them.
func TestWriteRMWBoundary(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mknod := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, mknod)
	fh := mknod.ResultFH

	run(m, w, &vfs.Request{Op: vfs.OpWrite, FH: fh, Offset: 0, Data: []byte("ABCDEFGH")})
	run(m, w, &vfs.Request{Op: vfs.OpWrite, FH: fh, Offset: 3, Data: []byte("X")})

	readReq := &vfs.Request{Op: vfs.OpRead, FH: fh, Offset: 0, Length: 8}
	run(m, w, readReq)
	require.Equal(t, vfs.OK, readReq.Status)
	assert.Equal(t, []byte("ABCXEFGH"), readReq.ResultData)
}

func TestTruncateShrinksAndFreesExtents(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mknod := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, mknod)
	fh := mknod.ResultFH

	run(m, w, &vfs.Request{Op: vfs.OpWrite, FH: fh, Offset: 0, Data: []byte("0123456789")})

	size := int64(4)
	setattr := &vfs.Request{Op: vfs.OpSetattr, FH: fh, SetSize: &size}
	run(m, w, setattr)
	require.Equal(t, vfs.OK, setattr.Status)
	assert.Equal(t, uint64(4), setattr.Post.Size)

	readReq := &vfs.Request{Op: vfs.OpRead, FH: fh, Offset: 0, Length: 4}
	run(m, w, readReq)
	require.Equal(t, vfs.OK, readReq.Status)
	assert.Equal(t, []byte("0123"), readReq.ResultData)
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	run(m, w, &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "d", Mode: 0o755})
	lookup := &vfs.Request{Op: vfs.OpLookup, FH: root, Name: "d"}
	run(m, w, lookup)
	run(m, w, &vfs.Request{Op: vfs.OpMknod, FH: lookup.ResultFH, Name: "child", Mode: vfs.ModeRegular | 0o644})

	removeReq := &vfs.Request{Op: vfs.OpRemove, FH: root, Name: "d"}
	run(m, w, removeReq)
	assert.Equal(t, vfs.ErrNotempty, removeReq.Status)
}

func TestRemoveFileThenLookupIsNoent(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	run(m, w, &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644})
	removeReq := &vfs.Request{Op: vfs.OpRemove, FH: root, Name: "f"}
	run(m, w, removeReq)
	require.Equal(t, vfs.OK, removeReq.Status)

	lookup := &vfs.Request{Op: vfs.OpLookup, FH: root, Name: "f"}
	run(m, w, lookup)
	assert.Equal(t, vfs.ErrNoent, lookup.Status)
}

// TestRenameOverSelfIsNoop covers renaming a name onto a destination
// that already names the same inode via a hardlink (spec scenario S4).
func TestRenameOverSelfIsNoop(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mknod := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, mknod)

	link := &vfs.Request{Op: vfs.OpLink, FH: mknod.ResultFH, NewParent: root, NewName: "g"}
	run(m, w, link)
	require.Equal(t, vfs.OK, link.Status)

	renameReq := &vfs.Request{Op: vfs.OpRename, FH: root, Name: "f", NewParent: root, NewName: "g"}
	run(m, w, renameReq)
	assert.Equal(t, vfs.OK, renameReq.Status)

	lookup := &vfs.Request{Op: vfs.OpLookup, FH: root, Name: "f"}
	run(m, w, lookup)
	assert.Equal(t, vfs.OK, lookup.Status)
}

func TestRenameAcrossDirectoriesUpdatesParent(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mkdirA := &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "a", Mode: 0o755}
	run(m, w, mkdirA)
	mkdirB := &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "b", Mode: 0o755}
	run(m, w, mkdirB)

	mknod := &vfs.Request{Op: vfs.OpMknod, FH: mkdirA.ResultFH, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, mknod)

	renameReq := &vfs.Request{Op: vfs.OpRename, FH: mkdirA.ResultFH, Name: "f", NewParent: mkdirB.ResultFH, NewName: "f"}
	run(m, w, renameReq)
	require.Equal(t, vfs.OK, renameReq.Status)

	lookupOld := &vfs.Request{Op: vfs.OpLookup, FH: mkdirA.ResultFH, Name: "f"}
	run(m, w, lookupOld)
	assert.Equal(t, vfs.ErrNoent, lookupOld.Status)

	lookupNew := &vfs.Request{Op: vfs.OpLookup, FH: mkdirB.ResultFH, Name: "f"}
	run(m, w, lookupNew)
	assert.Equal(t, vfs.OK, lookupNew.Status)
	assert.True(t, lookupNew.ResultFH.Equal(mknod.ResultFH))
}

func TestReaddirListsAllEntries(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	names := []string{"a", "b", "c"}
	for _, n := range names {
		run(m, w, &vfs.Request{Op: vfs.OpMknod, FH: root, Name: n, Mode: vfs.ModeRegular | 0o644})
	}

	var seen []string
	req := &vfs.Request{
		Op: vfs.OpReaddir, FH: root, EmitDot: true,
		EntrySink: func(e vfs.DirEntry) bool {
			if e.Name != "." && e.Name != ".." {
				seen = append(seen, e.Name)
			}
			return true
		},
	}
	run(m, w, req)
	require.Equal(t, vfs.OK, req.Status)
	assert.True(t, req.Eof)
	assert.ElementsMatch(t, names, seen)
}

// TestReaddirDotDotEntryMatchesParent checks the ".." entry readdir
// emits actually carries the parent's inum/generation rather than the
// directory's own (spec.md §4.1 "Name semantics").
func TestReaddirDotDotEntryMatchesParent(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	mkdirReq := &vfs.Request{Op: vfs.OpMkdir, FH: root, Name: "sub", Mode: 0o755}
	run(m, w, mkdirReq)
	require.Equal(t, vfs.OK, mkdirReq.Status)
	sub := mkdirReq.ResultFH

	rootAttr := &vfs.Request{Op: vfs.OpGetattr, FH: root}
	run(m, w, rootAttr)
	require.Equal(t, vfs.OK, rootAttr.Status)

	var dotdot *vfs.DirEntry
	req := &vfs.Request{
		Op: vfs.OpReaddir, FH: sub, EmitDot: true,
		EntrySink: func(e vfs.DirEntry) bool {
			if e.Name == ".." {
				e := e
				dotdot = &e
			}
			return true
		},
	}
	run(m, w, req)
	require.Equal(t, vfs.OK, req.Status)
	require.NotNil(t, dotdot)
	assert.Equal(t, rootAttr.Post.Inum, dotdot.Inum)
	assert.Equal(t, rootAttr.Post.Generation, dotdot.Generation)
}

// TestReaddirResumesFromCookie exercises resuming a listing midway
// through, as a paginated front end would (spec scenario S5).
func TestReaddirResumesFromCookie(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	for i := 0; i < 5; i++ {
		run(m, w, &vfs.Request{Op: vfs.OpMknod, FH: root, Name: fmt.Sprintf("f%d", i), Mode: vfs.ModeRegular | 0o644})
	}

	var firstBatch []string
	var lastCookie uint64
	req1 := &vfs.Request{
		Op: vfs.OpReaddir, FH: root, EmitDot: true,
		EntrySink: func(e vfs.DirEntry) bool {
			if e.Name == "." || e.Name == ".." {
				return true
			}
			firstBatch = append(firstBatch, e.Name)
			lastCookie = e.Cookie
			return len(firstBatch) < 2
		},
	}
	run(m, w, req1)
	require.Len(t, firstBatch, 2)
	assert.False(t, req1.Eof)

	var rest []string
	req2 := &vfs.Request{
		Op: vfs.OpReaddir, FH: root, Cookie: lastCookie,
		EntrySink: func(e vfs.DirEntry) bool {
			rest = append(rest, e.Name)
			return true
		},
	}
	run(m, w, req2)
	require.Equal(t, vfs.OK, req2.Status)
	assert.True(t, req2.Eof)
	assert.Len(t, rest, 3)

	all := append(firstBatch, rest...)
	assert.ElementsMatch(t, []string{"f0", "f1", "f2", "f3", "f4"}, all)
}

// TestStaleHandleAfterRemoveAndRecreate covers spec scenario S6: a handle
// captured before an unlink+recreate of the same name must not resolve
// to the new inode's generation.
func TestStaleHandleAfterRemoveAndRecreate(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	first := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, first)
	oldHandle := first.ResultFH

	run(m, w, &vfs.Request{Op: vfs.OpRemove, FH: root, Name: "f"})

	second := &vfs.Request{Op: vfs.OpMknod, FH: root, Name: "f", Mode: vfs.ModeRegular | 0o644}
	run(m, w, second)

	getattr := &vfs.Request{Op: vfs.OpGetattr, FH: oldHandle}
	run(m, w, getattr)
	assert.Equal(t, vfs.ErrStale, getattr.Status)
}

func TestSymlinkReadlink(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	symlinkReq := &vfs.Request{Op: vfs.OpSymlink, FH: root, Name: "link", Target: "/etc/passwd"}
	run(m, w, symlinkReq)
	require.Equal(t, vfs.OK, symlinkReq.Status)

	readlinkReq := &vfs.Request{Op: vfs.OpReadlink, FH: symlinkReq.ResultFH}
	run(m, w, readlinkReq)
	require.Equal(t, vfs.OK, readlinkReq.Status)
	assert.Equal(t, "/etc/passwd", string(readlinkReq.ResultData))
}

func TestCreateUnlinkedHasNoDirent(t *testing.T) {
	m, w := setupModule(t)
	root := mountRoot(t, m, w)

	req := &vfs.Request{Op: vfs.OpCreateUnlinked, FH: root, Mode: vfs.ModeRegular | 0o644}
	run(m, w, req)
	require.Equal(t, vfs.OK, req.Status)
	assert.Equal(t, uint32(0), req.Post.Nlink)

	var seen []string
	listReq := &vfs.Request{
		Op: vfs.OpReaddir, FH: root,
		EntrySink: func(e vfs.DirEntry) bool { seen = append(seen, e.Name); return true },
	}
	run(m, w, listReq)
	assert.Empty(t, seen)
}
