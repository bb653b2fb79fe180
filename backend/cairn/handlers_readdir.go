package cairn

import "github.com/chimera-nas/chimera/vfs"

// readdir implements spec.md §4.3 "Readdir": three cookie phases (".",
// "..", real entries), resuming a real-entry scan by seeking to
// (DIRENT, inum, cookie-3+1), and reporting cookie = hash+3 for each
// entry returned so the next call resumes just past it.
func (m *Module) readdir(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	txn := ws.txn.ensure(w)
	inum, rec, err := decodeHandle(txn, req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	if !rec.IsDirMode() {
		req.Complete(vfs.ErrNotdir)
		return
	}

	emit := req.EntrySink
	if emit == nil {
		emit = func(vfs.DirEntry) bool { return true }
	}

	if req.Cookie <= vfs.CookieDot && req.EmitDot {
		if !emit(vfs.DirEntry{Name: ".", Inum: inum, Generation: rec.Generation, Cookie: vfs.CookieDot}) {
			req.Eof = false
			ws.txn.complete(req, vfs.OK)
			return
		}
	}
	if req.Cookie <= vfs.CookieDotDot && req.EmitDot {
		if !emit(vfs.DirEntry{Name: "..", Inum: rec.ParentInum, Generation: rec.ParentGen, Cookie: vfs.CookieDotDot}) {
			req.Eof = false
			ws.txn.complete(req, vfs.OK)
			return
		}
	}

	prefix := direntPrefix(inum)
	c := txn.Cursor()
	var k, v []byte
	var ok bool
	if req.Cookie >= vfs.CookieFirstDyn {
		k, v, ok = c.Seek(DirentKey(inum, req.Cookie-vfs.CookieFirstDyn+1))
	} else {
		k, v, ok = c.Seek(prefix)
	}

	req.Eof = true
	for ok && hasPrefix(k, prefix) {
		_, nameHash := decodeDirentKey(k)
		childInum, name, derr := decodeDirentValue(v)
		if derr != nil {
			req.Fail(vfs.NewError(vfs.ErrFault, derr))
			return
		}
		child, gerr := getInode(txn, childInum)
		if gerr != nil {
			req.Fail(gerr.(*vfs.Error))
			return
		}
		entry := vfs.DirEntry{
			Name:       name,
			Inum:       childInum,
			Generation: child.Generation,
			Cookie:     nameHash + vfs.CookieFirstDyn,
		}
		if !emit(entry) {
			req.Eof = false
			break
		}
		k, v, ok = c.Next()
	}

	ws.txn.complete(req, vfs.OK)
}
