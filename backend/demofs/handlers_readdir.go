package demofs

import "github.com/chimera-nas/chimera/vfs"

// readdir implements spec.md §4.4 "Readdir": three cookie phases (".",
// "..", real entries), resuming a real-entry scan by seeking to the
// first dirents key >= cookie-3+1, and reporting cookie = key+3 for
// each entry returned so the next call resumes just past it.
func (m *Module) readdir(w *vfs.Worker, ws *workerState, req *vfs.Request) {
	n, err := m.decodeHandle(req.FH)
	if err != nil {
		req.Fail(err.(*vfs.Error))
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.isDir() {
		req.Complete(vfs.ErrNotdir)
		return
	}

	emit := req.EntrySink
	if emit == nil {
		emit = func(vfs.DirEntry) bool { return true }
	}

	if req.Cookie <= vfs.CookieDot && req.EmitDot {
		if !emit(vfs.DirEntry{Name: ".", Inum: n.inum, Generation: n.generation, Cookie: vfs.CookieDot}) {
			req.Eof = false
			req.Complete(vfs.OK)
			return
		}
	}
	if req.Cookie <= vfs.CookieDotDot && req.EmitDot {
		if !emit(vfs.DirEntry{Name: "..", Inum: n.parentInum, Generation: n.parentGen, Cookie: vfs.CookieDotDot}) {
			req.Eof = false
			req.Complete(vfs.OK)
			return
		}
	}

	var (
		key uint64
		d   *dirent
		ok  bool
	)
	if req.Cookie >= vfs.CookieFirstDyn {
		key, d, ok = n.dirents.Ceil(req.Cookie - vfs.CookieFirstDyn + 1)
	} else {
		key, d, ok = n.dirents.First()
	}

	req.Eof = true
	for ok {
		entry := vfs.DirEntry{
			Name:       d.name,
			Inum:       d.inum,
			Generation: d.generation,
			Cookie:     key + vfs.CookieFirstDyn,
		}
		if !emit(entry) {
			req.Eof = false
			break
		}
		key, d, ok = n.dirents.Next(key)
	}

	req.Complete(vfs.OK)
}
