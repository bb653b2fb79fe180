// Package file implements blockdev.Device over a single regular file,
// using a small worker pool to turn synchronous pread/pwrite into
// completion-callback submissions — the same shape the "io_uring" and
// "vfio" config device types (spec.md §6) both present to demofs, just
// without the real kernel-bypass plumbing (out of scope per spec.md §1).
package file

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// Config describes one configured device (spec.md §6: devices[].{type,
// path, size}).
type Config struct {
	ID   uint32
	Path string
	Size int64
}

// Device is a blockdev.Device backed by a regular file, sized to
// cfg.Size when first created.
type Device struct {
	id      uint32
	size    int64
	f       *os.File
	submitc chan func()
	done    chan struct{}
}

const defaultMaxRequest = 1 << 20 // 1 MiB, matches a typical io_uring SQE cap

// Open opens (creating and sizing if necessary) the file at cfg.Path.
func Open(cfg Config, workers int) (*Device, error) {
	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "blockdev/file: opening %s", cfg.Path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.Size() < cfg.Size {
		if err := f.Truncate(cfg.Size); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "blockdev/file: sizing device file")
		}
	}
	if workers <= 0 {
		workers = 4
	}
	d := &Device{
		id:      cfg.ID,
		size:    cfg.Size,
		f:       f,
		submitc: make(chan func(), 1024),
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d, nil
}

func (d *Device) worker() {
	for {
		select {
		case job, ok := <-d.submitc:
			if !ok {
				return
			}
			job()
		case <-d.done:
			return
		}
	}
}

// ID implements blockdev.Device.
func (d *Device) ID() uint32 { return d.id }

// Size implements blockdev.Device.
func (d *Device) Size() int64 { return d.size }

// MaxRequestSize implements blockdev.Device.
func (d *Device) MaxRequestSize() int { return defaultMaxRequest }

// SubmitRead implements blockdev.Device.
func (d *Device) SubmitRead(ctx context.Context, offset int64, buf []byte, done func(error)) {
	d.submitc <- func() {
		_, err := d.f.ReadAt(buf, offset)
		done(err)
	}
}

// SubmitWrite implements blockdev.Device.
func (d *Device) SubmitWrite(ctx context.Context, offset int64, data []byte, done func(error)) {
	d.submitc <- func() {
		_, err := d.f.WriteAt(data, offset)
		done(err)
	}
}

// Close signals the worker pool to stop and closes the backing file. It
// does not wait for submissions that are still queued or running.
func (d *Device) Close() error {
	close(d.done)
	return d.f.Close()
}
