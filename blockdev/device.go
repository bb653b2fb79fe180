// Package blockdev specifies the asynchronous, sector-granular block
// device abstraction demofs consumes (spec.md §1, §4.4). Per spec.md this
// is an external collaborator whose interface is specified here; the
// blockdev/file and blockdev/odirect subpackages are concrete, exercised
// reference implementations, not the real evpl/io_uring front end.
package blockdev

import "context"

// Device is a single raw block device. Implementations must support
// concurrent submissions from multiple workers; completions are always
// delivered asynchronously (even if the underlying implementation is
// synchronous under the hood) so callers never assume inline completion.
type Device interface {
	// ID identifies this device for extent (device_id, device_offset,
	// length) triples.
	ID() uint32
	// Size returns the device's total addressable byte size.
	Size() int64
	// MaxRequestSize returns the largest single read or write this device
	// accepts; callers must split larger requests themselves.
	MaxRequestSize() int
	// SubmitRead issues an asynchronous read of len(buf) bytes starting
	// at offset. done is invoked exactly once, from some goroutine, with
	// either nil or an error.
	SubmitRead(ctx context.Context, offset int64, buf []byte, done func(error))
	// SubmitWrite issues an asynchronous write of data starting at
	// offset. done is invoked exactly once.
	SubmitWrite(ctx context.Context, offset int64, data []byte, done func(error))
	// Close releases the device's resources. Callers must first drain all
	// in-flight submissions (spec.md §5 "pending_io == 0").
	Close() error
}
