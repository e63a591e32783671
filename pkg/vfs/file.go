package vfs

import (
	"context"
	"sync/atomic"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// ReadOptions and WriteOptions carry the small set of per-call flags the
// dispatcher needs to forward to a file object (spec.md §4.5).
type ReadOptions struct{ Flags uint32 }
type WriteOptions struct{ Flags uint32 }

// DirentEmitter is called once per directory entry by Getdents. It returns
// the encoded record length, or -EOVERFLOW-shaped error if the entry does
// not fit the caller's view (spec.md §4.5 getdents/getdents64).
type DirentEmitter func(name string, ino uint64, typ byte) (int, error)

// File is the capability record spec.md §3 calls "opaque to the core;
// exposes a capability record enumerating supported operations". A
// concrete backend need not implement every method meaningfully: embedding
// FileUnsupported supplies error-returning stubs for every operation except
// Stat and Close, which each backend implements itself, mirroring gvisor's FileDescriptionDefaultImpl pattern
// (pkg/sentry/fsimpl/host/host.go).
type File interface {
	Read(ctx context.Context, dst []byte, opts ReadOptions) (int64, error)
	Write(ctx context.Context, src []byte, opts WriteOptions) (int64, error)
	PRead(ctx context.Context, dst []byte, offset int64, opts ReadOptions) (int64, error)
	PWrite(ctx context.Context, src []byte, offset int64, opts WriteOptions) (int64, error)
	Seek(ctx context.Context, offset int64, whence int32) (int64, error)
	Stat(ctx context.Context) (linux.Statx, error)
	Statfs(ctx context.Context) (linux.Statfs, error)
	Getdents(ctx context.Context, emit DirentEmitter) error
	Ioctl(ctx context.Context, cmd uint32, arg uintptr) (uintptr, error)
	Utimens(ctx context.Context, times *[2]linux.Timespec) error
	// PollHandle returns a host wait handle and the event mask it can
	// signal, or ok=false if this file cannot be waited on by the host
	// poller (spec.md §4.5 poll).
	PollHandle() (handle uintptr, events uint32, ok bool)
	// PollStatus, if supported, lets the dispatcher short-circuit a wait
	// when the file is already ready (spec.md §4.5 poll "get_poll_status
	// hook").
	PollStatus() (events uint32, ok bool)
	Close(ctx context.Context) error
}

// FileUnsupported embeds into backends that don't implement most
// operations, returning ENOSYS/EBADF-shaped results uniformly instead of
// making every backend hand-write the same boilerplate.
type FileUnsupported struct{}

func (FileUnsupported) Read(context.Context, []byte, ReadOptions) (int64, error) {
	return 0, vfserror.EBADF
}
func (FileUnsupported) Write(context.Context, []byte, WriteOptions) (int64, error) {
	return 0, vfserror.EBADF
}
func (FileUnsupported) PRead(context.Context, []byte, int64, ReadOptions) (int64, error) {
	return 0, vfserror.ESPIPE
}
func (FileUnsupported) PWrite(context.Context, []byte, int64, WriteOptions) (int64, error) {
	return 0, vfserror.ESPIPE
}
func (FileUnsupported) Seek(context.Context, int64, int32) (int64, error) {
	return 0, vfserror.ESPIPE
}
func (FileUnsupported) Statfs(context.Context) (linux.Statfs, error) {
	return linux.Statfs{}, vfserror.ENOSYS
}
func (FileUnsupported) Getdents(context.Context, DirentEmitter) error {
	return vfserror.ENOTDIR
}
func (FileUnsupported) Ioctl(context.Context, uint32, uintptr) (uintptr, error) {
	return 0, vfserror.ENOTTY
}
func (FileUnsupported) Utimens(context.Context, *[2]linux.Timespec) error {
	return vfserror.ENOSYS
}
func (FileUnsupported) PollHandle() (uintptr, uint32, bool) { return 0, 0, false }
func (FileUnsupported) PollStatus() (uint32, bool)          { return 0, false }

// OpenFile is a reference-counted handle to a File, tracking the open
// flags the descriptor was created with (spec.md §3 File object: "Tracked
// fields visible to the core: reference count, open flags").
//
// Lifetime = longest holder: IncRef/DecRef pairs are the only legal way to
// extend or end that lifetime; DecRef to zero invokes File.Close exactly
// once.
type OpenFile struct {
	File  File
	Flags uint32
	refs  int32
}

// NewOpenFile wraps file with an initial reference count of 1.
func NewOpenFile(file File, flags uint32) *OpenFile {
	return &OpenFile{File: file, Flags: flags, refs: 1}
}

// IncRef adds a reference, e.g. on dup() success.
func (o *OpenFile) IncRef() {
	atomic.AddInt32(&o.refs, 1)
}

// DecRef drops a reference, closing the underlying File when the count
// reaches zero (spec.md §3 invariant: "closing i decrements and, on zero,
// invokes the file's close").
func (o *OpenFile) DecRef(ctx context.Context) error {
	if atomic.AddInt32(&o.refs, -1) == 0 {
		return o.File.Close(ctx)
	}
	return nil
}
