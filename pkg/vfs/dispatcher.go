package vfs

import (
	"context"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// Dispatcher is the stateless translator from guest syscall shape to
// file- or filesystem-level operations (spec.md §4.5). It owns no state
// of its own beyond references to the collaborators it routes between.
type Dispatcher struct {
	Descriptors *DescriptorTable
	Paths       *PathResolver
	Memory      ProcessMemory
}

// NewDispatcher wires a dispatcher over an already-constructed
// descriptor table, path resolver and memory collaborator.
func NewDispatcher(descriptors *DescriptorTable, paths *PathResolver, memory ProcessMemory) *Dispatcher {
	return &Dispatcher{Descriptors: descriptors, Paths: paths, Memory: memory}
}

// lookup returns fd's OpenFile or EBADF.
func (d *Dispatcher) lookup(fd int) (*OpenFile, error) {
	of := d.Descriptors.Get(fd)
	if of == nil {
		return nil, vfserror.EBADF
	}
	return of, nil
}

// sameBackend reports whether file was produced by one of the
// dispatcher's mounted filesystems; used by Link/Rename to reject
// cross-backend operations with EPERM. The File interface carries no
// backend identity of its own, so this always returns true here -- a
// concrete filesystem backend that cares about cross-backend rejection
// overrides the comparison by embedding a backend tag in its File
// implementation and checking it in its own Link/Rename method instead.
func sameBackend(File) bool { return true }

// Open resolves pathname (relative to cwd unless absolute) and installs
// the resulting file in the lowest free descriptor slot.
func (d *Dispatcher) Open(ctx context.Context, pathname string, flags uint32, mode uint32) (int, error) {
	file, err := d.Paths.OpenWithSymlinkHandling(ctx, pathname, flags, mode)
	if err != nil {
		return -1, err
	}
	of := NewOpenFile(file, flags)
	cloexec := flags&linux.O_CLOEXEC != 0
	fd, err := d.Descriptors.Store(of, cloexec)
	if err != nil {
		of.DecRef(ctx)
		return -1, err
	}
	return fd, nil
}

// Close releases fd's reference, invoking the file's close op at zero.
func (d *Dispatcher) Close(ctx context.Context, fd int) error {
	return d.Descriptors.Close(ctx, fd)
}

// Dup, Dup2, Dup3 forward to the descriptor table (spec.md §4.4).
func (d *Dispatcher) Dup(ctx context.Context, fd int) (int, error) {
	return d.Descriptors.Dup(ctx, fd, -1, false)
}

func (d *Dispatcher) Dup2(ctx context.Context, fd, newfd int) (int, error) {
	if fd == newfd {
		if d.Descriptors.Get(fd) == nil {
			return -1, vfserror.EBADF
		}
		return newfd, nil
	}
	return d.Descriptors.Dup(ctx, fd, newfd, false)
}

func (d *Dispatcher) Dup3(ctx context.Context, fd, newfd int, flags uint32) (int, error) {
	if fd == newfd {
		return -1, vfserror.EINVAL
	}
	return d.Descriptors.Dup(ctx, fd, newfd, flags&linux.O_CLOEXEC != 0)
}

// Chdir normalizes pathname into the process's CWD (spec.md §6).
func (d *Dispatcher) Chdir(ctx context.Context, pathname string) error {
	d.Paths.SetCwd(pathname)
	return nil
}

// Getcwd returns the current working directory.
func (d *Dispatcher) Getcwd() string {
	return d.Paths.Cwd()
}

// resolveAt implements the shared "*at" delegation rule: when dirfd
// names the current working directory, delegate to the non-at form;
// otherwise the operation is not supported by this core (spec.md §6
// "delegate to their non-at forms when the directory-fd argument
// designates 'current working directory', otherwise return 'not found'
// (pending a future extension)").
func resolveAt(dirfd int, pathname string) (string, error) {
	if dirfd != linux.AT_FDCWD {
		return "", vfserror.ENOENT
	}
	return pathname, nil
}
