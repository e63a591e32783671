package vfs

import (
	"context"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// Fcntl supports duplicate, get/set close-on-exec, and get flags;
// unsupported commands return EINVAL (spec.md §4.5 fcntl).
func (d *Dispatcher) Fcntl(ctx context.Context, fd int, cmd uint32, arg uintptr) (uintptr, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return 0, err
	}
	switch cmd {
	case linux.F_DUPFD:
		newfd, err := d.Descriptors.Store(of, false)
		if err != nil {
			return 0, err
		}
		of.IncRef()
		return uintptr(newfd), nil
	case linux.F_GETFD:
		cloexec, err := d.Descriptors.Cloexec(fd)
		if err != nil {
			return 0, err
		}
		if cloexec {
			return linux.FD_CLOEXEC, nil
		}
		return 0, nil
	case linux.F_SETFD:
		if err := d.Descriptors.SetCloexec(fd, arg&linux.FD_CLOEXEC != 0); err != nil {
			return 0, err
		}
		return 0, nil
	case linux.F_GETFL:
		return uintptr(of.Flags), nil
	default:
		return 0, vfserror.EINVAL
	}
}
