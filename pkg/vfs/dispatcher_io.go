package vfs

import (
	"context"
	"math"

	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// IOVec mirrors struct iovec for the scatter/gather syscalls.
type IOVec struct {
	Base uintptr
	Len  int
}

// Read implements the plain read() syscall.
func (d *Dispatcher) Read(ctx context.Context, fd int, addr uintptr, count int) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := d.Memory.CheckWrite(addr, count); err != nil {
		return -1, vfserror.EFAULT
	}
	buf := make([]byte, count)
	n, err := of.File.Read(ctx, buf, ReadOptions{Flags: of.Flags})
	if err != nil {
		return -1, err
	}
	if n > 0 {
		if werr := d.Memory.CopyOut(addr, buf[:n]); werr != nil {
			return -1, vfserror.EFAULT
		}
	}
	return n, nil
}

// Write implements the plain write() syscall.
func (d *Dispatcher) Write(ctx context.Context, fd int, addr uintptr, count int) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := d.Memory.CheckRead(addr, count); err != nil {
		return -1, vfserror.EFAULT
	}
	buf := make([]byte, count)
	if err := d.Memory.CopyIn(buf, addr); err != nil {
		return -1, vfserror.EFAULT
	}
	return of.File.Write(ctx, buf, WriteOptions{Flags: of.Flags})
}

// PRead implements pread64.
func (d *Dispatcher) PRead(ctx context.Context, fd int, addr uintptr, count int, offset int64) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := d.Memory.CheckWrite(addr, count); err != nil {
		return -1, vfserror.EFAULT
	}
	buf := make([]byte, count)
	n, err := of.File.PRead(ctx, buf, offset, ReadOptions{Flags: of.Flags})
	if err != nil {
		return -1, err
	}
	if n > 0 {
		if werr := d.Memory.CopyOut(addr, buf[:n]); werr != nil {
			return -1, vfserror.EFAULT
		}
	}
	return n, nil
}

// PWrite implements pwrite64.
func (d *Dispatcher) PWrite(ctx context.Context, fd int, addr uintptr, count int, offset int64) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := d.Memory.CheckRead(addr, count); err != nil {
		return -1, vfserror.EFAULT
	}
	buf := make([]byte, count)
	if err := d.Memory.CopyIn(buf, addr); err != nil {
		return -1, vfserror.EFAULT
	}
	return of.File.PWrite(ctx, buf, offset, WriteOptions{Flags: of.Flags})
}

// Readv implements readv/preadv: iterate the vector, short-circuiting on
// a short read (spec.md §4.5 "Scatter variants iterate the vector and
// short-circuit on a short read").
func (d *Dispatcher) Readv(ctx context.Context, fd int, iov []IOVec, offset int64, usePread bool) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	var total int64
	for _, v := range iov {
		if v.Len == 0 {
			continue
		}
		if err := d.Memory.CheckWrite(v.Base, v.Len); err != nil {
			return -1, vfserror.EFAULT
		}
		buf := make([]byte, v.Len)
		var n int64
		if usePread {
			n, err = of.File.PRead(ctx, buf, offset+total, ReadOptions{Flags: of.Flags})
		} else {
			n, err = of.File.Read(ctx, buf, ReadOptions{Flags: of.Flags})
		}
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return -1, err
		}
		if n > 0 {
			if werr := d.Memory.CopyOut(v.Base, buf[:n]); werr != nil {
				return -1, vfserror.EFAULT
			}
			total += n
		}
		if int(n) < v.Len {
			break
		}
	}
	return total, nil
}

// Writev implements writev/pwritev, symmetric to Readv.
func (d *Dispatcher) Writev(ctx context.Context, fd int, iov []IOVec, offset int64, usePwrite bool) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	var total int64
	for _, v := range iov {
		if v.Len == 0 {
			continue
		}
		if err := d.Memory.CheckRead(v.Base, v.Len); err != nil {
			return -1, vfserror.EFAULT
		}
		buf := make([]byte, v.Len)
		if err := d.Memory.CopyIn(buf, v.Base); err != nil {
			return -1, vfserror.EFAULT
		}
		var n int64
		if usePwrite {
			n, err = of.File.PWrite(ctx, buf, offset+total, WriteOptions{Flags: of.Flags})
		} else {
			n, err = of.File.Write(ctx, buf, WriteOptions{Flags: of.Flags})
		}
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return -1, err
		}
		total += n
		if int(n) < v.Len {
			break
		}
	}
	return total, nil
}

// Lseek implements the 32-bit-returning lseek, reporting EOVERFLOW if
// the 64-bit result would not fit (spec.md §4.5 Seek).
func (d *Dispatcher) Lseek(ctx context.Context, fd int, offset int64, whence int32) (int32, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	result, err := of.File.Seek(ctx, offset, whence)
	if err != nil {
		return -1, err
	}
	if result > math.MaxInt32 || result < math.MinInt32 {
		return -1, vfserror.EOVERFLOW
	}
	return int32(result), nil
}

// Llseek implements llseek, returning the full-width result.
func (d *Dispatcher) Llseek(ctx context.Context, fd int, offset int64, whence int32) (int64, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	return of.File.Seek(ctx, offset, whence)
}
