package vfs

import (
	"context"
	"math"

	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// direntAlign rounds a record length up to the 8-byte alignment the
// foreign ABI requires for dirent records (spec.md §4.5 "rounding each
// record length up to the 8-byte alignment required by the foreign
// ABI").
func direntAlign(n int) int {
	return (n + 7) &^ 7
}

// linuxDirentHeaderSize is the record overhead both dirent variants
// reserve per record: the linux_dirent64 header (8-byte d_ino, 8-byte
// d_off, 2-byte d_reclen, d_type byte at offset 18). linux_dirent's own
// header is 10 bytes with d_type as the record's last byte, so it reuses
// this size with room to spare.
const linuxDirentHeaderSize = 19

// Getdents64 fills dst with as many 64-bit dirent records as fit,
// returning the number of bytes written.
func (d *Dispatcher) Getdents64(ctx context.Context, fd int, addr uintptr, size int) (int, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := d.Memory.CheckWrite(addr, size); err != nil {
		return -1, vfserror.EFAULT
	}
	out := make([]byte, 0, size)
	written := 0
	emit := func(name string, ino uint64, typ byte) (int, error) {
		reclen := direntAlign(linuxDirentHeaderSize + len(name))
		if written+reclen > size {
			return 0, vfserror.EOVERFLOW
		}
		rec := make([]byte, reclen)
		putUint64(rec[0:8], ino)
		putUint64(rec[8:16], uint64(written+reclen)) // d_off: next record's offset
		putUint16(rec[16:18], uint16(reclen))
		rec[18] = typ // d_type is a fixed field at offset 18, not a trailing byte
		copy(rec[19:], name)
		out = append(out, rec...)
		written += reclen
		return reclen, nil
	}
	if err := of.File.Getdents(ctx, emit); err != nil && written == 0 {
		return -1, err
	}
	if written > 0 {
		if werr := d.Memory.CopyOut(addr, out); werr != nil {
			return -1, vfserror.EFAULT
		}
	}
	return written, nil
}

// Getdents fills dst with 32-bit dirent records, reporting EOVERFLOW
// when an inode number truncates (spec.md §4.5 "in the 32-bit variant,
// reporting EOVERFLOW if the inode number truncates").
func (d *Dispatcher) Getdents(ctx context.Context, fd int, addr uintptr, size int) (int, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := d.Memory.CheckWrite(addr, size); err != nil {
		return -1, vfserror.EFAULT
	}
	out := make([]byte, 0, size)
	written := 0
	var overflowErr error
	emit := func(name string, ino uint64, typ byte) (int, error) {
		if ino > math.MaxUint32 {
			overflowErr = vfserror.EOVERFLOW
			return 0, vfserror.EOVERFLOW
		}
		reclen := direntAlign(linuxDirentHeaderSize + len(name))
		if written+reclen > size {
			return 0, vfserror.EOVERFLOW
		}
		rec := make([]byte, reclen)
		putUint32(rec[0:4], uint32(ino))
		putUint32(rec[4:8], uint32(written+reclen))
		putUint16(rec[8:10], uint16(reclen))
		copy(rec[10:], name)
		rec[len(rec)-1] = typ
		out = append(out, rec...)
		written += reclen
		return reclen, nil
	}
	if err := of.File.Getdents(ctx, emit); err != nil && written == 0 {
		if overflowErr != nil {
			return -1, overflowErr
		}
		return -1, err
	}
	if written > 0 {
		if werr := d.Memory.CopyOut(addr, out); werr != nil {
			return -1, vfserror.EFAULT
		}
	}
	return written, nil
}

func putUint16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
