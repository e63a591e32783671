package devfs

import (
	"context"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// charDeviceStat fills in the parts of Statx a character device needs:
// S_IFCHR mode, zero size, a fixed device number distinguishing the
// three special files.
func charDeviceStat(rdev uint64) linux.Statx {
	return linux.Statx{
		Mode:    linux.S_IFCHR | 0o666,
		Nlink:   1,
		Rdev:    rdev,
		Blksize: 4096,
	}
}

// nullFile discards all writes and reads as EOF, matching /dev/null.
type nullFile struct {
	vfs.FileUnsupported
}

func (f *nullFile) Read(ctx context.Context, dst []byte, opts vfs.ReadOptions) (int64, error) {
	return 0, nil
}
func (f *nullFile) Write(ctx context.Context, src []byte, opts vfs.WriteOptions) (int64, error) {
	return int64(len(src)), nil
}
func (f *nullFile) PRead(ctx context.Context, dst []byte, offset int64, opts vfs.ReadOptions) (int64, error) {
	return 0, nil
}
func (f *nullFile) PWrite(ctx context.Context, src []byte, offset int64, opts vfs.WriteOptions) (int64, error) {
	return int64(len(src)), nil
}
func (f *nullFile) Seek(ctx context.Context, offset int64, whence int32) (int64, error) { return 0, nil }
func (f *nullFile) Stat(ctx context.Context) (linux.Statx, error)                       { return charDeviceStat(3), nil }
func (f *nullFile) PollHandle() (uintptr, uint32, bool)                                 { return 0, 0, false }
func (f *nullFile) Close(ctx context.Context) error                                     { return nil }

// zeroFile reads as an infinite stream of zero bytes and discards
// writes, matching /dev/zero.
type zeroFile struct {
	vfs.FileUnsupported
}

func (f *zeroFile) Read(ctx context.Context, dst []byte, opts vfs.ReadOptions) (int64, error) {
	for i := range dst {
		dst[i] = 0
	}
	return int64(len(dst)), nil
}
func (f *zeroFile) Write(ctx context.Context, src []byte, opts vfs.WriteOptions) (int64, error) {
	return int64(len(src)), nil
}
func (f *zeroFile) PRead(ctx context.Context, dst []byte, offset int64, opts vfs.ReadOptions) (int64, error) {
	return f.Read(ctx, dst, opts)
}
func (f *zeroFile) PWrite(ctx context.Context, src []byte, offset int64, opts vfs.WriteOptions) (int64, error) {
	return int64(len(src)), nil
}
func (f *zeroFile) Seek(ctx context.Context, offset int64, whence int32) (int64, error) { return 0, nil }
func (f *zeroFile) Stat(ctx context.Context) (linux.Statx, error)                       { return charDeviceStat(5), nil }
func (f *zeroFile) PollHandle() (uintptr, uint32, bool)                                 { return 0, 0, false }
func (f *zeroFile) Close(ctx context.Context) error                                     { return nil }

// fullFile reads as an infinite stream of zero bytes and rejects every
// write with ENOSPC,
// matching /dev/full.
type fullFile struct {
	vfs.FileUnsupported
}

func (f *fullFile) Read(ctx context.Context, dst []byte, opts vfs.ReadOptions) (int64, error) {
	for i := range dst {
		dst[i] = 0
	}
	return int64(len(dst)), nil
}
func (f *fullFile) Write(ctx context.Context, src []byte, opts vfs.WriteOptions) (int64, error) {
	return 0, vfserror.ENOSPC
}
func (f *fullFile) PRead(ctx context.Context, dst []byte, offset int64, opts vfs.ReadOptions) (int64, error) {
	return f.Read(ctx, dst, opts)
}
func (f *fullFile) PWrite(ctx context.Context, src []byte, offset int64, opts vfs.WriteOptions) (int64, error) {
	return 0, vfserror.ENOSPC
}
func (f *fullFile) Seek(ctx context.Context, offset int64, whence int32) (int64, error) { return 0, nil }
func (f *fullFile) Stat(ctx context.Context) (linux.Statx, error)                       { return charDeviceStat(7), nil }
func (f *fullFile) PollHandle() (uintptr, uint32, bool)                                 { return 0, 0, false }
func (f *fullFile) Close(ctx context.Context) error                                     { return nil }
