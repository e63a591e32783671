package vfs

import (
	"context"
	"math"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// Stat32 is the narrow, 32-bit-era stat view. Every field narrower than
// Statx's is checked for truncation by the narrowing functions below
// (spec.md §4.5 Stat family, §8 Stat round-trip).
type Stat32 struct {
	Dev     uint16
	Ino     uint32
	Mode    uint16
	Nlink   uint16
	UID     uint16
	GID     uint16
	Rdev    uint16
	Size    uint32
	Blksize uint32
	Blocks  uint32
	Atime   uint32
	Mtime   uint32
	Ctime   uint32
}

// Stat64 is the wide "stat64"/"newstat" view. widenStat64 copies Statx
// into it without overflow checks and never reports EOVERFLOW: Nlink
// keeps only its low 32 bits, Blksize is stored as int32, and Size and
// Blocks are stored as signed 64-bit values.
type Stat64 struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    int64
	Blksize int32
	Blocks  int64
	Atime   linux.Timespec
	Mtime   linux.Timespec
	Ctime   linux.Timespec
}

func narrowStat32(s linux.Statx) (Stat32, error) {
	if s.Dev > math.MaxUint16 || s.Ino > math.MaxUint32 || s.UID > math.MaxUint16 ||
		s.GID > math.MaxUint16 || s.Rdev > math.MaxUint16 || s.Size > math.MaxUint32 ||
		s.Blocks > math.MaxUint32 || s.Nlink > math.MaxUint16 || s.Mode > math.MaxUint16 ||
		s.Atime.Sec < 0 || s.Atime.Sec > math.MaxUint32 ||
		s.Mtime.Sec < 0 || s.Mtime.Sec > math.MaxUint32 ||
		s.Ctime.Sec < 0 || s.Ctime.Sec > math.MaxUint32 {
		return Stat32{}, vfserror.EOVERFLOW
	}
	return Stat32{
		Dev:     uint16(s.Dev),
		Ino:     uint32(s.Ino),
		Mode:    uint16(s.Mode),
		Nlink:   uint16(s.Nlink),
		UID:     uint16(s.UID),
		GID:     uint16(s.GID),
		Rdev:    uint16(s.Rdev),
		Size:    uint32(s.Size),
		Blksize: s.Blksize,
		Blocks:  uint32(s.Blocks),
		Atime:   uint32(s.Atime.Sec),
		Mtime:   uint32(s.Mtime.Sec),
		Ctime:   uint32(s.Ctime.Sec),
	}, nil
}

func widenStat64(s linux.Statx) Stat64 {
	return Stat64{
		Dev:     s.Dev,
		Ino:     s.Ino,
		Mode:    s.Mode,
		Nlink:   uint32(s.Nlink),
		UID:     s.UID,
		GID:     s.GID,
		Rdev:    s.Rdev,
		Size:    int64(s.Size),
		Blksize: int32(s.Blksize),
		Blocks:  int64(s.Blocks),
		Atime:   s.Atime,
		Mtime:   s.Mtime,
		Ctime:   s.Ctime,
	}
}

// Fstat, Stat, Lstat funnel through a single file-level stat op (spec.md
// §4.5 "fstat, stat, lstat and their 64-bit and 'new' variants funnel
// through a single file-level stat op whose output is a superset").

func (d *Dispatcher) Fstat(ctx context.Context, fd int) (linux.Statx, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return linux.Statx{}, err
	}
	return of.File.Stat(ctx)
}

func (d *Dispatcher) Fstat32(ctx context.Context, fd int) (Stat32, error) {
	s, err := d.Fstat(ctx, fd)
	if err != nil {
		return Stat32{}, err
	}
	return narrowStat32(s)
}

func (d *Dispatcher) Fstat64(ctx context.Context, fd int) (Stat64, error) {
	s, err := d.Fstat(ctx, fd)
	if err != nil {
		return Stat64{}, err
	}
	return widenStat64(s), nil
}

// statAt opens pathname read-only-equivalent purely to stat it, honoring
// followSymlink (false for lstat/AT_SYMLINK_NOFOLLOW).
func (d *Dispatcher) statAt(ctx context.Context, pathname string, followSymlink bool) (linux.Statx, error) {
	flags := uint32(linux.O_PATH)
	if !followSymlink {
		flags |= linux.O_NOFOLLOW
	}
	file, err := d.Paths.OpenWithSymlinkHandling(ctx, pathname, flags, 0)
	if err != nil {
		return linux.Statx{}, err
	}
	defer file.Close(ctx)
	return file.Stat(ctx)
}

func (d *Dispatcher) Stat(ctx context.Context, pathname string) (linux.Statx, error) {
	return d.statAt(ctx, pathname, true)
}

func (d *Dispatcher) Lstat(ctx context.Context, pathname string) (linux.Statx, error) {
	return d.statAt(ctx, pathname, false)
}

func (d *Dispatcher) Stat32(ctx context.Context, pathname string) (Stat32, error) {
	s, err := d.Stat(ctx, pathname)
	if err != nil {
		return Stat32{}, err
	}
	return narrowStat32(s)
}

func (d *Dispatcher) Lstat32(ctx context.Context, pathname string) (Stat32, error) {
	s, err := d.Lstat(ctx, pathname)
	if err != nil {
		return Stat32{}, err
	}
	return narrowStat32(s)
}

func (d *Dispatcher) Stat64(ctx context.Context, pathname string) (Stat64, error) {
	s, err := d.Stat(ctx, pathname)
	if err != nil {
		return Stat64{}, err
	}
	return widenStat64(s), nil
}

func (d *Dispatcher) Lstat64(ctx context.Context, pathname string) (Stat64, error) {
	s, err := d.Lstat(ctx, pathname)
	if err != nil {
		return Stat64{}, err
	}
	return widenStat64(s), nil
}

// Statfs32 narrows linux.Statfs's 64-bit block counters (spec.md §4.5
// Stat family narrowing applies equally to statfs).
type Statfs32 struct {
	Type    int32
	Bsize   int32
	Blocks  uint32
	Bfree   uint32
	Bavail  uint32
	Files   uint32
	Ffree   uint32
	FsidX0  int32
	FsidX1  int32
	Namelen int32
	Frsize  int32
}

func narrowStatfs32(s linux.Statfs) (Statfs32, error) {
	if s.Blocks > math.MaxUint32 || s.Bfree > math.MaxUint32 || s.Bavail > math.MaxUint32 ||
		s.Files > math.MaxUint32 || s.Ffree > math.MaxUint32 {
		return Statfs32{}, vfserror.EOVERFLOW
	}
	return Statfs32{
		Type:    int32(s.Type),
		Bsize:   int32(s.Bsize),
		Blocks:  uint32(s.Blocks),
		Bfree:   uint32(s.Bfree),
		Bavail:  uint32(s.Bavail),
		Files:   uint32(s.Files),
		Ffree:   uint32(s.Ffree),
		FsidX0:  s.FsidX0,
		FsidX1:  s.FsidX1,
		Namelen: int32(s.Namelen),
		Frsize:  int32(s.Frsize),
	}, nil
}

func (d *Dispatcher) Fstatfs(ctx context.Context, fd int) (linux.Statfs, error) {
	of, err := d.lookup(fd)
	if err != nil {
		return linux.Statfs{}, err
	}
	return of.File.Statfs(ctx)
}

func (d *Dispatcher) Fstatfs32(ctx context.Context, fd int) (Statfs32, error) {
	s, err := d.Fstatfs(ctx, fd)
	if err != nil {
		return Statfs32{}, err
	}
	return narrowStatfs32(s)
}

func (d *Dispatcher) Statfs(ctx context.Context, pathname string) (linux.Statfs, error) {
	file, err := d.Paths.OpenWithSymlinkHandling(ctx, pathname, linux.O_PATH, 0)
	if err != nil {
		return linux.Statfs{}, err
	}
	defer file.Close(ctx)
	return file.Statfs(ctx)
}

func (d *Dispatcher) Statfs32(ctx context.Context, pathname string) (Statfs32, error) {
	s, err := d.Statfs(ctx, pathname)
	if err != nil {
		return Statfs32{}, err
	}
	return narrowStatfs32(s)
}

// Utimens sets access/modification times, honoring the O_NOFOLLOW
// convention the same way stat does.
func (d *Dispatcher) Utimens(ctx context.Context, pathname string, times *[2]linux.Timespec, followSymlink bool) error {
	flags := uint32(linux.O_PATH)
	if !followSymlink {
		flags |= linux.O_NOFOLLOW
	}
	file, err := d.Paths.OpenWithSymlinkHandling(ctx, pathname, flags, 0)
	if err != nil {
		return err
	}
	defer file.Close(ctx)
	return file.Utimens(ctx, times)
}
