package winfs

import (
	"context"
	"io"
	"os"
	"sort"
	"time"

	"golang.org/x/sys/windows"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/hostwin"
	"github.com/wishstudio/flinux-go/pkg/vfs"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// hostFile wraps a real *os.File standing in for one guest file object
// on the root filesystem (spec.md §3 File object). Embedding
// vfs.FileUnsupported supplies ENOSYS/EBADF-shaped defaults for anything
// below not explicitly overridden, the same pattern host.go documents
// for gvisor's FileDescriptionDefaultImpl.
type hostFile struct {
	vfs.FileUnsupported
	f    *os.File
	path string // host path, tracked so Link/Rename can reopen by name
}

func newHostFile(f *os.File, path string) *hostFile {
	return &hostFile{f: f, path: path}
}

func (h *hostFile) Read(ctx context.Context, dst []byte, opts vfs.ReadOptions) (int64, error) {
	n, err := h.f.Read(dst)
	if err != nil && err != io.EOF {
		return int64(n), translateErr(err)
	}
	return int64(n), nil
}

func (h *hostFile) Write(ctx context.Context, src []byte, opts vfs.WriteOptions) (int64, error) {
	n, err := h.f.Write(src)
	if err != nil {
		return int64(n), translateErr(err)
	}
	return int64(n), nil
}

func (h *hostFile) PRead(ctx context.Context, dst []byte, offset int64, opts vfs.ReadOptions) (int64, error) {
	n, err := h.f.ReadAt(dst, offset)
	if err != nil && err != io.EOF {
		return int64(n), translateErr(err)
	}
	return int64(n), nil
}

func (h *hostFile) PWrite(ctx context.Context, src []byte, offset int64, opts vfs.WriteOptions) (int64, error) {
	n, err := h.f.WriteAt(src, offset)
	if err != nil {
		return int64(n), translateErr(err)
	}
	return int64(n), nil
}

func (h *hostFile) Seek(ctx context.Context, offset int64, whence int32) (int64, error) {
	n, err := h.f.Seek(offset, int(whence))
	if err != nil {
		return -1, translateErr(err)
	}
	return n, nil
}

// Stat fills the wide Statx view from the host handle's
// BY_HANDLE_FILE_INFORMATION, giving a real, stable inode number (the
// file index) instead of a synthesized one (spec.md §8 "Stat round-
// trip": dev/ino must be stable across repeated stat calls on the same
// file).
func (h *hostFile) Stat(ctx context.Context) (linux.Statx, error) {
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(windows.Handle(h.f.Fd()), &info); err != nil {
		return linux.Statx{}, translateErr(err)
	}

	mode := uint32(0o644)
	if info.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0 {
		mode = 0o755 | linux.S_IFDIR
	} else {
		mode |= linux.S_IFREG
	}
	if info.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 {
		mode = (mode &^ linux.S_IFMT) | linux.S_IFLNK
	}

	ino := uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow)
	dev := uint64(info.VolumeSerialNumber)
	size := uint64(info.FileSizeHigh)<<32 | uint64(info.FileSizeLow)

	return linux.Statx{
		Dev:     dev,
		Ino:     ino,
		Nlink:   uint64(info.NumberOfLinks),
		Mode:    mode,
		Size:    size,
		Blksize: 4096,
		Blocks:  (size + 511) / 512,
		Atime:   filetimeToTimespec(info.LastAccessTime),
		Mtime:   filetimeToTimespec(info.LastWriteTime),
		Ctime:   filetimeToTimespec(info.CreationTime),
	}, nil
}

func filetimeToTimespec(ft windows.Filetime) linux.Timespec {
	ns := ft.Nanoseconds()
	return linux.Timespec{Sec: ns / 1e9, Nsec: ns % 1e9}
}

// Statfs reports free/total space for the volume backing h, via
// hostwin.DiskFreeSpace (spec.md §4.5 Statfs family).
func (h *hostFile) Statfs(ctx context.Context) (linux.Statfs, error) {
	total, free, avail, err := hostwin.DiskFreeSpace(h.path)
	if err != nil {
		return linux.Statfs{}, translateErr(err)
	}
	const blockSize = 4096
	return linux.Statfs{
		Type:    0x5346544e, // NTFS-ish magic; no real Linux fs has a Windows volume
		Bsize:   blockSize,
		Blocks:  total / blockSize,
		Bfree:   free / blockSize,
		Bavail:  avail / blockSize,
		Namelen: 255,
		Frsize:  blockSize,
	}, nil
}

// Getdents lists the directory's children, emitting one record per
// entry via emit (spec.md §4.5 getdents/getdents64).
func (h *hostFile) Getdents(ctx context.Context, emit vfs.DirentEmitter) error {
	entries, err := h.f.ReadDir(-1)
	if err != nil {
		return translateErr(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		typ := byte(linux.DT_REG)
		if e.IsDir() {
			typ = linux.DT_DIR
		} else if e.Type()&os.ModeSymlink != 0 {
			typ = linux.DT_LNK
		}
		// os.ReadDir's entries carry no file index (that requires
		// opening each child individually via GetFileInformationByHandle,
		// which Stat does); getdents reports ino 0 for directory listing,
		// the same simplification a later per-entry Stat call corrects.
		if _, err := emit(e.Name(), 0, typ); err != nil {
			return err
		}
	}
	return nil
}

func (h *hostFile) Utimens(ctx context.Context, times *[2]linux.Timespec) error {
	if times == nil {
		now := time.Now()
		return translateErr(os.Chtimes(h.path, now, now))
	}
	atime := timespecToTime(times[0])
	mtime := timespecToTime(times[1])
	return translateErr(os.Chtimes(h.path, atime, mtime))
}

func timespecToTime(ts linux.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

func (h *hostFile) PollHandle() (uintptr, uint32, bool) {
	// Regular files and directories never block on Windows; treated as
	// always ready by the dispatcher's poll/select implementation.
	return 0, 0, false
}

func (h *hostFile) Close(ctx context.Context) error {
	return translateErr(h.f.Close())
}
