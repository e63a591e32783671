// Package winfs implements the root filesystem backend: a Filesystem
// that maps the guest's "/" onto a real directory tree on the Windows
// host, the same role gvisor's pkg/sentry/fsimpl/host plays for
// imported host file descriptors, but rooted at a directory instead of
// individual fds (spec.md §6 "Filesystem backend contract").
package winfs

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// FS roots the guest's "/" namespace at a host directory.
type FS struct {
	root string
}

// NewFS returns a filesystem rooted at root, an absolute host path.
func NewFS(root string) *FS {
	return &FS{root: filepath.Clean(root)}
}

// hostPath maps a filesystem-relative subpath (no leading "/", "/"-
// separated) onto a host filesystem path.
func (fs *FS) hostPath(subpath string) string {
	if subpath == "" || subpath == "." {
		return fs.root
	}
	return filepath.Join(fs.root, filepath.FromSlash(subpath))
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return vfserror.ENOENT
	case os.IsExist(err):
		return vfserror.EEXIST
	case os.IsPermission(err):
		return vfserror.EACCES
	default:
		return vfserror.EIO
	}
}

// translateOpenFlags converts the foreign O_* bits the dispatcher works
// in into the os.OpenFile flag bits the host expects. O_PATH and
// O_NOFOLLOW are handled by the caller, not the host open call.
func translateOpenFlags(flags uint32) int {
	var out int
	switch flags & linux.O_ACCMODE {
	case linux.O_WRONLY:
		out |= os.O_WRONLY
	case linux.O_RDWR:
		out |= os.O_RDWR
	default:
		out |= os.O_RDONLY
	}
	if flags&linux.O_CREAT != 0 {
		out |= os.O_CREATE
	}
	if flags&linux.O_EXCL != 0 {
		out |= os.O_EXCL
	}
	if flags&linux.O_TRUNC != 0 {
		out |= os.O_TRUNC
	}
	if flags&linux.O_APPEND != 0 {
		out |= os.O_APPEND
	}
	return out
}

// Open implements vfs.Filesystem.Open (spec.md §4.3, §6). A symlink
// encountered as the terminal component is reported via the (nil,
// target, nil) convention, unless O_NOFOLLOW was requested, in which
// case a handle to the link itself is returned so the caller can
// stat/readlink it without following; O_PATH alone still follows (spec.md §3 "no-follow
// trailing dot").
func (fs *FS) Open(ctx context.Context, subpath string, flags uint32, mode uint32) (vfs.File, string, error) {
	hp := fs.hostPath(subpath)

	info, lerr := os.Lstat(hp)
	isSymlink := lerr == nil && info.Mode()&os.ModeSymlink != 0
	if isSymlink {
		if flags&linux.O_NOFOLLOW == 0 {
			target, rerr := os.Readlink(hp)
			if rerr != nil {
				return nil, "", translateErr(rerr)
			}
			return nil, target, nil
		}
		// O_NOFOLLOW on a symlink: the caller (stat/lstat, readlink's
		// own resolution envelope) wants the link's own metadata, not
		// the target's. A plain os.Open would transparently follow the
		// reparse point, so open it directly with
		// FILE_FLAG_OPEN_REPARSE_POINT instead (grounded on rclone's
		// local backend linkinfo_windows.go, which needs the same
		// "operate on the reparse point itself" access).
		f, err := openReparsePoint(hp)
		if err != nil {
			return nil, "", translateErr(err)
		}
		return newHostFile(f, hp), "", nil
	}

	if flags&linux.O_PATH != 0 {
		// A path-only handle: open for stat/readlink purposes, never
		// for data I/O. Opening read-only satisfies that without
		// requiring write access the caller may not hold.
		f, err := os.Open(hp)
		if err != nil {
			return nil, "", translateErr(err)
		}
		return newHostFile(f, hp), "", nil
	}

	if flags&linux.O_DIRECTORY != 0 {
		f, err := os.Open(hp)
		if err != nil {
			return nil, "", translateErr(err)
		}
		fi, serr := f.Stat()
		if serr == nil && !fi.IsDir() {
			f.Close()
			return nil, "", vfserror.ENOTDIR
		}
		return newHostFile(f, hp), "", nil
	}

	f, err := os.OpenFile(hp, translateOpenFlags(flags), os.FileMode(mode&0o777))
	if err != nil {
		return nil, "", translateErr(err)
	}
	return newHostFile(f, hp), "", nil
}

// openReparsePoint opens path without following a reparse point (symlink
// or junction), via CreateFile with FILE_FLAG_OPEN_REPARSE_POINT +
// FILE_FLAG_BACKUP_SEMANTICS (the latter required to open a directory
// reparse point at all).
func openReparsePoint(path string) (*os.File, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(h), path), nil
}

func (fs *FS) Link(ctx context.Context, source vfs.File, subpath string) error {
	hf, ok := source.(*hostFile)
	if !ok {
		return vfserror.EPERM
	}
	if err := os.Link(hf.path, fs.hostPath(subpath)); err != nil {
		return translateErr(err)
	}
	return nil
}

func (fs *FS) Unlink(ctx context.Context, subpath string) error {
	hp := fs.hostPath(subpath)
	info, err := os.Lstat(hp)
	if err != nil {
		return translateErr(err)
	}
	if info.IsDir() {
		return vfserror.EISDIR
	}
	if err := os.Remove(hp); err != nil {
		return translateErr(err)
	}
	return nil
}

func (fs *FS) Symlink(ctx context.Context, target, subpath string) error {
	if err := os.Symlink(target, fs.hostPath(subpath)); err != nil {
		return translateErr(err)
	}
	return nil
}

func (fs *FS) Readlink(ctx context.Context, subpath string) (string, error) {
	target, err := os.Readlink(fs.hostPath(subpath))
	if err != nil {
		return "", translateErr(err)
	}
	return target, nil
}

func (fs *FS) Mkdir(ctx context.Context, subpath string, mode uint32) error {
	if err := os.Mkdir(fs.hostPath(subpath), os.FileMode(mode&0o777)); err != nil {
		return translateErr(err)
	}
	return nil
}

func (fs *FS) Rmdir(ctx context.Context, subpath string) error {
	hp := fs.hostPath(subpath)
	info, err := os.Lstat(hp)
	if err != nil {
		return translateErr(err)
	}
	if !info.IsDir() {
		return vfserror.ENOTDIR
	}
	entries, err := os.ReadDir(hp)
	if err == nil && len(entries) > 0 {
		return vfserror.ENOTEMPTY
	}
	if err := os.Remove(hp); err != nil {
		return translateErr(err)
	}
	return nil
}

func (fs *FS) Rename(ctx context.Context, source vfs.File, subpath string) error {
	hf, ok := source.(*hostFile)
	if !ok {
		return vfserror.EPERM
	}
	dst := fs.hostPath(subpath)
	if err := os.Rename(hf.path, dst); err != nil {
		return translateErr(err)
	}
	hf.path = dst
	return nil
}
