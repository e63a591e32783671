// Package devfs implements the synthetic /dev filesystem backend: a
// small fixed registry of special files (null, zero, full) that hold no
// host-file backing, generalizing the File-capability-record idiom
// pkg/fsimpl/winfs uses for real files to entries whose data is
// computed rather than stored (spec.md §6 "Filesystem backend
// contract").
package devfs

import (
	"context"

	"github.com/wishstudio/flinux-go/pkg/vfs"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// FS is the /dev mount's backend.
type FS struct {
	entries map[string]func() vfs.File
}

// NewFS returns a devfs mount preloaded with the standard special
// files.
func NewFS() *FS {
	fs := &FS{entries: make(map[string]func() vfs.File)}
	fs.entries["null"] = func() vfs.File { return &nullFile{} }
	fs.entries["zero"] = func() vfs.File { return &zeroFile{} }
	fs.entries["full"] = func() vfs.File { return &fullFile{} }
	return fs
}

func (fs *FS) Open(ctx context.Context, subpath string, flags uint32, mode uint32) (vfs.File, string, error) {
	ctor, ok := fs.entries[subpath]
	if !ok {
		return nil, "", vfserror.ENOENT
	}
	return ctor(), "", nil
}

func (fs *FS) Link(ctx context.Context, source vfs.File, subpath string) error {
	return vfserror.EPERM
}

func (fs *FS) Unlink(ctx context.Context, subpath string) error {
	return vfserror.EPERM
}

func (fs *FS) Symlink(ctx context.Context, target, subpath string) error {
	return vfserror.EPERM
}

func (fs *FS) Readlink(ctx context.Context, subpath string) (string, error) {
	return "", vfserror.EINVAL
}

func (fs *FS) Mkdir(ctx context.Context, subpath string, mode uint32) error {
	return vfserror.EPERM
}

func (fs *FS) Rmdir(ctx context.Context, subpath string) error {
	return vfserror.EPERM
}

func (fs *FS) Rename(ctx context.Context, source vfs.File, subpath string) error {
	return vfserror.EPERM
}
