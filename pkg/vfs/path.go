package vfs

import (
	"context"
	"strings"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// Normalize produces an absolute, canonical path by concatenating base
// (when input is relative) and input, then collapsing "/", "." and ".."
// segments (spec.md §4.3).
//
// A leading "/" in input discards base. ".." pops one segment, a no-op at
// root. A trailing single "." is preserved verbatim -- required so
// O_NOFOLLOW behaves correctly when the path names a symlink to a
// directory (see the "no-follow trailing dot" glossary entry). A trailing
// "/" is stripped unless the whole result is "/".
func Normalize(base, input string) string {
	var out []byte
	rest := input
	if strings.HasPrefix(rest, "/") {
		out = append(out, '/')
		rest = rest[1:]
	} else {
		out = append(out, base...)
		if len(out) == 0 || out[len(out)-1] != '/' {
			out = append(out, '/')
		}
	}

	for len(rest) > 0 {
		switch {
		case rest[0] == '/':
			rest = rest[1:]

		case rest[0] == '.' && len(rest) == 1:
			// Trailing single "." must be kept, unlike "./" mid-path.
			out = append(out, '.')
			rest = rest[1:]

		case rest[0] == '.' && rest[1] == '/':
			rest = rest[2:]

		case rest[0] == '.' && rest[1] == '.' && (len(rest) == 2 || rest[2] == '/'):
			if len(rest) == 2 {
				rest = rest[2:]
			} else {
				rest = rest[3:]
			}
			if len(out) > 1 {
				out = out[:len(out)-1] // drop trailing '/'
				for len(out) > 0 && out[len(out)-1] != '/' {
					out = out[:len(out)-1]
				}
			}
			// At root, ".." is a no-op.

		default:
			for len(rest) > 0 && rest[0] != '/' {
				out = append(out, rest[0])
				rest = rest[1:]
			}
			if len(rest) > 0 && rest[0] == '/' {
				out = append(out, '/')
				rest = rest[1:]
			}
		}
	}

	if len(out) == 0 {
		return "/"
	}
	if len(out) > 1 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return string(out)
}

// Mount pairs a mount-point prefix with the filesystem backend owning it.
type Mount struct {
	Prefix string
	FS     Filesystem
}

// Filesystem is the per-mount backend contract (spec.md §6 "Filesystem
// backend contract"). Open returns (file, "", nil) on success, (nil,
// target, nil) when the terminal component is a symlink (caller splices
// target and retries), or (nil, "", err) on failure -- ENOENT triggers
// the resolution envelope, anything else propagates.
type Filesystem interface {
	Open(ctx context.Context, subpath string, flags uint32, mode uint32) (file File, symlinkTarget string, err error)
	Link(ctx context.Context, source File, subpath string) error
	Unlink(ctx context.Context, subpath string) error
	Symlink(ctx context.Context, target, subpath string) error
	Readlink(ctx context.Context, subpath string) (string, error)
	Mkdir(ctx context.Context, subpath string, mode uint32) error
	Rmdir(ctx context.Context, subpath string) error
	Rename(ctx context.Context, source File, subpath string) error
}

// PathResolver holds the mount table and current working directory for
// one process (spec.md §4.3).
type PathResolver struct {
	mounts []Mount // search order: most recently mounted first, per FindFilesystem
	cwd    string
}

// NewPathResolver returns a resolver with an empty mount table and CWD "/".
func NewPathResolver() *PathResolver {
	return &PathResolver{cwd: "/"}
}

// Mount prepends fs at prefix, so it is searched before any mount added
// earlier. Mounting a more specific prefix (e.g. "/dev") after the root
// mount ("/") reproduces the original's longest-prefix-wins behavior from
// a simple insertion-order scan (original_source/src/syscall/vfs.c
// vfs_add prepends to a singly linked list for the same reason).
func (r *PathResolver) Mount(prefix string, fs Filesystem) {
	r.mounts = append([]Mount{{Prefix: prefix, FS: fs}}, r.mounts...)
}

// Cwd returns the current working directory.
func (r *PathResolver) Cwd() string { return r.cwd }

// SetCwd normalizes pathname against the current cwd and, unless the
// result is exactly "/", strips a trailing "/." (spec.md §6 chdir).
func (r *PathResolver) SetCwd(pathname string) {
	next := Normalize(r.cwd, pathname)
	if next != "/" && strings.HasSuffix(next, "/.") {
		next = strings.TrimSuffix(next, "/.")
		if next == "" {
			next = "/"
		}
	}
	r.cwd = next
}

// FindFilesystem scans the mount list in (prepend) insertion order and
// returns the first whose prefix matches path character-by-character up
// to the prefix's end. The remainder, with any leading "/" stripped, is
// the filesystem-relative subpath.
func (r *PathResolver) FindFilesystem(path string) (fs Filesystem, subpath string, ok bool) {
	for _, m := range r.mounts {
		if strings.HasPrefix(path, m.Prefix) {
			rest := path[len(m.Prefix):]
			rest = strings.TrimPrefix(rest, "/")
			return m.FS, rest, true
		}
	}
	return nil, "", false
}

// ResolveSymlinkComponent is used once a prior operation has reported
// ENOENT: it scans subpath right-to-left for directory components and
// asks the filesystem's Readlink about each. The first one that resolves
// has its target spliced into path in place of that component (keeping
// the tail after it); the caller re-normalizes and retries the original
// operation (spec.md §4.3).
func ResolveSymlinkComponent(ctx context.Context, fs Filesystem, path, subpath string) (newPath string, err error) {
	for i := len(subpath) - 1; i > 0; i-- {
		if subpath[i] != '/' {
			continue
		}
		candidate := subpath[:i]
		target, rerr := fs.Readlink(ctx, candidate)
		if rerr == nil {
			tail := subpath[i+1:]
			combined := target
			if !strings.HasSuffix(combined, "/") && tail != "" {
				combined += "/" + tail
			} else {
				combined += tail
			}
			// Mount-point portion of path: everything before subpath.
			base := path[:len(path)-len(subpath)]
			// Strip the symlink component itself (candidate) from base's
			// logical view: base+candidate is the portion before the
			// symlink; splicing combined in its place re-normalizes.
			head := base
			if idx := strings.LastIndex(candidate, "/"); idx >= 0 {
				head += candidate[:idx+1]
			}
			return Normalize(head, combined), nil
		}
		if rerr != vfserror.ENOENT {
			return "", rerr
		}
	}
	return "", vfserror.ENOENT
}

// pathEnvelope runs the generic "try, on ENOENT attempt symlink
// resolution, retry" loop shared by every pathname-level operation
// (spec.md §4.3, §9 "TOCTOU envelope"). attempt is called with the
// current (fs, subpath) pair; it must return vfserror.ENOENT for "retry
// after symlink resolution", nil for success, or any other error to
// propagate immediately.
func (r *PathResolver) pathEnvelope(ctx context.Context, path string, attempt func(fs Filesystem, subpath string) error) error {
	for level := 0; ; level++ {
		if level == linux.MaxSymlinkLevel {
			return vfserror.ELOOP
		}
		fs, subpath, ok := r.FindFilesystem(path)
		if !ok {
			return vfserror.ENOENT
		}
		err := attempt(fs, subpath)
		if err == nil {
			return nil
		}
		if err != vfserror.ENOENT {
			return err
		}
		newPath, rerr := ResolveSymlinkComponent(ctx, fs, path, subpath)
		if rerr != nil {
			return vfserror.ENOENT
		}
		path = newPath
	}
}

// OpenWithSymlinkHandling is the combined "resolve path, open, handle
// symlinks" primitive (spec.md §4.3). It exists because testing
// symlink-ness separately from opening is racy (TOCTOU): another actor
// could replace the target between the check and the open.
func (r *PathResolver) OpenWithSymlinkHandling(ctx context.Context, pathname string, flags uint32, mode uint32) (File, error) {
	path := Normalize(r.cwd, pathname)
	var result File
	for level := 0; ; level++ {
		if level == linux.MaxSymlinkLevel {
			return nil, vfserror.ELOOP
		}
		fs, subpath, ok := r.FindFilesystem(path)
		if !ok {
			return nil, vfserror.ENOENT
		}
		if subpath == "" {
			subpath = "."
		}
		file, target, err := fs.Open(ctx, subpath, flags, mode)
		switch {
		case target != "":
			// The terminal component is a symlink; splice its target in
			// place of the basename and loop.
			dir := path
			if idx := strings.LastIndex(path, "/"); idx >= 0 {
				dir = path[:idx+1]
			}
			path = Normalize(dir, target)
		case err == nil:
			result = file
			return result, nil
		case err == vfserror.ENOENT:
			newPath, rerr := ResolveSymlinkComponent(ctx, fs, path, subpath)
			if rerr != nil {
				return nil, vfserror.ENOENT
			}
			path = newPath
		default:
			return nil, err
		}
	}
}

// Link, Unlink, Symlink, Readlink, Mkdir, Rmdir, Rename reuse the same
// resolution envelope (spec.md §4.3 "The same retry-with-symlink-resolution
// envelope is reused for link, unlink, symlink, readlink, rename, mkdir,
// rmdir").

func (r *PathResolver) Unlink(ctx context.Context, pathname string) error {
	path := Normalize(r.cwd, pathname)
	return r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		return fs.Unlink(ctx, subpath)
	})
}

func (r *PathResolver) Symlink(ctx context.Context, target, linkpath string) error {
	path := Normalize(r.cwd, linkpath)
	return r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		return fs.Symlink(ctx, target, subpath)
	})
}

func (r *PathResolver) Readlink(ctx context.Context, pathname string) (string, error) {
	path := Normalize(r.cwd, pathname)
	var target string
	err := r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		t, err := fs.Readlink(ctx, subpath)
		if err == nil {
			target = t
		}
		return err
	})
	return target, err
}

func (r *PathResolver) Mkdir(ctx context.Context, pathname string, mode uint32) error {
	path := Normalize(r.cwd, pathname)
	return r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		return fs.Mkdir(ctx, subpath, mode)
	})
}

func (r *PathResolver) Rmdir(ctx context.Context, pathname string) error {
	path := Normalize(r.cwd, pathname)
	return r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		return fs.Rmdir(ctx, subpath)
	})
}

// Link and Rename additionally require that the source file be on a
// compatible backend, surfaced via the sameBackend predicate (spec.md
// §4.5 "link and rename additionally require that the source file be on
// a compatible backend (else EPERM)").
func (r *PathResolver) Link(ctx context.Context, source File, newpath string, sameBackend func(File) bool) error {
	if !sameBackend(source) {
		return vfserror.EPERM
	}
	path := Normalize(r.cwd, newpath)
	return r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		return fs.Link(ctx, source, subpath)
	})
}

func (r *PathResolver) Rename(ctx context.Context, source File, newpath string, sameBackend func(File) bool) error {
	if !sameBackend(source) {
		return vfserror.EPERM
	}
	path := Normalize(r.cwd, newpath)
	return r.pathEnvelope(ctx, path, func(fs Filesystem, subpath string) error {
		return fs.Rename(ctx, source, subpath)
	})
}
