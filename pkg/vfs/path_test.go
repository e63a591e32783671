package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

func TestNormalizeAbsoluteAndIdempotent(t *testing.T) {
	cases := []struct {
		base, input, want string
	}{
		{"/", "foo/bar", "/foo/bar"},
		{"/home/user", "../x", "/home/x"},
		{"/", "../../../etc/passwd", "/etc/passwd"},
		{"/a/b/c", "/x/y", "/x/y"},
		{"/a", "./b/./c", "/a/b/c"},
		{"/", ".", "/."},
		{"/a/b", "..", "/a"},
		{"/", "..", "/"},
		{"/a/b/", "c/", "/a/b/c"},
	}
	for _, c := range cases {
		got := Normalize(c.base, c.input)
		assert.Equal(t, c.want, got, "Normalize(%q, %q)", c.base, c.input)
		// Every normalized path is absolute and already canonical: using it
		// as the base of a second pass changes nothing except the appended
		// trailing "." (spec.md §8 "normalization is idempotent and always
		// produces an absolute path").
		assert.True(t, len(got) > 0 && got[0] == '/', "result must be absolute: %q", got)
		again := Normalize(got, ".")
		if got == "/" {
			assert.Equal(t, "/.", again)
		} else {
			assert.Equal(t, got+"/.", again)
		}
	}
}

func TestNormalizeDotDotAtRootIsNoOp(t *testing.T) {
	assert.Equal(t, "/", Normalize("/", "../../.."))
}

func TestFindFilesystemLongestPrefixWins(t *testing.T) {
	r := NewPathResolver()
	root := &stubFS{}
	dev := &stubFS{}
	r.Mount("/", root)
	r.Mount("/dev", dev)

	fs, subpath, ok := r.FindFilesystem("/dev/null")
	require.True(t, ok)
	assert.Same(t, dev, fs)
	assert.Equal(t, "null", subpath)

	fs, subpath, ok = r.FindFilesystem("/etc/hosts")
	require.True(t, ok)
	assert.Same(t, root, fs)
	assert.Equal(t, "etc/hosts", subpath)
}

func TestSetCwdStripsTrailingDot(t *testing.T) {
	r := NewPathResolver()
	r.SetCwd("/foo/.")
	assert.Equal(t, "/foo", r.Cwd())
}

// stubFS is a minimal Filesystem for path-resolution tests that never
// need real file I/O.
type stubFS struct {
	links map[string]string
}

func (s *stubFS) Open(ctx context.Context, subpath string, flags, mode uint32) (File, string, error) {
	return nil, "", vfserror.ENOENT
}
func (s *stubFS) Link(ctx context.Context, source File, subpath string) error { return vfserror.ENOSYS }
func (s *stubFS) Unlink(ctx context.Context, subpath string) error           { return vfserror.ENOSYS }
func (s *stubFS) Symlink(ctx context.Context, target, subpath string) error  { return vfserror.ENOSYS }
func (s *stubFS) Readlink(ctx context.Context, subpath string) (string, error) {
	if s.links == nil {
		return "", vfserror.ENOENT
	}
	t, ok := s.links[subpath]
	if !ok {
		return "", vfserror.ENOENT
	}
	return t, nil
}
func (s *stubFS) Mkdir(ctx context.Context, subpath string, mode uint32) error { return vfserror.ENOSYS }
func (s *stubFS) Rmdir(ctx context.Context, subpath string) error             { return vfserror.ENOSYS }
func (s *stubFS) Rename(ctx context.Context, source File, subpath string) error {
	return vfserror.ENOSYS
}

func TestResolveSymlinkComponentSplicesTarget(t *testing.T) {
	fs := &stubFS{links: map[string]string{"a": "/real"}}
	newPath, err := ResolveSymlinkComponent(context.Background(), fs, "/a/b", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/real/b", newPath)
}

func TestResolveSymlinkComponentNoMatchIsENOENT(t *testing.T) {
	fs := &stubFS{}
	_, err := ResolveSymlinkComponent(context.Background(), fs, "/a/b", "a/b")
	assert.Equal(t, vfserror.ENOENT, err)
}

func TestLinkRenameRejectCrossBackend(t *testing.T) {
	r := NewPathResolver()
	r.Mount("/", &stubFS{})
	never := func(File) bool { return false }
	assert.Equal(t, vfserror.EPERM, r.Link(context.Background(), nil, "/x", never))
	assert.Equal(t, vfserror.EPERM, r.Rename(context.Background(), nil, "/x", never))
}
