package devfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishstudio/flinux-go/pkg/vfs"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

func TestOpenUnknownNameIsENOENT(t *testing.T) {
	fs := NewFS()
	_, _, err := fs.Open(context.Background(), "nonexistent", 0, 0)
	assert.Equal(t, vfserror.ENOENT, err)
}

func TestNullReadsEOFAndDiscardsWrites(t *testing.T) {
	fs := NewFS()
	f, _, err := fs.Open(context.Background(), "null", 0, 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := f.Read(context.Background(), buf, vfs.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = f.Write(context.Background(), []byte("hello"), vfs.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestZeroFillsReadsWithZeroBytes(t *testing.T) {
	fs := NewFS()
	f, _, err := fs.Open(context.Background(), "zero", 0, 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = 0xff
	}
	n, err := f.Read(context.Background(), buf, vfs.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(buf)), n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestFullRejectsWritesWithENOSPC(t *testing.T) {
	fs := NewFS()
	f, _, err := fs.Open(context.Background(), "full", 0, 0)
	require.NoError(t, err)

	_, err = f.Write(context.Background(), []byte("x"), vfs.WriteOptions{})
	assert.Equal(t, vfserror.ENOSPC, err)

	buf := make([]byte, 4)
	n, err := f.Read(context.Background(), buf, vfs.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(buf)), n)
}

func TestEachOpenReturnsAFreshInstance(t *testing.T) {
	fs := NewFS()
	a, _, err := fs.Open(context.Background(), "null", 0, 0)
	require.NoError(t, err)
	b, _, err := fs.Open(context.Background(), "null", 0, 0)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestMutatingOpsAreRejected(t *testing.T) {
	fs := NewFS()
	ctx := context.Background()
	assert.Equal(t, vfserror.EPERM, fs.Mkdir(ctx, "x", 0o755))
	assert.Equal(t, vfserror.EPERM, fs.Unlink(ctx, "null"))
	assert.Equal(t, vfserror.EPERM, fs.Rmdir(ctx, "x"))
	assert.Equal(t, vfserror.EPERM, fs.Symlink(ctx, "target", "x"))
	assert.Equal(t, vfserror.EINVAL, func() error { _, err := fs.Readlink(ctx, "null"); return err }())
}
