package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// countingFile tracks how many times Close was invoked, to verify
// DecRef-to-zero closes exactly once (spec.md §8 "descriptor invariants").
type countingFile struct {
	FileUnsupported
	closes int
}

func (f *countingFile) Close(ctx context.Context) error {
	f.closes++
	return nil
}

// Stat completes the File interface; FileUnsupported does not supply it.
func (f *countingFile) Stat(ctx context.Context) (linux.Statx, error) {
	return linux.Statx{}, nil
}

func TestDescriptorStoreGetClose(t *testing.T) {
	tbl := NewDescriptorTable()
	f := &countingFile{}
	fd, err := tbl.Store(NewOpenFile(f, 0), false)
	require.NoError(t, err)
	assert.Equal(t, 0, fd, "first Store takes the lowest free slot")

	got := tbl.Get(fd)
	require.NotNil(t, got)
	assert.Same(t, f, got.File)

	require.NoError(t, tbl.Close(context.Background(), fd))
	assert.Equal(t, 1, f.closes)
	assert.Nil(t, tbl.Get(fd))

	assert.Equal(t, vfserror.EBADF, tbl.Close(context.Background(), fd))
}

func TestDescriptorGetOutOfRange(t *testing.T) {
	tbl := NewDescriptorTable()
	assert.Nil(t, tbl.Get(-1))
	assert.Nil(t, tbl.Get(1<<20))
}

func TestDescriptorDupSharesRefcount(t *testing.T) {
	tbl := NewDescriptorTable()
	f := &countingFile{}
	fd, err := tbl.Store(NewOpenFile(f, 0), false)
	require.NoError(t, err)

	newfd, err := tbl.Dup(context.Background(), fd, -1, false)
	require.NoError(t, err)
	assert.NotEqual(t, fd, newfd)

	// Closing one of the two duplicated descriptors must not close the
	// underlying file while the other reference is still live.
	require.NoError(t, tbl.Close(context.Background(), fd))
	assert.Equal(t, 0, f.closes)

	require.NoError(t, tbl.Close(context.Background(), newfd))
	assert.Equal(t, 1, f.closes)
}

func TestDescriptorDupOntoSelfIsEINVAL(t *testing.T) {
	tbl := NewDescriptorTable()
	fd, err := tbl.Store(NewOpenFile(&countingFile{}, 0), false)
	require.NoError(t, err)
	_, err = tbl.Dup(context.Background(), fd, fd, false)
	assert.Equal(t, vfserror.EINVAL, err)
}

func TestDescriptorOnExecClosesCloexecOnly(t *testing.T) {
	tbl := NewDescriptorTable()
	keep := &countingFile{}
	drop := &countingFile{}
	keepFd, err := tbl.Store(NewOpenFile(keep, 0), false)
	require.NoError(t, err)
	dropFd, err := tbl.Store(NewOpenFile(drop, 0), true)
	require.NoError(t, err)

	tbl.OnExec(context.Background())

	assert.NotNil(t, tbl.Get(keepFd))
	assert.Nil(t, tbl.Get(dropFd))
	assert.Equal(t, 1, drop.closes)
	assert.Equal(t, 0, keep.closes)
}

func TestUmaskDefaultAndSet(t *testing.T) {
	tbl := NewDescriptorTable()
	assert.Equal(t, uint32(DefaultUmask), tbl.Umask())
	old := tbl.SetUmask(0o077)
	assert.Equal(t, uint32(DefaultUmask), old)
	assert.Equal(t, uint32(0o077), tbl.Umask())
}
