package vfs

import (
	"context"
	"sync"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// DescriptorTable is the fixed-capacity array mapping small non-negative
// integers to file objects (spec.md §4.4). It is accessed only from the
// single guest thread under the single-guest-thread assumption (spec.md
// §5), but carries its own mutex so a later per-table-lock extension is a
// pure addition rather than a structural change.
type DescriptorTable struct {
	mu      sync.Mutex
	files   [linux.MaxFD]*OpenFile
	cloexec [linux.MaxFD]bool
	umask   uint32
}

// DefaultUmask matches original_source's vfs_init(): S_IWGRP | S_IWOTH.
const DefaultUmask = 0o022

// NewDescriptorTable returns an empty table with the default umask.
func NewDescriptorTable() *DescriptorTable {
	return &DescriptorTable{umask: DefaultUmask}
}

func validFD(fd int) bool {
	return fd >= 0 && fd < linux.MaxFD
}

// Store installs file at the lowest free slot, or returns EMFILE if the
// table is full.
func (t *DescriptorTable) Store(file *OpenFile, cloexec bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < linux.MaxFD; i++ {
		if t.files[i] == nil {
			t.files[i] = file
			t.cloexec[i] = cloexec
			return i, nil
		}
	}
	return -1, vfserror.EMFILE
}

// Get range-checks fd and returns its file, or nil if the slot is empty or
// fd is out of range.
func (t *DescriptorTable) Get(fd int) *OpenFile {
	if !validFD(fd) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.files[fd]
}

// Close decrements fd's reference count, invoking the file's close op at
// zero, and clears the slot.
func (t *DescriptorTable) Close(ctx context.Context, fd int) error {
	t.mu.Lock()
	if !validFD(fd) || t.files[fd] == nil {
		t.mu.Unlock()
		return vfserror.EBADF
	}
	f := t.files[fd]
	t.files[fd] = nil
	t.cloexec[fd] = false
	t.mu.Unlock()
	return f.DecRef(ctx)
}

// Dup implements dup/dup2/dup3 (spec.md §4.4).
//
// newfd == -1 picks the lowest free slot (EMFILE if none free).
// newfd == fd is rejected with EINVAL (matches dup3 semantics for
// duplicating onto self; Dispatcher.Dup2 handles fd == newfd itself
// before calling here).
// Otherwise any existing occupant of newfd is closed first.
func (t *DescriptorTable) Dup(ctx context.Context, fd, newfd int, cloexec bool) (int, error) {
	t.mu.Lock()
	if !validFD(fd) || t.files[fd] == nil {
		t.mu.Unlock()
		return -1, vfserror.EBADF
	}
	src := t.files[fd]

	if newfd == -1 {
		for i := 0; i < linux.MaxFD; i++ {
			if t.files[i] == nil {
				newfd = i
				break
			}
		}
		if newfd == -1 {
			t.mu.Unlock()
			return -1, vfserror.EMFILE
		}
	} else {
		if newfd == fd {
			t.mu.Unlock()
			return -1, vfserror.EINVAL
		}
		if !validFD(newfd) {
			t.mu.Unlock()
			return -1, vfserror.EINVAL
		}
	}

	old := t.files[newfd]
	t.files[newfd] = src
	t.cloexec[newfd] = cloexec
	src.IncRef()
	t.mu.Unlock()

	if old != nil {
		old.DecRef(ctx)
	}
	return newfd, nil
}

// SetCloexec implements fcntl(F_SETFD).
func (t *DescriptorTable) SetCloexec(fd int, cloexec bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !validFD(fd) || t.files[fd] == nil {
		return vfserror.EBADF
	}
	t.cloexec[fd] = cloexec
	return nil
}

// Cloexec implements fcntl(F_GETFD).
func (t *DescriptorTable) Cloexec(fd int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !validFD(fd) || t.files[fd] == nil {
		return false, vfserror.EBADF
	}
	return t.cloexec[fd], nil
}

// OnExec scans all slots and closes those with the close-on-exec flag set,
// and resets umask to its configured default (spec.md §4.4).
func (t *DescriptorTable) OnExec(ctx context.Context) {
	t.mu.Lock()
	var toClose []*OpenFile
	for i := 0; i < linux.MaxFD; i++ {
		if t.files[i] != nil && t.cloexec[i] {
			toClose = append(toClose, t.files[i])
			t.files[i] = nil
			t.cloexec[i] = false
		}
	}
	t.umask = DefaultUmask
	t.mu.Unlock()
	for _, f := range toClose {
		f.DecRef(ctx)
	}
}

// CloseAll closes every occupied slot; used at process shutdown.
func (t *DescriptorTable) CloseAll(ctx context.Context) {
	t.mu.Lock()
	var toClose []*OpenFile
	for i := 0; i < linux.MaxFD; i++ {
		if t.files[i] != nil {
			toClose = append(toClose, t.files[i])
			t.files[i] = nil
			t.cloexec[i] = false
		}
	}
	t.mu.Unlock()
	for _, f := range toClose {
		f.DecRef(ctx)
	}
}

// Umask returns the current umask.
func (t *DescriptorTable) Umask() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.umask
}

// SetUmask sets umask and returns the previous value.
func (t *DescriptorTable) SetUmask(mask uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.umask
	t.umask = mask
	return old
}
