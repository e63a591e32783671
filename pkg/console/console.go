// Package console backs guest file descriptors 0/1/2 with the real
// host console, generalizing the same File-capability-record idiom
// pkg/fsimpl/winfs and pkg/fsimpl/devfs use, for a device neither
// filesystem mount owns directly (spec.md §3 File object; §6
// "Filesystem backend contract").
package console

import (
	"context"
	"os"

	"golang.org/x/term"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// Foreign ioctl request numbers this core actually answers, matching
// asm-generic/ioctls.h.
const (
	TCGETS     = 0x5401
	TCSETS     = 0x5402
	TIOCGWINSZ = 0x5413
)

// Console is a single standard-stream file object (stdin, stdout, or
// stderr).
type Console struct {
	vfs.FileUnsupported
	f        *os.File
	raw      bool
	rawState *term.State
}

// NewStdin, NewStdout, NewStderr return the three standard descriptors
// fd 0/1/2 are seeded with at process start (spec.md §6).
func NewStdin() *Console  { return &Console{f: os.Stdin} }
func NewStdout() *Console { return &Console{f: os.Stdout} }
func NewStderr() *Console { return &Console{f: os.Stderr} }

func (c *Console) Read(ctx context.Context, dst []byte, opts vfs.ReadOptions) (int64, error) {
	n, err := c.f.Read(dst)
	if err != nil && n == 0 {
		return 0, nil
	}
	return int64(n), nil
}

func (c *Console) Write(ctx context.Context, src []byte, opts vfs.WriteOptions) (int64, error) {
	n, err := c.f.Write(src)
	if err != nil {
		return int64(n), vfserror.EIO
	}
	return int64(n), nil
}

func (c *Console) Stat(ctx context.Context) (linux.Statx, error) {
	return linux.Statx{Mode: linux.S_IFCHR | 0o620, Nlink: 1, Rdev: 0x0500, Blksize: 4096}, nil
}

// Ioctl answers the small subset of terminal ioctls a guest shell
// typically issues on startup: querying/setting raw mode and window
// size (spec.md §9 carries ambient TTY handling even though Non-goals
// exclude a full terminal line discipline).
func (c *Console) Ioctl(ctx context.Context, cmd uint32, arg uintptr) (uintptr, error) {
	fd := int(c.f.Fd())
	switch cmd {
	case TCGETS:
		if !term.IsTerminal(fd) {
			return 0, vfserror.ENOTTY
		}
		return 0, nil
	case TCSETS:
		if !term.IsTerminal(fd) {
			return 0, vfserror.ENOTTY
		}
		if !c.raw {
			state, err := term.MakeRaw(fd)
			if err != nil {
				return 0, vfserror.EIO
			}
			c.rawState = state
			c.raw = true
		}
		return 0, nil
	case TIOCGWINSZ:
		if !term.IsTerminal(fd) {
			return 0, vfserror.ENOTTY
		}
		w, h, err := term.GetSize(fd)
		if err != nil {
			return 0, vfserror.EIO
		}
		return uintptr(w)<<16 | uintptr(uint16(h)), nil
	default:
		return 0, vfserror.ENOTTY
	}
}

func (c *Console) PollHandle() (uintptr, uint32, bool) {
	return uintptr(c.f.Fd()), linux.POLLIN | linux.POLLOUT, true
}

func (c *Console) Close(ctx context.Context) error {
	if c.raw && c.rawState != nil {
		term.Restore(int(c.f.Fd()), c.rawState)
	}
	// Standard streams are never actually closed; the descriptor table
	// slot drops its reference, but the underlying console handle
	// outlives the process.
	return nil
}
