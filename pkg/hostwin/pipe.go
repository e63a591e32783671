package hostwin

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

// ChildPipe is the per-child message pipe described in spec.md §3/§4.2:
// a message-mode named pipe whose read-end the Watcher owns and whose
// write-end is duplicated into the child with source-close semantics,
// so the child's exit (normal or abnormal) closes the pipe
// deterministically. Wire format: one byte per probe, EOF is the only
// meaningful event (spec.md §6 "Child-pipe wire format").
type ChildPipe struct {
	ReadHandle windows.Handle
}

const (
	pipeAccessInbound   = 0x00000001
	pipeTypeMessage     = 0x00000004
	pipeReadmodeMessage = 0x00000002
	pipeWait            = 0x00000000
	fileFlagOverlapped  = 0x40000000
)

var procCreateNamedPipe = modkernel32.NewProc("CreateNamedPipeW")

func createNamedPipe(name *uint16, openMode, pipeMode uint32, maxInstances, outBuf, inBuf, defaultTimeout uint32) (windows.Handle, error) {
	r1, _, e1 := procCreateNamedPipe.Call(
		uintptr(unsafe.Pointer(name)),
		uintptr(openMode),
		uintptr(pipeMode),
		uintptr(maxInstances),
		uintptr(outBuf),
		uintptr(inBuf),
		uintptr(defaultTimeout),
		0,
	)
	h := windows.Handle(r1)
	if h == windows.InvalidHandle {
		return 0, e1
	}
	return h, nil
}

// NewChildPipe creates a fresh named pipe under a globally-unique name
// and returns the read-end (overlapped, for IOCP registration) plus the
// raw write-end handle the caller must duplicate into the child process
// before closing its own copy (DuplicateHandle with DUPLICATE_CLOSE_SOURCE,
// mirroring original_source/src/syscall/sig.c create_pipe). The name is
// disambiguated with a uuid rather than a process-local counter so two
// watchers in different processes can never collide on the pipe
// namespace, which is global to the host.
func NewChildPipe() (*ChildPipe, windows.Handle, error) {
	name, err := windows.UTF16PtrFromString(fmt.Sprintf(`\\.\pipe\flinux-go-child-%s`, uuid.New().String()))
	if err != nil {
		return nil, 0, err
	}
	readHandle, err := createNamedPipe(
		name,
		pipeAccessInbound|fileFlagOverlapped,
		pipeTypeMessage|pipeReadmodeMessage|pipeWait,
		1,  // max instances
		64, // out buffer
		64, // in buffer
		0,  // default timeout
	)
	if err != nil {
		return nil, 0, err
	}
	writeHandle, err := windows.CreateFile(
		name,
		windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		windows.CloseHandle(readHandle)
		return nil, 0, err
	}
	return &ChildPipe{ReadHandle: readHandle}, writeHandle, nil
}

// Close releases the read-end.
func (p *ChildPipe) Close() error { return windows.CloseHandle(p.ReadHandle) }
