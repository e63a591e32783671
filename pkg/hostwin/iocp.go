package hostwin

import (
	"golang.org/x/sys/windows"
)

// Overlapped wraps windows.Overlapped for a single outstanding
// ReadFile, tagged with the child it belongs to so the completion can
// be routed back (grounded on the overlapped-read pattern in
// other_examples' ReadDirectoryChanges wrapper).
type Overlapped struct {
	windows.Overlapped
	Key uintptr
}

// IOCP wraps a Windows I/O completion port multiplexing per-child pipe
// reads, the shape the Signal Controller's worker thread polls
// alongside its message channel (spec.md §4.1 "multiplexes two event
// sources through a completion port").
type IOCP struct {
	handle windows.Handle
}

// NewIOCP creates a completion port with no associated handles yet.
func NewIOCP() (*IOCP, error) {
	h, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &IOCP{handle: h}, nil
}

// Associate registers handle with the port under completion key key.
func (p *IOCP) Associate(handle windows.Handle, key uintptr) error {
	_, err := windows.CreateIoCompletionPort(handle, p.handle, key, 0)
	return err
}

// PostRead issues an overlapped ReadFile of len(buf) bytes against
// handle, used to detect EOF (child exit) without caring about pipe
// payload bytes (spec.md §6 "the only meaningful event is EOF. No payload
// semantics").
func (p *IOCP) PostRead(handle windows.Handle, ov *Overlapped, buf []byte) error {
	var done uint32
	err := windows.ReadFile(handle, buf, &done, &ov.Overlapped)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return err
	}
	return nil
}

// Completion is one dequeued I/O completion packet.
type Completion struct {
	Key   uintptr
	Bytes uint32
	EOF   bool
}

// Wait dequeues the next completion, blocking up to timeoutMillis
// (-1 = infinite).
func (p *IOCP) Wait(timeoutMillis int) (Completion, bool, error) {
	var bytes uint32
	var key uintptr
	var ov *windows.Overlapped
	to := uint32(0xFFFFFFFF)
	if timeoutMillis >= 0 {
		to = uint32(timeoutMillis)
	}
	err := windows.GetQueuedCompletionStatus(p.handle, &bytes, &key, &ov, to)
	if err == windows.WAIT_TIMEOUT {
		return Completion{}, true, nil
	}
	eof := err == windows.ERROR_HANDLE_EOF || err == windows.ERROR_BROKEN_PIPE
	if err != nil && !eof {
		return Completion{}, false, err
	}
	return Completion{Key: key, Bytes: bytes, EOF: eof || bytes == 0}, false, nil
}

// Close releases the port.
func (p *IOCP) Close() error { return windows.CloseHandle(p.handle) }
