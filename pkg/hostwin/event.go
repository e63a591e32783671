package hostwin

import (
	"context"
	"time"

	"golang.org/x/sys/windows"
)

// Event wraps a Win32 manual-reset event (CreateEvent/SetEvent/
// ResetEvent), used as the Signal Controller's sigevent object (spec.md
// §3 "signal the sigevent object") and as a target of
// WaitForMultipleObjects alongside per-child pipes and poll handles.
type Event struct {
	handle windows.Handle
}

// NewEvent creates a manual-reset, initially-unset event.
func NewEvent() (*Event, error) {
	h, err := windows.CreateEvent(nil, 1 /* manual reset */, 0 /* initially unset */, nil)
	if err != nil {
		return nil, err
	}
	return &Event{handle: h}, nil
}

// Handle returns the raw handle for inclusion in a WaitForMultipleObjects set.
func (e *Event) Handle() uintptr { return uintptr(e.handle) }

// Set signals the event.
func (e *Event) Set() error { return windows.SetEvent(e.handle) }

// Reset clears the event (spec.md §4.1 setup_handler "clears the
// sigevent").
func (e *Event) Reset() error { return windows.ResetEvent(e.handle) }

// Wait blocks until the event is signaled or timeoutMillis elapses
// (negative means wait forever). It returns timedOut=true on timeout
// and respects ctx cancellation by racing a short poll loop, since
// WaitForSingleObject itself cannot observe a Go context directly.
func (e *Event) Wait(ctx context.Context, timeoutMillis int) (timedOut bool, err error) {
	if timeoutMillis < 0 {
		for {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			default:
			}
			s, werr := windows.WaitForSingleObject(e.handle, 50)
			if werr != nil {
				return false, werr
			}
			if s == uint32(windows.WAIT_OBJECT_0) {
				return false, nil
			}
		}
	}
	deadline := time.Now().Add(time.Duration(timeoutMillis) * time.Millisecond)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true, nil
		}
		step := remaining
		if step > 50*time.Millisecond {
			step = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		s, werr := windows.WaitForSingleObject(e.handle, uint32(step.Milliseconds()))
		if werr != nil {
			return false, werr
		}
		if s == uint32(windows.WAIT_OBJECT_0) {
			return false, nil
		}
	}
}

// Close releases the underlying handle.
func (e *Event) Close() error { return windows.CloseHandle(e.handle) }
