package hostwin

import (
	"context"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	waitObject0  = 0x00000000
	waitTimeout  = 0x00000102
	waitFailed   = 0xFFFFFFFF
	waitPollStep = 50 // milliseconds; keeps infinite waits cancellable via ctx
)

var procWaitForMultipleObjects = modkernel32.NewProc("WaitForMultipleObjects")

func waitForMultipleObjects(handles []windows.Handle, waitAll bool, timeoutMillis uint32) (uint32, error) {
	var waitAllFlag uintptr
	if waitAll {
		waitAllFlag = 1
	}
	r1, _, e1 := procWaitForMultipleObjects.Call(
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&handles[0])),
		waitAllFlag,
		uintptr(timeoutMillis),
	)
	result := uint32(r1)
	if result == waitFailed {
		return 0, e1
	}
	return result, nil
}

// MultiWaiter implements vfs.PollWaiter against WaitForMultipleObjects
// (spec.md §4.5 poll "the actual blocking wait primitive"). Waits are
// chopped into short steps so a cancelled ctx is observed promptly,
// since WaitForMultipleObjects itself has no context awareness.
type MultiWaiter struct{}

// Wait blocks until one of handles signals or timeoutMillis elapses
// (negative = infinite), returning the signaled index.
func (MultiWaiter) Wait(ctx context.Context, handles []uintptr, timeoutMillis int) (index int, timedOut bool, err error) {
	if len(handles) == 0 {
		return 0, true, nil
	}
	if len(handles) > 64 {
		handles = handles[:64]
	}
	win := make([]windows.Handle, len(handles))
	for i, h := range handles {
		win[i] = windows.Handle(h)
	}

	infinite := timeoutMillis < 0
	remaining := timeoutMillis
	for {
		step := uint32(waitPollStep)
		if !infinite && remaining < waitPollStep {
			step = uint32(remaining)
		}
		result, werr := waitForMultipleObjects(win, false, step)
		if werr != nil {
			return 0, false, werr
		}
		if result >= waitObject0 && int(result) < len(win) {
			return int(result), false, nil
		}
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		default:
		}
		if !infinite {
			remaining -= int(step)
			if remaining <= 0 {
				return 0, true, nil
			}
		}
	}
}
