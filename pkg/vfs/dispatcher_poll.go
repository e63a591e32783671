package vfs

import (
	"context"
	"time"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// MaxWaitHandles bounds how many host handles a single poll/select call
// may wait on simultaneously, matching the Windows WaitForMultipleObjects
// ceiling (spec.md §4.5 poll "waits on up to a platform-defined maximum
// of handles").
const MaxWaitHandles = 64

// PollFD is one element of a poll() vector.
type PollFD struct {
	FD     int
	Events uint32
}

// PollResult carries one fd's observed revents.
type PollResult struct {
	FD      int
	Revents uint32
}

// PollWaiter is the host-wait collaborator: wait on up to MaxWaitHandles
// handles, returning the index of the one that became signaled, or
// timedOut if none did within timeoutMillis. This is provided by the
// hostwin package (IOCP/event-based waits are out of this package's
// scope).
type PollWaiter interface {
	Wait(ctx context.Context, handles []uintptr, timeoutMillis int) (index int, timedOut bool, err error)
}

// Poll implements the poll() syscall (spec.md §4.5 poll).
func (d *Dispatcher) Poll(ctx context.Context, fds []PollFD, timeoutMillis int, waiter PollWaiter) ([]PollResult, error) {
	results := make([]PollResult, len(fds))
	for i, pfd := range fds {
		results[i] = PollResult{FD: pfd.FD}
	}

	// waitable[i] indexes into fds/results for the subset of descriptors
	// that expose a host poll handle; unwaitable descriptors (e.g.
	// regular files, which never block) are treated as always ready.
	var handles []uintptr
	var waitable []int
	for i, pfd := range fds {
		of, err := d.lookup(pfd.FD)
		if err != nil {
			results[i].Revents = linux.POLLNVAL
			continue
		}
		if status, ok := of.File.PollStatus(); ok {
			ready := status & pfd.Events
			if ready != 0 {
				results[i].Revents = ready
				continue
			}
		}
		handle, events, ok := of.File.PollHandle()
		if !ok {
			// Cannot wait on this file; it never blocks, so report it
			// immediately ready for whatever was asked.
			results[i].Revents = pfd.Events
			continue
		}
		if len(handles) >= MaxWaitHandles {
			results[i].Revents = pfd.Events & events
			continue
		}
		handles = append(handles, handle)
		waitable = append(waitable, i)
	}

	readyCount := func() int {
		n := 0
		for _, r := range results {
			if r.Revents != 0 {
				n++
			}
		}
		return n
	}

	if n := readyCount(); n > 0 || len(handles) == 0 {
		return results, nil
	}

	deadline := time.Now().Add(time.Duration(timeoutMillis) * time.Millisecond)
	infinite := timeoutMillis < 0
	for {
		remaining := timeoutMillis
		if !infinite {
			remaining = int(time.Until(deadline) / time.Millisecond)
			if remaining < 0 {
				remaining = 0
			}
		}
		idx, timedOut, err := waiter.Wait(ctx, handles, remaining)
		if err != nil {
			if err == vfserror.WaitInterrupted {
				return nil, vfserror.EINTR
			}
			return nil, err
		}
		if timedOut {
			return results, nil
		}
		// Re-query status to suppress spurious wake-ups (spec.md §4.5
		// "on wake, re-query status to suppress spurious wake-ups").
		fi := waitable[idx]
		of, _ := d.lookup(fds[fi].FD)
		if of != nil {
			if status, ok := of.File.PollStatus(); ok {
				results[fi].Revents = status & fds[fi].Events
			} else {
				results[fi].Revents = fds[fi].Events
			}
		}
		if readyCount() > 0 {
			return results, nil
		}
		if !infinite && time.Now().After(deadline) {
			return results, nil
		}
	}
}

// FDSet mirrors fd_set: a fixed-size bitset of descriptor numbers.
type FDSet struct {
	Bits [1024 / 64]uint64
}

func (s *FDSet) isSet(fd int) bool {
	if fd < 0 || fd >= 1024 {
		return false
	}
	return s.Bits[fd/64]&(1<<uint(fd%64)) != 0
}

func (s *FDSet) clear() {
	for i := range s.Bits {
		s.Bits[i] = 0
	}
}

func (s *FDSet) set(fd int) {
	if fd < 0 || fd >= 1024 {
		return
	}
	s.Bits[fd/64] |= 1 << uint(fd%64)
}

// Select is a thin adapter that builds a poll vector from three bitsets,
// calls Poll, and translates the result back, zeroing the three output
// sets before setting only the ready bits (spec.md §4.5 select).
func (d *Dispatcher) Select(ctx context.Context, nfds int, readFDs, writeFDs, exceptFDs *FDSet, timeoutMillis int, waiter PollWaiter) (int, error) {
	type want struct {
		fd            int
		read, write   bool
		exceptional   bool
	}
	var wants []want
	for fd := 0; fd < nfds; fd++ {
		r := readFDs != nil && readFDs.isSet(fd)
		w := writeFDs != nil && writeFDs.isSet(fd)
		e := exceptFDs != nil && exceptFDs.isSet(fd)
		if r || w || e {
			wants = append(wants, want{fd: fd, read: r, write: w, exceptional: e})
		}
	}

	pfds := make([]PollFD, len(wants))
	for i, w := range wants {
		var events uint32
		if w.read {
			events |= linux.POLLIN
		}
		if w.write {
			events |= linux.POLLOUT
		}
		if w.exceptional {
			events |= linux.POLLERR
		}
		pfds[i] = PollFD{FD: w.fd, Events: events}
	}

	results, err := d.Poll(ctx, pfds, timeoutMillis, waiter)
	if err != nil {
		return -1, err
	}

	if readFDs != nil {
		readFDs.clear()
	}
	if writeFDs != nil {
		writeFDs.clear()
	}
	if exceptFDs != nil {
		exceptFDs.clear()
	}

	ready := 0
	for i, res := range results {
		hit := false
		if wants[i].read && res.Revents&linux.POLLIN != 0 {
			readFDs.set(res.FD)
			hit = true
		}
		if wants[i].write && res.Revents&linux.POLLOUT != 0 {
			writeFDs.set(res.FD)
			hit = true
		}
		if wants[i].exceptional && res.Revents&linux.POLLERR != 0 {
			exceptFDs.set(res.FD)
			hit = true
		}
		if hit {
			ready++
		}
	}
	return ready, nil
}
