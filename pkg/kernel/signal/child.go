package signal

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wishstudio/flinux-go/pkg/hostwin"
)

// GuestChild is a watched guest child process (spec.md §3 "Guest-child
// record"). The Watcher owns the pipe read-end and the outstanding-read control
// block exclusively; the child process owns (and leaks) the pipe
// write-end, duplicated into it at spawn time with source-close
// semantics, so the child's exit closes the pipe deterministically.
// CorrelationID identifies this record across log lines independent of
// Pid, which the host can recycle once the child is reaped.
type GuestChild struct {
	Pid           int
	ProcessHandle uintptr
	CorrelationID string
	pipe          *hostwin.ChildPipe
	overlapped    hostwin.Overlapped
	buf           [1]byte

	mu         sync.Mutex
	terminated bool
}

// NewGuestChild records pid/handle as a watchable child, tagged with a
// fresh correlation id for log correlation across its lifetime.
func NewGuestChild(pid int, processHandle uintptr, pipe *hostwin.ChildPipe) *GuestChild {
	return &GuestChild{
		Pid:           pid,
		ProcessHandle: processHandle,
		CorrelationID: uuid.New().String(),
		pipe:          pipe,
	}
}

// Terminated reports whether this child's exit has been observed.
func (g *GuestChild) Terminated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminated
}

type childCompletion struct {
	child *GuestChild
}

// ChildWatcher multiplexes per-child pipe reads through an IOCP and
// feeds terminations to the Signal Controller's worker (spec.md §4.2).
// Ownership: per spec.md §9 "Ownership cycles", the Watcher owns
// children exclusively; producers (e.g. a wait() syscall implementation)
// hold only the pid as a weak identifier.
type ChildWatcher struct {
	controller *Controller
	iocp       *hostwin.IOCP

	mu       sync.Mutex
	children map[uintptr]*GuestChild // keyed by completion-port key

	completions chan childCompletion
	nextKey     uintptr
}

func newChildWatcher(c *Controller) *ChildWatcher {
	iocp, err := hostwin.NewIOCP()
	if err != nil {
		c.log.WithError(err).Error("signal: create child-watcher IOCP failed")
	}
	w := &ChildWatcher{
		controller:  c,
		iocp:        iocp,
		children:    make(map[uintptr]*GuestChild),
		completions: make(chan childCompletion, 16),
	}
	if iocp != nil {
		go w.pollLoop()
	}
	return w
}

// Watch adds child to the watch set by sending an AddChild message,
// matching spec.md §3 "Message channel to worker ... AddChild{child}":
// only the worker thread adds children and registers their pipes with
// the IOCP; pollLoop removes a child once its completion arrives.
func (c *Controller) Watch(child *GuestChild) {
	c.msgCh <- workerMsg{kind: msgAddChild, child: child}
}

// register is called from the worker goroutine handling an AddChild
// message; it associates the child's pipe read-end with the IOCP and
// posts the first one-byte read.
func (w *ChildWatcher) register(child *GuestChild) {
	if w.iocp == nil || child.pipe == nil {
		return
	}
	w.mu.Lock()
	w.nextKey++
	key := w.nextKey
	w.children[key] = child
	w.mu.Unlock()

	if err := w.iocp.Associate(child.pipe.ReadHandle, key); err != nil {
		w.controller.log.WithError(err).WithField("child", child.CorrelationID).Error("signal: associate child pipe with IOCP failed")
		return
	}
	if err := w.iocp.PostRead(child.pipe.ReadHandle, &child.overlapped, child.buf[:]); err != nil {
		w.controller.log.WithError(err).WithField("child", child.CorrelationID).Error("signal: post child pipe read failed")
	}
}

// pollLoop runs on its own goroutine purely to translate blocking IOCP
// waits into the Go channel the worker's select multiplexes alongside
// the message channel (OQ-1 in DESIGN.md): the actual multiplexing
// decision described in spec.md §4.1 happens in workerLoop's select,
// not here.
func (w *ChildWatcher) pollLoop() {
	for {
		completion, timedOut, err := w.iocp.Wait(-1)
		if err != nil {
			w.controller.log.WithError(err).Error("signal: child-watcher IOCP wait failed")
			return
		}
		if timedOut {
			continue
		}
		w.mu.Lock()
		child, ok := w.children[completion.Key]
		if ok {
			delete(w.children, completion.Key)
		}
		w.mu.Unlock()
		if !ok {
			continue
		}
		w.completions <- childCompletion{child: child}
	}
}
