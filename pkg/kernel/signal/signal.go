// Package signal implements the Signal Controller and Child-Process
// Watcher (spec.md §4.1, §4.2): per-signal disposition, mask, and
// pending-set bookkeeping, delivery into a single guest thread via
// register-context rewriting, and child-termination detection.
//
// Grounded on original_source/src/syscall/sig.c function-by-function
// (signal_init/_private, rt_sigaction, rt_sigprocmask, signal_deliver,
// signal_thread, signal_setup_handler, sys_rt_sigreturn,
// signal_thread_handle_process_terminated) and, for Go idiom, on
// gvisor's kernel.Task signal-handling shape (a mutex-guarded struct
// with explicit delivery methods rather than OS-level signal handlers).
package signal

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/hostwin"
	"github.com/wishstudio/flinux-go/pkg/kernel/signal/sigframe"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

// SigInfo is the arrival-record metadata a pending signal's info slot
// carries (spec.md §3 "origin code, errno, signal number").
type SigInfo = sigframe.Info

// Disposition is one signal number's entry in the disposition table
// (spec.md §3 "handler kind, additional mask, flags, optional
// restorer").
type Disposition struct {
	Kind     linux.HandlerKind
	Handler  uintptr
	Mask     linux.SigSet
	Flags    uint32
	Restorer uintptr
}

// Translator is the binary-translation barrier the delivery algorithm
// depends on (spec.md §6 "Dynamic-translation hook"): given a suspended
// guest thread's register snapshot, adjust the saved instruction
// pointer so resumption lands at a safe point, and the symmetric
// operation for sigreturn. Provided by the emulator's JIT; out of scope
// for this core (spec.md §9 "Safe-point delivery").
type Translator interface {
	DeliverSignal(regs *hostwin.Registers) error
	SigReturn() error
}

// FPUState captures and restores the guest's floating-point register
// state across a signal delivery. Since the binary translator executes
// guest code directly on the host CPU, this state is the host CPU's own
// FXSAVE area at the suspend point; the translator/JIT layer is the
// natural owner of that capture and is therefore an external
// collaborator here, the same way Translator is.
type FPUState interface {
	// Save returns sigframe.FPStateSize bytes of FXSAVE-format state.
	Save() ([]byte, error)
	Restore(data []byte) error
}

// ProcessTerminator carries out the default action for the terminating
// signal set (spec.md §4.1 step 3 "Default ⇒ for the terminating set
// ... terminate the process"). Process lifecycle itself lives outside
// this core; this is the narrow hook the delivery algorithm calls into.
type ProcessTerminator interface {
	Terminate(signo int)
}

// Controller is the process-scoped signal-subsystem singleton (spec.md
// §9 "a re-implementation should encapsulate each as a process-scoped
// singleton ... with an explicit after-fork reinit entry point").
type Controller struct {
	mu sync.Mutex

	dispositions [linux.NSIG]Disposition
	mask         linux.SigSet
	pending      linux.SigSet
	info         [linux.NSIG]SigInfo

	canAcceptSignal bool
	current         SigInfo

	thread     hostwin.GuestThread
	translator Translator
	fpu        FPUState
	memory     sigframe.CopyOuter
	readMemory sigframe.CopyInner
	sigevent   *hostwin.Event

	watcher    *ChildWatcher
	waitSem    chan struct{}
	terminator ProcessTerminator

	msgCh chan workerMsg
	done  chan struct{}
	log   *logrus.Entry
}

// Memory is the minimal guest-memory capability the Controller needs to
// build and parse signal frames; vfs.ProcessMemory satisfies it.
type Memory interface {
	sigframe.CopyOuter
	sigframe.CopyInner
}

// NewController wires a Controller and starts its worker goroutine.
// Every argument is an external collaborator per spec.md §1 (everything
// but the signal and VFS cores is specified only at its interface).
func NewController(thread hostwin.GuestThread, translator Translator, fpu FPUState, mem Memory, sigevent *hostwin.Event, log *logrus.Entry) *Controller {
	c := &Controller{
		thread:     thread,
		translator: translator,
		fpu:        fpu,
		memory:     mem,
		readMemory: mem,
		sigevent:   sigevent,
		waitSem:    make(chan struct{}, 4096),
		msgCh:      make(chan workerMsg, 64),
		done:       make(chan struct{}),
		log:        log,
	}
	c.watcher = newChildWatcher(c)
	go c.workerLoop()
	return c
}

// SetTerminator installs the process-lifecycle collaborator invoked
// when a signal's default disposition is to terminate.
func (c *Controller) SetTerminator(t ProcessTerminator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminator = t
}

// AfterFork reinitializes a Controller's state in a freshly forked
// child, clearing pending signals and delivery state while preserving
// dispositions and mask (spec.md §9 "an explicit after-fork reinit
// entry point"; grounded on original's signal_afterfork, which resets
// the worker thread and pipe but keeps signal->actions/mask intact).
func (c *Controller) AfterFork() {
	c.mu.Lock()
	c.pending = 0
	c.canAcceptSignal = true
	c.current = SigInfo{}
	c.mu.Unlock()
}

// Shutdown stops the worker goroutine.
func (c *Controller) Shutdown() {
	select {
	case c.msgCh <- workerMsg{kind: msgShutdown}:
	case <-c.done:
	}
	<-c.done
}

// SetDisposition implements set_disposition (spec.md §4.1).
func (c *Controller) SetDisposition(signo int, newAction *Disposition) (Disposition, error) {
	if signo <= 0 || signo >= linux.NSIG || linux.IsUnblockable(signo) {
		return Disposition{}, vfserror.EINVAL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.dispositions[signo]
	if newAction != nil {
		c.dispositions[signo] = *newAction
	}
	return old, nil
}

// SetMask implements set_mask (spec.md §4.1): updates the mask
// atomically and re-evaluates pending signals afterward.
func (c *Controller) SetMask(how int, set linux.SigSet) (linux.SigSet, error) {
	c.mu.Lock()
	old := c.mask
	switch how {
	case linux.SIG_BLOCK:
		c.mask |= set
	case linux.SIG_UNBLOCK:
		c.mask &^= set
	case linux.SIG_SETMASK:
		c.mask = set
	default:
		c.mu.Unlock()
		return 0, vfserror.EINVAL
	}
	unblocked := c.pending &^ c.mask
	c.mu.Unlock()
	if !unblocked.Empty() {
		c.postDeliver()
	}
	return old, nil
}

// Mask returns the current signal mask.
func (c *Controller) Mask() linux.SigSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mask
}

// Kill implements kill/tgkill when the target is the calling thread
// itself: it enqueues a Kill message to the worker. A target other than
// self is not supported by this core (spec.md §4.1 kill, §9 "Cross-
// process signalling ... is rejected").
func (c *Controller) Kill(targetIsSelf bool, info SigInfo) error {
	if !targetIsSelf {
		return vfserror.ESRCH
	}
	c.msgCh <- workerMsg{kind: msgKill, info: info}
	return nil
}

// postDeliver sends the idempotent self-poke message (spec.md §3
// "Deliver message ... idempotent: processing it with no unmasked
// pending signal is a no-op").
func (c *Controller) postDeliver() {
	select {
	case c.msgCh <- workerMsg{kind: msgDeliver}:
	default:
		// The channel is only ever used for small control messages;
		// a full channel means a Deliver is already queued, which is
		// sufficient since Deliver re-scans the whole pending set.
	}
}

// Suspend implements suspend(temp_mask) (spec.md §4.1): install a
// temporary mask, wait for any signal, restore the mask, and return
// EINTR.
func (c *Controller) Suspend(ctx context.Context, tempMask linux.SigSet) error {
	c.mu.Lock()
	saved := c.mask
	c.mask = tempMask
	unblocked := c.pending &^ c.mask
	c.mu.Unlock()
	if !unblocked.Empty() {
		c.postDeliver()
	}

	_, err := c.sigevent.Wait(ctx, -1)

	c.mu.Lock()
	c.mask = saved
	c.mu.Unlock()

	if err != nil {
		return err
	}
	return vfserror.EINTR
}

// SigEventHandle returns the sigevent object's host handle, for
// inclusion in a caller's own WaitForMultipleObjects set (spec.md §5
// "wait_interruptible ... always adds the sigevent as an additional
// wait target").
func (c *Controller) SigEventHandle() uintptr {
	return c.sigevent.Handle()
}

// AugmentWithSigEvent appends the sigevent handle to handles, returning
// the extended slice and the index the sigevent landed at. Callers
// implementing wait_interruptible (spec.md §4.1) wait on the extended
// slice and pass the returned index to InterruptedAt.
func (c *Controller) AugmentWithSigEvent(handles []uintptr) ([]uintptr, int) {
	all := append(append([]uintptr{}, handles...), c.sigevent.Handle())
	return all, len(all) - 1
}

// InterruptedAt reports whether a wait's signaled index names the
// sigevent slot appended by AugmentWithSigEvent, translating to the
// internal WAIT_INTERRUPTED sentinel (spec.md §7).
func InterruptedAt(index, sigEventIndex int, timedOut bool) error {
	if !timedOut && index == sigEventIndex {
		return vfserror.WaitInterrupted
	}
	return nil
}

// SigReturn implements sys_rt_sigreturn (spec.md §4.1, §6): restores
// FPU state, restores the mask from the frame, and re-scans pending
// under the new mask -- the sole rearm point for queued signals.
func (c *Controller) SigReturn(ctx context.Context, frameBase uint32) error {
	parsed, err := sigframe.Parse(c.readMemory, frameBase)
	if err != nil {
		return vfserror.EFAULT
	}

	fpuData := make([]byte, sigframe.FPStateSize)
	if err := c.readMemory.CopyIn(fpuData, uintptr(parsed.FPStateAt)); err == nil {
		c.fpu.Restore(fpuData)
	}

	c.mu.Lock()
	c.mask = parsed.Mask
	c.canAcceptSignal = true
	unblocked := c.pending &^ c.mask
	c.mu.Unlock()

	if err := c.translator.SigReturn(); err != nil {
		c.log.WithError(err).Warn("signal: translator sigreturn hook failed")
	}

	if !unblocked.Empty() {
		c.postDeliver()
	}
	return nil
}
