// Package hostwin collects the Windows host primitives the signal and
// child-watcher subsystems ride on: named pipes, I/O completion ports,
// events, thread suspension/context access, and handle duplication.
// Every exported type here wraps golang.org/x/sys/windows; nothing in
// pkg/kernel/signal imports windows directly, keeping the delivery
// algorithm host-agnostic and testable with fakes.
package hostwin

// Registers is the subset of guest general-purpose register state the
// signal frame needs to save and restore, named after the 32-bit x86
// foreign ABI's syscall_context (original_source/src/syscall/sig.c
// signal_save_sigcontext/signal_setup_handler). SuspendedThread.GetContext
// fills the segment selectors from the thread's real context, but the
// signal frame builder records them as zero; TrapNo, Err and CR2 are never
// populated.
type Registers struct {
	Edi, Esi, Ebp, Ebx, Edx, Ecx, Eax uint32
	Esp                               uint32
	Eip                               uint32
	Eflags                            uint32
	Cs, Ss, Ds, Es, Fs, Gs            uint16
	TrapNo, Err                       uint32
	CR2                               uint32 // faulting address, always 0 here
}

// GuestThread is the suspend/context-rewrite/resume collaborator the
// Signal Controller drives delivery through (spec.md §4.1, §6). A real
// implementation wraps SuspendThread/GetThreadContext/SetThreadContext/
// ResumeThread over a specific OS thread handle.
type GuestThread interface {
	Suspend() error
	Resume() error
	GetContext() (Registers, error)
	SetContext(Registers) error
	// StackPointer reports the thread's current esp.
	StackPointer() uintptr
}
