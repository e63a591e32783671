package hostwin

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func ctxAddr(ctx *winContext32) uintptr { return uintptr(unsafe.Pointer(ctx)) }

// context32Flags requests the control registers (eip, esp, eflags, cs,
// ss), the integer register set, and the segment selectors
// GetThreadContext/SetThreadContext exchange; this core never touches
// the debug or extended registers.
const context32Flags = 0x00010000 | 0x00000001 | 0x00000002 | 0x00000004 // CONTEXT_i386 | CONTEXT_CONTROL | CONTEXT_INTEGER | CONTEXT_SEGMENTS

// winContext32 mirrors the Win32 CONTEXT structure's i386 layout for
// the fields this core reads and writes. Declared locally (rather than
// imported) because golang.org/x/sys/windows does not expose the 32-bit
// CONTEXT shape on all build targets.
type winContext32 struct {
	ContextFlags uint32
	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint32
	FloatSave                    [112]byte
	SegGs, SegFs, SegEs, SegDs   uint32
	Edi, Esi, Ebx, Edx, Ecx, Eax uint32
	Ebp, Eip                     uint32
	SegCs, EFlags                uint32
	Esp, SegSs                   uint32
	ExtendedRegisters            [512]byte
}

// SuspendedThread is the concrete GuestThread backing for a real guest
// OS thread (spec.md §4.1 "suspend the guest thread; read its register
// state ... restore the possibly-modified context; resume the guest
// thread").
type SuspendedThread struct {
	handle windows.Handle
}

// OpenGuestThread wraps an existing thread handle (owned by the caller;
// typically the guest's sole OS thread, opened once at process start).
func OpenGuestThread(handle windows.Handle) *SuspendedThread {
	return &SuspendedThread{handle: handle}
}

func (t *SuspendedThread) Suspend() error {
	_, err := windows.SuspendThread(t.handle)
	return err
}

func (t *SuspendedThread) Resume() error {
	_, err := windows.ResumeThread(t.handle)
	return err
}

func (t *SuspendedThread) GetContext() (Registers, error) {
	var ctx winContext32
	ctx.ContextFlags = context32Flags
	if err := getThreadContext(t.handle, &ctx); err != nil {
		return Registers{}, fmt.Errorf("hostwin: GetThreadContext: %w", err)
	}
	return Registers{
		Edi: ctx.Edi, Esi: ctx.Esi, Ebp: ctx.Ebp, Ebx: ctx.Ebx,
		Edx: ctx.Edx, Ecx: ctx.Ecx, Eax: ctx.Eax,
		Esp: ctx.Esp, Eip: ctx.Eip, Eflags: ctx.EFlags,
		Cs: uint16(ctx.SegCs), Ss: uint16(ctx.SegSs),
		Ds: uint16(ctx.SegDs), Es: uint16(ctx.SegEs),
		Fs: uint16(ctx.SegFs), Gs: uint16(ctx.SegGs),
	}, nil
}

func (t *SuspendedThread) SetContext(r Registers) error {
	var ctx winContext32
	ctx.ContextFlags = context32Flags
	if err := getThreadContext(t.handle, &ctx); err != nil {
		return fmt.Errorf("hostwin: GetThreadContext: %w", err)
	}
	ctx.Edi, ctx.Esi, ctx.Ebp, ctx.Ebx = r.Edi, r.Esi, r.Ebp, r.Ebx
	ctx.Edx, ctx.Ecx, ctx.Eax = r.Edx, r.Ecx, r.Eax
	ctx.Esp, ctx.Eip, ctx.EFlags = r.Esp, r.Eip, r.Eflags
	if err := setThreadContext(t.handle, &ctx); err != nil {
		return fmt.Errorf("hostwin: SetThreadContext: %w", err)
	}
	return nil
}

func (t *SuspendedThread) StackPointer() uintptr {
	ctx, err := t.GetContext()
	if err != nil {
		return 0
	}
	return uintptr(ctx.Esp)
}

// getThreadContext and setThreadContext call into kernel32 directly;
// golang.org/x/sys/windows does not wrap the 32-bit CONTEXT accessors
// under every GOARCH, so this core binds them itself.
func getThreadContext(h windows.Handle, ctx *winContext32) error {
	r1, _, e1 := procGetThreadContext.Call(uintptr(h), ctxAddr(ctx))
	if r1 == 0 {
		return e1
	}
	return nil
}

func setThreadContext(h windows.Handle, ctx *winContext32) error {
	r1, _, e1 := procSetThreadContext.Call(uintptr(h), ctxAddr(ctx))
	if r1 == 0 {
		return e1
	}
	return nil
}

var (
	modkernel32           = windows.NewLazySystemDLL("kernel32.dll")
	procGetThreadContext  = modkernel32.NewProc("GetThreadContext")
	procSetThreadContext  = modkernel32.NewProc("SetThreadContext")
)
