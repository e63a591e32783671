// Package sigframe builds and parses the on-stack signal frame the
// foreign ABI's handler entry and sigreturn trampoline expect (spec.md
// §6 "Signal frame layout"). Layout is grounded directly on
// original_source/src/syscall/sig.c's signal_setup_handler and
// signal_save_sigcontext (the field set saved into sigcontext mirrors
// that function's assignments one for one); the containing siginfo_t/
// ucontext_t sizes follow the public x86 Linux ABI since no local
// header defines them.
package sigframe

import (
	"encoding/binary"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/hostwin"
)

// FPStateSize is sizeof(struct fpstate) for the FXSAVE-format area the
// guest's FPU state is saved into, rounded up to the FXSAVE region size.
const FPStateSize = 512

// fpstateAlign is the alignment FXSAVE/FXRSTOR require.
const fpstateAlign = 512

// SigInfoSize mirrors siginfo_t's total size on the x86 ABI; only the
// leading signo/errno/code fields are populated, the rest is padding
// (spec.md §6 "info record").
const SigInfoSize = 128

// sigContextSize: gs,fs,es,ds,edi,esi,ebp,esp,ebx,edx,ecx,eax,trapno,
// err,eip,cs,eflags,esp_at_signal,ss,fpstate,oldmask,cr2 -- 22 fields,
// each encoded as 4 bytes for layout simplicity (original_source packs
// the segment selectors as 16-bit; this core never reads them back for
// anything but round-tripping its own frames, so widening them costs
// nothing and keeps the encoder uniform).
const sigContextFieldCount = 22
const sigContextSize = sigContextFieldCount * 4

// uContextSize: flags, link, stack{sp,flags,size} (3 fields), mcontext,
// sigmask (8 bytes).
const uContextSize = 4 + 4 + 3*4 + sigContextSize + 8

// FrameSize is the total, fixed size of an RTSigFrame encoding:
// pretcode, sig, pinfo, puc, info, ucontext.
const FrameSize = 4 + 4 + 4 + 4 + SigInfoSize + uContextSize

// Info is the small subset of siginfo_t this core actually populates.
type Info struct {
	Signo int32
	Errno int32
	Code  int32
}

// Built is the result of constructing a frame: the guest stack address
// it was written at, and the addresses of its info/ucontext sub-fields
// (needed as arguments to the handler per the foreign calling
// convention).
type Built struct {
	Base      uint32
	InfoAddr  uint32
	UCAddr    uint32
	FPStateAt uint32
}

// Build lays out fpstate and the rt_sigframe below regs.Esp, exactly as
// signal_setup_handler does: fpstate 512-byte aligned first, then the
// frame itself aligned so that ((sp+4) mod 16) == 0 (spec.md §6).
// fpuState is the raw FXSAVE-format bytes to save (FPStateSize bytes, or
// empty to skip the copy); restorer is the guest address to place in pretcode (the
// disposition's sa_restorer, or the emulator trampoline if zero).
func Build(mem CopyOuter, regs hostwin.Registers, info Info, mask linux.SigSet, restorer uint32, fpuState []byte) (Built, error) {
	sp := uint64(regs.Esp)

	sp -= FPStateSize
	sp &^= uint64(fpstateAlign - 1)
	fpstateAt := uint32(sp)

	sp -= FrameSize
	sp = ((sp + 4) &^ 15) - 4
	base := uint32(sp)

	buf := make([]byte, 0, FrameSize)
	put32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }

	put32(restorer)           // pretcode
	put32(uint32(info.Signo)) // sig
	pinfoPos := len(buf)
	put32(0) // placeholder for pinfo, patched after we know base
	pucPos := len(buf)
	put32(0) // placeholder for puc

	infoPos := len(buf)
	put32(uint32(info.Signo))
	put32(uint32(info.Errno))
	put32(uint32(info.Code))
	for len(buf) < infoPos+SigInfoSize {
		buf = append(buf, 0)
	}

	ucPos := len(buf)
	put32(0)       // uc_flags
	put32(0)       // uc_link
	put32(0)       // uc_stack.ss_sp
	put32(0)       // uc_stack.ss_flags
	put32(0)       // uc_stack.ss_size

	// uc_mcontext (sigcontext), field order per signal_save_sigcontext.
	put32(0) // gs
	put32(0) // fs
	put32(0) // es
	put32(0) // ds
	put32(regs.Edi)
	put32(regs.Esi)
	put32(regs.Ebp)
	put32(regs.Esp)
	put32(regs.Ebx)
	put32(regs.Edx)
	put32(regs.Ecx)
	put32(regs.Eax)
	put32(0) // trapno
	put32(0) // err
	put32(regs.Eip)
	put32(0) // cs
	put32(regs.Eflags)
	put32(regs.Esp) // esp_at_signal
	put32(0)        // ss
	put32(fpstateAt)
	put32(uint32(mask))
	put32(0) // cr2

	put32(uint32(mask))       // uc_sigmask low 32 bits
	put32(uint32(mask >> 32)) // uc_sigmask high 32 bits

	infoAddr := base + uint32(infoPos)
	ucAddr := base + uint32(ucPos)
	binary.LittleEndian.PutUint32(buf[pinfoPos:], infoAddr)
	binary.LittleEndian.PutUint32(buf[pucPos:], ucAddr)

	if len(fpuState) > 0 {
		if err := mem.CopyOut(uintptr(fpstateAt), fpuState); err != nil {
			return Built{}, err
		}
	}
	if err := mem.CopyOut(uintptr(base), buf); err != nil {
		return Built{}, err
	}

	return Built{Base: base, InfoAddr: infoAddr, UCAddr: ucAddr, FPStateAt: fpstateAt}, nil
}

// CopyOuter is the minimal guest-memory-write capability Build needs;
// vfs.ProcessMemory satisfies it.
type CopyOuter interface {
	CopyOut(addr uintptr, src []byte) error
}

// CopyInner is the minimal guest-memory-read capability Parse needs.
type CopyInner interface {
	CopyIn(dst []byte, addr uintptr) error
}

// Parsed is what sigreturn recovers from a frame the guest is returning
// through.
type Parsed struct {
	Mask      linux.SigSet
	FPStateAt uint32
}

// Parse reads back the sigmask and fpstate pointer from the frame at
// base (spec.md §6 sigreturn: "FPU is restored from the frame, mask is
// restored from the frame"). base is the frame address the guest's
// stack pointer names at sigreturn entry.
func Parse(mem CopyInner, base uint32) (Parsed, error) {
	buf := make([]byte, FrameSize)
	if err := mem.CopyIn(buf, uintptr(base)); err != nil {
		return Parsed{}, err
	}
	ucPos := 4 + 4 + 4 + 4 + SigInfoSize
	mcontextPos := ucPos + 4 + 4 + 3*4
	fpstatePos := mcontextPos + 19*4 // offset of the fpstate field within sigcontext
	maskPos := ucPos + 4 + 4 + 3*4 + sigContextSize

	fpstateAt := binary.LittleEndian.Uint32(buf[fpstatePos:])
	maskLow := binary.LittleEndian.Uint32(buf[maskPos:])
	maskHigh := binary.LittleEndian.Uint32(buf[maskPos+4:])
	mask := linux.SigSet(maskLow) | linux.SigSet(maskHigh)<<32

	return Parsed{Mask: mask, FPStateAt: fpstateAt}, nil
}
