package sigframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/hostwin"
)

// flatMemory is a byte-addressed stand-in for guest memory, large enough
// to hold a frame built anywhere below a reasonably sized stack pointer.
type flatMemory struct {
	buf []byte
}

func newFlatMemory(size int) *flatMemory { return &flatMemory{buf: make([]byte, size)} }

func (m *flatMemory) CopyOut(addr uintptr, src []byte) error {
	copy(m.buf[addr:], src)
	return nil
}

func (m *flatMemory) CopyIn(dst []byte, addr uintptr) error {
	copy(dst, m.buf[addr:])
	return nil
}

func TestBuildParseRoundTripsMaskAndFPState(t *testing.T) {
	mem := newFlatMemory(1 << 20)
	regs := hostwin.Registers{Esp: 1 << 16, Eip: 0x1000}
	var mask linux.SigSet
	mask.Add(linux.SIGTERM)
	mask.Add(linux.SIGINT)

	fpu := make([]byte, FPStateSize)
	for i := range fpu {
		fpu[i] = byte(i)
	}

	built, err := Build(mem, regs, Info{Signo: int32(linux.SIGTERM)}, mask, 0, fpu)
	require.NoError(t, err)

	parsed, err := Parse(mem, built.Base)
	require.NoError(t, err)

	assert.Equal(t, mask, parsed.Mask)
	assert.Equal(t, built.FPStateAt, parsed.FPStateAt)

	restored := make([]byte, FPStateSize)
	require.NoError(t, mem.CopyIn(restored, uintptr(parsed.FPStateAt)))
	assert.Equal(t, fpu, restored)
}

func TestBuildFrameIsStackAligned(t *testing.T) {
	mem := newFlatMemory(1 << 20)
	regs := hostwin.Registers{Esp: 1 << 16}
	built, err := Build(mem, regs, Info{Signo: 1}, 0, 0, nil)
	require.NoError(t, err)
	// signal_setup_handler's invariant: (sp+4) mod 16 == 0 at frame base.
	assert.Equal(t, uint32(0), (built.Base+4)%16)
}

func TestBuildWritesBelowStackPointer(t *testing.T) {
	mem := newFlatMemory(1 << 20)
	regs := hostwin.Registers{Esp: 1 << 16}
	built, err := Build(mem, regs, Info{Signo: 1}, 0, 0, nil)
	require.NoError(t, err)
	assert.Less(t, built.Base, uint32(regs.Esp))
	assert.Less(t, built.Base, built.FPStateAt)
}
