package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wishstudio/flinux-go/pkg/abi/linux"
	"github.com/wishstudio/flinux-go/pkg/hostwin"
	"github.com/wishstudio/flinux-go/pkg/kernel"
	"github.com/wishstudio/flinux-go/pkg/kernel/signal"
	applog "github.com/wishstudio/flinux-go/pkg/log"
	"github.com/wishstudio/flinux-go/pkg/vfs/vfserror"
)

func newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "exercise the VFS dispatcher and signal controller against a scratch root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(flagRoot, flagVerbose)
		},
	}
}

// fakeMemory stands in for guest address space: a flat byte slice
// indexed directly by "address" (spec.md §9 scopes real guest-memory
// validation to an external collaborator; selftest needs only a
// faithful enough stand-in to exercise the dispatcher's copy-in/out
// paths end to end).
type fakeMemory struct {
	buf []byte
}

func newFakeMemory(size int) *fakeMemory { return &fakeMemory{buf: make([]byte, size)} }

func (m *fakeMemory) bounds(addr uintptr, length int) error {
	if int(addr)+length > len(m.buf) || int64(addr) < 0 {
		return vfserror.EFAULT
	}
	return nil
}
func (m *fakeMemory) CheckRead(addr uintptr, length int) error  { return m.bounds(addr, length) }
func (m *fakeMemory) CheckWrite(addr uintptr, length int) error { return m.bounds(addr, length) }
func (m *fakeMemory) CopyIn(dst []byte, addr uintptr) error {
	if err := m.bounds(addr, len(dst)); err != nil {
		return err
	}
	copy(dst, m.buf[addr:])
	return nil
}
func (m *fakeMemory) CopyOut(addr uintptr, src []byte) error {
	if err := m.bounds(addr, len(src)); err != nil {
		return err
	}
	copy(m.buf[addr:], src)
	return nil
}

// fakeThread is a GuestThread that never actually suspends a Windows
// thread, for exercising the Signal Controller's delivery algorithm
// without a real guest.
type fakeThread struct {
	regs hostwin.Registers
}

func (t *fakeThread) Suspend() error                        { return nil }
func (t *fakeThread) Resume() error                         { return nil }
func (t *fakeThread) GetContext() (hostwin.Registers, error) { return t.regs, nil }
func (t *fakeThread) SetContext(r hostwin.Registers) error  { t.regs = r; return nil }
func (t *fakeThread) StackPointer() uintptr                 { return uintptr(t.regs.Esp) }

type noopTranslator struct{}

func (noopTranslator) DeliverSignal(regs *hostwin.Registers) error { return nil }
func (noopTranslator) SigReturn() error                            { return nil }

type noopFPU struct{}

func (noopFPU) Save() ([]byte, error)     { return make([]byte, 512), nil }
func (noopFPU) Restore(data []byte) error { return nil }

type recordingTerminator struct {
	last int
}

func (t *recordingTerminator) Terminate(signo int) { t.last = signo }

func runSelftest(root string, verbose bool) error {
	logger := applog.New(applog.Config{Verbose: verbose})
	log := applog.Subsystem(logger, "selftest")

	scratch, err := os.MkdirTemp(root, "flinux-go-selftest-")
	if err != nil {
		return fmt.Errorf("create scratch root: %w", err)
	}
	defer os.RemoveAll(scratch)

	mem := newFakeMemory(1 << 20)
	thread := &fakeThread{regs: hostwin.Registers{Esp: 1 << 16}}
	term := &recordingTerminator{}

	k := kernel.New(kernel.Options{
		Root:       scratch,
		Thread:     thread,
		Translator: noopTranslator{},
		FPU:        noopFPU{},
		Memory:     mem,
		Logger:     logger,
	})
	k.Signals.SetTerminator(term)
	defer k.Shutdown(context.Background())

	if err := vfsSmokeTest(context.Background(), k, mem); err != nil {
		return fmt.Errorf("vfs smoke test: %w", err)
	}
	log.Info("vfs smoke test passed")

	if err := signalSmokeTest(k); err != nil {
		return fmt.Errorf("signal smoke test: %w", err)
	}
	log.Info("signal smoke test passed")

	fmt.Println("selftest OK")
	return nil
}

func vfsSmokeTest(ctx context.Context, k *kernel.Kernel, mem *fakeMemory) error {
	d := k.Dispatcher

	if err := d.Mkdir(ctx, "/greet", 0o755); err != nil {
		return err
	}

	const pathAddr = 0
	const dataAddr = 4096
	payload := []byte("hello from the selftest\n")
	copy(mem.buf[dataAddr:], payload)

	fd, err := d.Open(ctx, "/greet/hi.txt", linux.O_CREAT|linux.O_WRONLY|linux.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open for write: %w", err)
	}
	if _, err := d.Write(ctx, fd, dataAddr, len(payload)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := d.Close(ctx, fd); err != nil {
		return err
	}

	fd, err = d.Open(ctx, "/greet/hi.txt", linux.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open for read: %w", err)
	}
	readAddr := uintptr(dataAddr + 4096)
	n, err := d.Read(ctx, fd, readAddr, len(payload))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if int(n) != len(payload) || string(mem.buf[readAddr:uintptr(int(readAddr)+len(payload))]) != string(payload) {
		return fmt.Errorf("read back %d bytes, content mismatch", n)
	}

	st, err := d.Fstat(ctx, fd)
	if err != nil {
		return fmt.Errorf("fstat: %w", err)
	}
	if st.Size != uint64(len(payload)) {
		return fmt.Errorf("stat size = %d, want %d", st.Size, len(payload))
	}
	if err := d.Close(ctx, fd); err != nil {
		return err
	}

	dirFd, err := d.Open(ctx, "/greet", linux.O_RDONLY|linux.O_DIRECTORY, 0)
	if err != nil {
		return fmt.Errorf("opendir: %w", err)
	}
	var names []string
	emit := func(name string, ino uint64, typ byte) (int, error) {
		names = append(names, name)
		return 1, nil
	}
	if err := k.Dispatcher.Descriptors.Get(dirFd).File.Getdents(ctx, emit); err != nil {
		return fmt.Errorf("getdents: %w", err)
	}
	if err := d.Close(ctx, dirFd); err != nil {
		return err
	}
	found := false
	for _, n := range names {
		if n == "hi.txt" {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("getdents did not list hi.txt, saw %v", names)
	}

	if err := d.Unlink(ctx, "/greet/hi.txt"); err != nil {
		return fmt.Errorf("unlink: %w", err)
	}
	if err := d.Rmdir(ctx, "/greet"); err != nil {
		return fmt.Errorf("rmdir: %w", err)
	}
	return nil
}

func signalSmokeTest(k *kernel.Kernel) error {
	if _, err := k.Signals.SetDisposition(linux.SIGUSR1, &signal.Disposition{Kind: linux.HandlerIgnore}); err != nil {
		return err
	}

	if err := k.Signals.Kill(true, signal.SigInfo{Signo: int32(linux.SIGUSR1)}); err != nil {
		return err
	}

	var mask linux.SigSet
	mask.Add(linux.SIGTERM)
	if _, err := k.Signals.SetMask(linux.SIG_BLOCK, mask); err != nil {
		return err
	}
	if err := k.Signals.Kill(true, signal.SigInfo{Signo: int32(linux.SIGTERM)}); err != nil {
		return err
	}
	if _, err := k.Signals.SetMask(linux.SIG_UNBLOCK, mask); err != nil {
		return err
	}
	return nil
}
