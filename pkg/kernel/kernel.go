// Package kernel is the composition root: it wires the Descriptor
// Table, Path Resolver, VFS Dispatcher, Signal Controller, and
// Child-Process Watcher into one process-scoped object and supplies
// the one collaborator none of those packages can supply for
// themselves -- a concrete vfs.PollWaiter built from hostwin's real
// WaitForMultipleObjects plus the Signal Controller's sigevent
// (spec.md §9 "a re-implementation should encapsulate each as a
// process-scoped singleton").
package kernel

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wishstudio/flinux-go/pkg/console"
	"github.com/wishstudio/flinux-go/pkg/fsimpl/devfs"
	"github.com/wishstudio/flinux-go/pkg/fsimpl/winfs"
	"github.com/wishstudio/flinux-go/pkg/hostwin"
	"github.com/wishstudio/flinux-go/pkg/kernel/signal"
	applog "github.com/wishstudio/flinux-go/pkg/log"
	"github.com/wishstudio/flinux-go/pkg/vfs"
)

// Kernel is one emulated process's complete kernel-side state.
type Kernel struct {
	Descriptors *vfs.DescriptorTable
	Paths       *vfs.PathResolver
	Dispatcher  *vfs.Dispatcher
	Signals     *signal.Controller

	root   *winfs.FS
	waiter hostwin.MultiWaiter
	log    *logrus.Entry
}

// Options collects the external collaborators spec.md §1 scopes out of
// this core: the guest thread, the binary-translation hook, and FPU
// save/restore.
type Options struct {
	Root       string
	Thread     hostwin.GuestThread
	Translator signal.Translator
	FPU        signal.FPUState
	Memory     vfs.ProcessMemory
	Logger     *logrus.Logger
}

// New constructs a Kernel rooted at opts.Root, with /dev mounted and
// fd 0/1/2 preinstalled as console devices (spec.md §6).
func New(opts Options) *Kernel {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{})
	}

	root := winfs.NewFS(opts.Root)
	paths := vfs.NewPathResolver()
	paths.Mount("/", root)
	paths.Mount("/dev", devfs.NewFS())

	descriptors := vfs.NewDescriptorTable()
	descriptors.Store(vfs.NewOpenFile(console.NewStdin(), 0), false)
	descriptors.Store(vfs.NewOpenFile(console.NewStdout(), 0), false)
	descriptors.Store(vfs.NewOpenFile(console.NewStderr(), 0), false)

	sigevent, err := hostwin.NewEvent()
	if err != nil {
		logger.WithError(err).Error("kernel: create sigevent failed")
	}
	signals := signal.NewController(opts.Thread, opts.Translator, opts.FPU, opts.Memory, sigevent, applog.Subsystem(logger, "signal"))

	dispatcher := vfs.NewDispatcher(descriptors, paths, opts.Memory)

	return &Kernel{
		Descriptors: descriptors,
		Paths:       paths,
		Dispatcher:  dispatcher,
		Signals:     signals,
		root:        root,
		log:         applog.Subsystem(logger, "kernel"),
	}
}

// Wait implements vfs.PollWaiter by augmenting the caller's handle set
// with the Signal Controller's sigevent, so any poll/select is always
// interruptible by signal delivery (spec.md §4.1 "wait_interruptible
// ... always adds the sigevent as an additional wait target").
func (k *Kernel) Wait(ctx context.Context, handles []uintptr, timeoutMillis int) (int, bool, error) {
	augmented, sigIdx := k.Signals.AugmentWithSigEvent(handles)
	idx, timedOut, err := k.waiter.Wait(ctx, augmented, timeoutMillis)
	if err != nil {
		return 0, false, err
	}
	if ierr := signal.InterruptedAt(idx, sigIdx, timedOut); ierr != nil {
		return 0, false, ierr
	}
	if timedOut || idx == sigIdx {
		return 0, true, nil
	}
	return idx, false, nil
}

// Fork reinitializes fork-scoped state in a freshly forked child,
// preserving the tables that survive fork (descriptors, mounts) while
// resetting the Signal Controller's delivery state (spec.md §9
// "explicit after-fork reinit entry point").
func (k *Kernel) Fork() {
	k.Signals.AfterFork()
}

// Exec implements the descriptor-table half of exec(): close-on-exec
// descriptors close, and umask resets to its default (spec.md §4.4).
func (k *Kernel) Exec(ctx context.Context) {
	k.Descriptors.OnExec(ctx)
}

// Shutdown stops the Signal Controller's worker goroutine and closes
// every open descriptor.
func (k *Kernel) Shutdown(ctx context.Context) {
	k.Signals.Shutdown()
	k.Descriptors.CloseAll(ctx)
}
