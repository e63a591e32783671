// Package log sets up the structured logger threaded through the
// Kernel and its subsystems, rather than a package-level global, so
// that a forked child or a test harness can each own an independent
// logger instance (spec.md §9 "process-scoped singleton ... explicit
// after-fork reinit").
//
// Grounded on moby-moby's and tomponline-lxd's common pattern of a
// single process-wide *logrus.Logger configured once at startup and
// handed out as scoped *logrus.Entry values per subsystem; the
// retrieved gvisor teacher fragment carries no logging package of its
// own, so this is enrichment from the rest of the pack, not a
// teacher-grounded component.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Config controls the process-wide logger's format and verbosity.
type Config struct {
	Verbose bool
	JSON    bool
	Output  io.Writer
}

// New builds a *logrus.Logger per cfg. Output defaults to stderr, the
// same destination the cmd/flinux-go CLI's default wiring uses so
// guest stdout/stderr stay clean for the emulated program.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)
	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// Subsystem returns an Entry pre-tagged with a "subsystem" field, the
// granularity the Signal Controller, VFS Dispatcher, and Child-Process
// Watcher each log under.
func Subsystem(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("subsystem", name)
}
