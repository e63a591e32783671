// Command flinux-go hosts the signal delivery core and virtual
// filesystem dispatch core described by this repository. It exposes a
// minimal cobra CLI -- global --root/--verbose flags plus a selftest
// subcommand -- the same shape moby-moby's and tomponline-lxd's own
// cobra-based CLIs use (root command with persistent flags, one
// AddCommand per verb).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagRoot    string
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flinux-go",
		Short: "Linux process-ABI compatibility layer for Windows",
	}
	cmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "host directory the guest root filesystem mounts onto")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	cmd.AddCommand(newSelftestCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
