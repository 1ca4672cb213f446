// Command testfloat checks floating-point operations against a correctly
// rounded software reference and reports every disagreement in result bits
// or exception flags.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "testfloat",
		Short:         "Verify IEEE-754 operations against a software reference",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newListCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
