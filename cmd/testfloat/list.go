package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-testfloat/internal/ops"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the operations that can be verified",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tARITY\tNATIVE MODES")
			for _, name := range ops.Names() {
				op, _ := ops.Lookup(name)
				modes := make([]string, len(op.NativeModes))
				for i, m := range op.NativeModes {
					modes[i] = m.String()
				}
				native := strings.Join(modes, ",")
				if native == "" {
					native = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", op.Name, op.Arity, native)
			}
			return w.Flush()
		},
	}
}
