package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Garsondee/Nav-Sense/internal/sim"
)

func ScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "list the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEXPECT\tMAX TICKS\tDESCRIPTION")
			for _, sc := range sim.Scenarios() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", sc.Name, sc.Expect(), sc.MaxTicks, sc.Description)
			}
			return w.Flush()
		},
	}
}
