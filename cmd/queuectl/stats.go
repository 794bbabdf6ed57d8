package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/job"
)

func newStatsCmd(cfg *queuectl.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-state job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, s, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := eng.Stats(cmd.Context())
			if err != nil {
				return err
			}

			var total int64
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, state := range job.States() {
				fmt.Fprintf(w, "%s\t%d\n", state, stats[state])
				total += stats[state]
			}
			fmt.Fprintf(w, "total\t%d\n", total)
			return w.Flush()
		},
	}
}
