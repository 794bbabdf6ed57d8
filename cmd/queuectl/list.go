package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/job"
)

func newListCmd(cfg *queuectl.Config) *cobra.Command {
	var (
		stateStr string
		dlq      bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in a given state, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dlq {
				stateStr = string(job.StateDead)
			}
			state, err := job.ParseState(stateStr)
			if err != nil {
				return err
			}

			eng, s, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			jobs, err := eng.List(cmd.Context(), state, job.ListOpts{Limit: limit})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s jobs\n", state)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tPRIORITY\tRUN AT\tCOMMAND")
			for _, j := range jobs {
				runAt := "-"
				if j.RunAt != nil {
					runAt = j.RunAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\t%s\n",
					j.ID, j.State, j.Attempts, j.MaxRetries, j.Priority, runAt, j.Command)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&stateStr, "state", string(job.StatePending), "job state to list")
	cmd.Flags().BoolVar(&dlq, "dlq", false, "list dead jobs (shorthand for --state dead)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs to show")
	cmd.MarkFlagsMutuallyExclusive("state", "dlq")
	return cmd
}
