package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
)

func newRequeueCmd(cfg *queuectl.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Return a dead job to the queue with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := id.ParseJobID(args[0])
			if err != nil {
				return err
			}

			eng, s, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			requeued, err := eng.Requeue(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			if !requeued {
				return fmt.Errorf("job %s was not requeued: only dead jobs can be", jobID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s requeued\n", jobID)
			return nil
		},
	}
}
