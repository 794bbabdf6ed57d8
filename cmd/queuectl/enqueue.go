package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/job"
)

func newEnqueueCmd(cfg *queuectl.Config) *cobra.Command {
	var (
		maxRetries int
		priority   int
		runAtStr   string
		delay      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "enqueue <command>...",
		Short: "Add a shell command to the queue",
		Long: `Add a shell command to the queue and print its job id.

The command is executed with "sh -c", so pipes and redirections work when
the whole command is quoted:

  queuectl enqueue "grep -c ERROR /var/log/app.log > errors.txt"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []job.Option{
				job.WithMaxRetries(maxRetries),
				job.WithPriority(priority),
			}
			switch {
			case runAtStr != "":
				runAt, err := time.Parse(time.RFC3339, runAtStr)
				if err != nil {
					return fmt.Errorf("parse --run-at: %w", err)
				}
				opts = append(opts, job.WithRunAt(runAt))
			case delay > 0:
				opts = append(opts, job.WithRunAt(time.Now().Add(delay)))
			}

			eng, s, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			j, err := eng.Enqueue(cmd.Context(), strings.Join(args, " "), opts...)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), j.ID.String())
			return nil
		},
	}

	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "executions before the job is declared dead")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "higher priority jobs are claimed first")
	cmd.Flags().StringVar(&runAtStr, "run-at", "", "RFC3339 time before which the job will not run")
	cmd.Flags().DurationVar(&delay, "delay", 0, "how long from now before the job becomes eligible")
	cmd.MarkFlagsMutuallyExclusive("run-at", "delay")
	return cmd
}
