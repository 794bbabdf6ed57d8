package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
)

func newShowCmd(cfg *queuectl.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show full detail for one job, including captured output",
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

			j, err := eng.Get(cmd.Context(), jobID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", j.ID)
			fmt.Fprintf(out, "State:       %s\n", j.State)
			fmt.Fprintf(out, "Command:     %s\n", j.Command)
			fmt.Fprintf(out, "Attempts:    %d/%d\n", j.Attempts, j.MaxRetries)
			fmt.Fprintf(out, "Priority:    %d\n", j.Priority)
			if j.RunAt != nil {
				fmt.Fprintf(out, "Run at:      %s\n", j.RunAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "Created at:  %s\n", j.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Updated at:  %s\n", j.UpdatedAt.Format(time.RFC3339))
			if j.Stdout != nil && *j.Stdout != "" {
				fmt.Fprintf(out, "\n--- stdout ---\n%s", withTrailingNewline(*j.Stdout))
			}
			if j.Stderr != nil && *j.Stderr != "" {
				fmt.Fprintf(out, "\n--- stderr ---\n%s", withTrailingNewline(*j.Stderr))
			}
			return nil
		},
	}
}

func withTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
