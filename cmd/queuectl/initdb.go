package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
)

func newInitDBCmd(cfg *queuectl.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the database file and apply migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s\n", cfg.DBPath)
			return nil
		},
	}
}
