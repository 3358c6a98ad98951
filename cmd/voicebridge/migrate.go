package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentoven/voicebridge/pkg/server"
)

// NewMigrateCommand creates the migrate command. Opening a store runs its
// migrations, so this opens and closes the configured store.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the configured store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := server.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", cfg.Store.Driver)
			return nil
		},
	}
}
