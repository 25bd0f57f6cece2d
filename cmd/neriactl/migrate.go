package main

import (
	"fmt"

	"github.com/neria/manager/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd(open dbOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the manager tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database\n", cfg.Database.Driver)
			return nil
		},
	}
}
