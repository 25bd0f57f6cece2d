package main

import (
	"fmt"
	"os"

	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/repository"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "neriactl",
		Short:         "Operator tool for the Neria manager",
		Long:          "neriactl migrates the database, toggles kill switches, issues API keys and previews chat grounding.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml or ./configs/config.yaml)")

	open := func() (*config.Config, *gorm.DB, error) {
		return openDB(configPath)
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd(open))
	cmd.AddCommand(newKillSwitchCmd(open))
	cmd.AddCommand(newAPIKeyCmd(open))
	cmd.AddCommand(newContextCmd(open))
	return cmd
}

type dbOpener func() (*config.Config, *gorm.DB, error)

func openDB(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := repository.NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "neriactl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
