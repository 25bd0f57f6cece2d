package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/neria/manager/internal/repository"
	"github.com/neria/manager/internal/service"
	"github.com/spf13/cobra"
)

func newKillSwitchCmd(open dbOpener) *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "kill-switch [on|off]",
		Short: "Show or set the global or a tenant kill switch",
		Long: "Without an argument the current state is printed. With --tenant the tenant flag is used, " +
			"otherwise the global one. Running servers pick up changes within the kill switch TTL.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			switches := service.NewKillSwitchCache(repository.NewTenantRepo(db), repository.NewSettingsRepo(db),
				time.Second, cfg.Runtime.KillSwitchDefault)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			scope := "global"
			if tenantID != "" {
				scope = "tenant " + tenantID
			}

			if len(args) == 0 {
				var enabled bool
				if tenantID != "" {
					enabled, err = switches.TenantKillSwitch(ctx, tenantID)
				} else {
					enabled, err = switches.GlobalKillSwitch(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s kill switch: %s\n", scope, onOff(enabled))
				return nil
			}

			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			if tenantID != "" {
				err = switches.SetTenantKillSwitch(ctx, tenantID, enabled)
			} else {
				err = switches.SetGlobalKillSwitch(ctx, enabled)
			}
			if err != nil {
				return fmt.Errorf("set %s kill switch: %w", scope, err)
			}
			fmt.Fprintf(out, "%s kill switch: %s\n", scope, onOff(enabled))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant id (default: global switch)")
	return cmd
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
