package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/repository"
	"github.com/neria/manager/internal/service"
	"github.com/spf13/cobra"
)

func newAPIKeyCmd(open dbOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "API key management",
	}

	var tenantID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key for a tenant",
		Long:  "Prints the raw key once. Only its sha256 hash is stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := open()
			if err != nil {
				return err
			}
			tenants := repository.NewTenantRepo(db)
			if _, err := tenants.Get(cmd.Context(), tenantID); err != nil {
				return fmt.Errorf("tenant %q: %w", tenantID, err)
			}
			raw, err := newRawKey()
			if err != nil {
				return err
			}
			key := &model.ApiKey{
				ID:        uuid.NewString(),
				TenantID:  tenantID,
				Name:      name,
				KeyHash:   service.HashAPIKey(raw),
				Status:    model.TenantStatusActive,
				CreatedAt: time.Now().UTC(),
			}
			if err := tenants.CreateAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", key.ID, raw)
			return nil
		},
	}
	create.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant id")
	create.Flags().StringVarP(&name, "name", "n", "default", "key label")
	_ = create.MarkFlagRequired("tenant")

	cmd.AddCommand(create)
	return cmd
}

func newRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "nk_" + hex.EncodeToString(buf), nil
}
