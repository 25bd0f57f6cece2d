// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database with every table migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:neria_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return db
}

// Fixture is a tenant with one provider and one policy.
type Fixture struct {
	Tenant   *model.Tenant
	Provider *model.Provider
	Policy   *model.Policy
}

// Seed creates an active tenant "t1" with a mock provider "p1" and policy "pol1".
func Seed(t testing.TB, db *gorm.DB) *Fixture {
	t.Helper()
	now := time.Now().UTC()
	f := &Fixture{
		Tenant: &model.Tenant{ID: "t1", Name: "Acme", Status: model.TenantStatusActive, CreatedAt: now},
		Provider: &model.Provider{
			ID: "p1", TenantID: "t1", Type: "mock", DisplayName: "mock",
			Credentials: `{}`, Enabled: true, CreatedAt: now,
		},
		Policy: &model.Policy{
			ID: "pol1", TenantID: "t1", MaxRequestsPerMinute: 100,
			MaxTokensPerDay: 1_000_000, MaxCostPerDayUSD: decimal.NewFromInt(100),
			CreatedAt: now,
		},
	}
	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(f.Tenant).Error)
	require.NoError(t, db.WithContext(ctx).Create(f.Provider).Error)
	require.NoError(t, db.WithContext(ctx).Create(f.Policy).Error)
	return f
}
