package service

import (
	"context"
	"testing"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/repository"
	"github.com/neria/manager/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillSwitchCacheTenant(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	testutil.Seed(t, db)
	ks := NewKillSwitchCache(repository.NewTenantRepo(db), repository.NewSettingsRepo(db), 200*time.Millisecond, false)

	on, err := ks.TenantKillSwitch(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, on)

	// Out-of-band change is invisible until the entry expires.
	require.NoError(t, db.Model(&model.Tenant{}).Where("id = ?", "t1").Update("kill_switch", true).Error)
	on, _ = ks.TenantKillSwitch(ctx, "t1")
	assert.False(t, on)

	assert.Eventually(t, func() bool {
		on, err := ks.TenantKillSwitch(ctx, "t1")
		return err == nil && on
	}, 2*time.Second, 25*time.Millisecond)

	// Writes through the cache are visible at once.
	require.NoError(t, ks.SetTenantKillSwitch(ctx, "t1", false))
	on, _ = ks.TenantKillSwitch(ctx, "t1")
	assert.False(t, on)

	var stored model.Tenant
	require.NoError(t, db.First(&stored, "id = ?", "t1").Error)
	assert.False(t, stored.KillSwitch)
}

func TestKillSwitchCacheUnknownTenant(t *testing.T) {
	db := testutil.NewDB(t)
	ks := NewKillSwitchCache(repository.NewTenantRepo(db), repository.NewSettingsRepo(db), time.Minute, false)
	on, err := ks.TenantKillSwitch(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, on)

	err = ks.SetTenantKillSwitch(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestKillSwitchCacheGlobal(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	settings := repository.NewSettingsRepo(db)

	// Missing setting falls back to the configured default.
	ks := NewKillSwitchCache(repository.NewTenantRepo(db), settings, time.Minute, true)
	on, err := ks.GlobalKillSwitch(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, ks.SetGlobalKillSwitch(ctx, false))
	on, _ = ks.GlobalKillSwitch(ctx)
	assert.False(t, on)

	s, err := settings.Get(ctx, GlobalKillSwitchKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":false}`, s.Value)

	// A fresh cache reads the persisted value.
	fresh := NewKillSwitchCache(repository.NewTenantRepo(db), settings, time.Minute, true)
	on, _ = fresh.GlobalKillSwitch(ctx)
	assert.False(t, on)
}

func TestKillSwitchCacheGlobalUnparseable(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	settings := repository.NewSettingsRepo(db)
	require.NoError(t, settings.Put(ctx, GlobalKillSwitchKey, "yes please"))

	ks := NewKillSwitchCache(repository.NewTenantRepo(db), settings, time.Minute, false)
	on, err := ks.GlobalKillSwitch(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}
