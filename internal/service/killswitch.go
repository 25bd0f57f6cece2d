package service

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/repository"
	gocache "github.com/patrickmn/go-cache"
)

const GlobalKillSwitchKey = "global_kill_switch"

type TenantStore interface {
	Get(ctx context.Context, id string) (*model.Tenant, error)
	SetKillSwitch(ctx context.Context, id string, enabled bool) error
}

type SettingStore interface {
	Get(ctx context.Context, key string) (*model.SystemSetting, error)
	Put(ctx context.Context, key, value string) error
}

// KillSwitchCache answers whether a tenant or the whole system is disabled.
// Entries expire after the TTL and are reloaded on the next read.
type KillSwitchCache struct {
	tenants  TenantStore
	settings SettingStore
	cache    *gocache.Cache
	fallback bool
}

func NewKillSwitchCache(tenants TenantStore, settings SettingStore, ttl time.Duration, globalDefault bool) *KillSwitchCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &KillSwitchCache{
		tenants:  tenants,
		settings: settings,
		cache:    gocache.New(ttl, 10*ttl),
		fallback: globalDefault,
	}
}

type killSwitchSetting struct {
	Enabled bool `json:"enabled"`
}

func tenantCacheKey(tenantID string) string { return "tenant:" + tenantID }

const globalCacheKey = "global"

func (k *KillSwitchCache) TenantKillSwitch(ctx context.Context, tenantID string) (bool, error) {
	if v, ok := k.cache.Get(tenantCacheKey(tenantID)); ok {
		return v.(bool), nil
	}
	t, err := k.tenants.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			k.cache.SetDefault(tenantCacheKey(tenantID), false)
			return false, nil
		}
		return false, err
	}
	k.cache.SetDefault(tenantCacheKey(tenantID), t.KillSwitch)
	return t.KillSwitch, nil
}

func (k *KillSwitchCache) GlobalKillSwitch(ctx context.Context) (bool, error) {
	if v, ok := k.cache.Get(globalCacheKey); ok {
		return v.(bool), nil
	}
	enabled := k.fallback
	s, err := k.settings.Get(ctx, GlobalKillSwitchKey)
	switch {
	case err == nil:
		var parsed killSwitchSetting
		if jerr := json.Unmarshal([]byte(s.Value), &parsed); jerr == nil {
			enabled = parsed.Enabled
		} else {
			logger.Warn("unparseable global kill switch setting", "error", jerr.Error())
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return false, err
	}
	k.cache.SetDefault(globalCacheKey, enabled)
	return enabled, nil
}

// SetTenantKillSwitch persists the flag and replaces the cached value at once.
func (k *KillSwitchCache) SetTenantKillSwitch(ctx context.Context, tenantID string, enabled bool) error {
	if err := k.tenants.SetKillSwitch(ctx, tenantID, enabled); err != nil {
		return err
	}
	k.cache.SetDefault(tenantCacheKey(tenantID), enabled)
	return nil
}

func (k *KillSwitchCache) SetGlobalKillSwitch(ctx context.Context, enabled bool) error {
	raw, err := json.Marshal(killSwitchSetting{Enabled: enabled})
	if err != nil {
		return err
	}
	if err := k.settings.Put(ctx, GlobalKillSwitchKey, string(raw)); err != nil {
		return err
	}
	k.cache.SetDefault(globalCacheKey, enabled)
	return nil
}
