package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/provider"
	"github.com/neria/manager/internal/repository"
	"github.com/neria/manager/internal/testutil"
	"gorm.io/gorm"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []*model.AuditEvent
}

func (a *recordingAuditor) Record(_ context.Context, e *model.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAuditor) last() *model.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return nil
	}
	return a.events[len(a.events)-1]
}

func (a *recordingAuditor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

type fakeDispatcher struct {
	mu       sync.Mutex
	result   *provider.Result
	err      error
	calls    int
	payloads []map[string]any
	creds    []provider.Credentials
}

func (d *fakeDispatcher) Invoke(_ context.Context, _ string, creds provider.Credentials, _ string, payload map[string]any) (*provider.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.payloads = append(d.payloads, payload)
	d.creds = append(d.creds, creds)
	if d.err != nil {
		return nil, d.err
	}
	if d.result != nil {
		return d.result, nil
	}
	return &provider.Result{Output: map[string]any{"response": "ok"}, TokensIn: 10, TokensOut: 5}, nil
}

type harness struct {
	db         *gorm.DB
	fixture    *testutil.Fixture
	gateway    *RuntimeGateway
	killSwitch *KillSwitchCache
	limiter    *FixedWindowLimiter
	usage      *UsageLedger
	usageStore *MemoryUsageStore
	dispatcher *fakeDispatcher
	audit      *recordingAuditor
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)

	clock := &fakeClock{now: time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)}
	tenants := repository.NewTenantRepo(db)
	catalog := repository.NewCatalogRepo(db)
	ks := NewKillSwitchCache(tenants, repository.NewSettingsRepo(db), time.Minute, false)
	limiter := NewFixedWindowLimiter(time.Minute)
	limiter.now = clock.Now
	store := NewMemoryUsageStore()
	usage := NewUsageLedger(store)
	usage.now = clock.Now
	dispatcher := &fakeDispatcher{}
	audit := &recordingAuditor{}

	gw := NewRuntimeGateway(RuntimeDeps{
		Tenants:    tenants,
		Catalog:    catalog,
		KillSwitch: ks,
		Limiter:    limiter,
		Usage:      usage,
		Pricing:    NewPricingResolver(catalog),
		Dispatcher: dispatcher,
		Audit:      audit,
	})
	gw.now = clock.Now

	return &harness{
		db: db, fixture: fx, gateway: gw, killSwitch: ks, limiter: limiter,
		usage: usage, usageStore: store, dispatcher: dispatcher, audit: audit, clock: clock,
	}
}

func (h *harness) execute(t *testing.T, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	t.Helper()
	if req.ProviderID == "" {
		req.ProviderID = h.fixture.Provider.ID
	}
	if req.Model == "" {
		req.Model = "gpt-4o"
	}
	return h.gateway.Execute(context.Background(), h.fixture.Tenant.ID, req)
}
