package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/pkg/apperrors"
	gocache "github.com/patrickmn/go-cache"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type IdempotencyRecord struct {
	Status     int
	Body       []byte
	CreatedAt  time.Time
	Processing bool // a request holding the key is still running
}

type IdempotencyStore interface {
	// GetOrLock returns (record, true) if the key exists; (nil, false) if the caller now holds it.
	GetOrLock(ctx context.Context, key string) (*IdempotencyRecord, bool)
	Save(ctx context.Context, key string, status int, body []byte)
	Unlock(ctx context.Context, key string)
}

// InMemIdempotencyStore keeps replies for a single process. Deployments with
// several replicas use the Redis store instead.
type InMemIdempotencyStore struct {
	records *gocache.Cache
	ttl     time.Duration
}

func NewInMemIdempotencyStore(ttl time.Duration) *InMemIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemIdempotencyStore{records: gocache.New(ttl, 10*time.Minute), ttl: ttl}
}

func (s *InMemIdempotencyStore) GetOrLock(_ context.Context, key string) (*IdempotencyRecord, bool) {
	lock := &IdempotencyRecord{Processing: true, CreatedAt: time.Now().UTC()}
	if err := s.records.Add(key, lock, s.ttl); err == nil {
		return nil, false
	}
	if v, ok := s.records.Get(key); ok {
		return v.(*IdempotencyRecord), true
	}
	// Expired between Add and Get.
	s.records.Set(key, lock, s.ttl)
	return nil, false
}

func (s *InMemIdempotencyStore) Save(_ context.Context, key string, status int, body []byte) {
	s.records.Set(key, &IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}, s.ttl)
}

func (s *InMemIdempotencyStore) Unlock(_ context.Context, key string) {
	s.records.Delete(key)
}

// IdempotencyMiddleware replays the stored reply for a repeated
// X-Idempotency-Key so client retries are not executed (and billed) twice.
// Must run after AuthMiddleware; keys are scoped per tenant.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}
		tenant, ok := TenantFrom(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		fullKey := scopedIdempotencyKey(c, tenant.ID, idemKey)

		record, hit := store.GetOrLock(ctx, fullKey)
		if hit {
			if record.Processing {
				_ = c.Error(apperrors.New(apperrors.ErrConflict, "request in progress", nil))
				c.Abort()
				return
			}
			c.Header("Idempotent-Replay", "true")
			c.Data(record.Status, "application/json; charset=utf-8", record.Body)
			c.Abort()
			return
		}

		w := &responseBodyWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Failed requests may be retried, so only their lock is released.
		// Errors are rendered later by ErrorHandler, hence the c.Errors check.
		if len(c.Errors) == 0 && c.Writer.Status() < 500 {
			store.Save(context.WithoutCancel(ctx), fullKey, c.Writer.Status(), w.body)
		} else {
			store.Unlock(context.WithoutCancel(ctx), fullKey)
		}
	}
}

// scopedIdempotencyKey ties a client key to the tenant, the route template and
// its path parameters, so a key reused on another route or conversation misses.
func scopedIdempotencyKey(c *gin.Context, tenantID, key string) string {
	parts := make([]string, 0, 3+len(c.Params))
	parts = append(parts, tenantID, c.FullPath())
	for _, p := range c.Params {
		parts = append(parts, p.Value)
	}
	parts = append(parts, key)
	return strings.Join(parts, ":")
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

func (w *responseBodyWriter) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}
