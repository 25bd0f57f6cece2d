package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, rawKey string) (*model.Tenant, *model.ApiKey, error) {
	if rawKey != "good-key" {
		return nil, nil, apperrors.New(apperrors.ErrAuthFailed, "invalid API key", nil)
	}
	return &model.Tenant{ID: "t1", Status: model.TenantStatusActive}, &model.ApiKey{ID: "k1", TenantID: "t1"}, nil
}

func (fakeAuth) Lookup(_ context.Context, tenantID string) (*model.Tenant, error) {
	if tenantID != "t1" {
		return nil, apperrors.NotFound("Tenant not found")
	}
	return &model.Tenant{ID: "t1", Status: model.TenantStatusActive}, nil
}

type limiterMap map[string]*rate.Limiter

func (m limiterMap) Limiter(key string) *rate.Limiter { return m[key] }

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(mw...)
	return r
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func whoami(c *gin.Context) {
	tenant, _ := TenantFrom(c)
	keyID := ""
	if k := APIKeyFrom(c); k != nil {
		keyID = k.ID
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenant.ID, "key": keyID})
}

func TestAuthMiddleware(t *testing.T) {
	strict := &config.Config{Auth: config.AuthConfig{RequireAPIKey: true}}
	trusting := &config.Config{Auth: config.AuthConfig{RequireAPIKey: false}}

	t.Run("valid key", func(t *testing.T) {
		r := newRouter(AuthMiddleware(strict, fakeAuth{}))
		r.GET("/me", whoami)
		w := do(r, http.MethodGet, "/me", map[string]string{HeaderAPIKey: "good-key"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"tenant":"t1","key":"k1"}`, w.Body.String())
	})

	t.Run("bad key", func(t *testing.T) {
		r := newRouter(AuthMiddleware(strict, fakeAuth{}))
		r.GET("/me", whoami)
		w := do(r, http.MethodGet, "/me", map[string]string{HeaderAPIKey: "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTH_FAILED", errorCode(t, w))
	})

	t.Run("tenant header ignored when keys are required", func(t *testing.T) {
		r := newRouter(AuthMiddleware(strict, fakeAuth{}))
		r.GET("/me", whoami)
		w := do(r, http.MethodGet, "/me", map[string]string{HeaderTenantID: "t1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("trusted tenant header", func(t *testing.T) {
		r := newRouter(AuthMiddleware(trusting, fakeAuth{}))
		r.GET("/me", whoami)
		w := do(r, http.MethodGet, "/me", map[string]string{HeaderTenantID: "t1"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"tenant":"t1","key":""}`, w.Body.String())

		w = do(r, http.MethodGet, "/me", map[string]string{HeaderTenantID: "ghost"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIdempotencyMiddlewareReplays(t *testing.T) {
	var calls atomic.Int32
	store := NewInMemIdempotencyStore(0)
	r := newRouter(AuthMiddleware(&config.Config{}, fakeAuth{}), IdempotencyMiddleware(store))
	r.POST("/exec", func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"call": n})
	})
	r.POST("/boom", func(c *gin.Context) {
		calls.Add(1)
		_ = c.Error(apperrors.Internal("boom", nil))
	})

	h := map[string]string{HeaderAPIKey: "good-key", HeaderIdempotencyKey: "abc"}
	first := do(r, http.MethodPost, "/exec", h)
	second := do(r, http.MethodPost, "/exec", h)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.EqualValues(t, 1, calls.Load())

	// Server errors release the key so a retry executes again.
	h[HeaderIdempotencyKey] = "def"
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/boom", h).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/boom", h).Code)
	assert.EqualValues(t, 3, calls.Load())

	// A request still holding the key is a conflict.
	rec, hit := store.GetOrLock(context.Background(), "t1:/exec:busy")
	require.Nil(t, rec)
	require.False(t, hit)
	h[HeaderIdempotencyKey] = "busy"
	w := do(r, http.MethodPost, "/exec", h)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limits := limiterMap{"k1": rate.NewLimiter(rate.Every(1e12), 1)}
	r := newRouter(AuthMiddleware(&config.Config{}, fakeAuth{}), RateLimitMiddleware(limits))
	r.GET("/me", whoami)

	h := map[string]string{HeaderAPIKey: "good-key"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/me", h).Code)
	w := do(r, http.MethodGet, "/me", h)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestReadOnlyMiddleware(t *testing.T) {
	r := newRouter(ReadOnlyMiddleware(true, "/v1/admin/kill-switch"))
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/v1/usage", ok)
	r.POST("/v1/runtime/execute", ok)
	r.PUT("/v1/admin/kill-switch", ok)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/v1/usage", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPut, "/v1/admin/kill-switch", nil).Code)
	w := do(r, http.MethodPost, "/v1/runtime/execute", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "READ_ONLY", errorCode(t, w))

	off := newRouter(ReadOnlyMiddleware(false))
	off.POST("/v1/runtime/execute", ok)
	assert.Equal(t, http.StatusNoContent, do(off, http.MethodPost, "/v1/runtime/execute", nil).Code)
}

func TestAdminMiddleware(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	r := newRouter(AdminMiddleware(&config.Config{Auth: config.AuthConfig{AdminKey: "root"}}))
	r.PUT("/admin", ok)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPut, "/admin", map[string]string{HeaderAdminKey: "root"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPut, "/admin", map[string]string{HeaderAdminKey: "guess"}).Code)

	closed := newRouter(AdminMiddleware(&config.Config{}))
	closed.PUT("/admin", ok)
	assert.Equal(t, http.StatusForbidden, do(closed, http.MethodPut, "/admin", map[string]string{HeaderAdminKey: ""}).Code)
}

func TestRequestLogMiddlewareSetsRequestID(t *testing.T) {
	r := newRouter(RequestLogMiddleware())
	r.POST("/x", func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.Data(http.StatusOK, "application/json", body)
	})

	w := do(r, http.MethodPost, "/x", nil)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, `{}`, w.Body.String(), "body is still readable downstream")

	w = do(r, http.MethodPost, "/x", map[string]string{HeaderRequestID: "req-7"})
	assert.Equal(t, "req-7", w.Header().Get(HeaderRequestID))
}

func TestRedactBody(t *testing.T) {
	out := redactBody([]byte(`{"model":"gpt","credentials":{"api_key":"k"},"payload":{"messages":[{"password":"p"}]}}`))
	assert.NotContains(t, out, `"k"`)
	assert.NotContains(t, out, `"p"`)
	assert.Contains(t, out, `"model":"gpt"`)

	assert.Equal(t, "[redacted]", redactBody([]byte("not-json")))
	assert.Equal(t, "", redactBody(nil))
}

func TestErrorHandlerClassifiesPlainErrors(t *testing.T) {
	r := newRouter()
	r.POST("/bind", func(c *gin.Context) {
		_ = c.Error(errors.New("missing field")).SetType(gin.ErrorTypeBind)
	})
	r.POST("/slow", func(c *gin.Context) {
		_ = c.Error(context.DeadlineExceeded)
	})
	r.POST("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	r.POST("/written", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	w := do(r, http.MethodPost, "/bind", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, w))

	w = do(r, http.MethodPost, "/slow", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(r, http.MethodPost, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))

	w = do(r, http.MethodPost, "/written", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestIdempotencyKeyScopedToRouteAndParams(t *testing.T) {
	var calls atomic.Int32
	store := NewInMemIdempotencyStore(0)
	r := newRouter(AuthMiddleware(&config.Config{}, fakeAuth{}), IdempotencyMiddleware(store))
	reply := func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"call": n, "route": c.FullPath(), "id": c.Param("id")})
	}
	r.POST("/exec", reply)
	r.POST("/conversations/:id/messages", reply)

	h := map[string]string{HeaderAPIKey: "good-key", HeaderIdempotencyKey: "same"}
	exec := do(r, http.MethodPost, "/exec", h)
	c1 := do(r, http.MethodPost, "/conversations/c1/messages", h)
	c2 := do(r, http.MethodPost, "/conversations/c2/messages", h)
	for _, w := range []*httptest.ResponseRecorder{exec, c1, c2} {
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Idempotent-Replay"))
	}
	assert.EqualValues(t, 3, calls.Load())

	again := do(r, http.MethodPost, "/conversations/c1/messages", h)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replay"))
	assert.Equal(t, c1.Body.String(), again.Body.String())
	assert.EqualValues(t, 3, calls.Load())
}
