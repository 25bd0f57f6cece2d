// Package provider translates guarded runtime calls into provider-specific HTTP requests.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/neria/manager/internal/pkg/metrics"
)

var (
	// ErrInvalidArgument marks failures caused by the caller's request or credentials.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRemoteFailure marks transport errors and non-2xx provider responses.
	ErrRemoteFailure = errors.New("remote failure")
)

// Error carries a caller-facing message and one of the sentinel kinds above.
type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string        { return e.msg }
func (e *Error) Is(target error) bool { return target == e.kind }
func (e *Error) Unwrap() error        { return e.cause }

func invalidArgument(format string, args ...any) error {
	return &Error{kind: ErrInvalidArgument, msg: fmt.Sprintf(format, args...)}
}

func remoteFailure(cause error, format string, args ...any) error {
	return &Error{kind: ErrRemoteFailure, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Result is the raw provider output plus the token counts it reported.
type Result struct {
	Output    map[string]any
	TokensIn  int
	TokensOut int
}

// Credentials is the decrypted provider credential document.
type Credentials map[string]any

func (c Credentials) String(key, fallback string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return fallback
	}
	return s
}

// ParseCredentials decodes a stored credential blob. Blank input is an empty set.
func ParseCredentials(raw string) (Credentials, error) {
	if strings.TrimSpace(raw) == "" {
		return Credentials{}, nil
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, invalidArgument("Invalid credentials format, must be JSON")
	}
	if creds == nil {
		creds = Credentials{}
	}
	return creds, nil
}

// Adapter is one provider family.
type Adapter interface {
	Invoke(ctx context.Context, client *http.Client, creds Credentials, model string, payload map[string]any) (*Result, error)
}

// Dispatcher routes invocations to adapters by provider type.
type Dispatcher struct {
	client   *http.Client
	mu       sync.RWMutex
	adapters map[string]Adapter
	fallback Adapter
}

// NewDispatcher registers the built-in adapters. Unknown types use the OpenAI adapter.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	d := &Dispatcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		adapters: make(map[string]Adapter),
	}
	openai := OpenAI{}
	d.fallback = openai
	d.Register(openai, "openai")
	d.Register(AzureOpenAI{}, "azure", "azure_openai", "azure-openai")
	d.Register(Mock{}, "mock")
	d.Register(unsupported{name: "AWS Bedrock"}, "aws", "bedrock", "aws-bedrock")
	d.Register(unsupported{name: "Vertex AI"}, "google", "gcp", "vertex", "vertex-ai")
	return d
}

func (d *Dispatcher) Register(a Adapter, types ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range types {
		d.adapters[strings.ToLower(t)] = a
	}
}

func (d *Dispatcher) adapter(providerType string) Adapter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if a, ok := d.adapters[strings.ToLower(strings.TrimSpace(providerType))]; ok {
		return a
	}
	return d.fallback
}

// Invoke calls the provider once. It never retries.
func (d *Dispatcher) Invoke(ctx context.Context, providerType string, creds Credentials, model string, payload map[string]any) (*Result, error) {
	if creds == nil {
		creds = Credentials{}
	}
	start := time.Now()
	res, err := d.adapter(providerType).Invoke(ctx, d.client, creds, model, payload)
	metrics.ProviderLatency.WithLabelValues(strings.ToLower(providerType)).Observe(time.Since(start).Seconds())
	return res, err
}

type unsupported struct{ name string }

func (u unsupported) Invoke(context.Context, *http.Client, Credentials, string, map[string]any) (*Result, error) {
	return nil, invalidArgument("%s provider is not supported by this gateway", u.name)
}
