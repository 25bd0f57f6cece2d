package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neria/manager/internal/pkg/jsonvalue"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/pkg/metrics"
)

const maxBodyBytes = 16 << 20

// fetchResult is one GET against a tenant endpoint. A failed fetch is never
// an error for the caller, only an unusable endpoint.
type fetchResult struct {
	ok     bool
	data   jsonvalue.Value
	status int
	err    error
}

type fetcher struct {
	client  *http.Client
	timeout time.Duration
}

func (f *fetcher) get(ctx context.Context, url string, headers map[string]string) fetchResult {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.EndpointFetches.WithLabelValues("error").Inc()
		return fetchResult{err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.EndpointFetches.WithLabelValues("error").Inc()
		return fetchResult{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		metrics.EndpointFetches.WithLabelValues("http_error").Inc()
		return fetchResult{status: resp.StatusCode, err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.EndpointFetches.WithLabelValues("error").Inc()
		return fetchResult{status: resp.StatusCode, err: err}
	}
	// Empty and non-JSON bodies count as a successful fetch with no rows.
	data, err := jsonvalue.Parse(body)
	if err != nil {
		logger.FromContext(ctx).Debug("endpoint returned non-JSON body", "url", url, "error", err.Error())
		data = jsonvalue.Null()
	}
	if data.IsNull() {
		metrics.EndpointFetches.WithLabelValues("empty").Inc()
	} else {
		metrics.EndpointFetches.WithLabelValues("ok").Inc()
	}
	return fetchResult{ok: true, data: data, status: resp.StatusCode}
}

// resolveURL joins an endpoint path onto its base URL with exactly one slash.
// Absolute paths are used as is. An empty result means no base URL is known.
func resolveURL(path, baseURL, fallbackBaseURL string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = strings.TrimSpace(fallbackBaseURL)
	}
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func withPageParams(url string, pageNumber, pageSize int) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spageNumber=%d&pageSize=%d", url, sep, pageNumber, pageSize)
}
