package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAI speaks the chat completions API. Credentials: apiKey, optional baseUrl.
type OpenAI struct{}

func (OpenAI) Invoke(ctx context.Context, client *http.Client, creds Credentials, model string, payload map[string]any) (*Result, error) {
	apiKey := creds.String("apiKey", "")
	if apiKey == "" {
		return nil, invalidArgument("Missing OpenAI apiKey")
	}
	baseURL := strings.TrimSuffix(creds.String("baseUrl", defaultOpenAIBaseURL), "/")

	req, err := newJSONRequest(ctx, baseURL+"/v1/chat/completions", mergeModel(model, payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return doChat(client, req, "OpenAI")
}

func mergeModel(model string, payload map[string]any) map[string]any {
	body := make(map[string]any, len(payload)+1)
	body["model"] = model
	for k, v := range payload {
		body[k] = v
	}
	return body
}

func newJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, invalidArgument("Invalid payload JSON")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, invalidArgument("Invalid provider URL: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doChat executes req and reads an OpenAI-shaped response.
func doChat(client *http.Client, req *http.Request, name string) (*Result, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, remoteFailure(err, "%s request failed", name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, remoteFailure(err, "%s response read failed", name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteFailure(nil, "%s error: %d %s", name, resp.StatusCode, truncate(string(body), 512))
	}

	var parsed map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, remoteFailure(err, "Unable to parse %s response", name)
	}
	in, out := usageTokens(parsed)
	return &Result{Output: parsed, TokensIn: in, TokensOut: out}, nil
}

func usageTokens(output map[string]any) (int, int) {
	usage, ok := output["usage"].(map[string]any)
	if !ok {
		return 0, 0
	}
	return toInt(usage["prompt_tokens"]), toInt(usage["completion_tokens"])
}

func toInt(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		var n int
		if _, err := fmt.Sscanf(t, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
