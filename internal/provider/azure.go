package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const defaultAzureAPIVersion = "2024-02-15-preview"

// AzureOpenAI targets a deployment-scoped endpoint.
// Credentials: endpoint, apiKey, optional deployment (defaults to the model) and apiVersion.
type AzureOpenAI struct{}

func (AzureOpenAI) Invoke(ctx context.Context, client *http.Client, creds Credentials, model string, payload map[string]any) (*Result, error) {
	endpoint := creds.String("endpoint", "")
	apiKey := creds.String("apiKey", "")
	if endpoint == "" || apiKey == "" {
		return nil, invalidArgument("Missing Azure OpenAI endpoint or apiKey")
	}
	deployment := creds.String("deployment", model)
	apiVersion := creds.String("apiVersion", defaultAzureAPIVersion)

	base, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, invalidArgument("Invalid Azure OpenAI endpoint")
	}
	base.Path = base.Path + "/openai/deployments/" + url.PathEscape(deployment) + "/chat/completions"
	q := base.Query()
	q.Set("api-version", apiVersion)
	base.RawQuery = q.Encode()

	req, err := newJSONRequest(ctx, base.String(), payloadOrEmpty(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", apiKey)
	return doChat(client, req, "Azure OpenAI")
}

func payloadOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
