package provider

import (
	"context"
	"net/http"
	"strings"
)

// Mock answers locally without network access. Credentials may set content,
// tokensIn and tokensOut; otherwise input tokens are the word count of the
// payload messages and output tokens the word count of the reply.
type Mock struct{}

func (Mock) Invoke(_ context.Context, _ *http.Client, creds Credentials, model string, payload map[string]any) (*Result, error) {
	content := creds.String("content", "Mock response")
	in := toInt(creds["tokensIn"])
	if _, ok := creds["tokensIn"]; !ok {
		in = countPayloadWords(payload)
	}
	out := toInt(creds["tokensOut"])
	if _, ok := creds["tokensOut"]; !ok {
		out = len(strings.Fields(content))
	}
	output := map[string]any{
		"id":     "mock",
		"object": "chat.completion",
		"model":  model,
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"prompt_tokens": in, "completion_tokens": out},
	}
	return &Result{Output: output, TokensIn: in, TokensOut: out}, nil
}

func countPayloadWords(payload map[string]any) int {
	n := 0
	switch msgs := payload["messages"].(type) {
	case []any:
		for _, m := range msgs {
			if mm, ok := m.(map[string]any); ok {
				if s, ok := mm["content"].(string); ok {
					n += len(strings.Fields(s))
				}
			}
		}
	case []map[string]any:
		for _, mm := range msgs {
			if s, ok := mm["content"].(string); ok {
				n += len(strings.Fields(s))
			}
		}
	}
	return n
}
