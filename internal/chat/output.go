package chat

import "github.com/neria/manager/internal/pkg/jsonvalue"

// AssistantContent pulls the reply text out of a provider output: OpenAI
// message content, then completion text, then a "response" member, and
// finally the whole output as JSON.
func AssistantContent(output jsonvalue.Value) string {
	for _, path := range []string{"choices.0.message.content", "choices.0.text", "response"} {
		if v, ok := output.Get(path); ok && !v.IsNull() {
			return textOf(v)
		}
	}
	return textOf(output)
}

func textOf(v jsonvalue.Value) string {
	if s, ok := v.Text(); ok {
		return s
	}
	return v.String()
}

// usageTokens reads usage.<primary>, falling back to usage.<fallback>.
// Only numeric members count.
func usageTokens(output jsonvalue.Value, primary, fallback string) int {
	for _, key := range []string{primary, fallback} {
		v, ok := output.Get("usage." + key)
		if !ok || v.Kind() != jsonvalue.KindNumber {
			continue
		}
		n, _ := v.Int()
		return n
	}
	return 0
}
