package model

// ExecutionRequest is one guarded LLM call. It is never persisted.
type ExecutionRequest struct {
	RequestID   string         `json:"request_id"`
	ProviderID  string         `json:"provider_id"`
	ServiceCode string         `json:"service_code,omitempty"`
	Model       string         `json:"model" binding:"required"`
	Payload     map[string]any `json:"payload"`
}

type ExecutionResult struct {
	RequestID string         `json:"request_id"`
	Output    map[string]any `json:"output"`
}
