package llm

// Usage contains token counts reported by the remote model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ErrorResponse is the JSON error body returned by the cometx HTTP service.
type ErrorResponse struct {
	Error string `json:"error"`
}
