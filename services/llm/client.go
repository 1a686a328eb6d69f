package llm

import "context"

// GenerationParams are per-call overrides for a generation request. Nil
// pointer fields mean "use the backend's default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
	// System sets the system prompt for this call. The pipeline's three
	// prompt contracts (classification, synthesis, claim verification) each
	// carry their own persona, so this is a per-call field rather than a
	// client-level default.
	System string `json:"system,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend. All three
// pipeline call sites go through Generate so the whole state machine can be
// exercised against a stub.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
