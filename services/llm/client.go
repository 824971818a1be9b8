package llm

import "context"

// Tier identifies which backend answers a request. Construction of the
// expensive handles is deferred to first use; see Factory.
type Tier string

const (
	// TierEconomical is the small, cheap model used for grounded
	// (BUCKET_B) responses.
	TierEconomical Tier = "economical"

	// TierEscalation is the large, expensive model used for BUCKET_C
	// escalations.
	TierEscalation Tier = "escalation"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
