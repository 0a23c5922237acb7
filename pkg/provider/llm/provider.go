// Package llm defines the completion interface the summarizer talks to.
//
// Implementations live in subpackages: anyllm wraps the any-llm-go
// multi-provider client and openai talks to OpenAI-compatible endpoints
// directly. mock provides a test double.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is a single, non-streaming completion call.
type CompletionRequest struct {
	// SystemPrompt is prepended as a system message when non-empty.
	SystemPrompt string
	Messages     []Message
	// Temperature is left to the backend default when zero.
	Temperature float64
	// MaxTokens is left to the backend default when zero.
	MaxTokens int
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Provider produces completions. Implementations must be safe for concurrent
// use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// EstimateTokens approximates the prompt size of msgs at roughly four
// characters per token plus a small per-message overhead.
func EstimateTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += (len(m.Content)+3)/4 + 4
	}
	return total
}
