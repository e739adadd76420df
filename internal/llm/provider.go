package llm

import "context"

// Provider defines the interface for extraction backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs one completion call. Truncated output is reported on
	// the response, never masked as partial data.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is the input for one backend call
type CompletionRequest struct {
	// System is the system prompt framing the task
	System string

	// Prompt is the user prompt, carrying the full corpus or document
	// text. Chunking is never done at this layer; a prompt too large for
	// the backend surfaces as a backend error.
	Prompt string

	// Model overrides the configured model for this call
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// CompletionResponse is the output of one backend call
type CompletionResponse struct {
	// Text is the raw completion text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int

	// Truncated is set when the backend stopped at its output token
	// limit. Callers must treat this as an error condition, never as
	// partial data.
	Truncated bool
}

// Config holds extraction backend configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   120,
		MaxTokens: 8192,
	}
}
