// Package advisor asks a language model for a category when the rule-based
// suggestion found none. Its answers are advisory and never applied.
package advisor

import (
	"context"
	"fmt"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// SuggestCategory asks the model to pick one category for a record
	SuggestCategory(ctx context.Context, req CategoryRequest) (*CategoryResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CategoryRequest contains the input for one category question
type CategoryRequest struct {
	Statement   string
	Explanation string
	Reference   string

	// Current is the record's present, rejected category
	Current string

	// Categories is the closed set the answer must come from
	Categories []string

	// Model overrides the configured model (provider-specific)
	Model string
}

// CategoryResponse contains the model's raw answer
type CategoryResponse struct {
	// Answer is the reply text, trimmed
	Answer string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama's OpenAI-compatible API)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Timeout:   30,
		MaxTokens: 32,
	}
}

// BuildPrompt constructs the category question
func BuildPrompt(req CategoryRequest) string {
	var b strings.Builder

	b.WriteString("You classify true/false exam statements into exactly one category.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Answer with ONE category name copied exactly from the list below.\n")
	b.WriteString("2. Do not explain. Do not add punctuation or quotes.\n")
	b.WriteString("3. If none fits, answer NONE.\n\n")

	b.WriteString("Categories:\n")
	for _, c := range req.Categories {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	fmt.Fprintf(&b, "\nStatement: %s\n", req.Statement)
	if req.Explanation != "" {
		fmt.Fprintf(&b, "Explanation: %s\n", req.Explanation)
	}
	if req.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", req.Reference)
	}
	if req.Current != "" {
		fmt.Fprintf(&b, "Current (rejected) category: %s\n", req.Current)
	}

	return b.String()
}
