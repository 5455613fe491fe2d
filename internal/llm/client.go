// Package llm provides the model-provider clients behind the council's
// agent ports. Each client exposes the same minimal completion surface;
// everything agent-specific (personas, payload parsing, degradation) lives
// one layer up.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Client is the completion interface the agent layer consumes.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider identifies a model backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Config holds the resolved provider settings for one client.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New builds a client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
