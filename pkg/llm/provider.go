package llm

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt frames every completion requested by the chat surface.
const SystemPrompt = "You are Finsight, an assistant for financial data. Answer questions about markets, " +
	"tickers and company filings concisely. Say so when you do not know a figure instead of guessing."

// Message is a chat turn in a provider-agnostic format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // overrides the provider default
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Resolve merges opts over defaults. Providers call it once per request.
func Resolve(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// LLMProvider is the completion collaborator.
type LLMProvider interface {
	// Chat sends the history and returns the assistant reply.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate is Chat with a single user turn.
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
