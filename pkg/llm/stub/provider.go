package stub

import (
	"context"
	"fmt"
	"strings"

	"finsight-be/pkg/llm"
)

// Provider answers without a model. It is the default when no inference backend is configured.
type Provider struct{}

var _ llm.LLMProvider = Provider{}

func NewProvider() Provider {
	return Provider{}
}

func (Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			last = strings.TrimSpace(history[i].Content)
			break
		}
	}
	if last == "" {
		return "Ask me about a ticker, a market or a filing.", nil
	}
	return fmt.Sprintf("Market data for %q is not connected yet. This is a placeholder answer.", last), nil
}

func (p Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}
