package factory

import (
	"fmt"

	"finsight-be/pkg/llm"
	"finsight-be/pkg/llm/huggingface"
	"finsight-be/pkg/llm/ollama"
	"finsight-be/pkg/llm/stub"
)

type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "stub", "":
		return stub.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
