package llmservice

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"
)

// NewLLM builds the chat model named by llmConfig
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Str("base_url", llmConfig.BaseURL).Msg("Creating llm client")

	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: init openai: %w", models.ErrGeneration, err)
		}
		return llm, nil
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: init ollama: %w", models.ErrGeneration, err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", models.ErrInvalidConfig, llmConfig.Provider)
	}
}

// CallOptions turns the configured sampling parameters into call options
func CallOptions(llmConfig *config.LLMConfig) []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(llmConfig.Temperature),
	}
}
