package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"
)

// Provider is an embeddings.Embedder that checks every response against the
// configured dimensionality and reports failures as models.ErrProvider.
type Provider struct {
	embedder   embeddings.Embedder
	dimensions int
	timeout    time.Duration
}

var _ embeddings.Embedder = (*Provider)(nil)

// NewEmbedder creates a new embedder
func NewEmbedder(cfg *config.EmbeddingConfig, timeout time.Duration) (*Provider, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":   cfg.Provider,
		"base_url":   cfg.BaseURL,
		"model":      cfg.Model,
		"dimensions": cfg.Dimensions,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client = newOpenAIClient(cfg)
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: init ollama: %w", models.ErrProvider, err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidConfig, cfg.Provider)
	}

	opts := []embeddings.Option{}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrProvider, err)
	}
	return NewProvider(embedder, cfg.Dimensions, timeout), nil
}

// NewProvider wraps an existing embedder; timeout <= 0 means no deadline
func NewProvider(embedder embeddings.Embedder, dimensions int, timeout time.Duration) *Provider {
	return &Provider{
		embedder:   embedder,
		dimensions: dimensions,
		timeout:    timeout,
	}
}

func (p *Provider) Dimensions() int {
	return p.dimensions
}

// EmbedDocuments returns one vector per text, in input order
func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classify(err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %w: got %d embeddings for %d inputs", models.ErrProvider, models.ErrMalformedResponse, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := p.check(v); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	log.Debug().Int("texts", len(texts)).Dur("took", time.Since(start)).Msg("Embedded documents")
	return vectors, nil
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, classify(err)
	}
	if err := p.check(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *Provider) check(v []float32) error {
	if len(v) != p.dimensions {
		return fmt.Errorf("%w: %w: vector has %d dimensions, want %d", models.ErrProvider, models.ErrMalformedResponse, len(v), p.dimensions)
	}
	return nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// classify maps client errors onto the provider error kinds
func classify(err error) error {
	if errors.Is(err, models.ErrProvider) {
		return err
	}

	status := 0
	code := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if c, ok := apiErr.Code.(string); ok {
			code = c
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w: %w", models.ErrProvider, models.ErrUnauthorized, err)
	case status == http.StatusTooManyRequests || strings.Contains(code, "quota"):
		return fmt.Errorf("%w: %w: %w", models.ErrProvider, models.ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %w", models.ErrProvider, err)
	}
}
