package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"
)

// openaiClient satisfies langchaingo's embeddings.EmbedderClient and asks
// the API for vectors of a fixed dimensionality.
type openaiClient struct {
	client     *openai.Client
	model      string
	dimensions int
}

func newOpenAIClient(cfg *config.EmbeddingConfig) *openaiClient {
	c := openai.DefaultConfig(cfg.Key)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return &openaiClient{
		client:     openai.NewClientWithConfig(c),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (c *openaiClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := c.client.CreateEmbeddings(ctx, &openai.EmbeddingRequestStrings{
		Input:          texts,
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     c.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(res.Data) != len(texts) {
		return nil, fmt.Errorf("%w: %w: got %d embeddings for %d inputs", models.ErrProvider, models.ErrMalformedResponse, len(res.Data), len(texts))
	}

	// the API reports each vector's input position; do not trust response order
	out := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: %w: bad embedding index %d", models.ErrProvider, models.ErrMalformedResponse, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
