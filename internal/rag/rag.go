package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"
)

var thinkTag = regexp.MustCompile(models.ThinkTag)

// RAG answers questions from the chunks held in an Index
type RAG struct {
	index      Index
	embedder   embeddings.Embedder
	llm        llms.Model
	prompt     prompts.PromptTemplate
	topK       int
	dimensions int
	timeout    time.Duration
	callOpts   []llms.CallOption
}

func NewRAG(index Index, embedder embeddings.Embedder, llm llms.Model, cfg *config.Config) *RAG {
	topK := cfg.RAG.TopK
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &RAG{
		index:      index,
		embedder:   embedder,
		llm:        llm,
		prompt:     prompts.NewPromptTemplate(models.QAPromptTemplate, []string{"context", "question"}),
		topK:       topK,
		dimensions: cfg.Embedding.Dimensions,
		timeout:    cfg.Timeout,
		callOpts:   llmservice.CallOptions(&cfg.LLM),
	}
}

// Query embeds the question, retrieves the nearest chunks and asks the LLM.
// The returned sources are exactly the retrieved chunks, nearest first.
func (r *RAG) Query(ctx context.Context, question string) (*models.Answer, error) {
	start := time.Now()

	queryEmbedding, err := r.embedQuestion(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", models.ErrGeneration, err)
	}

	hits, err := r.index.Query(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve: %w", models.ErrGeneration, err)
	}

	prompt, err := r.prompt.Format(map[string]any{
		"context":  buildContext(hits),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt: %w", models.ErrGeneration, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	completion, err := llms.GenerateFromSinglePrompt(ctx, r.llm, prompt, r.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: llm: %w", models.ErrGeneration, err)
	}

	answer := cleanAnswer(completion)
	log.Debug().Int("hits", len(hits)).Int("prompt_chars", len(prompt)).Dur("took", time.Since(start)).Msg("Answered question")
	return models.NewAnswer(question, answer, hits), nil
}

// an empty question has no meaning to embed; use a zero vector instead of
// sending empty input to the provider
func (r *RAG) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if strings.TrimSpace(question) == "" {
		return make([]float32, r.dimensions), nil
	}
	return r.embedder.EmbedQuery(ctx, question)
}

func buildContext(hits []models.ScoredChunk) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, models.ContextSeparator)
}

func cleanAnswer(s string) string {
	return strings.TrimSpace(thinkTag.ReplaceAllString(s, ""))
}
