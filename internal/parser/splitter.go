package parser

import (
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"
)

// Splitter cuts page text into overlapping windows of at most size runes
type Splitter struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d, overlap %d", models.ErrChunk, size, overlap)
	}

	return &Splitter{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(models.ChunkSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

// SplitText splits a single text; empty text gives no chunks
func (s *Splitter) SplitText(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrChunk, err)
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// SplitPages chunks each page separately so every chunk has one page number.
// Seq numbers run across the whole document.
func (s *Splitter) SplitPages(doc *models.Document) ([]models.Chunk, error) {
	if doc == nil {
		return nil, nil
	}

	var chunks []models.Chunk
	for _, page := range doc.Pages {
		parts, err := s.SplitText(page.Text)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			id, err := helper.GenerateUUID()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", models.ErrChunk, err)
			}
			chunks = append(chunks, models.Chunk{
				ID:     id,
				Seq:    len(chunks),
				Text:   part,
				Page:   page.Number,
				Source: page.Source,
			})
		}
	}
	return chunks, nil
}
