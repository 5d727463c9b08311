package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/rag"
)

// IndexFactory returns a fresh, unbuilt index for one session
type IndexFactory func(sessionID string) rag.Index

// IngestResult summarizes the document currently indexed by a session
type IngestResult struct {
	Source  string `json:"source"`
	Pages   int    `json:"pages"`
	Chunks  int    `json:"chunks"`
	Vectors int    `json:"vectors"`
}

// Session owns the index built from one uploaded document. Calls on a
// session are serialized.
type Session struct {
	ID string

	cfg      *config.Config
	embedder embeddings.Embedder
	llm      llms.Model
	splitter *parser.Splitter
	newIndex IndexFactory

	lastUsed atomic.Int64

	mu       sync.Mutex
	index    rag.Index
	rag      *rag.RAG
	document *IngestResult
}

func New(id string, cfg *config.Config, embedder embeddings.Embedder, llm llms.Model, newIndex IndexFactory) (*Session, error) {
	splitter, err := parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       id,
		cfg:      cfg,
		embedder: embedder,
		llm:      llm,
		splitter: splitter,
		newIndex: newIndex,
	}
	s.touch()
	return s, nil
}

// Ingest replaces the session's index with one built from the PDF at path.
// On failure the session is left without an index.
func (s *Session) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()

	start := time.Now()
	doc, err := parser.LoadPDF(path)
	if err != nil {
		return nil, err
	}
	relabel(doc, filepath.Base(path))

	chunks, err := s.splitter.SplitPages(doc)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s produced no chunks", models.ErrChunk, doc.Source)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	index := s.newIndex(s.ID)
	if err := index.Build(ctx, chunks, vectors); err != nil {
		if cerr := index.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("session", s.ID).Msg("Error closing failed index")
		}
		return nil, err
	}

	s.index = index
	s.rag = rag.NewRAG(index, s.embedder, s.llm, s.cfg)
	s.document = &IngestResult{
		Source:  doc.Source,
		Pages:   len(doc.Pages),
		Chunks:  len(chunks),
		Vectors: index.Len(),
	}

	log.Info().
		Str("session", s.ID).
		Str("source", doc.Source).
		Int("pages", s.document.Pages).
		Int("chunks", s.document.Chunks).
		Dur("took", time.Since(start)).
		Msg("Indexed document")

	result := *s.document
	return &result, nil
}

// Ask answers question from the ingested document
func (s *Session) Ask(ctx context.Context, question string) (*models.Answer, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rag == nil {
		return nil, fmt.Errorf("%w: %w: upload a document first", models.ErrIndex, models.ErrIndexNotBuilt)
	}
	return s.rag.Query(ctx, question)
}

// Document returns the summary of the indexed document, or nil
func (s *Session) Document() *IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return nil
	}
	result := *s.document
	return &result
}

// LastUsed does not wait for a running Ingest or Ask
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Close drops the session's index
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) reset() error {
	index := s.index
	s.index = nil
	s.rag = nil
	s.document = nil
	if index == nil {
		return nil
	}
	if err := index.Close(); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("Error closing index")
		return err
	}
	return nil
}

// uploads arrive under temporary names; show only the file name
func relabel(doc *models.Document, source string) {
	doc.Source = source
	for i := range doc.Pages {
		doc.Pages[i].Source = source
	}
}
