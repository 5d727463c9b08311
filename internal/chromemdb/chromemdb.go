package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/models"
)

const defaultCollectionName = "chunks"

var errNoEmbeddingFunc = errors.New("documents must carry precomputed embeddings")

// Index keeps chunk embeddings in an in-memory chromem-go collection and
// ranks them by cosine distance (1 - cosine similarity).
type Index struct {
	mu         sync.RWMutex
	name       string
	db         *chromem.DB
	collection *chromem.Collection
	chunks     []models.Chunk
	dims       int
}

func NewIndex(collectionName string) *Index {
	if collectionName == "" {
		collectionName = defaultCollectionName
	}
	return &Index{name: collectionName}
}

// Build replaces the collection with a fresh one holding chunks[i] -> vectors[i]
func (m *Index) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", models.ErrIndex, len(chunks), len(vectors))
	}
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return fmt.Errorf("%w: %w: vector %d has %d dimensions, want %d", models.ErrIndex, models.ErrDimensionMismatch, i, len(v), dims)
		}
	}

	// a new DB per build so nothing from a previous document survives
	db := chromem.NewDB()
	c, err := db.CreateCollection(m.name, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %v", models.ErrIndex, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   chunk.Text,
			Metadata:  createMetadata(chunk),
			Embedding: vectors[i],
		}
	}
	if len(docs) > 0 {
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("%w: failed to add documents: %v", models.ErrIndex, err)
		}
	}

	kept := make([]models.Chunk, len(chunks))
	copy(kept, chunks)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db
	m.collection = c
	m.chunks = kept
	m.dims = dims

	log.Debug().Str("collection", m.name).Int("documents", len(docs)).Int("dims", dims).Msg("Built vector index")
	return nil
}

// Query returns the k nearest chunks, nearest first, ties in insertion order
func (m *Index) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.collection == nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndex, models.ErrIndexNotBuilt)
	}
	n := len(m.chunks)
	if k <= 0 || n == 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(vector) != m.dims {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, index has %d", models.ErrIndex, models.ErrDimensionMismatch, len(vector), m.dims)
	}
	k = min(k, n)

	// a zero vector carries no direction, every chunk is equally far
	if isZero(vector) {
		hits := make([]models.ScoredChunk, k)
		for i := range hits {
			hits[i] = models.ScoredChunk{Chunk: m.chunks[i], Distance: 1}
		}
		return hits, nil
	}

	// rank every document so ties at the k boundary resolve by insertion order
	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %v", models.ErrIndex, err)
	}

	type ranked struct {
		pos      int
		distance float32
	}
	rs := make([]ranked, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil || pos < 0 || pos >= n {
			return nil, fmt.Errorf("%w: unknown document id %q", models.ErrIndex, r.ID)
		}
		rs = append(rs, ranked{pos: pos, distance: 1 - r.Similarity})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].distance != rs[j].distance {
			return rs[i].distance < rs[j].distance
		}
		return rs[i].pos < rs[j].pos
	})

	hits := make([]models.ScoredChunk, 0, k)
	for _, r := range rs[:min(k, len(rs))] {
		hits = append(hits, models.ScoredChunk{Chunk: m.chunks[r.pos], Distance: r.distance})
	}
	return hits, nil
}

func (m *Index) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Close releases the collection; the index must be rebuilt before reuse
func (m *Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.DeleteCollection(m.name)
	m.db = nil
	m.collection = nil
	m.chunks = nil
	m.dims = 0
	if err != nil {
		return fmt.Errorf("%w: failed to drop collection: %v", models.ErrIndex, err)
	}
	return nil
}

// meta data will have source filename, page number, seq
func createMetadata(chunk models.Chunk) map[string]string {
	return map[string]string{
		"chunk_id": chunk.ID,
		"seq":      strconv.Itoa(chunk.Seq),
		"page":     strconv.Itoa(chunk.Page),
		"source":   chunk.Source,
	}
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
