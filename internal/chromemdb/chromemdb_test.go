package chromemdb_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/testutil"
)

func chunksOf(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{ID: fmt.Sprintf("c%d", i), Seq: i, Text: t, Page: i + 1, Source: "doc.pdf"}
	}
	return chunks
}

func TestQueryBeforeBuild(t *testing.T) {
	idx := chromemdb.NewIndex("")

	_, err := idx.Query(context.Background(), []float32{1, 0}, 3)
	assert.ErrorIs(t, err, models.ErrIndex)
	assert.ErrorIs(t, err, models.ErrIndexNotBuilt)
}

func TestQueryOrdersByDistance(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	chunks := chunksOf("east", "north-east", "north", "west")
	vectors := [][]float32{{1, 0}, {1, 1}, {0, 1}, {-1, 0}}
	require.NoError(t, idx.Build(context.Background(), chunks, vectors))
	assert.Equal(t, 4, idx.Len())

	hits, err := idx.Query(context.Background(), []float32{1, 0.1}, 3)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, "east", hits[0].Text)
	assert.Equal(t, "north-east", hits[1].Text)
	assert.Equal(t, "north", hits[2].Text)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
	assert.Equal(t, 1, hits[0].Page)
	assert.Equal(t, "doc.pdf", hits[0].Source)
}

func TestQueryReturnsMinOfKAndCount(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	require.NoError(t, idx.Build(context.Background(), chunksOf("a", "b"), [][]float32{{1, 0}, {0, 1}}))

	for k, want := range map[int]int{0: 0, 1: 1, 2: 2, 10: 2} {
		hits, err := idx.Query(context.Background(), []float32{1, 1}, k)
		require.NoError(t, err)
		assert.Len(t, hits, want, "k=%d", k)
	}
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	vectors := [][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 0}, {1, 0}}
	require.NoError(t, idx.Build(context.Background(), chunksOf("other", "t1", "t2", "t3", "t4"), vectors))

	for range 5 {
		hits, err := idx.Query(context.Background(), []float32{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, []string{"t1", "t2", "t3"}, []string{hits[0].Text, hits[1].Text, hits[2].Text})
	}
}

func TestQueryZeroVectorUsesInsertionOrder(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	require.NoError(t, idx.Build(context.Background(), chunksOf("a", "b", "c"), [][]float32{{0, 1}, {1, 0}, {1, 1}}))

	hits, err := idx.Query(context.Background(), []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Text)
	assert.Equal(t, "b", hits[1].Text)
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	require.NoError(t, idx.Build(context.Background(), chunksOf("a"), [][]float32{{1, 0, 0}}))

	_, err := idx.Query(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, models.ErrIndex)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestBuildValidatesInput(t *testing.T) {
	idx := chromemdb.NewIndex("test")

	err := idx.Build(context.Background(), chunksOf("a", "b"), [][]float32{{1, 0}})
	assert.ErrorIs(t, err, models.ErrIndex)

	err = idx.Build(context.Background(), chunksOf("a", "b"), [][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	// failed builds leave the index unbuilt
	_, err = idx.Query(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, models.ErrIndexNotBuilt)
}

func TestRebuildReplacesContents(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, chunksOf("old one", "old two", "old three"), [][]float32{{1, 0}, {0, 1}, {1, 1}}))
	require.NoError(t, idx.Build(ctx, chunksOf("new"), [][]float32{{1, 0}}))

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Text)
}

func TestEmptyBuild(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	require.NoError(t, idx.Build(context.Background(), nil, nil))

	hits, err := idx.Query(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCloseUnbuilds(t *testing.T) {
	idx := chromemdb.NewIndex("test")
	require.NoError(t, idx.Build(context.Background(), chunksOf("a"), [][]float32{{1, 0}}))
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err := idx.Query(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, models.ErrIndexNotBuilt)
}

func TestEmbeddingRoundTripFindsOwnChunk(t *testing.T) {
	ctx := context.Background()
	embedder := testutil.NewEmbedder(64)
	texts := []string{
		"Jin Meng is a reliable and detail-oriented engineer.",
		"The office is located downtown near the river.",
		"Quarterly revenue grew by twelve percent.",
		"The team ships releases every two weeks.",
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	require.NoError(t, err)

	idx := chromemdb.NewIndex("test")
	require.NoError(t, idx.Build(ctx, chunksOf(texts...), vectors))

	for i, text := range texts {
		again, err := embedder.EmbedQuery(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, vectors[i], again)

		hits, err := idx.Query(ctx, again, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, text, hits[0].Text)
		assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	}
}
