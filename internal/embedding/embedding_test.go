package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/testutil"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

type embeddingServer struct {
	t        *testing.T
	requests atomic.Int32
	// respond overrides the default handler when set
	respond func(w http.ResponseWriter, req embeddingRequest)
}

// vectorFor is deterministic: first element is the text length, second its position marker
func vectorFor(text string, dims int) []float32 {
	v := make([]float32, dims)
	v[0] = float32(len(text))
	if len(text) > 0 {
		v[1] = float32(text[0])
	}
	return v
}

func (s *embeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if r.URL.Path != "/v1/embeddings" {
		http.NotFound(w, r)
		return
	}
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.t.Errorf("decode embedding request: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.respond != nil {
		s.respond(w, req)
		return
	}

	// reply in reverse order so the client has to sort by index
	data := make([]map[string]any, 0, len(req.Input))
	for i := len(req.Input) - 1; i >= 0; i-- {
		data = append(data, map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": vectorFor(req.Input[i], req.Dimensions),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  req.Model,
		"data":   data,
	})
}

func newProvider(t *testing.T, srv *embeddingServer, batch int) *embedding.Provider {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	p, err := embedding.NewEmbedder(&config.EmbeddingConfig{
		Provider:   config.ProviderOpenAI,
		BaseURL:    ts.URL + "/v1",
		Key:        "sk-test",
		Model:      "text-embedding-3-small",
		Dimensions: 8,
		BatchSize:  batch,
	}, 5*time.Second)
	require.NoError(t, err)
	return p
}

func TestEmbedDocumentsPreservesOrder(t *testing.T) {
	srv := &embeddingServer{t: t}
	p := newProvider(t, srv, 100)

	texts := []string{"alpha", "be", "charlie the third", "d"}
	vectors, err := p.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, vectorFor(text, 8), vectors[i])
	}
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestEmbedDocumentsBatches(t *testing.T) {
	srv := &embeddingServer{t: t}
	p := newProvider(t, srv, 2)

	texts := []string{"one", "two", "three", "four", "five"}
	vectors, err := p.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	assert.Equal(t, vectorFor("five", 8), vectors[4])
	assert.Equal(t, int32(3), srv.requests.Load())
}

func TestEmbedDocumentsEmptyInputMakesNoCall(t *testing.T) {
	srv := &embeddingServer{t: t}
	p := newProvider(t, srv, 10)

	vectors, err := p.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, int32(0), srv.requests.Load())
}

func TestEmbedQueryIsDeterministic(t *testing.T) {
	srv := &embeddingServer{t: t}
	p := newProvider(t, srv, 10)

	first, err := p.EmbedQuery(context.Background(), "Describe the engineer")
	require.NoError(t, err)
	second, err := p.EmbedQuery(context.Background(), "Describe the engineer")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 8)
}

func TestEmbedErrors(t *testing.T) {
	apiError := func(status int, code string) func(http.ResponseWriter, embeddingRequest) {
		return func(w http.ResponseWriter, _ embeddingRequest) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "denied", "type": "invalid_request_error", "code": code},
			})
		}
	}

	tests := []struct {
		name    string
		respond func(http.ResponseWriter, embeddingRequest)
		want    error
	}{
		{"unauthorized", apiError(http.StatusUnauthorized, "invalid_api_key"), models.ErrUnauthorized},
		{"rate limited", apiError(http.StatusTooManyRequests, "rate_limit_exceeded"), models.ErrQuotaExceeded},
		{"quota code", apiError(http.StatusBadRequest, "insufficient_quota"), models.ErrQuotaExceeded},
		{"server error", apiError(http.StatusInternalServerError, "server_error"), models.ErrProvider},
		{"count mismatch", func(w http.ResponseWriter, req embeddingRequest) {
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
				{"index": 0, "embedding": vectorFor("x", req.Dimensions)},
			}})
		}, models.ErrMalformedResponse},
		{"wrong dimensions", func(w http.ResponseWriter, req embeddingRequest) {
			data := make([]map[string]any, len(req.Input))
			for i := range req.Input {
				data[i] = map[string]any{"index": i, "embedding": []float32{1, 2, 3}}
			}
			json.NewEncoder(w).Encode(map[string]any{"data": data})
		}, models.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &embeddingServer{t: t, respond: tt.respond}
			p := newProvider(t, srv, 10)

			_, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
			assert.ErrorIs(t, err, models.ErrProvider)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProviderChecksDimensions(t *testing.T) {
	p := embedding.NewProvider(testutil.NewEmbedder(16), 32, 0)

	_, err := p.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, models.ErrMalformedResponse)

	_, err = p.EmbedDocuments(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestProviderWrapsUpstreamFailure(t *testing.T) {
	fake := testutil.NewEmbedder(16)
	fake.Err = testutil.ErrUpstream
	p := embedding.NewProvider(fake, 16, time.Second)

	_, err := p.EmbedDocuments(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, models.ErrProvider)
	assert.ErrorIs(t, err, testutil.ErrUpstream)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := embedding.NewEmbedder(&config.EmbeddingConfig{Provider: "nope", Dimensions: 4}, 0)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}
