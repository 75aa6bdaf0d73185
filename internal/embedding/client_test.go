package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOllamaTestServer 模拟Ollama嵌入服务
func newOllamaTestServer(t *testing.T, dimension int, requestCount *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount != nil {
			atomic.AddInt32(requestCount, 1)
		}
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dimension)
			for j := range vec {
				vec[j] = float32(i+j) * 0.01
			}
			embeddings[i] = vec
		}

		resp := ollamaEmbedResponse{
			Model:      req.Model,
			Embeddings: embeddings,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOllamaClient(t *testing.T) {
	t.Run("Embed", func(t *testing.T) {
		server := newOllamaTestServer(t, 768, nil)
		defer server.Close()

		client, err := NewOllamaClient(WithBaseURL(server.URL))
		require.NoError(t, err)
		assert.Equal(t, "embeddinggemma", client.Name())

		vector, err := client.Embed(context.Background(), "hello world")
		require.NoError(t, err)
		assert.Len(t, vector, 768)
	})

	t.Run("EmbedBatch", func(t *testing.T) {
		server := newOllamaTestServer(t, 768, nil)
		defer server.Close()

		client, err := NewOllamaClient(WithBaseURL(server.URL))
		require.NoError(t, err)

		vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two", "three"})
		require.NoError(t, err)
		assert.Len(t, vectors, 3)
		for _, vec := range vectors {
			assert.Len(t, vec, 768)
		}
	})

	t.Run("EmptyTextRejected", func(t *testing.T) {
		client, err := NewOllamaClient()
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "")
		require.Error(t, err)
		embErr, ok := err.(EmbeddingError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeEmptyInput, embErr.Code)
	})

	t.Run("EmptyBatchReturnsEmpty", func(t *testing.T) {
		client, err := NewOllamaClient()
		require.NoError(t, err)

		vectors, err := client.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"model not found"}`))
		}))
		defer server.Close()

		client, err := NewOllamaClient(WithBaseURL(server.URL), WithMaxRetries(1))
		require.NoError(t, err)

		_, err = client.EmbedBatch(context.Background(), []string{"text"})
		assert.Error(t, err)
	})
}

func TestClientFactory(t *testing.T) {
	t.Run("RegisteredOllama", func(t *testing.T) {
		client, err := NewClient("ollama")
		require.NoError(t, err)
		assert.Equal(t, "embeddinggemma", client.Name())
	})

	t.Run("UnknownClient", func(t *testing.T) {
		_, err := NewClient("nonexistent")
		assert.Error(t, err)
	})

	t.Run("OpenAIRequiresAPIKey", func(t *testing.T) {
		_, err := NewClient("openai")
		require.Error(t, err)
		embErr, ok := err.(EmbeddingError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
	})
}

func TestBatchEmbedder(t *testing.T) {
	t.Run("SplitsIntoSubBatches", func(t *testing.T) {
		var requestCount int32
		server := newOllamaTestServer(t, 8, &requestCount)
		defer server.Close()

		client, err := NewOllamaClient(WithBaseURL(server.URL))
		require.NoError(t, err)

		batcher := NewBatchEmbedder(client, 2, 2)
		texts := []string{"a", "b", "c", "d", "e"}

		vectors, err := batcher.EmbedAll(context.Background(), texts)
		require.NoError(t, err)
		assert.Len(t, vectors, 5)
		for _, vec := range vectors {
			assert.Len(t, vec, 8)
		}
		assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
	})

	t.Run("EmptyInputMakesNoRequests", func(t *testing.T) {
		var requestCount int32
		server := newOllamaTestServer(t, 8, &requestCount)
		defer server.Close()

		client, err := NewOllamaClient(WithBaseURL(server.URL))
		require.NoError(t, err)

		vectors, err := NewBatchEmbedder(client, 4, 2).EmbedAll(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Equal(t, int32(0), atomic.LoadInt32(&requestCount))
	})

	t.Run("SubBatchFailureFailsWhole", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"overloaded"}`))
		}))
		defer server.Close()

		client, err := NewOllamaClient(WithBaseURL(server.URL), WithMaxRetries(1))
		require.NoError(t, err)

		batcher := NewBatchEmbedder(client, 2, 2)
		_, err = batcher.EmbedAll(context.Background(), []string{"a", "b", "c"})
		assert.Error(t, err)
	})
}
