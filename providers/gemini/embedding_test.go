package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidenote-ai/sidenote/providers"
)

func TestEmbeddingProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := batchEmbedResponse{}
		for range req.Requests {
			resp.Embeddings = append(resp.Embeddings, embeddingValues{Values: []float32{0.1, 0.2, 0.3}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewEmbeddingProvider("test-key", WithEmbeddingBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := p.Embed(context.Background(), providers.EmbeddingRequest{
		Texts: []string{"first chunk", "second chunk"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, resp.Embeddings[0])
}

func TestEmbeddingProvider_EmptyRequest(t *testing.T) {
	p, err := NewEmbeddingProvider("test-key")
	require.NoError(t, err)

	resp, err := p.Embed(context.Background(), providers.EmbeddingRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Embeddings)
}

func TestEmbeddingProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	p, err := NewEmbeddingProvider("test-key", WithEmbeddingBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), providers.EmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewEmbeddingProvider_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingProvider("")
	assert.Error(t, err)
}
