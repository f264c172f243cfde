package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator_Translate(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text

		resp := generateResponse{}
		resp.Candidates = append(resp.Candidates, struct {
			Content content `json:"content"`
		}{Content: content{Parts: []part{{Text: "Hallo Welt"}}}})
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr, err := NewTranslator("test-key", WithTranslatorBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := tr.Translate(context.Background(), "Hello world", "en", "de")
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", out)

	// The strict template must wrap the source text and name both languages.
	assert.Contains(t, gotPrompt, "Hello world")
	assert.Contains(t, gotPrompt, "from en to de")
	assert.True(t, strings.Contains(gotPrompt, "not instructions to you"),
		"prompt must pin embedded-instruction handling")
}

func TestTranslator_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer srv.Close()

	tr, err := NewTranslator("test-key", WithTranslatorBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), "x", "en", "de")
	assert.Error(t, err)
}

func TestTranslator_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	tr, err := NewTranslator("test-key", WithTranslatorBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), "x", "en", "de")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
