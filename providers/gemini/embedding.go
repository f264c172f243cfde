package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
)

// Embedding constants.
const (
	// DefaultEmbeddingModel is the default model for embeddings.
	DefaultEmbeddingModel = "text-embedding-004"

	embeddingDimensions = 768
	embeddingBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	maxEmbeddingBatch   = 100 // Gemini batch limit
	embeddingTimeout    = 60 * time.Second
)

// EmbeddingProvider implements embedding generation via the Gemini API.
type EmbeddingProvider struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
}

// EmbeddingOption configures the EmbeddingProvider.
type EmbeddingOption func(*EmbeddingProvider)

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) EmbeddingOption {
	return func(p *EmbeddingProvider) { p.model = model }
}

// WithEmbeddingBaseURL sets a custom base URL (used in tests).
func WithEmbeddingBaseURL(url string) EmbeddingOption {
	return func(p *EmbeddingProvider) { p.baseURL = url }
}

// WithEmbeddingHTTPClient sets a custom HTTP client.
func WithEmbeddingHTTPClient(client *http.Client) EmbeddingOption {
	return func(p *EmbeddingProvider) { p.client = client }
}

// NewEmbeddingProvider creates a Gemini embedding provider.
func NewEmbeddingProvider(apiKey string, opts ...EmbeddingOption) (*EmbeddingProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	p := &EmbeddingProvider{
		model:   DefaultEmbeddingModel,
		baseURL: embeddingBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: embeddingTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embedResponse struct {
	Embedding *embeddingValues `json:"embedding,omitempty"`
}

type batchEmbedResponse struct {
	Embeddings []embeddingValues `json:"embeddings,omitempty"`
}

type embeddingValues struct {
	Values []float32 `json:"values"`
}

// Embed generates embeddings for the given texts.
func (p *EmbeddingProvider) Embed(
	ctx context.Context,
	req providers.EmbeddingRequest,
) (providers.EmbeddingResponse, error) {
	if len(req.Texts) == 0 {
		return providers.EmbeddingResponse{Embeddings: [][]float32{}, Model: p.model}, nil
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	var all [][]float32
	for i := 0; i < len(req.Texts); i += maxEmbeddingBatch {
		end := i + maxEmbeddingBatch
		if end > len(req.Texts) {
			end = len(req.Texts)
		}
		batch, err := p.embedBatch(ctx, req.Texts[i:end], model)
		if err != nil {
			return providers.EmbeddingResponse{}, fmt.Errorf("batch %d failed: %w", i/maxEmbeddingBatch, err)
		}
		all = append(all, batch...)
	}

	return providers.EmbeddingResponse{Embeddings: all, Model: model}, nil
}

// embedBatch embeds up to maxEmbeddingBatch texts in one request.
func (p *EmbeddingProvider) embedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	requests := make([]embedRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedRequest{
			Model:   "models/" + model,
			Content: embedContent{Parts: []embedPart{{Text: text}}},
		}
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", p.baseURL, model, p.apiKey)
	body, err := p.post(ctx, url, batchEmbedRequest{Requests: requests})
	if err != nil {
		return nil, err
	}

	var resp batchEmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		embeddings[i] = e.Values
	}

	logger.Debug("gemini embedding batch completed", "model", model, "texts", len(texts))
	return embeddings, nil
}

// post issues a JSON POST and returns the response body.
func (p *EmbeddingProvider) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providers.ParseHTTPError("gemini-embedding", resp.StatusCode, body)
	}
	return body, nil
}

// EmbeddingDimensions returns the dimensionality of embedding vectors.
func (p *EmbeddingProvider) EmbeddingDimensions() int { return embeddingDimensions }

// ID returns the provider identifier.
func (p *EmbeddingProvider) ID() string { return "gemini-embedding" }

// Verify interface compliance.
var _ providers.EmbeddingProvider = (*EmbeddingProvider)(nil)
