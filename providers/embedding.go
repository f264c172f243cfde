package providers

import "context"

// EmbeddingRequest is a request for text embeddings.
type EmbeddingRequest struct {
	// Texts to embed (batched for efficiency).
	Texts []string

	// Model overrides the provider's default embedding model (optional).
	Model string
}

// EmbeddingResponse contains the embedding vectors from a provider.
type EmbeddingResponse struct {
	// Embeddings contains one vector per input text, in the same order.
	Embeddings [][]float32

	// Model is the model that produced the embeddings.
	Model string
}

// EmbeddingProvider generates text embeddings for similarity search.
//
// Similar texts produce embeddings with high cosine similarity; the
// retrieval index relies on this to rank document chunks against a
// conversation-derived query.
type EmbeddingProvider interface {
	// Embed generates embeddings for the given texts, one vector per
	// input text in order. Implementations handle batch limits internally.
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)

	// EmbeddingDimensions returns the dimensionality of the vectors.
	EmbeddingDimensions() int

	// ID returns the provider identifier, e.g. "gemini-embedding".
	ID() string
}
