package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/54b3r/docqa-go/internal/rag"
)

// GeminiEmbedder implements rag.Embedder with the Gemini API embedContent call.
type GeminiEmbedder struct {
	// client is the shared genai client (also used by the chat model).
	client *genai.Client
	// model is the embedding model name (e.g. "text-embedding-004").
	model string
	// dimensions truncates the output vector when non-zero.
	dimensions int
}

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// Client is an initialised genai client.
	Client *genai.Client
	// Model is the embedding model name.
	Model string
	// Dimensions requests a reduced output dimensionality (0 = model default).
	Dimensions int
}

// NewGeminiEmbedder constructs a GeminiEmbedder from the given config.
func NewGeminiEmbedder(cfg *GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("gemini embedder: client must not be nil")
	}
	return &GeminiEmbedder{client: cfg.Client, model: cfg.Model, dimensions: cfg.Dimensions}, nil
}

// Describe returns the embedding-space fingerprint of this embedder.
func (e *GeminiEmbedder) Describe() rag.IndexInfo {
	return rag.IndexInfo{Provider: "gemini", Model: e.model, Dimensions: e.dimensions}
}

// Embed converts a batch of texts into their corresponding embeddings.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	var cfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		dims := int32(e.dimensions) //nolint:gosec // dimensions are bounded
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedder: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini embedder: empty embedding at position %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
