// Package provider selects and constructs the model backend at runtime. A
// Provider pairs a chat model with the embedder that lives in the same
// vendor's embedding space, so ingestion and querying stay consistent.
// Supported backends: OpenRouter, Google Gemini, OpenAI, Ollama, Volcengine Ark.
package provider

import (
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/docqa-go/internal/rag"
)

// ErrMissingAPIKey is returned by Config.Validate when the selected backend
// needs a credential that was not supplied.
var ErrMissingAPIKey = errors.New("provider: missing API key")

// Backend enumerates the supported model providers.
type Backend string

const (
	// BackendOpenRouter selects OpenRouter's OpenAI-compatible API.
	BackendOpenRouter Backend = "openrouter"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
)

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature float32 = 0.7

// Provider is the capability both processes are parameterised over.
type Provider interface {
	// Name returns the backend identifier (e.g. "openrouter").
	Name() string
	// Embedder returns the embedder used for both documents and queries.
	Embedder() rag.Embedder
	// ChatModel returns the generation model.
	ChatModel() model.BaseChatModel
}

// backendDefaults holds the per-backend values applied when the caller leaves
// a field empty.
type backendDefaults struct {
	keyEnv       string
	baseURL      string
	chatModel    string
	embedModel   string
	embedBaseURL string
}

var defaults = map[Backend]backendDefaults{
	BackendOpenRouter: {
		keyEnv:       "OPEN_ROUTER_API_KEY",
		baseURL:      "https://openrouter.ai/api/v1",
		chatModel:    "google/gemini-2.5-flash",
		embedModel:   "sentence-transformers/all-minilm-l6-v2",
		embedBaseURL: "https://openrouter.ai/api/v1",
	},
	BackendGemini: {
		keyEnv:     "GOOGLE_API_KEY",
		chatModel:  "gemini-2.5-flash",
		embedModel: "text-embedding-004",
	},
	BackendOpenAI: {
		keyEnv:       "OPENAI_API_KEY",
		baseURL:      "https://api.openai.com/v1",
		chatModel:    "gpt-4o-mini",
		embedModel:   "text-embedding-3-small",
		embedBaseURL: "https://api.openai.com/v1",
	},
	BackendOllama: {
		baseURL:      "http://localhost:11434",
		chatModel:    "llama3",
		embedModel:   "nomic-embed-text",
		embedBaseURL: "http://localhost:11434",
	},
	BackendArk: {
		keyEnv:       "ARK_API_KEY",
		baseURL:      "https://ark.cn-beijing.volces.com/api/v3",
		embedBaseURL: "https://ark.cn-beijing.volces.com/api/v3",
	},
}

// Backends lists the valid backend names in display order.
func Backends() []Backend {
	return []Backend{BackendOpenRouter, BackendGemini, BackendOpenAI, BackendOllama, BackendArk}
}

// KeyEnv returns the environment variable that carries the credential for b,
// or "" when the backend needs none.
func KeyEnv(b Backend) string {
	return defaults[b].keyEnv
}

// Config holds all provider-level configuration. Zero-valued fields are
// filled from the backend defaults by ApplyDefaults.
type Config struct {
	// Backend identifies which provider to use.
	Backend Backend

	// Model is the chat model name (e.g. "gemini-2.5-flash"). For Ark this is
	// the endpoint ID and has no default.
	Model string

	// BaseURL overrides the chat API endpoint.
	BaseURL string

	// APIKey is the credential for the selected backend.
	APIKey string

	// MaxTokens caps generated tokens per answer. Zero leaves it to the backend.
	MaxTokens int

	// Temperature controls response randomness.
	Temperature float32

	// Embedding configures the embedding half of the provider.
	Embedding EmbeddingConfig
}

// EmbeddingConfig holds the embedder settings.
type EmbeddingConfig struct {
	// Model is the embedding model name.
	Model string
	// BaseURL overrides the embeddings endpoint.
	BaseURL string
	// APIKey overrides the credential for embeddings; defaults to Config.APIKey.
	APIKey string
	// Dimensions requests a specific vector length (0 = model default).
	Dimensions int
	// BatchSize is the number of texts per request (0 = embedder.DefaultBatchSize).
	BatchSize int
	// RequestsPerSecond throttles embedding requests (0 = unlimited).
	RequestsPerSecond float64
}

// ApplyDefaults fills empty fields with the defaults of the selected backend.
// An empty Backend becomes BackendOpenRouter.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendOpenRouter
	}
	d, ok := defaults[c.Backend]
	if !ok {
		return
	}
	if c.Model == "" {
		c.Model = d.chatModel
	}
	if c.BaseURL == "" {
		c.BaseURL = d.baseURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = d.embedModel
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = d.embedBaseURL
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.APIKey
	}
}

// Validate checks that the config is complete for the selected backend. It
// performs no network activity.
func (c *Config) Validate() error {
	d, ok := defaults[c.Backend]
	if !ok {
		return fmt.Errorf("provider: unknown backend %q: valid values are %v", c.Backend, Backends())
	}
	if d.keyEnv != "" && c.APIKey == "" {
		return fmt.Errorf("%w: %s is required for the %s backend", ErrMissingAPIKey, d.keyEnv, c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("provider: MODEL_NAME is required for the %s backend", c.Backend)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("provider: EMBEDDING_MODEL is required for the %s backend", c.Backend)
	}
	if c.Backend != BackendGemini && c.Embedding.BaseURL == "" {
		return fmt.Errorf("provider: EMBEDDING_ENDPOINT is required for the %s backend", c.Backend)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("provider: temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("provider: embedding dimensions must not be negative")
	}
	return nil
}
