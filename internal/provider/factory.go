package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/rag"
)

// bundle is the Provider returned by New.
type bundle struct {
	name string
	chat model.BaseChatModel
	emb  rag.Embedder
}

func (b *bundle) Name() string                   { return b.name }
func (b *bundle) Embedder() rag.Embedder         { return b.emb }
func (b *bundle) ChatModel() model.BaseChatModel { return b.chat }

// ConfigFromEnv builds a Config from environment variables. MODEL_PROVIDER
// selects the backend; each backend reads its own native credential variable.
//
// Environment variables:
//
//	MODEL_PROVIDER       = openrouter | gemini | openai | ollama | ark (default: openrouter)
//	MODEL_NAME           chat model (default per backend)
//	MODEL_BASE_URL       chat endpoint override (OLLAMA_HOST and ARK_BASE_URL also honoured)
//	MODEL_TEMPERATURE    default 0.7
//	MODEL_MAX_TOKENS     default: backend default
//
//	OpenRouter: OPEN_ROUTER_API_KEY
//	Gemini:     GOOGLE_API_KEY
//	OpenAI:     OPENAI_API_KEY
//	Ark:        ARK_API_KEY
//
//	EMBEDDING_MODEL, EMBEDDING_ENDPOINT, EMBEDDING_API_KEY, EMBEDDING_DIMENSIONS,
//	EMBEDDING_BATCH_SIZE, EMBEDDING_RPS
func ConfigFromEnv() *Config {
	backend := Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOpenRouter)))

	baseURL := os.Getenv("MODEL_BASE_URL")
	switch {
	case baseURL != "":
	case backend == BackendOllama:
		baseURL = os.Getenv("OLLAMA_HOST")
	case backend == BackendArk:
		baseURL = os.Getenv("ARK_BASE_URL")
	}

	var apiKey string
	if env := KeyEnv(backend); env != "" {
		apiKey = os.Getenv(env)
	}

	embedURL := os.Getenv("EMBEDDING_ENDPOINT")
	if embedURL == "" {
		embedURL = baseURL
	}

	cfg := &Config{
		Backend:     backend,
		Model:       os.Getenv("MODEL_NAME"),
		BaseURL:     baseURL,
		APIKey:      apiKey,
		MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 0),
		Temperature: getEnvFloat32("MODEL_TEMPERATURE", DefaultTemperature),
		Embedding: EmbeddingConfig{
			Model:             os.Getenv("EMBEDDING_MODEL"),
			BaseURL:           embedURL,
			APIKey:            os.Getenv("EMBEDDING_API_KEY"),
			Dimensions:        getEnvInt("EMBEDDING_DIMENSIONS", 0),
			BatchSize:         getEnvInt("EMBEDDING_BATCH_SIZE", embedder.DefaultBatchSize),
			RequestsPerSecond: getEnvFloat64("EMBEDDING_RPS", 0),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// New constructs a Provider from an explicit Config, delegating to the
// appropriate backend constructor. It validates the config first so callers
// get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (Provider, error) {
	return NewWithBatchHook(ctx, cfg, nil)
}

// NewWithBatchHook is New with a callback invoked after every successful
// embedding batch (used for progress metrics).
func NewWithBatchHook(ctx context.Context, cfg *Config, onBatch func(n int)) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		chat model.BaseChatModel
		emb  rag.Embedder
		err  error
	)
	switch cfg.Backend {
	case BackendOpenRouter, BackendOpenAI:
		chat, emb, err = newOpenAICompatible(ctx, cfg)
	case BackendGemini:
		chat, emb, err = newGemini(ctx, cfg)
	case BackendOllama:
		chat, emb, err = newOllama(ctx, cfg)
	case BackendArk:
		chat, emb, err = newArk(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q: valid values are %v", cfg.Backend, Backends())
	}
	if err != nil {
		return nil, err
	}

	return &bundle{
		name: string(cfg.Backend),
		chat: chat,
		emb: embedder.NewBatched(emb, &embedder.BatchConfig{
			Size:              cfg.Embedding.BatchSize,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			OnBatch:           onBatch,
		}),
	}, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
