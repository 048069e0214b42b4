package provider

import (
	"context"
	"fmt"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/rag"
)

// maxTokensPtr returns nil for zero so the backend applies its own default.
func maxTokensPtr(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// newOpenAICompatible builds the chat model and embedder for backends that
// speak the OpenAI REST dialect (OpenRouter and OpenAI itself).
func newOpenAICompatible(ctx context.Context, cfg *Config) (model.BaseChatModel, rag.Embedder, error) {
	temp := cfg.Temperature
	chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   maxTokensPtr(cfg.MaxTokens),
		Temperature: &temp,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provider: %s chat model: %w", cfg.Backend, err)
	}
	emb := embedder.NewOpenAIEmbedder(&embedder.OpenAIConfig{
		Provider:   string(cfg.Backend),
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	return chat, emb, nil
}

// newGemini builds a Gemini chat model and embedder sharing one genai client.
func newGemini(ctx context.Context, cfg *Config) (model.BaseChatModel, rag.Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provider: failed to create Gemini client: %w", err)
	}

	temp := cfg.Temperature
	chat, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client:      client,
		Model:       cfg.Model,
		MaxTokens:   maxTokensPtr(cfg.MaxTokens),
		Temperature: &temp,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provider: gemini chat model: %w", err)
	}

	// A distinct embedding key needs its own client.
	embClient := client
	if cfg.Embedding.APIKey != "" && cfg.Embedding.APIKey != cfg.APIKey {
		embClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Embedding.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("provider: failed to create Gemini embedding client: %w", err)
		}
	}
	emb, err := embedder.NewGeminiEmbedder(&embedder.GeminiConfig{
		Client:     embClient,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provider: %w", err)
	}
	return chat, emb, nil
}

// newOllama builds a chat model and embedder backed by a local Ollama instance.
// Only the temperature is pinned; other sampling options keep the model's
// defaults.
func newOllama(ctx context.Context, cfg *Config) (model.BaseChatModel, rag.Embedder, error) {
	chat, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Options: &einoollama.Options{Temperature: cfg.Temperature},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provider: ollama chat model: %w", err)
	}
	emb := embedder.NewOllamaEmbedder(&embedder.OllamaConfig{
		Host:  cfg.Embedding.BaseURL,
		Model: cfg.Embedding.Model,
	})
	return chat, emb, nil
}

// newArk builds a Volcengine Ark chat model. Ark exposes an OpenAI-compatible
// embeddings endpoint, so the embedder reuses the OpenAI HTTP client.
func newArk(ctx context.Context, cfg *Config) (model.BaseChatModel, rag.Embedder, error) {
	temp := cfg.Temperature
	chat, err := einoark.NewChatModel(ctx, &einoark.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   maxTokensPtr(cfg.MaxTokens),
		Temperature: &temp,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provider: ark chat model: %w", err)
	}
	emb := embedder.NewOpenAIEmbedder(&embedder.OpenAIConfig{
		Provider:   string(BackendArk),
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	return chat, emb, nil
}
