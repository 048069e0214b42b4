package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelFragments contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama-3",
	"mistral",
	"mixtral",
	"gemma",
	"gemini-",
	"claude",
	"deepseek",
	"qwen",
	"doubao",
}

// embeddingHints are fragments that positively identify embedding models and
// override the chat-model heuristic (e.g. "gemini-embedding-001").
var embeddingHints = []string{"embed", "minilm", "bge-", "e5-"}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, hint := range embeddingHints {
		if strings.Contains(lower, hint) {
			return false
		}
	}
	for _, frag := range knownChatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Warn logs a warning when model looks like a chat model rather than an
// embedding model.
func Warn(log *slog.Logger, backend, model string) {
	if model == "" || !looksLikeChatModel(model) {
		return
	}
	log.Warn("embedder: embedding model looks like a chat model, not an embedding model",
		slog.String("backend", backend),
		slog.String("model", model),
		slog.String("hint", "use a dedicated embedding model e.g. text-embedding-004, sentence-transformers/all-minilm-l6-v2"),
	)
}
