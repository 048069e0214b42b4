package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Node names as they appear in traces.
const (
	graphName    = "docqa_assistant"
	nodeRetrieve = "retrieve"
	nodePrompt   = "prompt"
	nodeBudget   = "budget"
	nodeModel    = "chat_model"
)

// retrieval collects what the retrieve node fetched for one question.
type retrieval struct {
	docs []rag.Document
}

type retrievalKey struct{}

func withRetrieval(ctx context.Context, r *retrieval) context.Context {
	return context.WithValue(ctx, retrievalKey{}, r)
}

func retrievalFrom(ctx context.Context) *retrieval {
	r, _ := ctx.Value(retrievalKey{}).(*retrieval)
	return r
}

// buildChain compiles question → retrieve → prompt → budget → model.
func buildChain(ctx context.Context, retriever rag.Retriever, cm model.BaseChatModel, topK, maxTokens int) (compose.Runnable[string, *schema.Message], error) {
	retrieve := func(ctx context.Context, question string) (map[string]any, error) {
		docs, err := retriever.Retrieve(ctx, question, topK)
		if err != nil {
			return nil, fmt.Errorf("assistant: retrieve: %w", err)
		}
		if r := retrievalFrom(ctx); r != nil {
			r.docs = docs
		}
		logging.FromContext(ctx).Debug("assistant: retrieved context",
			slog.Int("documents", len(docs)),
			slog.Int("top_k", topK),
		)
		return map[string]any{
			varContext:  FormatDocuments(docs),
			varQuestion: question,
		}, nil
	}

	check := func(ctx context.Context, msgs []*schema.Message) ([]*schema.Message, error) {
		usage := budget.Check(msgs, maxTokens)
		log := logging.FromContext(ctx)
		if usage.Over() {
			log.Warn("assistant: prompt exceeds token budget",
				slog.Int("estimated_tokens", usage.Tokens),
				slog.Int("limit", usage.Limit),
			)
		} else {
			log.Debug("assistant: prompt size", slog.Int("estimated_tokens", usage.Tokens))
		}
		return msgs, nil
	}

	chain := compose.NewChain[string, *schema.Message]()
	chain.
		AppendLambda(compose.InvokableLambda(retrieve), compose.WithNodeName(nodeRetrieve)).
		AppendChatTemplate(NewPromptTemplate(), compose.WithNodeName(nodePrompt)).
		AppendLambda(compose.InvokableLambda(check), compose.WithNodeName(nodeBudget)).
		AppendChatModel(cm, compose.WithNodeName(nodeModel))

	r, err := chain.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("assistant: compile chain: %w", err)
	}
	return r, nil
}
