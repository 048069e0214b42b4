package assistant

import (
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Template is the fixed prompt sent for every question. {context} receives
// the formatted chunks and {question} the user's question, both verbatim.
const Template = `
You are a helpful assistant for developers using LangChain.
Answer the question based only on the following context.
If you don't know the answer, just say that you don't know.

Context:
{context}

Question:
{question}
`

// Template variable names.
const (
	varContext  = "context"
	varQuestion = "question"
)

// NewPromptTemplate returns the chat template as a single user message.
func NewPromptTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString, schema.UserMessage(Template))
}

// FormatDocuments joins chunk contents with a blank line, in retrieval order.
func FormatDocuments(docs []rag.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}
