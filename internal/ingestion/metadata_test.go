package ingestion

import "testing"

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		site    string
		version string
		section string
		docType string
	}{
		// ── LangChain ───────────────────────────────────────────────────
		{
			name:    "langchain versioned module page",
			url:     "https://python.langchain.com/v0.1/docs/modules/agents/",
			site:    "langchain",
			version: "v0.1",
			section: "modules/agents",
			docType: "reference",
		},
		{
			name:    "langchain how-to guide",
			url:     "https://python.langchain.com/docs/how_to/streaming/",
			site:    "langchain",
			section: "how_to/streaming",
			docType: "guide",
		},
		{
			name:    "langchain tutorial",
			url:     "https://python.langchain.com/v0.2/docs/tutorials/rag/",
			site:    "langchain",
			version: "v0.2",
			section: "tutorials/rag",
			docType: "tutorial",
		},
		{
			name:    "langchainjs get started",
			url:     "https://js.langchain.com/v0.1/docs/get_started/quickstart",
			site:    "langchainjs",
			version: "v0.1",
			section: "get_started/quickstart",
			docType: "tutorial",
		},
		// ── Other sites ─────────────────────────────────────────────────
		{
			name:    "python docs stable",
			url:     "https://docs.python.org/3/library/asyncio.html",
			site:    "python",
			section: "3/library/asyncio.html",
			docType: "reference",
		},
		{
			name:    "api reference",
			url:     "https://api.example.dev/latest/api/embeddings",
			site:    "api",
			version: "latest",
			section: "api/embeddings",
			docType: "api",
		},
		{
			name:    "unknown host strips www",
			url:     "https://www.example.com/some/random/page",
			site:    "example",
			section: "some/random/page",
			docType: "reference",
		},
		// ── Fallback ────────────────────────────────────────────────────
		{
			name:    "malformed URL",
			url:     "://not-a-url",
			site:    "generic",
			docType: "reference",
		},
		{
			name:    "empty string",
			url:     "",
			site:    "generic",
			docType: "reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := InferMetadata(tt.url)

			if got.Site != tt.site {
				t.Errorf("Site: got %q, want %q", got.Site, tt.site)
			}
			if got.Version != tt.version {
				t.Errorf("Version: got %q, want %q", got.Version, tt.version)
			}
			if got.Section != tt.section {
				t.Errorf("Section: got %q, want %q", got.Section, tt.section)
			}
			if got.DocType != tt.docType {
				t.Errorf("DocType: got %q, want %q", got.DocType, tt.docType)
			}
		})
	}
}
