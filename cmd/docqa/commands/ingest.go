package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/metrics"
	"github.com/54b3r/docqa-go/internal/rag"
)

// NewIngestCmd constructs the `docqa ingest` command, which fetches the
// documentation page, splits and embeds it, and rebuilds the vector index.
func NewIngestCmd() *cobra.Command {
	var (
		urls     []string
		indexDir string
		extract  string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch documentation and build the vector index",
		Long: `Fetch a documentation page, split it into 1000-character chunks with a
200-character overlap, embed every chunk and write the index.

Any existing index in the target directory is replaced. If fetching or
embedding fails, the existing index is left untouched.

Environment:
  MODEL_PROVIDER       openrouter (default), gemini, openai, ollama, ark
  EMBEDDING_*          embedding model overrides (see README)
  INDEX_DIR            local index directory (default: docqa_index)
  INDEX_BACKEND        local (default) or qdrant
  QDRANT_*             Qdrant connection settings when INDEX_BACKEND=qdrant

Examples:
  docqa ingest
  docqa ingest --url https://python.langchain.com/v0.1/docs/modules/agents/ --extract readability
  docqa ingest --url https://a.example/docs --url https://b.example/docs --index ./idx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			settings, err := resolveIndex(indexDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			m := metrics.New(prometheus.NewRegistry())
			p, cfg, err := newProvider(ctx, log, m, "ingest")
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			var store rag.VectorStore
			if settings.backend == backendQdrant {
				qs, err := rag.NewQdrantStore(ctx, qdrantConfigFromEnv(cfg.Embedding.Dimensions))
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				store = qs
			} else {
				store = rag.NewLocalIndex(settings.dir)
			}
			defer store.Close()

			loader, err := ingestion.NewWebLoader(&ingestion.LoaderConfig{Extract: ingestion.ExtractMode(extract)})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(loader, p.Embedder(), store, &ingestion.Config{
				Info:     fingerprint(p, cfg),
				Progress: cmd.OutOrStdout(),
				Metrics:  m,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			sources := make([]ingestion.Source, 0, len(urls))
			for _, u := range urls {
				sources = append(sources, ingestion.Source{URL: u})
			}

			report, err := pipeline.Run(ctx, sources)
			if err != nil {
				if isCancelled(err) {
					return fmt.Errorf("ingest: interrupted: %w", err)
				}
				return err
			}
			log.Info("ingest: index written",
				slog.String("backend", settings.backend),
				slog.String("dir", settings.dir),
				slog.Int("chunks", report.Chunks),
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", []string{ingestion.DefaultURL}, "Documentation URL to ingest (repeatable)")
	cmd.Flags().StringVar(&indexDir, "index", "", "Index directory (default: $INDEX_DIR or docqa_index)")
	cmd.Flags().StringVar(&extract, "extract", string(ingestion.ExtractText), "HTML extraction mode: text or readability")

	return cmd
}
