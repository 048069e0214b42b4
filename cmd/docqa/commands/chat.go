package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/assistant"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/server"
)

// NewChatCmd constructs the `docqa chat` command, the interactive question
// loop over the ingested index.
func NewChatCmd() *cobra.Command {
	var (
		opts        queryOptions
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about the ingested documentation interactively",
		Long: `Load the index built by 'docqa ingest' and answer questions in a loop.
Each answer is generated only from the chunks retrieved for that question.
Type 'exit' (any case) or send end-of-input to quit.

The embedding provider and model must match the ones used for ingestion;
use --allow-mismatch to query an index built with a different embedder.

Examples:
  docqa chat
  docqa chat --top-k 6
  docqa chat --metrics-addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			sess, err := newSession(ctx, log, opts)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer sess.Close()

			if metricsAddr != "" {
				srv, err := server.New(&server.Config{
					Addr:            metricsAddr,
					Logger:          log,
					Pingers:         []server.Pinger{sess.index.pinger},
					MetricsRegistry: sess.registry,
					MetricsGatherer: sess.registry,
				})
				if err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				srvDone := make(chan error, 1)
				go func() { srvDone <- srv.Start(ctx) }()
				defer func() {
					stop()
					if err := <-srvDone; err != nil {
						log.Error("chat: ops server", slog.Any("error", err))
					}
				}()
			}

			err = assistant.RunREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), sess.assistant)
			if isCancelled(err) && ctx.Err() != nil {
				log.Info("chat: interrupted")
				return nil
			}
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.indexDir, "index", "", "Index directory (default: $INDEX_DIR or docqa_index)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Chunks retrieved per question (default: $RETRIEVER_TOP_K or 4)")
	cmd.Flags().BoolVar(&opts.allowMismatch, "allow-mismatch", false, "Query an index built with a different embedding model")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address")

	return cmd
}
