package commands

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
)

// NewAskCmd constructs the `docqa ask` command, which answers a single
// question and exits.
func NewAskCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question about the ingested documentation",
		Long: `Answer a single question using the index built by 'docqa ingest' and
stream the answer to stdout. All arguments are joined into one question.

Examples:
  docqa ask "What is an agent?"
  docqa ask --top-k 2 how do tools work`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("ask: question must not be empty")
			}

			sess, err := newSession(ctx, log, opts)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			if _, err := sess.assistant.Answer(ctx, question, out); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			_, err = fmt.Fprintln(out)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.indexDir, "index", "", "Index directory (default: $INDEX_DIR or docqa_index)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Chunks retrieved (default: $RETRIEVER_TOP_K or 4)")
	cmd.Flags().BoolVar(&opts.allowMismatch, "allow-mismatch", false, "Query an index built with a different embedding model")

	return cmd
}
