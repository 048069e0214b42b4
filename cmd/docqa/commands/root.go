// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/audit"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/logging"
)

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa: ask questions about LangChain documentation",
		Long: `docqa is a small retrieval-augmented Q&A assistant.

'docqa ingest' fetches a documentation page, splits it into overlapping chunks,
embeds them and stores the vectors in a local index. 'docqa chat' loads that
index and answers questions using only the retrieved context.

Model provider is selected via the MODEL_PROVIDER environment variable, a .env
file in the working directory, or a YAML config file (~/.docqa/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.LoadDotEnv(""); err != nil {
				return err
			}

			log := logging.New()

			// Env vars always override YAML values.
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			audit.LogCommandStart(ctx, log, cmd.Name(), path)
			cmd.SetContext(logging.WithLogger(ctx, log))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docqa/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewChatCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
