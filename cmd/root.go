package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/peel-evaluator/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "peel-evaluator",
	Short: "Evaluate student answers against the PEEL rubric",
	Long: `peel-evaluator grades a student's written answer with a chat completion model.
The prompt is steered by the marked example answers most similar to the one being
graded, found with an in-memory embedding index over the example corpus.

It serves a browser UI, a JSON API and MCP tools, and can also grade single answers
or CSV files of submissions from the command line.

When run without subcommands, it starts the HTTP server (equivalent to 'peel-evaluator serve').`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			// stderr keeps stdout clean for the stdio MCP transport.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
	},
}

// serveCmd is stored so the root command can delegate to it by default.
var serveCmd *cobra.Command

var (
	buildCommit = "unknown"
	buildDate   = "unknown"
)

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// SetBuildInfo sets the commit and build date for the version command.
func SetBuildInfo(commit, date string) {
	buildCommit = commit
	buildDate = date
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "peel-evaluator version %s\n" .Version}}`)

	// Default to the serve command when invoked without arguments.
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stderr, "No subcommand specified. Defaulting to 'serve' (HTTP transport).")
		fmt.Fprintln(os.Stderr)
		if err := serveCmd.RunE(serveCmd, args); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	serveCmd = newServeCmd()
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newExamplesCmd())

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String(config.KeyAPIKey, "", "OpenAI API key (or set OPENAI_API_KEY)")
	rootCmd.PersistentFlags().String(config.KeyBaseURL, "", "OpenAI-compatible API base URL (or set OPENAI_BASE_URL)")
	rootCmd.PersistentFlags().String(config.KeyCorpus, "", "Example corpus name (default: peel)")
	rootCmd.PersistentFlags().String(config.KeyCorpusDir, "", "External example corpora directory (optional)")
	rootCmd.PersistentFlags().Bool(config.KeyOfflineEmbeddings, false, "Use deterministic local embeddings instead of the embeddings API")
}
