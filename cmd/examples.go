package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/output"
)

func newExamplesCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List the marked example answers",
		Long: `List the available example corpora and the examples in the selected one.
Use --full to print each example's complete text.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			names, err := examples.List(cfg.CorpusDir)
			if err != nil {
				return fmt.Errorf("failed to list corpora: %w", err)
			}
			corpus, err := examples.Load(cfg.Corpus, cfg.CorpusDir)
			if err != nil {
				return fmt.Errorf("failed to load example corpus: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Available corpora: %v\n\n", names)
			_, _ = headingColor.Fprintf(out, "%s", corpus.Name)
			if corpus.Description != "" {
				_, _ = fmt.Fprintf(out, " - %s", corpus.Description)
			}
			_, _ = fmt.Fprintf(out, "\nExamples: %d\n\n", corpus.Len())

			for i, ex := range corpus.Examples {
				_, _ = fmt.Fprintf(out, "  %d. %s", i+1, ex.Label)
				if ex.Band != "" {
					_, _ = fmt.Fprintf(out, " (band %s)", ex.Band)
				}
				_, _ = fmt.Fprintf(out, ", %d characters\n", len([]rune(ex.Text)))
				if full {
					_, _ = fmt.Fprintf(out, "\n%s\n\n", ex.Text)
				} else {
					_, _ = faintColor.Fprintf(out, "%s\n\n", output.Truncate(ex.Text, 120))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print the full example texts")

	return cmd
}
