package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/peel-evaluator/internal/batch"
)

func newBatchCmd() *cobra.Command {
	var (
		name      string
		outputDir string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch <submissions.csv>",
		Short: "Evaluate a CSV file of student submissions",
		Long: `Evaluate every submission in a CSV file with the columns ID, Question and Answer.

Feedback is written to the output directory as one text file per submission with a
JSON manifest. A submission that fails is recorded in the manifest and the batch
continues with the next one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			submissions, err := batch.LoadSubmissions(args[0])
			if err != nil {
				return err
			}

			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !app.cfg.HasAPIKey() {
				return errors.New("OPENAI_API_KEY is not set. Configure an API key to evaluate answers")
			}

			out := cmd.OutOrStdout()
			r := batch.NewRunner(app.grader, outputDir)
			r.SetProgressFunc(func(id string, idx, total int) {
				_, _ = fmt.Fprintf(out, "\r  Evaluating submission %d/%d (%s)...", idx, total, id)
			})

			tmpl := evaluationRequest(cmd, app.cfg)
			_, _ = headingColor.Fprintf(out, "Batch: %s\n", name)
			_, _ = fmt.Fprintf(out, "Submissions: %d\n", len(submissions))
			_, _ = fmt.Fprintf(out, "Model: %s (temperature: %.1f, template: %s)\n\n", tmpl.Model, app.cfg.Temperature, tmpl.Template)

			run, err := r.Run(ctx, name, submissions, tmpl)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "\n\nBatch completed.\n")
			_, _ = fmt.Fprintf(out, "Run ID: %s\n", run.ID)
			_, _ = fmt.Fprintf(out, "Duration: %s\n", run.Duration.Round(time.Millisecond))
			_, _ = fmt.Fprintf(out, "Results: %s\n", run.OutputDir)
			if summary := run.Summary(); summary.MeanAwarded != nil {
				_, _ = fmt.Fprintf(out, "Mean score: %.2f (%.1f%%, min %g, max %g, %d unscored)\n",
					*summary.MeanAwarded, *summary.MeanPercent, *summary.MinAwarded, *summary.MaxAwarded, summary.Unscored)
			}
			for _, res := range run.Results {
				if res.Error != "" {
					_, _ = warnColor.Fprintf(out, "  - %s: %s\n", res.Submission.ID, res.Error)
				}
			}

			slog.Info("batch run complete", "run_id", run.ID, "uuid", run.UUID)

			if skipped := len(submissions) - len(run.Results); skipped > 0 {
				return fmt.Errorf("batch stopped early: %d submissions were not evaluated: %w", skipped, ctx.Err())
			}
			if failed := run.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d submissions failed", failed, len(run.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "batch", "Name of the run, used for the output directory")
	cmd.Flags().StringVar(&outputDir, "output-dir", "results", "Directory for batch results")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout for the batch (e.g. 30m, 1h). 0 means no timeout")
	addEvaluationFlags(cmd)

	return cmd
}
