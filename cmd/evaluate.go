package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/output"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/scorer"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow)
	faintColor   = color.New(color.Faint)
)

func newEvaluateCmd() *cobra.Command {
	var (
		question     string
		questionFile string
		answer       string
		answerFile   string
		outputPath   string
		copyOut      bool
		raw          bool
		showExamples bool
		showPrompt   bool
		width        int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one student answer",
		Long: `Evaluate a single student answer and print the feedback.

The question and answer are given inline or read from files; a file name of "-"
reads from standard input. The most similar marked examples are retrieved and
included in the prompt unless --no-examples is set.`,
		Example: `  peel-evaluator evaluate --question "How is ambition presented?" --answer-file essay.txt
  cat essay.txt | peel-evaluator evaluate --question-file q.txt --answer-file - -k 2 --show-examples`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readInput(cmd.InOrStdin(), question, questionFile)
			if err != nil {
				return fmt.Errorf("failed to read question: %w", err)
			}
			a, err := readInput(cmd.InOrStdin(), answer, answerFile)
			if err != nil {
				return fmt.Errorf("failed to read answer: %w", err)
			}

			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !app.cfg.HasAPIKey() {
				_, _ = warnColor.Fprintln(cmd.ErrOrStderr(), "OPENAI_API_KEY is not set. Add it to your environment or .env file.")
			}

			req := evaluationRequest(cmd, app.cfg)
			req.Question = q
			req.StudentAnswer = a

			eval, err := app.grader.Evaluate(cmd.Context(), req)
			if err != nil {
				slog.Debug("evaluation failed", "error", err)
				return errors.New(peelerrors.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			if showExamples {
				printMatches(out, eval)
			}
			if showPrompt {
				_, _ = headingColor.Fprintln(out, "Prompt")
				_, _ = fmt.Fprintln(out, eval.Prompt)
				_, _ = fmt.Fprintln(out)
			}

			feedback := eval.Feedback
			if !raw {
				rendered, err := output.RenderMarkdown(feedback, width, "")
				if err != nil {
					_, _ = warnColor.Fprintf(cmd.ErrOrStderr(), "Could not render markdown: %v\n", err)
				} else {
					feedback = rendered
				}
			}
			_, _ = fmt.Fprintln(out, feedback)
			if score, ok := scorer.Parse(eval.Feedback); ok {
				_, _ = headingColor.Fprintf(out, "Score: %g/%g (%.0f%%)\n", score.Awarded, score.Total, score.Percent)
			}
			_, _ = faintColor.Fprintf(out, "model %s · temperature %.1f · template %s · %d examples · %s\n",
				eval.Model, eval.Temperature, eval.Template, len(eval.Examples), eval.Duration.Round(time.Millisecond))

			if outputPath != "" {
				path, err := output.WriteFeedback(outputPath, eval.Feedback)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Feedback written to %s\n", path)
			}
			if copyOut {
				if err := output.CopyToClipboard(eval.Feedback); err != nil {
					_, _ = warnColor.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
				} else {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Feedback copied to clipboard")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "The question the student answered")
	cmd.Flags().StringVar(&questionFile, "question-file", "", "Read the question from a file (- for stdin)")
	cmd.Flags().StringVar(&answer, "answer", "", "The student's answer")
	cmd.Flags().StringVar(&answerFile, "answer-file", "", "Read the answer from a file (- for stdin)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Also write the raw feedback to this file or directory")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy the raw feedback to the clipboard")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the feedback without markdown rendering")
	cmd.Flags().BoolVar(&showExamples, "show-examples", false, "Print the examples used for this evaluation")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the rendered prompt")
	cmd.Flags().IntVar(&width, "width", 100, "Word wrap width for rendered feedback (0 disables wrapping)")
	cmd.MarkFlagsMutuallyExclusive("question", "question-file")
	cmd.MarkFlagsMutuallyExclusive("answer", "answer-file")
	addEvaluationFlags(cmd)

	return cmd
}

// readInput returns inline when file is empty, otherwise the contents of file.
// A file of "-" reads stdin.
func readInput(stdin io.Reader, inline, file string) (string, error) {
	switch file {
	case "":
		return inline, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func printMatches(w io.Writer, eval *grader.Evaluation) {
	if len(eval.Examples) == 0 {
		return
	}
	_, _ = headingColor.Fprintln(w, "Examples used for this evaluation")
	for _, m := range eval.Examples {
		label := m.Example.Label
		if m.Example.Band != "" {
			label += " (" + m.Example.Band + ")"
		}
		_, _ = fmt.Fprintf(w, "#%d %s · similarity %.3f\n", m.Rank, label, m.Score)
		_, _ = faintColor.Fprintln(w, strings.TrimSpace(output.Truncate(m.Example.Text, output.SelectedPreviewChars)))
		_, _ = fmt.Fprintln(w)
	}
}
