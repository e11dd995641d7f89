package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/scorer"
)

// Evaluator grades a single answer.
type Evaluator interface {
	Evaluate(ctx context.Context, req grader.Request) (*grader.Evaluation, error)
}

// ProgressFunc is called before each submission is graded.
type ProgressFunc func(id string, index, total int)

// Runner grades submissions sequentially.
type Runner struct {
	evaluator Evaluator
	outputDir string
	progress  ProgressFunc
}

// NewRunner creates a Runner that writes run directories below outputDir.
func NewRunner(evaluator Evaluator, outputDir string) *Runner {
	return &Runner{
		evaluator: evaluator,
		outputDir: outputDir,
	}
}

// SetProgressFunc sets the progress callback.
func (r *Runner) SetProgressFunc(fn ProgressFunc) {
	r.progress = fn
}

// Run grades every submission with the settings in tmpl; Question and StudentAnswer
// of tmpl are replaced per submission. A failed submission is recorded and the run
// continues. The run stops early when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, name string, submissions []Submission, tmpl grader.Request) (*Run, error) {
	if len(submissions) == 0 {
		return nil, fmt.Errorf("no submissions to grade")
	}
	if err := checkFeedbackFiles(submissions); err != nil {
		return nil, err
	}
	if name == "" {
		name = "batch"
	}

	timestamp := time.Now()
	runID := fmt.Sprintf("%s_%s", sanitizeFilename(strings.ReplaceAll(name, " ", "_")), timestamp.Format("20060102-150405"))

	outputPath := filepath.Join(r.outputDir, runID)
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	run := &Run{
		ID:        runID,
		UUID:      runUUID.String(),
		Name:      name,
		Timestamp: timestamp,
		OutputDir: outputPath,
		Template:  tmpl.Template,
		Model:     tmpl.Model,
		Results:   make([]Result, 0, len(submissions)),
	}

	slog.Info("starting batch", "run", runID, "submissions", len(submissions))

	for i, sub := range submissions {
		// Check for context cancellation between submissions.
		if err := ctx.Err(); err != nil {
			slog.Warn("batch cancelled", "run", runID, "completed", i, "total", len(submissions))
			break
		}

		if r.progress != nil {
			r.progress(sub.ID, i+1, len(submissions))
		}

		run.Results = append(run.Results, r.grade(ctx, outputPath, sub, tmpl))
	}

	run.Duration = time.Since(timestamp)

	if err := writeManifest(outputPath, run); err != nil {
		return nil, fmt.Errorf("failed to write run manifest: %w", err)
	}

	slog.Info("batch complete",
		"run", runID,
		"graded", len(run.Results)-run.Failed(),
		"failed", run.Failed(),
		"duration", run.Duration,
	)
	return run, nil
}

func (r *Runner) grade(ctx context.Context, outputPath string, sub Submission, tmpl grader.Request) Result {
	start := time.Now()
	req := tmpl
	req.Question = sub.Question
	req.StudentAnswer = sub.Answer

	result := Result{Submission: sub}

	eval, err := r.evaluator.Evaluate(ctx, req)
	result.Duration = time.Since(start)
	if err != nil {
		slog.Error("submission grading failed", "id", sub.ID, "error", err)
		result.Error = peelerrors.UserMessage(err)
		return result
	}

	file := filepath.Join(outputPath, feedbackFileName(sub.ID))
	if err := os.WriteFile(file, []byte(eval.Feedback), 0o644); err != nil {
		slog.Error("failed to write feedback", "id", sub.ID, "error", err)
		result.Error = fmt.Sprintf("failed to write feedback: %v", err)
		return result
	}

	result.Feedback = eval.Feedback
	result.FeedbackFile = filepath.Base(file)
	if score, ok := scorer.Parse(eval.Feedback); ok {
		result.Score = &score
	} else {
		slog.Warn("no score found in feedback", "id", sub.ID)
	}
	for _, m := range eval.Examples {
		result.Examples = append(result.Examples, m.Example.Label)
	}
	return result
}

// feedbackFileName is the name of the file holding the feedback for id.
func feedbackFileName(id string) string {
	return sanitizeFilename(id) + ".txt"
}

// checkFeedbackFiles rejects submissions whose feedback would land in the same file.
func checkFeedbackFiles(submissions []Submission) error {
	seen := make(map[string]string, len(submissions))
	for _, sub := range submissions {
		file := feedbackFileName(sub.ID)
		if prev, ok := seen[file]; ok {
			return fmt.Errorf("submissions %q and %q share the feedback file %s", prev, sub.ID, file)
		}
		seen[file] = sub.ID
	}
	return nil
}

// sanitizeFilename replaces characters unsafe for filenames with underscores.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

type manifest struct {
	*Run
	FullDuration float64          `json:"full_duration"`
	Summary      scorer.Summary   `json:"summary"`
	Items        []manifestResult `json:"results"`
}

type manifestResult struct {
	Result
	Duration float64 `json:"duration"`
}

func writeManifest(outputPath string, run *Run) error {
	items := make([]manifestResult, 0, len(run.Results))
	for _, res := range run.Results {
		items = append(items, manifestResult{Result: res, Duration: res.Duration.Seconds()})
	}

	data, err := json.MarshalIndent(manifest{
		Run:          run,
		FullDuration: run.Duration.Seconds(),
		Summary:      run.Summary(),
		Items:        items,
	}, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(outputPath, "resultset.json"), data, 0o644)
}
