// Package batch grades a file of student submissions one after another and writes
// the feedback for each one into a run directory.
package batch

import (
	"time"

	"github.com/giantswarm/peel-evaluator/internal/scorer"
)

// Submission is one student answer to grade.
type Submission struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Result is the outcome of grading one submission. Exactly one of Feedback and
// Error is set.
type Result struct {
	Submission   Submission    `json:"submission"`
	Feedback     string        `json:"-"`
	FeedbackFile string        `json:"feedback_file,omitempty"`
	Examples     []string      `json:"examples,omitempty"`
	Score        *scorer.Score `json:"score,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"-"`
}

// Run describes a completed batch.
type Run struct {
	ID        string        `json:"id"`
	UUID      string        `json:"uuid"`
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"-"`
	OutputDir string        `json:"-"`
	Model     string        `json:"model"`
	Template  string        `json:"template"`
	Results   []Result      `json:"results"`
}

// Failed returns the number of submissions that could not be graded.
func (r *Run) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// Summary aggregates the marks stated in the feedback of graded submissions.
func (r *Run) Summary() scorer.Summary {
	scores := make([]*scorer.Score, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Error == "" {
			scores = append(scores, res.Score)
		}
	}
	return scorer.Summarize(scores)
}
