// Package grader runs one evaluation of a student answer: validate the input,
// retrieve similar marked examples, render the prompt and ask the model once.
package grader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/giantswarm/peel-evaluator/internal/llm"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/prompt"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
)

// Default evaluation settings.
const (
	DefaultTemperature = 0.0
	DefaultK           = 3
	MaxTemperature     = 1.0
)

// Evaluation states, logged as the request progresses.
const (
	StateRetrieving = "retrieving examples"
	StateAwaiting   = "awaiting completion"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Config holds the defaults applied when a request leaves a field unset.
type Config struct {
	Model       string
	Temperature float64
	K           int
	Template    string

	// DisableExamples turns retrieval off unless a request asks for it.
	DisableExamples bool
}

// Request is one answer to evaluate. Empty or nil fields fall back to Config.
type Request struct {
	Question      string
	StudentAnswer string
	Model         string
	Temperature   *float64

	// K is the number of examples; nil selects the configured default, which is
	// clamped to the corpus size. An explicit K must lie in 1..corpus size.
	K           *int
	UseExamples *bool

	// Template names the prompt template. When empty and examples are off,
	// prompt.PlainTemplate replaces a default that has an examples section.
	Template string
}

// Evaluation is the result of a successful round trip.
type Evaluation struct {
	Feedback    string            `json:"feedback"`
	Examples    []retriever.Match `json:"examples,omitempty"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	Template    string            `json:"template"`
	Prompt      string            `json:"prompt,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

// Grader evaluates answers with a completion client and an example index.
type Grader struct {
	client llm.Client
	index  *retriever.Index
	config Config
}

// New creates a Grader. A nil client or index means that part is not configured;
// requests needing it fail with a configuration error before any network call.
func New(client llm.Client, index *retriever.Index, config Config) *Grader {
	if config.Model == "" {
		config.Model = llm.DefaultModel
	}
	if config.K <= 0 {
		config.K = DefaultK
	}
	if config.Template == "" {
		config.Template = prompt.DefaultTemplate
	}
	return &Grader{client: client, index: index, config: config}
}

// Config returns the defaults in effect.
func (g *Grader) Config() Config {
	return g.config
}

// Index returns the example index, which may be nil.
func (g *Grader) Index() *retriever.Index {
	return g.index
}

// Evaluate grades one answer. It either returns feedback or an error, never both.
func (g *Grader) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	start := time.Now()

	if strings.TrimSpace(req.Question) == "" {
		return nil, peelerrors.NewValidationError("question", "Please enter the question.")
	}
	if strings.TrimSpace(req.StudentAnswer) == "" {
		return nil, peelerrors.NewValidationError("student_answer", "Please enter the student's answer.")
	}

	useExamples := !g.config.DisableExamples
	if req.UseExamples != nil {
		useExamples = *req.UseExamples
	}

	tmpl, err := prompt.Lookup(firstNonEmpty(req.Template, g.config.Template))
	if err != nil {
		return nil, err
	}
	if !useExamples && req.Template == "" && tmpl.UsesExamples() {
		if tmpl, err = prompt.Lookup(prompt.PlainTemplate); err != nil {
			return nil, err
		}
	}
	useExamples = useExamples && tmpl.UsesExamples()

	temperature := g.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0 || temperature > MaxTemperature {
		return nil, peelerrors.NewValidationError("temperature",
			fmt.Sprintf("Temperature must be between 0 and %.1f.", MaxTemperature))
	}

	if req.K != nil && *req.K < 1 {
		return nil, peelerrors.NewValidationError("k", "The number of examples must be at least 1.")
	}
	var k int
	if useExamples {
		// Range checks need a corpus; a missing index is reported as configuration below.
		if size := g.index.Size(); size > 0 {
			k = min(g.config.K, size)
			if req.K != nil {
				k = *req.K
			}
			if k > size {
				return nil, peelerrors.NewValidationError("k",
					fmt.Sprintf("The number of examples must be between 1 and %d.", size))
			}
		}
	}

	if g.client == nil {
		return nil, peelerrors.NewConfigError("OPENAI_API_KEY is not set. Configure an API key to evaluate answers.", nil)
	}
	if useExamples && (g.index == nil || g.index.Size() == 0) {
		return nil, peelerrors.NewConfigError("Example retrieval is not configured.", nil)
	}

	model := firstNonEmpty(req.Model, g.config.Model)
	logger := slog.With("model", model, "template", tmpl.Name, "use_examples", useExamples)

	var matches []retriever.Match
	inputs := prompt.Inputs{Question: req.Question, StudentAnswer: req.StudentAnswer}
	if useExamples {
		logger.Info("evaluation state", "state", StateRetrieving, "k", k)
		matches, err = g.index.Select(ctx, req.StudentAnswer, k)
		if err != nil {
			logger.Error("evaluation state", "state", StateFailed, "error", err)
			return nil, err
		}
		texts := make([]string, len(matches))
		for i, m := range matches {
			texts[i] = m.Example.Text
		}
		inputs.Examples = prompt.JoinExamples(texts)
	}

	rendered := tmpl.Render(inputs)

	logger.Info("evaluation state", "state", StateAwaiting, "temperature", temperature, "prompt_chars", len(rendered))
	resp, err := g.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:       model,
		UserMessage: rendered,
		Temperature: llm.Float64Ptr(temperature),
	})
	if err != nil {
		logger.Error("evaluation state", "state", StateFailed, "error", err)
		return nil, peelerrors.NewUpstreamError("completion", err)
	}

	eval := &Evaluation{
		Feedback:    resp.Content,
		Examples:    matches,
		Model:       model,
		Temperature: temperature,
		Template:    tmpl.Name,
		Prompt:      rendered,
		Duration:    time.Since(start),
	}
	logger.Info("evaluation state", "state", StateDone, "examples", len(matches), "duration", eval.Duration)
	return eval, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
