package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/prompt"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
	"github.com/giantswarm/peel-evaluator/internal/scorer"
)

// EvaluationRequest is the body of POST /api/v1/evaluations.
type EvaluationRequest struct {
	Question      string   `json:"question"`
	StudentAnswer string   `json:"student_answer"`
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	K             *int     `json:"k,omitempty"`
	UseExamples   *bool    `json:"use_examples,omitempty"`
	Template      string   `json:"template,omitempty"`
	IncludePrompt bool     `json:"include_prompt,omitempty"`
}

// EvaluationResponse is returned by POST /api/v1/evaluations.
type EvaluationResponse struct {
	Feedback    string         `json:"feedback"`
	Examples    []MatchPayload `json:"examples"`
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	Template    string         `json:"template"`
	Score       *scorer.Score  `json:"score,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Prompt      string         `json:"prompt,omitempty"`
}

// SearchRequest is the body of POST /api/v1/examples/search.
type SearchRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

// MatchPayload is one retrieved example.
type MatchPayload struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
	Band  string  `json:"band,omitempty"`
	Text  string  `json:"text"`
}

// ExamplePayload is one corpus entry.
type ExamplePayload struct {
	Label string `json:"label"`
	Band  string `json:"band,omitempty"`
	Text  string `json:"text"`
}

func matchPayloads(matches []retriever.Match) []MatchPayload {
	out := make([]MatchPayload, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchPayload{
			Rank:  m.Rank,
			Score: m.Score,
			Label: m.Example.Label,
			Band:  m.Example.Band,
			Text:  m.Example.Text,
		})
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return peelerrors.NewValidationError("body", fmt.Sprintf("Invalid JSON body: %v", err))
	}
	return nil
}

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var body EvaluationRequest
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, r, err)
		return
	}

	eval, err := s.grader.Evaluate(r.Context(), grader.Request{
		Question:      body.Question,
		StudentAnswer: body.StudentAnswer,
		Model:         body.Model,
		Temperature:   body.Temperature,
		K:             body.K,
		UseExamples:   body.UseExamples,
		Template:      body.Template,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	resp := EvaluationResponse{
		Feedback:    eval.Feedback,
		Examples:    matchPayloads(eval.Examples),
		Model:       eval.Model,
		Temperature: eval.Temperature,
		Template:    eval.Template,
		DurationMS:  eval.Duration.Milliseconds(),
	}
	if score, ok := scorer.Parse(eval.Feedback); ok {
		resp.Score = &score
	}
	if body.IncludePrompt {
		resp.Prompt = eval.Prompt
	}
	RespondSuccess(w, http.StatusOK, resp)
}

func (s *Server) searchExamples(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, r, err)
		return
	}
	if s.index == nil {
		respondErr(w, r, peelerrors.NewConfigError("Example retrieval is not configured.", nil))
		return
	}
	k := min(s.grader.Config().K, s.index.Size())
	if body.K != nil {
		k = *body.K
	}

	matches, err := s.index.Select(r.Context(), body.Query, k)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, matchPayloads(matches))
}

func (s *Server) listExamples(w http.ResponseWriter, _ *http.Request) {
	exs := s.index.Examples()
	out := make([]ExamplePayload, 0, len(exs))
	for _, ex := range exs {
		out = append(out, ExamplePayload{Label: ex.Label, Band: ex.Band, Text: ex.Text})
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (s *Server) listTemplates(w http.ResponseWriter, _ *http.Request) {
	type templatePayload struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		UsesExamples bool   `json:"uses_examples"`
		Default      bool   `json:"default"`
	}

	defaultName := s.grader.Config().Template
	all := prompt.All()
	out := make([]templatePayload, 0, len(all))
	for _, t := range all {
		out = append(out, templatePayload{
			Name:         t.Name,
			Description:  t.Description,
			UsesExamples: t.UsesExamples(),
			Default:      t.Name == defaultName,
		})
	}
	RespondSuccess(w, http.StatusOK, out)
}
