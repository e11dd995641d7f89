package web

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/output"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
)

type exampleView struct {
	Label   string
	Band    string
	Preview string
	Score   float64
	Rank    int
}

type pageData struct {
	APIKeyMissing bool

	Question      string
	StudentAnswer string
	Models        []string
	Model         string
	Temperature   float64
	K             int
	MaxK          int
	UseExamples   bool

	Error        string
	Feedback     string
	FeedbackHTML template.HTML
	Used         []exampleView
	Corpus       []exampleView
}

func (s *Server) newPage() pageData {
	cfg := s.grader.Config()
	maxK := min(maxUIExamples, s.index.Size())

	corpus := make([]exampleView, 0, s.index.Size())
	for _, ex := range s.index.Examples() {
		corpus = append(corpus, exampleView{
			Label:   ex.Label,
			Band:    ex.Band,
			Preview: output.Truncate(ex.Text, output.CorpusPreviewChars),
		})
	}

	return pageData{
		APIKeyMissing: s.opts.APIKeyMissing,
		Models:        s.opts.Models,
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		K:             min(cfg.K, maxK),
		MaxK:          maxK,
		UseExamples:   !cfg.DisableExamples && maxK > 0,
		Corpus:        corpus,
	}
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.newPage())
}

func (s *Server) evaluateForm(w http.ResponseWriter, r *http.Request) {
	data := s.newPage()

	if err := r.ParseForm(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondErr(w, r, err)
			return
		}
		data.Error = "Could not read the submitted form."
		s.render(w, r, http.StatusBadRequest, data)
		return
	}

	data.Question = r.PostFormValue("question")
	data.StudentAnswer = r.PostFormValue("student_answer")
	if m := r.PostFormValue("model"); m != "" {
		data.Model = m
	}
	data.UseExamples = r.PostFormValue("use_examples") != ""

	req := grader.Request{
		Question:      data.Question,
		StudentAnswer: data.StudentAnswer,
		Model:         data.Model,
		UseExamples:   &data.UseExamples,
	}

	if raw := strings.TrimSpace(r.PostFormValue("temperature")); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.renderError(w, r, data, peelerrors.NewValidationError("temperature", "Temperature must be a number."))
			return
		}
		data.Temperature = t
		req.Temperature = &t
	}
	if raw := strings.TrimSpace(r.PostFormValue("k")); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			s.renderError(w, r, data, peelerrors.NewValidationError("k", "The number of examples must be a whole number."))
			return
		}
		data.K = k
		req.K = &k
	}

	eval, err := s.grader.Evaluate(r.Context(), req)
	if err != nil {
		s.renderError(w, r, data, err)
		return
	}

	html, err := s.markdown.Render(eval.Feedback)
	if err != nil {
		slog.Warn("falling back to plain feedback", "error", err)
		html = template.HTML("<pre>" + template.HTMLEscapeString(eval.Feedback) + "</pre>") //nolint:gosec
	}
	data.Feedback = eval.Feedback
	data.FeedbackHTML = html
	data.Used = usedExamples(eval.Examples)

	s.render(w, r, http.StatusOK, data)
}

func usedExamples(matches []retriever.Match) []exampleView {
	out := make([]exampleView, 0, len(matches))
	for _, m := range matches {
		out = append(out, exampleView{
			Label:   m.Example.Label,
			Band:    m.Example.Band,
			Preview: output.Truncate(m.Example.Text, output.SelectedPreviewChars),
			Score:   m.Score,
			Rank:    m.Rank,
		})
	}
	return out
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, data pageData, err error) {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("evaluation failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
	}
	data.Error = userMessage(err)
	s.render(w, r, status, data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		slog.Error("failed to render page", "request_id", RequestIDFromContext(r.Context()), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondErr(w, r, err)
		return
	}
	feedback := r.PostFormValue("feedback")
	if strings.TrimSpace(feedback) == "" {
		RespondError(w, http.StatusBadRequest, "Bad Request", "there is no feedback to download")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+output.DefaultFeedbackFile+`"`)
	_, _ = w.Write([]byte(feedback))
}
