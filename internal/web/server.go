// Package web serves the browser UI and the JSON API for answer evaluation.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
)

//go:embed templates/*.html
var templateFS embed.FS

// Maximum number of examples offered by the UI slider.
const maxUIExamples = 5

// Options configures the web surface.
type Options struct {
	// Models are offered in the model selector.
	Models []string
	// APIKeyMissing shows a warning banner on the form.
	APIKeyMissing bool
	// RateLimit is the sustained number of evaluations per second across all clients.
	RateLimit float64
	// RateBurst is the number of evaluations allowed at once.
	RateBurst int
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64
}

// Server holds the handlers' dependencies.
type Server struct {
	grader   *grader.Grader
	index    *retriever.Index
	opts     Options
	page     *template.Template
	markdown *markdownRenderer
	limiter  *rate.Limiter
}

// New creates the web server for g.
func New(g *grader.Grader, opts Options) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}

	return &Server{
		grader:   g,
		index:    g.Index(),
		opts:     opts,
		page:     page,
		markdown: newMarkdownRenderer(),
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
	}, nil
}

// Routes returns the HTTP handler with all routes and middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(middleware.Recoverer)
	r.Use(MaxBody(s.opts.MaxBodyBytes))

	r.Get("/healthz", s.health)
	r.Get("/", s.home)
	r.Post("/download", s.download)
	r.With(RateLimit(s.limiter)).Post("/evaluate", s.evaluateForm)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/templates", s.listTemplates)
		r.Get("/examples", s.listExamples)
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.limiter))
			r.Post("/examples/search", s.searchExamples)
			r.Post("/evaluations", s.createEvaluation)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
