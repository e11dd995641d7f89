package server

import (
	"github.com/giantswarm/peel-evaluator/internal/config"
	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
)

// ServerContext holds shared dependencies for MCP tool handlers.
type ServerContext struct {
	Grader *grader.Grader
	Index  *retriever.Index
	Corpus *examples.Corpus
	Config *config.Config
}
