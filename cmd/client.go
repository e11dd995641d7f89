package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/giantswarm/peel-evaluator/internal/config"
	"github.com/giantswarm/peel-evaluator/internal/embeddings"
	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/llm"
	"github.com/giantswarm/peel-evaluator/internal/prompt"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
)

// app bundles what the commands need to evaluate answers.
type app struct {
	cfg    *config.Config
	corpus *examples.Corpus
	index  *retriever.Index
	grader *grader.Grader
}

// loadConfig resolves settings for cmd from its flags, the environment, .env and --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{
		Flags:      cmd.Flags(),
		ConfigFile: configFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newApp loads the configuration and corpus and wires the grader. A missing API key
// is not an error here: evaluations then fail with a configuration error.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	corpus, err := examples.Load(cfg.Corpus, cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load example corpus: %w", err)
	}

	index := retriever.New(newEmbedder(cfg), corpus)
	return &app{
		cfg:    cfg,
		corpus: corpus,
		index:  index,
		grader: grader.New(newLLMClient(cfg), index, cfg.GraderConfig()),
	}, nil
}

// newLLMClient returns nil when no API key is configured.
func newLLMClient(cfg *config.Config) llm.Client {
	if !cfg.HasAPIKey() {
		slog.Warn("OPENAI_API_KEY is not set; evaluations will be rejected")
		return nil
	}

	opts := []llm.Option{
		llm.WithAPIKey(cfg.APIKey),
		llm.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	return llm.NewOpenAIClient(opts...)
}

func newEmbedder(cfg *config.Config) embeddings.Embedder {
	if cfg.OfflineEmbeddings {
		slog.Info("using offline embeddings")
		return embeddings.NewMockEmbedder()
	}

	opts := []embeddings.OpenAIOption{
		embeddings.WithAPIKey(cfg.APIKey),
		embeddings.WithModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, embeddings.WithBaseURL(cfg.BaseURL))
	}
	if cfg.EmbeddingDimensions > 0 {
		opts = append(opts, embeddings.WithDimensions(cfg.EmbeddingDimensions))
	}
	return embeddings.NewOpenAIEmbedder(opts...)
}

// addEvaluationFlags registers the per-evaluation flags shared by evaluate and batch.
// The flags are bound to configuration keys of the same name.
func addEvaluationFlags(cmd *cobra.Command) {
	cmd.Flags().String(config.KeyModel, "", "Completion model (default: gpt-4o-mini)")
	cmd.Flags().Float64(config.KeyTemperature, grader.DefaultTemperature, "Sampling temperature between 0 and 1")
	cmd.Flags().IntP(config.KeyK, "k", grader.DefaultK, "Number of similar examples to include")
	cmd.Flags().String(config.KeyTemplate, "", "Prompt template: peel-examples, peel or general")
	cmd.Flags().Bool("no-examples", false, "Do not include similar examples in the prompt")
	cmd.Flags().String(config.KeyEmbeddingModel, "", "Embedding model (default: text-embedding-3-large)")
}

// evaluationRequest turns the shared flags into a request template. Settings that
// equal the configuration are left to the grader's defaults, except an explicit k,
// which is range checked instead of clamped.
func evaluationRequest(cmd *cobra.Command, cfg *config.Config) grader.Request {
	req := grader.Request{
		Model:    cfg.Model,
		Template: cfg.Template,
	}
	if cmd.Flags().Changed(config.KeyK) {
		k := cfg.K
		req.K = &k
	}
	if noExamples, _ := cmd.Flags().GetBool("no-examples"); noExamples {
		use := false
		req.UseExamples = &use
		if t, err := prompt.Lookup(cfg.Template); err == nil && t.UsesExamples() && !cmd.Flags().Changed(config.KeyTemplate) {
			req.Template = prompt.PlainTemplate
		}
	}
	return req
}
