package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// DefaultModel is the embedding model used for both corpus and queries.
const DefaultModel = "text-embedding-3-large"

var (
	// ErrEmptyInput is returned when asked to embed empty text.
	ErrEmptyInput = errors.New("embeddings: input text is empty")
	// ErrNoEmbedding is returned when the API response contains no embedding data.
	ErrNoEmbedding = errors.New("embeddings: no embedding in response")
	// ErrCountMismatch is returned when a batch response does not carry one vector per input.
	ErrCountMismatch = errors.New("embeddings: unexpected number of embeddings")
)

// OpenAIEmbedder calls the OpenAI embeddings API via the official SDK.
type OpenAIEmbedder struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

type openAIConfig struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*openAIConfig)

// WithAPIKey sets the API key.
func WithAPIKey(key string) OpenAIOption {
	return func(c *openAIConfig) {
		c.apiKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithModel sets the embedding model name.
func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.model = model
	}
}

// WithDimensions requests shortened embeddings. Zero keeps the model default.
func WithDimensions(dim int) OpenAIOption {
	return func(c *openAIConfig) {
		c.dimensions = dim
	}
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(opts ...OpenAIOption) *OpenAIEmbedder {
	cfg := &openAIConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	// Failures surface to the caller; the SDK must not retry on its own.
	sdkOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.apiKey != "" {
		sdkOpts = append(sdkOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &OpenAIEmbedder{
		sdk:        openaisdk.NewClient(sdkOpts...),
		model:      cfg.model,
		dimensions: cfg.dimensions,
	}
}

// Model returns the configured embedding model.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := e.sdk.Embeddings.New(ctx, e.params(openaisdk.EmbeddingNewParamsInputUnion{
		OfString: param.NewOpt(text),
	}))
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbedding
	}

	return toFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch returns one embedding per text in a single API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text at index %d: %w", i, ErrEmptyInput)
		}
	}

	resp, err := e.sdk.Embeddings.New(ctx, e.params(openaisdk.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: texts,
	}))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Data), len(texts))
	}

	// The API reports each vector's input position; do not rely on response order.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			return nil, fmt.Errorf("%w: bad index %d", ErrCountMismatch, d.Index)
		}
		out[idx] = toFloat32(d.Embedding)
	}
	return out, nil
}

func (e *OpenAIEmbedder) params(input openaisdk.EmbeddingNewParamsInputUnion) openaisdk.EmbeddingNewParams {
	p := openaisdk.EmbeddingNewParams{
		Input:          input,
		Model:          openaisdk.EmbeddingModel(e.model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		p.Dimensions = param.NewOpt(int64(e.dimensions))
	}
	return p
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}
