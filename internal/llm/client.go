// Package llm is the boundary to the OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the completion model used when neither the request nor the client names one.
const DefaultModel = "gpt-4o-mini"

// Client abstracts an OpenAI-compatible LLM API.
type Client interface {
	// ChatCompletion sends a chat completion request and returns the response.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a simplified chat request.
// A nil Temperature leaves the choice to the client default, then the server.
type ChatRequest struct {
	Model         string
	SystemMessage string
	UserMessage   string
	Temperature   *float64
}

// ChatResponse holds the result of a chat completion.
type ChatResponse struct {
	Content      string
	Model        string
	FinishReason string
	TotalTokens  int
}

// OpenAIClient implements Client using the OpenAI-compatible API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature *float64
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(opts ...Option) *OpenAIClient {
	cfg := &clientConfig{
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	config := openai.DefaultConfig(cfg.apiKey)
	if cfg.baseURL != "" {
		config.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		config.HTTPClient = cfg.httpClient
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		model:       cfg.model,
		temperature: cfg.temperature,
	}
}

// Model returns the client's default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// ChatCompletion sends a non-streaming chat completion request.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req = c.applyDefaults(req)

	resp, err := c.client.CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemMessage})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserMessage})

	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		out.Temperature = wireTemperature(*req.Temperature)
	}
	return out
}

// wireTemperature converts a temperature for the request body. The field is
// omitted when zero, so an explicit 0 is sent as the smallest positive float32.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// applyDefaults applies client-level defaults to a request where
// the request does not specify its own values.
func (c *OpenAIClient) applyDefaults(req ChatRequest) ChatRequest {
	if req.Model == "" && c.model != "" {
		req.Model = c.model
	}
	if req.Temperature == nil && c.temperature != nil {
		t := *c.temperature
		req.Temperature = &t
	}
	return req
}
