package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClientDefaults(t *testing.T) {
	client := NewOpenAIClient()
	assert.Equal(t, DefaultModel, client.Model())
	assert.Nil(t, client.temperature)
}

func TestNewOpenAIClientWithModel(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4"))
	assert.Equal(t, "gpt-4", client.model)
}

func TestNewOpenAIClientWithTemperature(t *testing.T) {
	client := NewOpenAIClient(WithTemperature(0.7))
	assert.NotNil(t, client.temperature)
	assert.Equal(t, 0.7, *client.temperature)
}

func TestApplyDefaultsUsesClientModel(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4"))

	req := client.applyDefaults(ChatRequest{UserMessage: "hello"})
	assert.Equal(t, "gpt-4", req.Model)
}

func TestApplyDefaultsRequestModelTakesPrecedence(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4"))

	req := client.applyDefaults(ChatRequest{Model: "gpt-3.5", UserMessage: "hello"})
	assert.Equal(t, "gpt-3.5", req.Model)
}

func TestApplyDefaultsTemperature(t *testing.T) {
	tests := []struct {
		name    string
		client  *OpenAIClient
		request *float64
		want    *float64
	}{
		{"client default", NewOpenAIClient(WithTemperature(0.8)), nil, Float64Ptr(0.8)},
		{"request wins", NewOpenAIClient(WithTemperature(0.8)), Float64Ptr(0.5), Float64Ptr(0.5)},
		{"explicit zero wins", NewOpenAIClient(WithTemperature(0.8)), Float64Ptr(0), Float64Ptr(0)},
		{"nothing set", NewOpenAIClient(), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.client.applyDefaults(ChatRequest{UserMessage: "hello", Temperature: tt.request})
			assert.Equal(t, tt.want, req.Temperature)
		})
	}
}

func TestBuildRequestOmitsEmptySystemMessage(t *testing.T) {
	req := buildRequest(ChatRequest{Model: "m", UserMessage: "prompt"})
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "prompt", req.Messages[0].Content)
	assert.Zero(t, req.Temperature)

	req = buildRequest(ChatRequest{Model: "m", SystemMessage: "sys", UserMessage: "prompt"})
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
}

func TestWireTemperature(t *testing.T) {
	assert.Greater(t, wireTemperature(0), float32(0))
	assert.Less(t, wireTemperature(0), float32(1e-6))
	assert.InDelta(t, 0.7, float64(wireTemperature(0.7)), 1e-6)
}

type chatBody struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestChatCompletionAgainstServer(t *testing.T) {
	var got chatBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "**Score: 12/15**\n\nGood work."}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(
		WithBaseURL(srv.URL+"/v1"),
		WithAPIKey("sk-test"),
		WithHTTPClient(srv.Client()),
	)

	resp, err := client.ChatCompletion(context.Background(), ChatRequest{
		UserMessage: "the whole prompt",
		Temperature: Float64Ptr(0),
	})
	require.NoError(t, err)

	assert.Equal(t, "**Score: 12/15**\n\nGood work.", resp.Content)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.TotalTokens)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "the whole prompt", got.Messages[0].Content)
	require.NotNil(t, got.Temperature, "explicit zero temperature must be sent")
	assert.InDelta(t, 0, *got.Temperature, 1e-6)
}

func TestChatCompletionErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusUnauthorized, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`, "chat completion failed"},
		{"no choices", http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, "no choices returned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewOpenAIClient(WithBaseURL(srv.URL), WithAPIKey("sk-test"))
			_, err := client.ChatCompletion(context.Background(), ChatRequest{UserMessage: "hi"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
