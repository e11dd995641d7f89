// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/giantswarm/peel-evaluator/internal/llm"
)

// MockLLMClient is a configurable mock for llm.Client used across test packages.
// It is safe for concurrent use.
type MockLLMClient struct {
	// Responses maps user messages to canned responses.
	Responses map[string]string

	// DefaultResponse is returned when no matching key is found in Responses.
	DefaultResponse string

	// Err, when set, is returned from every call.
	Err error

	// ErrFor fails calls whose user message contains the key.
	ErrFor map[string]error

	mu          sync.Mutex
	calls       int
	lastRequest llm.ChatRequest
}

var _ llm.Client = (*MockLLMClient)(nil)

func (m *MockLLMClient) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastRequest = req
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for key, err := range m.ErrFor {
		if strings.Contains(req.UserMessage, key) {
			return nil, err
		}
	}

	if resp, ok := m.Responses[req.UserMessage]; ok {
		return &llm.ChatResponse{Content: resp, Model: req.Model}, nil
	}

	if m.DefaultResponse != "" {
		return &llm.ChatResponse{Content: m.DefaultResponse, Model: req.Model}, nil
	}

	return &llm.ChatResponse{Content: "mock response", Model: req.Model}, nil
}

// Calls returns the number of ChatCompletion invocations.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent ChatRequest for inspection.
func (m *MockLLMClient) LastRequest() llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
