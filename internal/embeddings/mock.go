package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// MockEmbedder implements Embedder with deterministic vectors derived from the
// text hash. Identical texts always map to identical vectors, so a query equal to
// a stored text has similarity 1 with it. It records how often it was called.
type MockEmbedder struct {
	dimensions int

	mu         sync.Mutex
	err        error
	embedCalls int
	batchCalls int
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with 64 dimensions.
func NewMockEmbedder() *MockEmbedder {
	return NewMockEmbedderWithDimensions(64)
}

// NewMockEmbedderWithDimensions creates a mock embedder with custom dimensions.
func NewMockEmbedderWithDimensions(dimensions int) *MockEmbedder {
	return &MockEmbedder{dimensions: dimensions}
}

// SetError makes subsequent calls fail with err. Pass nil to clear it.
func (m *MockEmbedder) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// EmbedCalls returns the number of Embed invocations.
func (m *MockEmbedder) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// BatchCalls returns the number of EmbedBatch invocations.
func (m *MockEmbedder) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// Calls returns the total number of embedding requests.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls + m.batchCalls
}

// Embed generates a deterministic embedding for text.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyInput
	}
	return m.vector(text), nil
}

// EmbedBatch generates deterministic embeddings for texts.
func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *MockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dimensions)
	var block [sha256.Size]byte
	for i := range v {
		if i%(sha256.Size/4) == 0 {
			var counter [4]byte
			binary.BigEndian.PutUint32(counter[:], uint32(i))
			block = sha256.Sum256(append([]byte(text), counter[:]...))
		}
		off := (i % (sha256.Size / 4)) * 4
		// Map to [-1, 1].
		v[i] = float32(binary.BigEndian.Uint32(block[off:off+4]))/float32(1<<31) - 1
	}
	NormalizeL2(v)
	return v
}
