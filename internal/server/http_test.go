package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPServerStopsOnCancel(t *testing.T) {
	srv := NewHTTPServer(http.NotFoundHandler(), "127.0.0.1:0")

	hookCalled := false
	srv.OnShutdown(func(context.Context) error {
		hookCalled = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, hookCalled)
}

func TestHTTPServerListenError(t *testing.T) {
	srv := NewHTTPServer(http.NotFoundHandler(), "127.0.0.1:-1")

	err := srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server error")
}
