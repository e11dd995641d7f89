package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 120 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// HTTPServer runs a handler until its context is cancelled.
type HTTPServer struct {
	httpServer *http.Server
	onShutdown []func(context.Context) error
}

// NewHTTPServer creates a server for handler listening on addr.
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
		},
	}
}

// OnShutdown registers fn to run after the listener has stopped.
func (s *HTTPServer) OnShutdown(fn func(context.Context) error) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Run serves until ctx is done or the listener fails. Cancellation triggers a
// graceful shutdown that lets in-flight requests finish.
func (s *HTTPServer) Run(ctx context.Context) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down: %w", err)
		}
		for _, fn := range s.onShutdown {
			if err := fn(shutdownCtx); err != nil {
				slog.Error("shutdown hook failed", "error", err)
			}
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	slog.Info("HTTP server stopped")
	return nil
}

// MCPHandler serves mcpSrv over streamable HTTP at endpoint.
func MCPHandler(mcpSrv *mcpserver.MCPServer, endpoint string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(endpoint),
	)
}
