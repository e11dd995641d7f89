package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/giantswarm/peel-evaluator/internal/config"
	mcptools "github.com/giantswarm/peel-evaluator/internal/mcp"
	"github.com/giantswarm/peel-evaluator/internal/server"
	"github.com/giantswarm/peel-evaluator/internal/web"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

func newServeCmd() *cobra.Command {
	var (
		transport   string
		mcpEndpoint string
		warm        bool

		enableOAuth     bool
		oauthBaseURL    string
		oauthProvider   string
		dexIssuerURL    string
		dexClientID     string
		dexClientSecret string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluator server",
		Long: `Start the evaluator.

Supports two transports:
  - http: the browser UI at /, the JSON API at /api/v1 and MCP at --mcp-endpoint (default)
  - stdio: MCP over standard input/output (for IDE integration)

When using the http transport, OAuth 2.1 authentication can be enabled for the MCP endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}

			shutdownCtx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if warm {
				slog.Info("building example index at startup", "examples", app.index.Size())
				if err := app.index.Build(shutdownCtx); err != nil {
					// Not fatal: the next evaluation retries the build.
					slog.Warn("failed to build example index", "error", err)
				}
			}

			sc := &server.ServerContext{
				Grader: app.grader,
				Index:  app.index,
				Corpus: app.corpus,
				Config: app.cfg,
			}
			mcpSrv := mcpserver.NewMCPServer("peel-evaluator", rootCmd.Version,
				mcpserver.WithToolCapabilities(true),
			)
			if err := mcptools.RegisterTools(mcpSrv, sc); err != nil {
				return fmt.Errorf("failed to register MCP tools: %w", err)
			}

			switch transport {
			case transportStdio:
				return runStdioServer(mcpSrv)
			case transportHTTP:
				oauthCfg := server.OAuthConfig{
					BaseURL:         oauthBaseURL,
					Provider:        oauthProvider,
					DexIssuerURL:    envDefault(dexIssuerURL, "DEX_ISSUER_URL"),
					DexClientID:     envDefault(dexClientID, "DEX_CLIENT_ID"),
					DexClientSecret: envDefault(dexClientSecret, "DEX_CLIENT_SECRET"),
				}
				return runHTTPServer(shutdownCtx, sc, mcpSrv, mcpEndpoint, enableOAuth, oauthCfg)
			default:
				return fmt.Errorf("unsupported transport: %s (supported: %s, %s)", transport, transportHTTP, transportStdio)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportHTTP, "Transport type: http or stdio")
	cmd.Flags().String(config.KeyHTTPAddr, ":8080", "HTTP server address")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP endpoint path (http transport)")
	cmd.Flags().BoolVar(&warm, "warm", false, "Build the example index at startup instead of on the first evaluation")
	cmd.Flags().Float64(config.KeyRateLimit, 1.0, "Sustained evaluations per second across all clients")
	cmd.Flags().Int(config.KeyRateBurst, 5, "Evaluations allowed in a burst")
	cmd.Flags().Int64(config.KeyMaxBodyBytes, 1<<20, "Maximum request body size in bytes")
	cmd.Flags().StringSlice(config.KeyModels, nil, "Models offered in the UI (default: gpt-5,gpt-4.1-mini,gpt-4o-mini)")

	// OAuth flags.
	cmd.Flags().BoolVar(&enableOAuth, "enable-oauth", false, "Enable OAuth 2.1 authentication for the MCP endpoint")
	cmd.Flags().StringVar(&oauthBaseURL, "oauth-base-url", "", "OAuth base URL (e.g. https://peel.example.com)")
	cmd.Flags().StringVar(&oauthProvider, "oauth-provider", server.OAuthProviderDex, "OAuth provider: dex")
	cmd.Flags().StringVar(&dexIssuerURL, "dex-issuer-url", "", "Dex OIDC issuer URL")
	cmd.Flags().StringVar(&dexClientID, "dex-client-id", "", "Dex OAuth client ID")
	cmd.Flags().StringVar(&dexClientSecret, "dex-client-secret", "", "Dex OAuth client secret")

	return cmd
}

func envDefault(value, envVar string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envVar)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, sc *server.ServerContext, mcpSrv *mcpserver.MCPServer, mcpEndpoint string, enableOAuth bool, oauthCfg server.OAuthConfig) error {
	cfg := sc.Config
	webSrv, err := web.New(sc.Grader, web.Options{
		Models:        cfg.Models,
		APIKeyMissing: !cfg.HasAPIKey(),
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", webSrv.Routes())

	var oauthHandler *server.OAuthHandler
	if enableOAuth {
		oauthHandler, err = server.NewOAuthHandler(mcpSrv, mcpEndpoint, oauthCfg)
		if err != nil {
			return fmt.Errorf("failed to create OAuth handler: %w", err)
		}
		oauthHandler.Register(mux)
	} else {
		mux.Handle(mcpEndpoint, server.MCPHandler(mcpSrv, mcpEndpoint))
	}

	httpSrv := server.NewHTTPServer(mux, cfg.HTTPAddr)
	if oauthHandler != nil {
		httpSrv.OnShutdown(oauthHandler.Shutdown)
	}

	slog.Info("starting peel-evaluator HTTP server",
		"addr", cfg.HTTPAddr,
		"mcp_endpoint", mcpEndpoint,
		"oauth", enableOAuth,
		"model", cfg.Model,
		"api_key_set", cfg.HasAPIKey(),
	)
	if enableOAuth {
		slog.Info("OAuth endpoints enabled",
			"base_url", oauthCfg.BaseURL,
			"provider", oauthCfg.Provider,
			"metadata", "/.well-known/oauth-authorization-server",
		)
	}

	return httpSrv.Run(ctx)
}
