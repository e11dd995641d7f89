package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	oauth "github.com/giantswarm/mcp-oauth"
	"github.com/giantswarm/mcp-oauth/providers/dex"
	oauthserver "github.com/giantswarm/mcp-oauth/server"
	"github.com/giantswarm/mcp-oauth/storage/memory"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// OAuthProviderDex is the Dex OIDC provider.
const OAuthProviderDex = "dex"

// OAuthConfig holds configuration for protecting the MCP endpoint.
type OAuthConfig struct {
	// BaseURL is the server's public base URL (e.g. https://peel.example.com).
	BaseURL string

	// Provider is the OAuth provider name. Only "dex" is supported.
	Provider string

	DexIssuerURL    string
	DexClientID     string
	DexClientSecret string
}

// Validate checks that the required settings are present.
func (c OAuthConfig) Validate() error {
	if c.Provider != "" && c.Provider != OAuthProviderDex {
		return fmt.Errorf("unsupported OAuth provider %q (supported: %s)", c.Provider, OAuthProviderDex)
	}
	if err := validateHTTPSRequirement(c.BaseURL); err != nil {
		return fmt.Errorf("OAuth base URL validation failed: %w", err)
	}
	if c.DexIssuerURL == "" {
		return fmt.Errorf("dex issuer URL is required (--dex-issuer-url or DEX_ISSUER_URL)")
	}
	if c.DexClientID == "" {
		return fmt.Errorf("dex client ID is required (--dex-client-id or DEX_CLIENT_ID)")
	}
	if c.DexClientSecret == "" {
		return fmt.Errorf("dex client secret is required (--dex-client-secret or DEX_CLIENT_SECRET)")
	}
	return nil
}

// OAuthHandler puts the MCP endpoint behind OAuth 2.1 bearer tokens and serves
// the authorization server routes.
type OAuthHandler struct {
	mcpServer    *mcpserver.MCPServer
	oauthServer  *oauth.Server
	oauthHandler *oauth.Handler
	mcpEndpoint  string
}

// NewOAuthHandler creates the OAuth layer for mcpSrv.
func NewOAuthHandler(mcpSrv *mcpserver.MCPServer, mcpEndpoint string, cfg OAuthConfig) (*OAuthHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dexProvider, err := dex.NewProvider(&dex.Config{
		IssuerURL:    cfg.DexIssuerURL,
		ClientID:     cfg.DexClientID,
		ClientSecret: cfg.DexClientSecret,
		RedirectURL:  cfg.BaseURL + "/oauth/callback",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Dex provider: %w", err)
	}

	// Single instance; tokens do not survive a restart.
	store := memory.New()
	logger := slog.Default()

	oauthSrv, err := oauth.NewServer(
		dexProvider,
		store,
		store,
		store,
		&oauthserver.Config{
			Issuer:                    cfg.BaseURL,
			AllowRefreshTokenRotation: true,
			MaxClientsPerIP:           10,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth server: %w", err)
	}

	return &OAuthHandler{
		mcpServer:    mcpSrv,
		oauthServer:  oauthSrv,
		oauthHandler: oauth.NewHandler(oauthSrv, logger),
		mcpEndpoint:  mcpEndpoint,
	}, nil
}

// Register mounts the OAuth routes and the protected MCP endpoint on mux.
func (h *OAuthHandler) Register(mux *http.ServeMux) {
	h.oauthHandler.RegisterAuthorizationServerMetadataRoutes(mux)
	h.oauthHandler.RegisterProtectedResourceMetadataRoutes(mux, h.mcpEndpoint)
	mux.HandleFunc("/oauth/authorize", h.oauthHandler.ServeAuthorization)
	mux.HandleFunc("/oauth/token", h.oauthHandler.ServeToken)
	mux.HandleFunc("/oauth/callback", h.oauthHandler.ServeCallback)
	mux.HandleFunc("/oauth/register", h.oauthHandler.ServeClientRegistration)
	mux.HandleFunc("/oauth/revoke", h.oauthHandler.ServeTokenRevocation)
	mux.HandleFunc("/oauth/introspect", h.oauthHandler.ServeTokenIntrospection)

	mux.Handle(h.mcpEndpoint, h.oauthHandler.ValidateToken(MCPHandler(h.mcpServer, h.mcpEndpoint)))
}

// Shutdown stops the OAuth server's background work.
func (h *OAuthHandler) Shutdown(ctx context.Context) error {
	if h.oauthServer == nil {
		return nil
	}
	return h.oauthServer.Shutdown(ctx)
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance.
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1).
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return nil
		}
		return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
	default:
		return fmt.Errorf("invalid URL scheme: %s (must be http for localhost or https)", u.Scheme)
	}
}
