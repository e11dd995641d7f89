package server

import (
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "https is valid", baseURL: "https://peel.example.com"},
		{name: "localhost http is valid", baseURL: "http://localhost:8080"},
		{name: "127.0.0.1 http is valid", baseURL: "http://127.0.0.1:8080"},
		{name: "ipv6 loopback http is valid", baseURL: "http://[::1]:8080"},
		{name: "non-localhost http is invalid", baseURL: "http://example.com", wantErr: true},
		{name: "empty URL is invalid", baseURL: "", wantErr: true},
		{name: "ftp scheme is invalid", baseURL: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOAuthConfigValidate(t *testing.T) {
	valid := OAuthConfig{
		BaseURL:         "https://peel.example.com",
		Provider:        OAuthProviderDex,
		DexIssuerURL:    "https://dex.example.com",
		DexClientID:     "peel",
		DexClientSecret: "secret",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*OAuthConfig)
		wantErr string
	}{
		{"unknown provider", func(c *OAuthConfig) { c.Provider = "okta" }, "unsupported OAuth provider"},
		{"plain http", func(c *OAuthConfig) { c.BaseURL = "http://peel.example.com" }, "requires HTTPS"},
		{"missing issuer", func(c *OAuthConfig) { c.DexIssuerURL = "" }, "issuer URL is required"},
		{"missing client id", func(c *OAuthConfig) { c.DexClientID = "" }, "client ID is required"},
		{"missing secret", func(c *OAuthConfig) { c.DexClientSecret = "" }, "client secret is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewOAuthHandlerRejectsInvalidConfig(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("peel-evaluator", "test")
	_, err := NewOAuthHandler(mcpSrv, "/mcp", OAuthConfig{BaseURL: "http://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL validation failed")
}
