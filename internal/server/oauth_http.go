package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	oauth "github.com/giantswarm/mcp-oauth"
	"github.com/giantswarm/mcp-oauth/providers/dex"
	oauthserver "github.com/giantswarm/mcp-oauth/server"
	"github.com/giantswarm/mcp-oauth/storage/memory"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// OAuthProviderDex is the only supported OAuth provider name.
const OAuthProviderDex = "dex"

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 120 * time.Second
)

// OAuthConfig configures the OAuth-protected HTTP transport.
type OAuthConfig struct {
	// BaseURL is the public base URL clients reach the server under
	// (e.g. https://evalpipe.example.com). OAuth 2.1 requires https here
	// except for loopback hosts.
	BaseURL string

	// Provider selects the OAuth provider. Empty or "dex".
	Provider string

	// Dex OIDC connection.
	DexIssuerURL    string
	DexClientID     string
	DexClientSecret string
}

// OAuthHTTPServer serves the MCP endpoint behind OAuth 2.1 token validation,
// with the authorization endpoints hosted on the same listener.
type OAuthHTTPServer struct {
	mcp         *mcpserver.MCPServer
	mcpEndpoint string
	auth        *oauth.Server
	handler     *oauth.Handler
	http        *http.Server
}

// NewOAuthHTTPServer wires an MCP server to a Dex-backed OAuth stack. Tokens,
// clients and sessions live in a single in-memory store; state does not
// survive a restart.
func NewOAuthHTTPServer(mcpSrv *mcpserver.MCPServer, mcpEndpoint string, cfg OAuthConfig) (*OAuthHTTPServer, error) {
	if cfg.Provider != "" && cfg.Provider != OAuthProviderDex {
		return nil, fmt.Errorf("unsupported OAuth provider %q (supported: %s)", cfg.Provider, OAuthProviderDex)
	}
	if err := validateHTTPSRequirement(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("OAuth base URL: %w", err)
	}

	idp, err := dex.NewProvider(&dex.Config{
		IssuerURL:    cfg.DexIssuerURL,
		ClientID:     cfg.DexClientID,
		ClientSecret: cfg.DexClientSecret,
		RedirectURL:  cfg.BaseURL + "/oauth/callback",
	})
	if err != nil {
		return nil, fmt.Errorf("creating Dex provider: %w", err)
	}

	logger := slog.Default()
	store := memory.New()
	authSrv, err := oauth.NewServer(
		idp,
		store, store, store,
		&oauthserver.Config{
			Issuer:                    cfg.BaseURL,
			AllowRefreshTokenRotation: true,
			MaxClientsPerIP:           10,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("creating OAuth server: %w", err)
	}

	return &OAuthHTTPServer{
		mcp:         mcpSrv,
		mcpEndpoint: mcpEndpoint,
		auth:        authSrv,
		handler:     oauth.NewHandler(authSrv, logger),
	}, nil
}

// routes builds the full mux: metadata discovery, the OAuth flow endpoints,
// the token-guarded MCP endpoint, and an unauthenticated health check.
func (s *OAuthHTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	s.handler.RegisterAuthorizationServerMetadataRoutes(mux)
	s.handler.RegisterProtectedResourceMetadataRoutes(mux, s.mcpEndpoint)
	mux.HandleFunc("/oauth/authorize", s.handler.ServeAuthorization)
	mux.HandleFunc("/oauth/token", s.handler.ServeToken)
	mux.HandleFunc("/oauth/callback", s.handler.ServeCallback)
	mux.HandleFunc("/oauth/register", s.handler.ServeClientRegistration)
	mux.HandleFunc("/oauth/revoke", s.handler.ServeTokenRevocation)
	mux.HandleFunc("/oauth/introspect", s.handler.ServeTokenIntrospection)

	streamable := mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithEndpointPath(s.mcpEndpoint),
	)
	mux.Handle(s.mcpEndpoint, s.handler.ValidateToken(streamable))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// Start listens on addr and blocks until the server stops.
func (s *OAuthHTTPServer) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s.http.ListenAndServe()
}

// Shutdown stops the OAuth stack and then the HTTP listener.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.auth != nil {
		if err := s.auth.Shutdown(ctx); err != nil {
			slog.Error("OAuth server shutdown failed", "error", err)
		}
	}
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}

// validateHTTPSRequirement enforces the OAuth 2.1 transport rule: https
// always, plain http only on loopback hosts.
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
		return fmt.Errorf("http is only allowed for loopback hosts, got %s", baseURL)
	default:
		return fmt.Errorf("invalid URL scheme %q (must be http for localhost or https)", u.Scheme)
	}
}
