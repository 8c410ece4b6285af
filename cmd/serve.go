package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/kserve"
	mcptools "github.com/relialab/evalpipe/internal/mcp"
	"github.com/relialab/evalpipe/internal/provider"
	"github.com/relialab/evalpipe/internal/server"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

func newServeCmd() *cobra.Command {
	var (
		transport    string
		httpAddr     string
		httpEndpoint string
		inCluster    bool
		outputDir    string
		datasetsDir  string
		providerName string
		model        string
		debug        bool

		// OAuth options, used only with the streamable-http transport.
		enableOAuth     bool
		oauthBaseURL    string
		oauthProvider   string
		dexIssuerURL    string
		dexClientID     string
		dexClientSecret string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server to expose the evaluation pipeline via the Model
Context Protocol.

Supports multiple transport types:
  - stdio: Standard input/output (default, for IDE integration)
  - streamable-http: HTTP with streaming support (for remote access)

When using streamable-http transport, OAuth 2.1 authentication can be enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}

			config.LoadEnv("")

			namespace, _ := cmd.Flags().GetString("namespace")
			kubeconfig, _ := cmd.Flags().GetString("kubeconfig")

			// Scoring client for similarity, judge and grounding stages.
			// Evaluation runs may answer through different endpoints.
			client := newLLMClientFromFlags("", "", "")

			sc := &server.ServerContext{
				Embedder:     client,
				JudgeClient:  client,
				ProviderName: providerName,
				ProviderConfig: provider.Config{
					Model:   model,
					Timeout: provider.DefaultTimeout,
					Gateway: config.GatewayFromEnv(),
					KServe: provider.KServeSettings{
						Namespace:  namespace,
						Kubeconfig: kubeconfig,
						InCluster:  inCluster,
					},
				},
				Namespace:   namespace,
				OutputDir:   outputDir,
				DatasetsDir: datasetsDir,
			}

			// Cluster access is optional; without it the model tools
			// report a missing manager when called.
			ksManager, err := kserve.NewManager(namespace, kubeconfig, inCluster)
			if err != nil {
				slog.Warn("KServe manager unavailable, model tools will report it", "error", err)
			} else {
				sc.KServeManager = ksManager
			}

			mcpSrv := mcpserver.NewMCPServer("evalpipe", rootCmd.Version,
				mcpserver.WithToolCapabilities(true),
			)

			if err := mcptools.RegisterTools(mcpSrv, sc); err != nil {
				return fmt.Errorf("failed to register MCP tools: %w", err)
			}

			shutdownCtx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch transport {
			case transportStdio:
				return runStdioServer(mcpSrv)
			case transportStreamableHTTP:
				fmt.Printf("Starting evalpipe MCP server with %s transport...\n", transport)
				if enableOAuth {
					return runOAuthHTTPServer(shutdownCtx, mcpSrv, httpAddr, httpEndpoint, oauthConfig{
						baseURL:         oauthBaseURL,
						provider:        oauthProvider,
						dexIssuerURL:    dexIssuerURL,
						dexClientID:     dexClientID,
						dexClientSecret: dexClientSecret,
					})
				}
				return runHTTPServer(shutdownCtx, mcpSrv, httpAddr, httpEndpoint)
			default:
				return fmt.Errorf("unknown transport %q (want stdio or streamable-http)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http)")
	cmd.Flags().StringVar(&httpEndpoint, "http-endpoint", "/mcp", "HTTP endpoint path (for streamable-http)")
	cmd.Flags().BoolVar(&inCluster, "in-cluster", false, "Use in-cluster Kubernetes authentication")
	cmd.Flags().StringVar(&outputDir, "output-dir", "output", "Base directory for run directories")
	cmd.Flags().StringVar(&datasetsDir, "datasets-dir", "", "External datasets directory (optional)")
	cmd.Flags().StringVar(&providerName, "provider", "openai", "Default answer provider for evaluation runs")
	cmd.Flags().StringVar(&model, "model", "", "Default model for evaluation runs")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// OAuth flags.
	cmd.Flags().BoolVar(&enableOAuth, "enable-oauth", false, "Enable OAuth 2.1 authentication (for HTTP transport)")
	cmd.Flags().StringVar(&oauthBaseURL, "oauth-base-url", "", "OAuth base URL (e.g. https://evalpipe.example.com)")
	cmd.Flags().StringVar(&oauthProvider, "oauth-provider", "dex", "OAuth provider: dex")
	cmd.Flags().StringVar(&dexIssuerURL, "dex-issuer-url", "", "Dex OIDC issuer URL")
	cmd.Flags().StringVar(&dexClientID, "dex-client-id", "", "Dex OAuth client ID")
	cmd.Flags().StringVar(&dexClientSecret, "dex-client-secret", "", "Dex OAuth client secret")

	return cmd
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("stdio server stopped: %w", err)
	}
	return nil
}

// serveUntilDone runs start in the background and blocks until it fails or
// ctx is cancelled; on cancellation stop gets ten seconds to drain.
func serveUntilDone(ctx context.Context, start func() error, stop func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		if err := start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Println("Shutdown signal received, stopping server...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return stop(stopCtx)
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr, endpoint string) error {
	mux := http.NewServeMux()
	mux.Handle(endpoint, mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(endpoint),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	fmt.Printf("  MCP endpoint: %s\n", endpoint)
	fmt.Printf("  Health: /healthz\n")

	if err := serveUntilDone(ctx, srv.ListenAndServe, srv.Shutdown); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	fmt.Println("HTTP server stopped")
	return nil
}

type oauthConfig struct {
	baseURL         string
	provider        string
	dexIssuerURL    string
	dexClientID     string
	dexClientSecret string
}

// resolve fills the Dex credentials from the environment when the flags left
// them empty, then checks that every required setting is present.
func (c *oauthConfig) resolve() error {
	if c.dexIssuerURL == "" {
		c.dexIssuerURL = os.Getenv("DEX_ISSUER_URL")
	}
	if c.dexClientID == "" {
		c.dexClientID = os.Getenv("DEX_CLIENT_ID")
	}
	if c.dexClientSecret == "" {
		c.dexClientSecret = os.Getenv("DEX_CLIENT_SECRET")
	}

	switch {
	case c.baseURL == "":
		return fmt.Errorf("--oauth-base-url is required when --enable-oauth is set")
	case c.dexIssuerURL == "":
		return fmt.Errorf("dex issuer URL is required (--dex-issuer-url or DEX_ISSUER_URL)")
	case c.dexClientID == "":
		return fmt.Errorf("dex client ID is required (--dex-client-id or DEX_CLIENT_ID)")
	case c.dexClientSecret == "":
		return fmt.Errorf("dex client secret is required (--dex-client-secret or DEX_CLIENT_SECRET)")
	}
	return nil
}

func runOAuthHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr, endpoint string, cfg oauthConfig) error {
	if err := cfg.resolve(); err != nil {
		return err
	}

	oauthSrv, err := server.NewOAuthHTTPServer(mcpSrv, endpoint, server.OAuthConfig{
		BaseURL:         cfg.baseURL,
		Provider:        cfg.provider,
		DexIssuerURL:    cfg.dexIssuerURL,
		DexClientID:     cfg.dexClientID,
		DexClientSecret: cfg.dexClientSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}

	fmt.Printf("OAuth-enabled HTTP server starting on %s\n", addr)
	fmt.Printf("  Base URL: %s\n", cfg.baseURL)
	fmt.Printf("  MCP endpoint: %s (requires OAuth Bearer token)\n", endpoint)
	fmt.Printf("  Health: /healthz\n")
	fmt.Println("  OAuth endpoints:")
	for _, path := range []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/oauth-protected-resource",
		"/oauth/register",
		"/oauth/authorize",
		"/oauth/token",
		"/oauth/callback",
	} {
		fmt.Printf("    %s\n", path)
	}

	if err := serveUntilDone(ctx, func() error { return oauthSrv.Start(addr) }, oauthSrv.Shutdown); err != nil {
		return fmt.Errorf("OAuth HTTP server: %w", err)
	}
	fmt.Println("OAuth HTTP server stopped")
	return nil
}
