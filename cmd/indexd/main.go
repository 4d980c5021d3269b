// Indexd is a git-aware code indexing daemon with an MCP stdio
// transport and an HTTP API.
//
// The daemon registers local git repositories, keeps per-repository
// search indexes in sync with their commit history, and answers
// federated code and symbol searches across all of them.
//
// Configuration is loaded from ~/.config/indexd/config.yaml and
// INDEXD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	indexd
//
//	# Configure via environment
//	INDEXD_SERVER_HTTP_PORT=9120 INDEXD_WATCHER_ENABLED=true indexd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/artifacts"
	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/federation"
	"github.com/fyrsmithlabs/indexd/internal/http"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
	"github.com/fyrsmithlabs/indexd/internal/logging"
	"github.com/fyrsmithlabs/indexd/internal/mcp"
	"github.com/fyrsmithlabs/indexd/internal/registry"
	"github.com/fyrsmithlabs/indexd/internal/telemetry"
	"github.com/fyrsmithlabs/indexd/internal/watcher"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  indexd           Start the indexd daemon\n")
			fmt.Fprintf(os.Stderr, "  indexd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("indexd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the indexd daemon and blocks until the context is
// cancelled or the MCP client disconnects.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Open repository registry and index manager
//  4. Wire artifact manager, federation dispatcher, MCP server
//  5. Start HTTP server, optional filesystem watcher, MCP stdio loop
//  6. Graceful shutdown
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting indexd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	tel, err := telemetry.New(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	basePath, err := cfg.ResolveBasePath()
	if err != nil {
		return fmt.Errorf("resolving state directory: %w", err)
	}

	reg, err := registry.New(basePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open repository registry: %w", err)
	}

	manager := indexer.New(reg, cfg.Index, logger)

	artifactMgr := artifacts.NewManager(basePath, logger)
	manager.SetArchiver(artifactMgr)

	dispatcher := federation.NewDispatcher(reg, cfg.Search, logger)

	logger.Info("Services initialized",
		zap.String("base_path", basePath),
		zap.Bool("artifacts_enabled", cfg.Index.ArtifactsEnabled),
		zap.Int("registered_repositories", len(reg.ListAll())))

	mcpServer, err := mcp.NewServer(&mcp.Config{
		Name:    "indexd",
		Version: version,
		Logger:  logger,
	}, reg, manager, dispatcher, artifactMgr)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	httpServer, err := http.NewServer(dispatcher, logger, &http.Config{
		Host: "localhost",
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if cfg.Watcher.Enabled {
		w, err := watcher.New(reg, watcher.SyncFunc(func(ctx context.Context, id string, force bool) error {
			_, err := manager.Sync(ctx, id, force)
			return err
		}), cfg.Watcher.Debounce, logger)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		logger.Info("Auto-sync watcher started", zap.Duration("debounce", cfg.Watcher.Debounce))
	}

	httpErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			httpErr <- err
		}
	}()

	mcpErr := make(chan error, 1)
	go func() {
		mcpErr <- mcpServer.Run(ctx)
	}()

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.String("mcp_transport", "stdio"))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case err := <-mcpErr:
		// A closed stdin is a normal client disconnect.
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("mcp server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}

	return runErr
}
