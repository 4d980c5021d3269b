// Package main implements the idxd CLI for manual operations against
// the indexd repository registry and search indexes.
//
// Unlike the daemon, idxd works directly on local state: it loads the
// same configuration, opens the same registry, and runs sync and
// search in-process. The daemon does not need to be running.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/artifacts"
	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/federation"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
	"github.com/fyrsmithlabs/indexd/internal/logging"
	"github.com/fyrsmithlabs/indexd/internal/registry"
)

var (
	configPath string
	verbose    bool
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "idxd",
	Short: "CLI for indexd repository indexing and search",
	Long: `idxd is a command-line interface for managing indexd repositories.
It registers git repositories, syncs their search indexes, and runs
federated code and symbol searches across them.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(unregisterCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(symbolCmd)
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// env bundles the wired services every command needs.
type env struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *registry.Registry
	manager    *indexer.Manager
	artifacts  *artifacts.Manager
	dispatcher *federation.Dispatcher
}

// openEnv loads configuration and opens the local indexd state.
func openEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := zap.NewNop()
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
		logger, err = logging.New(&cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}

	basePath, err := cfg.ResolveBasePath()
	if err != nil {
		return nil, fmt.Errorf("resolving state directory: %w", err)
	}

	reg, err := registry.New(basePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening repository registry: %w", err)
	}

	manager := indexer.New(reg, cfg.Index, logger)
	artifactMgr := artifacts.NewManager(basePath, logger)
	manager.SetArchiver(artifactMgr)

	return &env{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		manager:    manager,
		artifacts:  artifactMgr,
		dispatcher: federation.NewDispatcher(reg, cfg.Search, logger),
	}, nil
}

// resolveRepo turns a repository id, local path, or remote URL into a
// registered repository id.
func (e *env) resolveRepo(input string) (string, error) {
	id, err := e.dispatcher.ResolveRepositoryID(input)
	if err != nil {
		return "", fmt.Errorf("repository %q: %w", input, err)
	}
	return id, nil
}
