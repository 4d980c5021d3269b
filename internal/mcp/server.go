// Package mcp exposes indexd operations as MCP tools over stdio.
//
// The server calls the internal services directly; every tool is a thin
// argument-validation and translation layer over the registry, the sync
// manager, the federated dispatcher, and the artifact manager.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/artifacts"
	"github.com/fyrsmithlabs/indexd/internal/federation"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
	"github.com/fyrsmithlabs/indexd/internal/registry"
)

// Server wires indexd services into an MCP tool server.
type Server struct {
	mcp        *mcp.Server
	registry   *registry.Registry
	manager    *indexer.Manager
	dispatcher *federation.Dispatcher
	artifacts  *artifacts.Manager
	metrics    *toolMetrics
	logger     *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "indexd").
	Name string

	// Version is the server version (default: "1.0.0").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "indexd",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server over the given services.
func NewServer(
	cfg *Config,
	reg *registry.Registry,
	manager *indexer.Manager,
	dispatcher *federation.Dispatcher,
	artifactMgr *artifacts.Manager,
) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("index manager is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if artifactMgr == nil {
		return nil, fmt.Errorf("artifact manager is required")
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		registry:   reg,
		manager:    manager,
		dispatcher: dispatcher,
		artifacts:  artifactMgr,
		metrics:    newToolMetrics(cfg.Logger),
		logger:     cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.registerRepositoryTools()
	s.registerSyncTools()
	s.registerSearchTools()
	s.registerArtifactTools()
	s.registerAdminTools()
}

// Run serves MCP on the stdio transport until the context ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.RunWithTransport(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// RunWithTransport serves MCP over the given transport.
func (s *Server) RunWithTransport(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}
