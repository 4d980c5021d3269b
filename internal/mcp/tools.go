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

// ===== REPOSITORY TOOLS =====

type registerRepositoryInput struct {
	Path     string `json:"path" jsonschema:"required,Filesystem path of the repository root"`
	AutoSync *bool  `json:"auto_sync,omitempty" jsonschema:"Re-index automatically when the repository's git state changes (default true)"`
}

type registerRepositoryOutput struct {
	RepositoryID string `json:"repository_id" jsonschema:"Stable repository identifier"`
	Name         string `json:"name" jsonschema:"Repository display name"`
	Path         string `json:"path" jsonschema:"Canonical repository path"`
}

type unregisterRepositoryInput struct {
	Repository string `json:"repository" jsonschema:"required,Repository id path or remote URL"`
}

type unregisterRepositoryOutput struct {
	RepositoryID string `json:"repository_id" jsonschema:"Removed repository identifier"`
}

type discoverRepositoriesInput struct {
	Roots    []string `json:"roots" jsonschema:"required,Directories to scan for git repositories"`
	Register bool     `json:"register,omitempty" jsonschema:"Register every discovered repository"`
	AutoSync bool     `json:"auto_sync,omitempty" jsonschema:"Auto-sync flag applied when registering"`
}

type discoverRepositoriesOutput struct {
	Paths      []string `json:"paths" jsonschema:"Discovered repository roots"`
	Registered int      `json:"registered" jsonschema:"How many were newly registered"`
}

type listRepositoriesOutput struct {
	Repositories []*registry.RepositoryInfo `json:"repositories" jsonschema:"Registered repositories ordered by priority"`
	Count        int                        `json:"count" jsonschema:"Number of repositories"`
}

type repositoryStatusInput struct {
	Repository string `json:"repository" jsonschema:"required,Repository id path or remote URL"`
}

type repositoryStatusOutput struct {
	Status *indexer.RepositoryStatus `json:"status" jsonschema:"Registry entry plus live git and index state"`
}

type updateRepositoryInput struct {
	Repository string `json:"repository" jsonschema:"required,Repository id path or remote URL"`
	Priority   *int   `json:"priority,omitempty" jsonschema:"New search ranking priority"`
	Active     *bool  `json:"active,omitempty" jsonschema:"Activate or deactivate the repository"`
}

type updateRepositoryOutput struct {
	Repository *registry.RepositoryInfo `json:"repository" jsonschema:"Updated registry entry"`
}

func (s *Server) registerRepositoryTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "register_repository",
		Description: "Register a git repository so it can be indexed and searched",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args registerRepositoryInput) (*mcp.CallToolResult, registerRepositoryOutput, error) {
		done := s.metrics.track(ctx, "register_repository")
		autoSync := true
		if args.AutoSync != nil {
			autoSync = *args.AutoSync
		}
		id, err := s.registry.Register(args.Path, autoSync)
		done(err)
		if err != nil {
			return nil, registerRepositoryOutput{}, err
		}
		info := s.registry.Get(id)
		return textResult(fmt.Sprintf("Registered %s as %s", info.Name, id)), registerRepositoryOutput{
			RepositoryID: id,
			Name:         info.Name,
			Path:         info.Path,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "unregister_repository",
		Description: "Remove a repository from the registry (its index directory is left in place)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args unregisterRepositoryInput) (*mcp.CallToolResult, unregisterRepositoryOutput, error) {
		done := s.metrics.track(ctx, "unregister_repository")
		id, err := s.dispatcher.ResolveRepositoryID(args.Repository)
		if err == nil {
			err = s.registry.Unregister(id)
		}
		done(err)
		if err != nil {
			return nil, unregisterRepositoryOutput{}, err
		}
		return textResult(fmt.Sprintf("Unregistered %s", id)), unregisterRepositoryOutput{RepositoryID: id}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "discover_repositories",
		Description: "Scan directories for git repositories, optionally registering them",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args discoverRepositoriesInput) (*mcp.CallToolResult, discoverRepositoriesOutput, error) {
		done := s.metrics.track(ctx, "discover_repositories")
		paths, err := registry.Discover(args.Roots)
		if err != nil {
			done(err)
			return nil, discoverRepositoriesOutput{}, err
		}

		out := discoverRepositoriesOutput{Paths: paths}
		if args.Register {
			for _, p := range paths {
				if s.registry.GetByPath(p) != nil {
					continue
				}
				if _, err := s.registry.Register(p, args.AutoSync); err != nil {
					s.logger.Warn("discovered repository failed to register",
						zap.String("path", p), zap.Error(err))
					continue
				}
				out.Registered++
			}
		}
		done(nil)
		return textResult(fmt.Sprintf("Discovered %d repositories", len(paths))), out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_repositories",
		Description: "List every registered repository with its sync state",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, listRepositoriesOutput, error) {
		done := s.metrics.track(ctx, "list_repositories")
		repos := s.registry.ListAll()
		done(nil)
		return textResult(fmt.Sprintf("%d repositories registered", len(repos))), listRepositoriesOutput{
			Repositories: repos,
			Count:        len(repos),
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "repository_status",
		Description: "Report one repository's registry entry, git state, and index statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args repositoryStatusInput) (*mcp.CallToolResult, repositoryStatusOutput, error) {
		done := s.metrics.track(ctx, "repository_status")
		id, err := s.dispatcher.ResolveRepositoryID(args.Repository)
		if err != nil {
			done(err)
			return nil, repositoryStatusOutput{}, err
		}
		status, err := s.manager.Status(ctx, id)
		done(err)
		if err != nil {
			return nil, repositoryStatusOutput{}, err
		}
		return textResult(fmt.Sprintf("Status of %s", status.Info.Name)), repositoryStatusOutput{Status: status}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_repository",
		Description: "Change a repository's search priority or active flag",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args updateRepositoryInput) (*mcp.CallToolResult, updateRepositoryOutput, error) {
		done := s.metrics.track(ctx, "update_repository")
		id, err := s.dispatcher.ResolveRepositoryID(args.Repository)
		if err != nil {
			done(err)
			return nil, updateRepositoryOutput{}, err
		}
		if args.Priority != nil {
			if err := s.registry.UpdatePriority(id, *args.Priority); err != nil {
				done(err)
				return nil, updateRepositoryOutput{}, err
			}
		}
		if args.Active != nil {
			if err := s.registry.UpdateStatus(id, *args.Active); err != nil {
				done(err)
				return nil, updateRepositoryOutput{}, err
			}
		}
		done(nil)
		return textResult(fmt.Sprintf("Updated %s", id)), updateRepositoryOutput{Repository: s.registry.Get(id)}, nil
	})
}

// ===== SYNC TOOLS =====

type syncRepositoryInput struct {
	Repository string `json:"repository" jsonschema:"required,Repository id path or remote URL"`
	Force      bool   `json:"force,omitempty" jsonschema:"Force a full rebuild instead of an incremental sync"`
}

type syncRepositoryOutput struct {
	Result *indexer.SyncResult `json:"result" jsonschema:"Sync outcome"`
}

type syncAllInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Force full rebuilds for every repository"`
}

type syncAllOutput struct {
	Results []*indexer.SyncResult `json:"results" jsonschema:"Per-repository sync outcomes"`
	Count   int                   `json:"count" jsonschema:"Number of repositories synced"`
}

func (s *Server) registerSyncTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sync_repository",
		Description: "Bring a repository's index up to its current HEAD commit",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args syncRepositoryInput) (*mcp.CallToolResult, syncRepositoryOutput, error) {
		done := s.metrics.track(ctx, "sync_repository")
		id, err := s.dispatcher.ResolveRepositoryID(args.Repository)
		if err != nil {
			done(err)
			return nil, syncRepositoryOutput{}, err
		}
		result, err := s.manager.Sync(ctx, id, args.Force)
		done(err)
		if err != nil {
			return nil, syncRepositoryOutput{}, fmt.Errorf("sync failed: %w", err)
		}
		return textResult(fmt.Sprintf("Sync %s: %s, %d files", id, result.Action, result.FilesProcessed)), syncRepositoryOutput{Result: result}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sync_all",
		Description: "Sync every active registered repository",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args syncAllInput) (*mcp.CallToolResult, syncAllOutput, error) {
		done := s.metrics.track(ctx, "sync_all")
		results := s.manager.SyncAll(ctx, args.Force)
		done(nil)
		return textResult(fmt.Sprintf("Synced %d repositories", len(results))), syncAllOutput{
			Results: results,
			Count:   len(results),
		}, nil
	})
}

// ===== SEARCH TOOLS =====

type searchCodeInput struct {
	Query        string   `json:"query" jsonschema:"required,Free-text search query"`
	Repositories []string `json:"repositories,omitempty" jsonschema:"Restrict to these repositories (ids paths or URLs); empty searches all"`
	Limit        int      `json:"limit,omitempty" jsonschema:"Maximum merged results (default from configuration)"`
}

type searchCodeOutput struct {
	Results      []federation.ContentHit `json:"results" jsonschema:"Merged results ranked by score"`
	Repositories int                     `json:"repositories_searched" jsonschema:"How many repositories were searched"`
	Failures     map[string]string       `json:"failures,omitempty" jsonschema:"Repositories that failed with their errors"`
}

type searchSymbolInput struct {
	Name         string   `json:"name" jsonschema:"required,Symbol name; exact matches rank above prefix matches"`
	Repositories []string `json:"repositories,omitempty" jsonschema:"Restrict to these repositories (ids paths or URLs); empty searches all"`
	Limit        int      `json:"limit,omitempty" jsonschema:"Maximum merged results (default from configuration)"`
}

type searchSymbolOutput struct {
	Results      []federation.SymbolHit `json:"results" jsonschema:"Merged results ranked by score"`
	Repositories int                    `json:"repositories_searched" jsonschema:"How many repositories were searched"`
	Failures     map[string]string      `json:"failures,omitempty" jsonschema:"Repositories that failed with their errors"`
}

func (s *Server) registerSearchTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search file contents across registered repository indexes",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchCodeInput) (*mcp.CallToolResult, searchCodeOutput, error) {
		done := s.metrics.track(ctx, "search_code")
		resp, err := s.dispatcher.SearchCode(ctx, args.Query, args.Repositories, args.Limit)
		done(err)
		if err != nil {
			return nil, searchCodeOutput{}, err
		}
		return textResult(fmt.Sprintf("%d results from %d repositories", len(resp.Results), resp.Repositories)), searchCodeOutput{
			Results:      resp.Results,
			Repositories: resp.Repositories,
			Failures:     resp.Failures,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_symbol",
		Description: "Look up a symbol by name across registered repository indexes",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchSymbolInput) (*mcp.CallToolResult, searchSymbolOutput, error) {
		done := s.metrics.track(ctx, "search_symbol")
		resp, err := s.dispatcher.SearchSymbol(ctx, args.Name, args.Repositories, args.Limit)
		done(err)
		if err != nil {
			return nil, searchSymbolOutput{}, err
		}
		return textResult(fmt.Sprintf("%d results from %d repositories", len(resp.Results), resp.Repositories)), searchSymbolOutput{
			Results:      resp.Results,
			Repositories: resp.Repositories,
			Failures:     resp.Failures,
		}, nil
	})
}

// ===== ARTIFACT TOOLS =====

type listArtifactsInput struct {
	Repository string `json:"repository" jsonschema:"required,Repository id path or remote URL"`
}

type listArtifactsOutput struct {
	Artifacts []artifacts.Artifact `json:"artifacts" jsonschema:"Stored snapshots newest first"`
	Count     int                  `json:"count" jsonschema:"Number of artifacts"`
}

type cleanupArtifactsInput struct {
	Repository string `json:"repository" jsonschema:"required,Repository id path or remote URL"`
	KeepLast   int    `json:"keep_last" jsonschema:"How many newest artifacts to keep; zero removes all"`
}

type cleanupArtifactsOutput struct {
	Removed int `json:"removed" jsonschema:"Number of artifacts deleted"`
}

func (s *Server) registerArtifactTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_artifacts",
		Description: "List a repository's commit artifacts, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listArtifactsInput) (*mcp.CallToolResult, listArtifactsOutput, error) {
		done := s.metrics.track(ctx, "list_artifacts")
		id, err := s.dispatcher.ResolveRepositoryID(args.Repository)
		if err != nil {
			done(err)
			return nil, listArtifactsOutput{}, err
		}
		list, err := s.artifacts.List(ctx, id)
		done(err)
		if err != nil {
			return nil, listArtifactsOutput{}, err
		}
		return textResult(fmt.Sprintf("%d artifacts", len(list))), listArtifactsOutput{
			Artifacts: list,
			Count:     len(list),
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cleanup_artifacts",
		Description: "Delete all but the newest commit artifacts of a repository",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cleanupArtifactsInput) (*mcp.CallToolResult, cleanupArtifactsOutput, error) {
		done := s.metrics.track(ctx, "cleanup_artifacts")
		id, err := s.dispatcher.ResolveRepositoryID(args.Repository)
		if err != nil {
			done(err)
			return nil, cleanupArtifactsOutput{}, err
		}
		removed, err := s.artifacts.Cleanup(ctx, id, args.KeepLast)
		done(err)
		if err != nil {
			return nil, cleanupArtifactsOutput{}, err
		}
		return textResult(fmt.Sprintf("Removed %d artifacts", removed)), cleanupArtifactsOutput{Removed: removed}, nil
	})
}

// ===== ADMIN TOOLS =====

type healthCheckOutput struct {
	Report *federation.HealthReport `json:"report" jsonschema:"Per-repository health statuses"`
}

type statisticsOutput struct {
	Statistics *federation.Statistics `json:"statistics" jsonschema:"Aggregated index statistics"`
}

type cleanupRegistryOutput struct {
	Removed int `json:"removed" jsonschema:"Registry entries removed because their index directory vanished"`
}

func (s *Server) registerAdminTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "health_check",
		Description: "Check the health of every registered repository and its index",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, healthCheckOutput, error) {
		done := s.metrics.track(ctx, "health_check")
		report := s.dispatcher.HealthCheck(ctx)
		done(nil)
		summary := "all repositories healthy"
		if !report.Healthy {
			summary = "degraded: one or more repositories unhealthy"
		}
		return textResult(summary), healthCheckOutput{Report: report}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_statistics",
		Description: "Aggregate file, symbol, and language counts across all indexes",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, statisticsOutput, error) {
		done := s.metrics.track(ctx, "index_statistics")
		stats := s.dispatcher.Statistics(ctx)
		done(nil)
		return textResult(fmt.Sprintf("%d repositories, %d files, %d symbols",
			stats.TotalRepositories, stats.TotalFiles, stats.TotalSymbols)), statisticsOutput{Statistics: stats}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cleanup_registry",
		Description: "Drop registry entries whose index directory no longer exists",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, cleanupRegistryOutput, error) {
		done := s.metrics.track(ctx, "cleanup_registry")
		removed, err := s.registry.Cleanup()
		done(err)
		if err != nil {
			return nil, cleanupRegistryOutput{}, err
		}
		return textResult(fmt.Sprintf("Removed %d stale entries", removed)), cleanupRegistryOutput{Removed: removed}, nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
