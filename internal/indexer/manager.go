// Package indexer keeps repository indexes in step with git history.
//
// The Manager decides between a full rebuild, an incremental update
// driven by the commit diff, and a no-op, then applies file changes to
// the repository's index store. Syncs for the same repository are
// serialized; different repositories sync independently.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/extract"
	"github.com/fyrsmithlabs/indexd/internal/registry"
	"github.com/fyrsmithlabs/indexd/internal/store"
	"github.com/fyrsmithlabs/indexd/internal/vcs"
)

// maxRecordedErrors caps how many per-file failures a SyncResult keeps.
const maxRecordedErrors = 20

// indexesDirName is the per-repository index root under the base path.
const indexesDirName = "indexes"

// Archiver snapshots an index directory after index-changing syncs.
type Archiver interface {
	Create(ctx context.Context, repoID, indexPath, commit string) (string, error)
	Cleanup(ctx context.Context, repoID string, keepLast int) (int, error)
}

// Manager coordinates repository syncs.
type Manager struct {
	registry   *registry.Registry
	detector   *vcs.Detector
	extractors *extract.Registry
	filter     fileFilter
	cfg        config.IndexConfig
	archiver   Archiver
	logger     *zap.Logger
	metrics    *syncMetrics

	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

// New creates a sync manager backed by the given registry.
func New(reg *registry.Registry, cfg config.IndexConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry:   reg,
		detector:   vcs.NewDetector(logger),
		extractors: extract.NewRegistry(),
		filter: fileFilter{
			excludePatterns: cfg.ExcludePatterns,
			maxFileSize:     cfg.MaxFileSize,
		},
		cfg:       cfg,
		logger:    logger,
		metrics:   newSyncMetrics(logger),
		repoLocks: make(map[string]*sync.Mutex),
	}
}

// SetArchiver enables commit artifact snapshots after syncs.
func (m *Manager) SetArchiver(a Archiver) {
	m.archiver = a
}

// lockRepo returns the mutex serializing syncs of one repository.
func (m *Manager) lockRepo(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.repoLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.repoLocks[id] = l
	}
	return l
}

// Sync brings the repository's index up to its current HEAD.
//
// A repository that was never synced, whose index directory vanished,
// or whose last indexed commit no longer resolves gets a full rebuild.
// An unchanged HEAD is a no-op. Everything else is an incremental
// update from the commit diff. Per-file failures are recorded in the
// result; only storage-level failures abort the sync.
func (m *Manager) Sync(ctx context.Context, id string, force bool) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "Manager.Sync")
	defer span.End()
	span.SetAttributes(
		attribute.String("repository_id", id),
		attribute.Bool("force", force),
	)

	lock := m.lockRepo(id)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	info := m.registry.Get(id)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotRegistered, id)
	}
	if _, err := os.Stat(info.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotRepository, info.Path)
	}

	head, err := vcs.ResolveRef(info.Path, "HEAD")
	if err != nil && !errors.Is(err, vcs.ErrUnresolvableRef) {
		span.RecordError(err)
		return nil, fmt.Errorf("resolving HEAD of %s: %w", info.Path, err)
	}

	action := m.chooseAction(info, head, force)
	span.SetAttributes(attribute.String("action", string(action)))

	result := &SyncResult{RepositoryID: id, Action: action, Commit: head}

	if action == ActionNoop {
		result.DurationSeconds = time.Since(start).Seconds()
		m.metrics.record(ctx, ActionNoop, "ok", 0, time.Since(start))
		m.logger.Debug("index already current",
			zap.String("repository_id", id),
			zap.String("commit", head),
		)
		return result, nil
	}

	indexPath := info.IndexPath
	if indexPath == "" {
		indexPath = filepath.Join(m.registry.BasePath(), indexesDirName, id)
	}

	// A full rebuild starts from an empty index so files deleted long
	// ago cannot linger.
	if action == ActionFull {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("clearing index %s: %w", indexPath, err)
		}
	}

	st, err := store.Open(indexPath, m.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer st.Close()

	switch action {
	case ActionFull:
		err = m.fullSync(ctx, info, head, st, result)
	case ActionIncremental:
		err = m.incrementalSync(ctx, info, head, st, result)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.record(ctx, action, "error", result.FilesProcessed, time.Since(start))
		return nil, err
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.registry.UpdateStatistics(id, indexPath, registry.Statistics{
		TotalFiles:    stats.TotalFiles,
		TotalSymbols:  stats.TotalSymbols,
		LanguageStats: stats.Languages,
	}); err != nil {
		return nil, fmt.Errorf("recording statistics: %w", err)
	}
	if err := m.registry.SetCurrentCommit(id, head); err != nil {
		return nil, fmt.Errorf("recording commit: %w", err)
	}

	if result.Action != ActionNoop {
		m.snapshot(ctx, id, indexPath, head)
	}

	result.DurationSeconds = time.Since(start).Seconds()
	m.metrics.record(ctx, result.Action, "ok", result.FilesProcessed, time.Since(start))
	m.logger.Info("repository synced",
		zap.String("repository_id", id),
		zap.String("action", string(result.Action)),
		zap.String("commit", head),
		zap.Int("files_processed", result.FilesProcessed),
		zap.Int("files_removed", result.FilesRemoved),
		zap.Int("file_errors", len(result.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// chooseAction picks the sync strategy for the repository's state.
func (m *Manager) chooseAction(info *registry.RepositoryInfo, head string, force bool) Action {
	if force {
		return ActionFull
	}
	if info.IndexPath == "" || !store.Exists(info.IndexPath) {
		return ActionFull
	}
	if info.CurrentCommit == head {
		return ActionNoop
	}
	if info.CurrentCommit == "" {
		return ActionFull
	}
	// A last indexed commit that no longer resolves means history was
	// rewritten under us; the diff base is gone.
	if _, err := vcs.ResolveRef(info.Path, info.CurrentCommit); err != nil {
		return ActionFull
	}
	return ActionIncremental
}

func (m *Manager) fullSync(ctx context.Context, info *registry.RepositoryInfo, head string, st store.Store, result *SyncResult) error {
	if head == "" {
		// Repository with no commits yet: a valid, empty index.
		return nil
	}

	files, err := vcs.TrackedFiles(ctx, info.Path, head)
	if err != nil {
		return fmt.Errorf("listing tracked files: %w", err)
	}

	for _, relPath := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !m.filter.admitPath(relPath) {
			result.FilesSkipped++
			continue
		}
		if err := m.indexFile(ctx, info.Path, relPath, st, result); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) incrementalSync(ctx context.Context, info *registry.RepositoryInfo, head string, st store.Store, result *SyncResult) error {
	changes, err := m.detector.Diff(ctx, info.Path, info.CurrentCommit, head)
	if err != nil {
		return fmt.Errorf("diffing %s..%s: %w", info.CurrentCommit, head, err)
	}

	// HEAD moved but no file changed (empty commits, merges that touch
	// nothing). The stored commit still advances so the next sync
	// short-circuits.
	if len(changes) == 0 {
		result.Action = ActionNoop
		return nil
	}

	for _, change := range changes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch change.Action {
		case vcs.ActionDelete:
			if err := st.DeleteFile(ctx, change.Path); err != nil {
				return err
			}
			// A removal is a processed change; FilesRemoved breaks the
			// count down.
			result.FilesProcessed++
			result.FilesRemoved++

		case vcs.ActionRename:
			if err := st.DeleteFile(ctx, change.OldPath); err != nil {
				return err
			}
			result.FilesRemoved++
			if !m.filter.admitPath(change.Path) {
				result.FilesSkipped++
				continue
			}
			if err := m.indexFile(ctx, info.Path, change.Path, st, result); err != nil {
				return err
			}

		case vcs.ActionAdd, vcs.ActionModify:
			if !m.filter.admitPath(change.Path) {
				// The path may have been indexed before the exclusion
				// applied; make sure nothing stale remains.
				if err := st.DeleteFile(ctx, change.Path); err != nil {
					return err
				}
				result.FilesSkipped++
				continue
			}
			if err := m.indexFile(ctx, info.Path, change.Path, st, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// indexFile reads, extracts, and stores one file. Read failures and
// filtered content are recorded or skipped; storage failures propagate.
func (m *Manager) indexFile(ctx context.Context, repoPath, relPath string, st store.Store, result *SyncResult) error {
	content, err := os.ReadFile(filepath.Join(repoPath, relPath))
	if err != nil {
		result.recordError(fmt.Sprintf("%s: %v", relPath, err))
		return nil
	}
	if !m.filter.admitContent(content) {
		result.FilesSkipped++
		return nil
	}

	hash := contentHash(content)
	if stored, ok := st.ContentHash(relPath); ok && stored == hash {
		result.FilesSkipped++
		return nil
	}

	symbols, err := m.extractors.Extract(relPath, content)
	if err != nil && !errors.Is(err, extract.ErrUnsupportedLanguage) {
		result.recordError(fmt.Sprintf("%s: extracting symbols: %v", relPath, err))
		symbols = nil
	}

	if err := st.UpsertFileSymbols(ctx, relPath, symbols, content, hash); err != nil {
		return err
	}
	result.FilesProcessed++
	return nil
}

// snapshot creates and prunes commit artifacts; failures are logged,
// never fatal, because the index itself is already consistent.
func (m *Manager) snapshot(ctx context.Context, id, indexPath, commit string) {
	if m.archiver == nil || !m.cfg.ArtifactsEnabled || commit == "" {
		return
	}
	if _, err := m.archiver.Create(ctx, id, indexPath, commit); err != nil {
		m.logger.Warn("artifact creation failed",
			zap.String("repository_id", id),
			zap.String("commit", commit),
			zap.Error(err),
		)
		return
	}
	if m.cfg.ArtifactKeepLast > 0 {
		if _, err := m.archiver.Cleanup(ctx, id, m.cfg.ArtifactKeepLast); err != nil {
			m.logger.Warn("artifact pruning failed",
				zap.String("repository_id", id),
				zap.Error(err),
			)
		}
	}
}

// SyncAll syncs every active repository, a bounded number at a time.
// Failures are isolated per repository and folded into that
// repository's result.
func (m *Manager) SyncAll(ctx context.Context, force bool) []*SyncResult {
	ctx, span := tracer.Start(ctx, "Manager.SyncAll")
	defer span.End()

	repos := m.registry.ListAll()
	results := make([]*SyncResult, 0, len(repos))

	parallel := m.cfg.SyncConcurrency
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	resultsChan := make(chan *SyncResult, len(repos))

	var wg sync.WaitGroup
	for _, info := range repos {
		if !info.Active {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- &SyncResult{RepositoryID: id, Errors: []string{ctx.Err().Error()}}
				return
			}

			res, err := m.Sync(ctx, id, force)
			if err != nil {
				m.logger.Error("repository sync failed",
					zap.String("repository_id", id),
					zap.Error(err),
				)
				res = &SyncResult{RepositoryID: id, Errors: []string{err.Error()}}
			}
			resultsChan <- res
		}(info.RepositoryID)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for res := range resultsChan {
		results = append(results, res)
	}
	span.SetAttributes(attribute.Int("repositories", len(results)))
	return results
}

// Status reports registry state plus live git and index observations.
// Git and index probes are best effort; a broken worktree still yields
// the registry half of the status.
func (m *Manager) Status(ctx context.Context, id string) (*RepositoryStatus, error) {
	info := m.registry.Get(id)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotRegistered, id)
	}

	status := &RepositoryStatus{Info: info}

	if head, err := vcs.ResolveRef(info.Path, "HEAD"); err == nil {
		status.HeadCommit = head
		status.SyncPending = head != info.CurrentCommit
	}
	if branch, err := vcs.CurrentBranch(info.Path); err == nil {
		status.Branch = branch
	}
	if dirty, err := vcs.HasUncommittedChanges(info.Path); err == nil {
		status.Dirty = dirty
	}

	if store.Exists(info.IndexPath) {
		lock := m.lockRepo(id)
		lock.Lock()
		defer lock.Unlock()
		if st, err := store.Open(info.IndexPath, m.logger); err == nil {
			if stats, err := st.Stats(ctx); err == nil {
				status.IndexStats = &stats
			}
			st.Close()
		}
	}
	return status, nil
}

func (r *SyncResult) recordError(msg string) {
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, msg)
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
