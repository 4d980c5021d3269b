// Package watcher triggers automatic syncs when a watched repository's
// git state changes.
//
// It watches each auto-sync repository's HEAD file and refs directory,
// debounces the burst of filesystem events one git operation produces,
// and then hands the repository to the sync manager.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/registry"
)

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Syncer is the part of the index manager the watcher drives.
type Syncer interface {
	Sync(ctx context.Context, id string, force bool) error
}

// SyncFunc adapts a function to the Syncer interface.
type SyncFunc func(ctx context.Context, id string, force bool) error

func (f SyncFunc) Sync(ctx context.Context, id string, force bool) error {
	return f(ctx, id, force)
}

// Watcher drives auto-sync for registered repositories.
type Watcher struct {
	registry *registry.Registry
	syncer   Syncer
	debounce time.Duration
	logger   *zap.Logger

	fs   *fsnotify.Watcher
	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	byWatch map[string]string // watched path -> repository id
	pending map[string]*time.Timer
}

// New creates a watcher over every active auto-sync repository.
func New(reg *registry.Registry, syncer Syncer, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{
		registry: reg,
		syncer:   syncer,
		debounce: debounce,
		logger:   logger,
		fs:       fs,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		byWatch:  make(map[string]string),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start registers the watches and begins processing events. Repositories
// whose git directory cannot be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, info := range w.registry.ListAll() {
		if !info.AutoSync || !info.Active {
			continue
		}
		if err := w.watchRepository(info); err != nil {
			w.logger.Warn("cannot watch repository",
				zap.String("repository_id", info.RepositoryID),
				zap.String("path", info.Path),
				zap.Error(err),
			)
			continue
		}
		watched++
	}

	w.logger.Info("auto-sync watcher started",
		zap.Int("repositories", watched),
		zap.Duration("debounce", w.debounce),
	)
	go w.run(ctx)
	return nil
}

// watchRepository watches the git metadata paths that change on
// branch switches and new commits.
func (w *Watcher) watchRepository(info *registry.RepositoryInfo) error {
	gitDir, err := detectGitDir(info.Path)
	if err != nil {
		return err
	}

	// HEAD changes on branch switches; refs/heads entries change when
	// commits move a branch. The reflog covers CLI git operations that
	// bypass both.
	paths := []string{
		filepath.Join(gitDir, "HEAD"),
		filepath.Join(gitDir, "refs", "heads"),
	}
	if _, err := os.Stat(filepath.Join(gitDir, "logs", "HEAD")); err == nil {
		paths = append(paths, filepath.Join(gitDir, "logs", "HEAD"))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		w.byWatch[filepath.Clean(p)] = info.RepositoryID
	}
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if id := w.repoForEvent(event.Name); id != "" {
				w.schedule(ctx, id)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// repoForEvent maps an event path back to its repository, checking the
// containing directory for events inside a watched directory.
func (w *Watcher) repoForEvent(name string) string {
	clean := filepath.Clean(name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if id, ok := w.byWatch[clean]; ok {
		return id
	}
	for watch, id := range w.byWatch {
		if strings.HasPrefix(clean, watch+string(filepath.Separator)) {
			return id
		}
	}
	return ""
}

// schedule arms (or re-arms) the repository's debounce timer.
func (w *Watcher) schedule(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[id]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		w.logger.Debug("auto-sync triggered", zap.String("repository_id", id))
		if err := w.syncer.Sync(ctx, id, false); err != nil {
			w.logger.Error("auto-sync failed",
				zap.String("repository_id", id),
				zap.Error(err),
			)
		}
	})
}

// Stop shuts the watcher down and cancels pending debounce timers.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
	}
	close(w.stop)
	_ = w.fs.Close()

	w.mu.Lock()
	for id, timer := range w.pending {
		timer.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()
	<-w.done
}

// detectGitDir resolves the git directory for both normal repositories
// and worktrees, where .git is a pointer file.
func detectGitDir(repoPath string) (string, error) {
	gitPath := filepath.Join(repoPath, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", registry.ErrNotRepository, repoPath)
	}
	if info.IsDir() {
		return gitPath, nil
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("reading .git file: %w", err)
	}
	trimmed := strings.TrimSpace(string(content))
	if !strings.HasPrefix(trimmed, "gitdir:") {
		return "", fmt.Errorf("%w: malformed .git file in %s", registry.ErrNotRepository, repoPath)
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, "gitdir:")), nil
}
