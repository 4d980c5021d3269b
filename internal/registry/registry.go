// Package registry manages the persistent catalog of indexed repositories.
//
// The registry is a single JSON document keyed by repository id. Every
// mutation happens under one process-wide lock and is persisted with an
// atomic write (write-to-temp, rename), so a crash mid-write never leaves
// a corrupt document behind.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

// Errors for registry operations.
var (
	ErrNotRepository     = errors.New("path is not a repository root")
	ErrNotRegistered     = errors.New("repository not registered")
	ErrRegistryCorrupted = errors.New("registry file corrupted")
)

const registryFileName = "registry.json"

// Registry is the persistent catalog of known repositories.
type Registry struct {
	mu       sync.RWMutex
	basePath string
	filePath string
	data     *registryData
	byPath   map[string]string // canonical path -> repository id
	logger   *zap.Logger
}

// New creates a registry rooted at basePath, loading any existing
// document from disk.
func New(basePath string, logger *zap.Logger) (*Registry, error) {
	if basePath == "" {
		return nil, errors.New("registry base path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	r := &Registry{
		basePath: basePath,
		filePath: filepath.Join(basePath, registryFileName),
		data: &registryData{
			Version:      1,
			Repositories: make(map[string]*RepositoryInfo),
		},
		byPath: make(map[string]string),
		logger: logger,
	}

	if err := r.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	return r, nil
}

// BasePath returns the registry's state directory.
func (r *Registry) BasePath() string {
	return r.basePath
}

// Register adds a repository to the catalog and returns its id.
//
// Registration is idempotent: registering an already-known path returns
// the existing id without touching its entry. The path must exist and be
// a repository root, otherwise ErrNotRepository is returned.
func (r *Registry) Register(path string, autoSync bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, abs)
	}
	repo, err := git.PlainOpen(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, abs)
	}

	id, err := DeriveID(abs)
	if err != nil {
		return "", fmt.Errorf("deriving repository id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byPath[abs]; ok {
		return existing, nil
	}
	if _, ok := r.data.Repositories[id]; ok {
		// Same remote registered from a second checkout path.
		r.byPath[abs] = id
		return id, nil
	}

	info := &RepositoryInfo{
		RepositoryID: id,
		Name:         filepath.Base(abs),
		Path:         abs,
		AutoSync:     autoSync,
		Active:       true,
	}
	if head, err := repo.Head(); err == nil {
		info.CurrentCommit = head.Hash().String()
	}

	r.data.Repositories[id] = info
	r.byPath[abs] = id

	if err := r.save(); err != nil {
		delete(r.data.Repositories, id)
		delete(r.byPath, abs)
		return "", err
	}

	r.logger.Info("registered repository",
		zap.String("repository_id", id),
		zap.String("path", abs),
		zap.Bool("auto_sync", autoSync),
	)
	return id, nil
}

// Get returns the repository entry for id, or nil if unknown.
func (r *Registry) Get(id string) *RepositoryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Repositories[id].Clone()
}

// GetByPath returns the entry registered for a filesystem path, or nil.
func (r *Registry) GetByPath(path string) *RepositoryInfo {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byPath[abs]; ok {
		return r.data.Repositories[id].Clone()
	}
	return nil
}

// ListAll returns every registered repository, ordered by priority
// descending then name.
func (r *Registry) ListAll() []*RepositoryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repos := make([]*RepositoryInfo, 0, len(r.data.Repositories))
	for _, info := range r.data.Repositories {
		repos = append(repos, info.Clone())
	}
	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Priority != repos[j].Priority {
			return repos[i].Priority > repos[j].Priority
		}
		return repos[i].Name < repos[j].Name
	})
	return repos
}

// Unregister removes a repository from the catalog.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.data.Repositories[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	delete(r.data.Repositories, id)
	delete(r.byPath, info.Path)

	if err := r.save(); err != nil {
		return err
	}
	r.logger.Info("unregistered repository", zap.String("repository_id", id))
	return nil
}

// UpdateCurrentCommit re-resolves HEAD for the repository's path and
// stores the commit, returning it.
func (r *Registry) UpdateCurrentCommit(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.data.Repositories[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}

	repo, err := git.PlainOpen(info.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, info.Path)
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Empty repository: no commits yet.
			return "", nil
		}
		return "", fmt.Errorf("resolving HEAD for %s: %w", info.Path, err)
	}

	info.CurrentCommit = head.Hash().String()
	if err := r.save(); err != nil {
		return "", err
	}
	return info.CurrentCommit, nil
}

// UpdateStatistics merges sync statistics into the entry, records the
// index location, and refreshes the indexed-at timestamp.
func (r *Registry) UpdateStatistics(id, indexPath string, stats Statistics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.data.Repositories[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}

	info.IndexPath = indexPath
	info.TotalFiles = stats.TotalFiles
	info.TotalSymbols = stats.TotalSymbols
	if stats.LanguageStats != nil {
		info.LanguageStats = stats.LanguageStats
	}
	info.IndexedAt = time.Now().UTC()

	return r.save()
}

// SetCurrentCommit records the commit a completed sync indexed.
func (r *Registry) SetCurrentCommit(id, commit string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.data.Repositories[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	info.CurrentCommit = commit
	return r.save()
}

// UpdatePriority sets the search priority for a repository.
func (r *Registry) UpdatePriority(id string, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.data.Repositories[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	info.Priority = priority
	return r.save()
}

// UpdateStatus marks a repository active or inactive. Inactive
// repositories are never synced or searched.
func (r *Registry) UpdateStatus(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.data.Repositories[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	info.Active = active
	return r.save()
}

// Cleanup drops entries whose index directory no longer exists and
// returns how many were removed. Entries that have never been synced
// (no index path yet) are kept.
func (r *Registry) Cleanup() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, info := range r.data.Repositories {
		if info.IndexPath == "" {
			continue
		}
		if _, err := os.Stat(info.IndexPath); os.IsNotExist(err) {
			delete(r.data.Repositories, id)
			delete(r.byPath, info.Path)
			removed++
			r.logger.Info("cleaned up repository with missing index",
				zap.String("repository_id", id),
				zap.String("index_path", info.IndexPath),
			)
		}
	}

	if removed > 0 {
		if err := r.save(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// load reads the registry document from disk.
func (r *Registry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var rd registryData
	if err := json.Unmarshal(data, &rd); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryCorrupted, err)
	}
	if rd.Repositories == nil {
		rd.Repositories = make(map[string]*RepositoryInfo)
	}

	r.data = &rd
	r.byPath = make(map[string]string, len(rd.Repositories))
	for id, info := range rd.Repositories {
		r.byPath[info.Path] = id
	}
	return nil
}

// save writes the registry document atomically. Callers must hold mu.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming registry: %w", err)
	}
	return nil
}
