// Package federation fans search requests out across registered
// repository indexes and merges the results.
//
// A repository failing or timing out never fails the whole request; it
// is reported alongside the results from the healthy repositories.
package federation

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/registry"
	"github.com/fyrsmithlabs/indexd/internal/store"
)

var federationTracer = otel.Tracer("github.com/fyrsmithlabs/indexd/internal/federation")

// Errors for federated operations.
var (
	ErrNotAuthorized = errors.New("repository not authorized")
	ErrNoTargets     = errors.New("no searchable repositories")
)

// Dispatcher routes federated operations across repositories.
type Dispatcher struct {
	registry *registry.Registry
	cfg      config.SearchConfig
	allowed  map[string]bool
	logger   *zap.Logger

	// openStore is swappable for tests.
	openStore func(dir string, logger *zap.Logger) (store.Store, error)
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(reg *registry.Registry, cfg config.SearchConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	var allowed map[string]bool
	if len(cfg.AllowedRepositories) > 0 {
		allowed = make(map[string]bool, len(cfg.AllowedRepositories))
		for _, id := range cfg.AllowedRepositories {
			allowed[id] = true
		}
	}
	return &Dispatcher{
		registry: reg,
		cfg:      cfg,
		allowed:  allowed,
		logger:   logger,
		openStore: func(dir string, logger *zap.Logger) (store.Store, error) {
			return store.Open(dir, logger)
		},
	}
}

// IsAuthorized reports whether federated operations may touch the
// repository. An empty allow-list authorizes every registered one.
func (d *Dispatcher) IsAuthorized(id string) bool {
	if d.allowed == nil {
		return true
	}
	return d.allowed[id]
}

// ResolveRepositoryID maps a repository id, remote URL, or local path
// onto the registered repository id.
func (d *Dispatcher) ResolveRepositoryID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty reference", registry.ErrNotRegistered)
	}

	if registry.IsValidID(input) {
		if d.registry.Get(input) != nil {
			return input, nil
		}
		return "", fmt.Errorf("%w: %s", registry.ErrNotRegistered, input)
	}

	// Remote URLs hash the same way register does, so both spellings of
	// a repository (https and ssh) resolve to one id.
	if strings.Contains(input, "://") || strings.HasPrefix(input, "git@") {
		id := registry.HashRemoteURL(input)
		if d.registry.Get(id) != nil {
			return id, nil
		}
		return "", fmt.Errorf("%w: %s", registry.ErrNotRegistered, input)
	}

	if info := d.registry.GetByPath(input); info != nil {
		return info.RepositoryID, nil
	}
	return "", fmt.Errorf("%w: %s", registry.ErrNotRegistered, input)
}

// targets picks the repositories a federated request will touch.
//
// With explicit ids, an unauthorized id fails the request outright and
// inactive or unindexed entries are skipped. Without, every authorized,
// active, indexed repository is in scope.
func (d *Dispatcher) targets(ids []string) ([]*registry.RepositoryInfo, error) {
	if len(ids) > 0 {
		infos := make([]*registry.RepositoryInfo, 0, len(ids))
		for _, raw := range ids {
			id, err := d.ResolveRepositoryID(raw)
			if err != nil {
				return nil, err
			}
			if !d.IsAuthorized(id) {
				return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, id)
			}
			info := d.registry.Get(id)
			if !info.Active || info.IndexPath == "" {
				continue
			}
			infos = append(infos, info)
		}
		if len(infos) == 0 {
			return nil, ErrNoTargets
		}
		return infos, nil
	}

	var infos []*registry.RepositoryInfo
	for _, info := range d.registry.ListAll() {
		if !info.Active || info.IndexPath == "" || !d.IsAuthorized(info.RepositoryID) {
			continue
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return nil, ErrNoTargets
	}
	return infos, nil
}
