package federation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/registry"
	"github.com/fyrsmithlabs/indexd/internal/store"
)

// ContentHit is one federated content-search result.
type ContentHit struct {
	RepositoryID   string  `json:"repository_id"`
	RepositoryName string  `json:"repository_name"`
	File           string  `json:"file"`
	Line           int     `json:"line"`
	Snippet        string  `json:"snippet"`
	Score          float64 `json:"score"`

	priority int
}

// SymbolHit is one federated symbol-lookup result.
type SymbolHit struct {
	RepositoryID   string  `json:"repository_id"`
	RepositoryName string  `json:"repository_name"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	File           string  `json:"file"`
	Line           int     `json:"line"`
	Signature      string  `json:"signature,omitempty"`
	Score          float64 `json:"score"`

	priority int
}

// ContentResponse carries merged results plus per-repository failures.
type ContentResponse struct {
	Results      []ContentHit      `json:"results"`
	Repositories int               `json:"repositories_searched"`
	Failures     map[string]string `json:"failures,omitempty"`
}

// SymbolResponse is the symbol-lookup counterpart of ContentResponse.
type SymbolResponse struct {
	Results      []SymbolHit       `json:"results"`
	Repositories int               `json:"repositories_searched"`
	Failures     map[string]string `json:"failures,omitempty"`
}

// SearchCode searches file contents across the target repositories.
//
// repoIDs may name repositories by id, path, or remote URL; empty means
// every authorized, active, indexed repository. Per-repository failures
// land in the response, not in the returned error.
func (d *Dispatcher) SearchCode(ctx context.Context, query string, repoIDs []string, limit int) (*ContentResponse, error) {
	ctx, span := federationTracer.Start(ctx, "Dispatcher.SearchCode")
	defer span.End()

	if limit <= 0 {
		limit = d.cfg.DefaultLimit
	}
	span.SetAttributes(attribute.Int("limit", limit))

	infos, err := d.targets(repoIDs)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("repositories", len(infos)))

	results, failures := fanOut(d, ctx, infos, func(taskCtx context.Context, info *registry.RepositoryInfo, st store.Store) ([]ContentHit, error) {
		hits, err := st.Search(taskCtx, query, limit)
		if err != nil {
			return nil, err
		}
		converted := make([]ContentHit, 0, len(hits))
		for _, h := range hits {
			converted = append(converted, ContentHit{
				RepositoryID:   info.RepositoryID,
				RepositoryName: info.Name,
				File:           h.File,
				Line:           h.Line,
				Snippet:        h.Snippet,
				Score:          h.Score,
				priority:       info.Priority,
			})
		}
		return converted, nil
	})

	resp := &ContentResponse{Results: results, Repositories: len(infos), Failures: failures}
	sort.Slice(resp.Results, func(i, j int) bool {
		a, b := resp.Results[i], resp.Results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.RepositoryID != b.RepositoryID {
			return a.RepositoryID < b.RepositoryID
		}
		return a.File < b.File
	})
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}
	return resp, nil
}

// SearchSymbol looks a symbol name up across the target repositories.
func (d *Dispatcher) SearchSymbol(ctx context.Context, name string, repoIDs []string, limit int) (*SymbolResponse, error) {
	ctx, span := federationTracer.Start(ctx, "Dispatcher.SearchSymbol")
	defer span.End()

	if limit <= 0 {
		limit = d.cfg.DefaultLimit
	}

	infos, err := d.targets(repoIDs)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("repositories", len(infos)))

	results, failures := fanOut(d, ctx, infos, func(taskCtx context.Context, info *registry.RepositoryInfo, st store.Store) ([]SymbolHit, error) {
		hits, err := st.SearchSymbol(taskCtx, name, limit)
		if err != nil {
			return nil, err
		}
		converted := make([]SymbolHit, 0, len(hits))
		for _, h := range hits {
			converted = append(converted, SymbolHit{
				RepositoryID:   info.RepositoryID,
				RepositoryName: info.Name,
				Name:           h.Name,
				Kind:           h.Kind,
				File:           h.File,
				Line:           h.Line,
				Signature:      h.Signature,
				Score:          h.Score,
				priority:       info.Priority,
			})
		}
		return converted, nil
	})

	resp := &SymbolResponse{Results: results, Repositories: len(infos), Failures: failures}
	sort.Slice(resp.Results, func(i, j int) bool {
		a, b := resp.Results[i], resp.Results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.RepositoryID != b.RepositoryID {
			return a.RepositoryID < b.RepositoryID
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}
	return resp, nil
}

// outcome is one repository's contribution to a federated query.
type outcome[T any] struct {
	id   string
	hits []T
	err  error
}

// fanOut runs query against each repository's store, a bounded number
// at a time, each under its own timeout. A repository that exceeds its
// timeout is abandoned: its slot is released, the merge proceeds
// without it, and its late result is discarded.
func fanOut[T any](
	d *Dispatcher,
	ctx context.Context,
	infos []*registry.RepositoryInfo,
	query func(ctx context.Context, info *registry.RepositoryInfo, st store.Store) ([]T, error),
) ([]T, map[string]string) {
	sem := make(chan struct{}, d.cfg.MaxConcurrency)
	outcomes := make(chan outcome[T], len(infos))
	var wg sync.WaitGroup

	for _, info := range infos {
		wg.Add(1)
		go func(info *registry.RepositoryInfo) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes <- outcome[T]{id: info.RepositoryID, err: ctx.Err()}
				return
			}

			taskCtx, cancel := context.WithTimeout(ctx, d.cfg.RepoTimeout)
			defer cancel()

			// Buffered so an abandoned task can still finish and be
			// collected by the garbage collector instead of leaking.
			done := make(chan outcome[T], 1)
			go func() {
				if !store.Exists(info.IndexPath) {
					done <- outcome[T]{err: fmt.Errorf("%w: %s", store.ErrIndexNotFound, info.IndexPath)}
					return
				}
				st, err := d.openStore(info.IndexPath, d.logger)
				if err != nil {
					done <- outcome[T]{err: err}
					return
				}
				defer st.Close()
				hits, err := query(taskCtx, info, st)
				done <- outcome[T]{hits: hits, err: err}
			}()

			select {
			case res := <-done:
				res.id = info.RepositoryID
				outcomes <- res
			case <-taskCtx.Done():
				outcomes <- outcome[T]{
					id:  info.RepositoryID,
					err: fmt.Errorf("abandoned after %s: %w", d.cfg.RepoTimeout, taskCtx.Err()),
				}
			}
		}(info)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var merged []T
	var failures map[string]string
	for res := range outcomes {
		if res.err != nil {
			d.logger.Warn("repository search failed",
				zap.String("repository_id", res.id),
				zap.Error(res.err),
			)
			if failures == nil {
				failures = make(map[string]string)
			}
			failures[res.id] = res.err.Error()
			continue
		}
		merged = append(merged, res.hits...)
	}
	return merged, failures
}
