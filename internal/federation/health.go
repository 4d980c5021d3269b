package federation

import (
	"context"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/indexd/internal/store"
)

// Health status values for one repository.
const (
	StatusHealthy      = "healthy"
	StatusNeverSynced  = "never_synced"
	StatusIndexMissing = "index_missing"
	StatusIndexError   = "index_error"
	StatusPathMissing  = "path_missing"
	StatusInactive     = "inactive"
)

// RepoHealth is the probe outcome for one repository.
type RepoHealth struct {
	RepositoryID string   `json:"repository_id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Issues       []string `json:"issues,omitempty"`
}

// HealthReport summarizes every registered repository.
type HealthReport struct {
	Healthy      bool         `json:"healthy"`
	Repositories []RepoHealth `json:"repositories"`
}

// Statistics aggregates registry-wide index state.
type Statistics struct {
	TotalRepositories   int            `json:"total_repositories"`
	ActiveRepositories  int            `json:"active_repositories"`
	IndexedRepositories int            `json:"indexed_repositories"`
	TotalFiles          int            `json:"total_files"`
	TotalSymbols        int            `json:"total_symbols"`
	Languages           map[string]int `json:"languages"`
}

// HealthCheck probes every registered repository. Probing never fails
// the call; a broken repository shows up as its status.
func (d *Dispatcher) HealthCheck(ctx context.Context) *HealthReport {
	_, span := federationTracer.Start(ctx, "Dispatcher.HealthCheck")
	defer span.End()

	report := &HealthReport{Healthy: true}
	for _, info := range d.registry.ListAll() {
		h := RepoHealth{RepositoryID: info.RepositoryID, Name: info.Name}
		switch {
		case !info.Active:
			h.Status = StatusInactive
		case !pathExists(info.Path):
			h.Status = StatusPathMissing
			h.Issues = append(h.Issues, fmt.Sprintf("working tree %s does not exist", info.Path))
			report.Healthy = false
		case info.IndexPath == "":
			h.Status = StatusNeverSynced
			h.Issues = append(h.Issues, "repository has never been synced")
		case !store.Exists(info.IndexPath):
			h.Status = StatusIndexMissing
			h.Issues = append(h.Issues, fmt.Sprintf("index directory %s does not exist", info.IndexPath))
			report.Healthy = false
		default:
			// Opening catches a directory that exists but holds a
			// corrupt or truncated index.
			if st, err := d.openStore(info.IndexPath, d.logger); err != nil {
				h.Status = StatusIndexError
				h.Issues = append(h.Issues, fmt.Sprintf("index unreadable: %v", err))
				report.Healthy = false
			} else {
				st.Close()
				h.Status = StatusHealthy
			}
		}
		report.Repositories = append(report.Repositories, h)
	}
	return report
}

// Statistics aggregates indexed totals across the registry. It reads
// registry state only, so deleted index directories cannot fail it.
func (d *Dispatcher) Statistics(ctx context.Context) *Statistics {
	_, span := federationTracer.Start(ctx, "Dispatcher.Statistics")
	defer span.End()

	stats := &Statistics{Languages: make(map[string]int)}
	for _, info := range d.registry.ListAll() {
		stats.TotalRepositories++
		if info.Active {
			stats.ActiveRepositories++
		}
		if info.IndexPath == "" {
			continue
		}
		stats.IndexedRepositories++
		stats.TotalFiles += info.TotalFiles
		stats.TotalSymbols += info.TotalSymbols
		for lang, n := range info.LanguageStats {
			stats.Languages[lang] += n
		}
	}
	return stats
}

func pathExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
