package registry

import "time"

// RepositoryInfo describes a registered repository and its sync state.
//
// The zero IndexPath means the repository has never completed a sync;
// IndexPath is set by the index manager on the first successful sync.
type RepositoryInfo struct {
	RepositoryID  string         `json:"repository_id"`
	Name          string         `json:"name"`
	Path          string         `json:"path"`
	IndexPath     string         `json:"index_path,omitempty"`
	CurrentCommit string         `json:"current_commit,omitempty"`
	AutoSync      bool           `json:"auto_sync"`
	Active        bool           `json:"active"`
	Priority      int            `json:"priority"`
	LanguageStats map[string]int `json:"language_stats,omitempty"`
	TotalFiles    int            `json:"total_files"`
	TotalSymbols  int            `json:"total_symbols"`
	IndexedAt     time.Time      `json:"indexed_at"`
}

// Clone returns a deep copy so callers can't mutate registry state.
func (r *RepositoryInfo) Clone() *RepositoryInfo {
	if r == nil {
		return nil
	}
	cp := *r
	if r.LanguageStats != nil {
		cp.LanguageStats = make(map[string]int, len(r.LanguageStats))
		for k, v := range r.LanguageStats {
			cp.LanguageStats[k] = v
		}
	}
	return &cp
}

// Statistics carries the outcome of a successful sync back into the
// registry entry.
type Statistics struct {
	TotalFiles    int
	TotalSymbols  int
	LanguageStats map[string]int
}

// registryData is the persisted registry document, keyed by repository id.
type registryData struct {
	Version      int                        `json:"version"`
	Repositories map[string]*RepositoryInfo `json:"repositories"`
}
