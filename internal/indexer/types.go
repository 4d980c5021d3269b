package indexer

import (
	"github.com/fyrsmithlabs/indexd/internal/registry"
	"github.com/fyrsmithlabs/indexd/internal/store"
)

// Action names the sync strategy that was applied.
type Action string

const (
	// ActionFull rebuilds the index from every tracked file.
	ActionFull Action = "full"
	// ActionIncremental applies only the files changed since the last
	// indexed commit.
	ActionIncremental Action = "incremental"
	// ActionNoop means the index already matches the repository HEAD.
	ActionNoop Action = "noop"
)

// SyncResult reports the outcome of one repository sync.
//
// Errors holds per-file failures that did not stop the sync; a sync
// with a non-empty Errors list still updated the index for every other
// file.
type SyncResult struct {
	RepositoryID    string   `json:"repository_id"`
	Action          Action   `json:"action"`
	Commit          string   `json:"commit,omitempty"`
	FilesProcessed  int      `json:"files_processed"`
	FilesRemoved    int      `json:"files_removed"`
	FilesSkipped    int      `json:"files_skipped"`
	DurationSeconds float64  `json:"duration_seconds"`
	Errors          []string `json:"errors,omitempty"`
}

// RepositoryStatus combines registry state with live repository and
// index observations.
type RepositoryStatus struct {
	Info        *registry.RepositoryInfo `json:"info"`
	Branch      string                   `json:"branch,omitempty"`
	HeadCommit  string                   `json:"head_commit,omitempty"`
	Dirty       bool                     `json:"dirty"`
	SyncPending bool                     `json:"sync_pending"`
	IndexStats  *store.Stats             `json:"index_stats,omitempty"`
}
