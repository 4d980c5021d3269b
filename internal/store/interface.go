// Package store persists and queries per-repository code indexes.
//
// Each repository owns one index directory, exclusively written by its
// sync path and only read by search. The index manager depends on the
// Store contract alone; the chromem-backed implementation below is one
// engine behind it.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/indexd/internal/extract"
)

// Sentinel errors for index storage operations.
var (
	ErrStorageUnavailable = errors.New("index storage unavailable")
	ErrIndexNotFound      = errors.New("index not found")
)

// ContentResult is one content-search hit inside a single repository.
type ContentResult struct {
	File    string  `json:"file"`
	Line    int     `json:"line"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// SymbolResult is one symbol-lookup hit inside a single repository.
type SymbolResult struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	File      string  `json:"file"`
	Line      int     `json:"line"`
	Signature string  `json:"signature,omitempty"`
	Score     float64 `json:"score"`
}

// Stats aggregates what an index currently holds.
type Stats struct {
	TotalFiles   int            `json:"total_files"`
	TotalSymbols int            `json:"total_symbols"`
	Languages    map[string]int `json:"languages"`
}

// Store is the per-repository index contract.
//
// UpsertFileSymbols must atomically replace the file's previous symbol
// set: a concurrent query never observes a half-updated file.
type Store interface {
	UpsertFileSymbols(ctx context.Context, path string, symbols []extract.Symbol, content []byte, contentHash string) error
	DeleteFile(ctx context.Context, path string) error
	RenameFile(ctx context.Context, oldPath, newPath string, symbols []extract.Symbol, content []byte, contentHash string) error

	Search(ctx context.Context, query string, limit int) ([]ContentResult, error)
	SearchSymbol(ctx context.Context, name string, limit int) ([]SymbolResult, error)

	ContentHash(path string) (string, bool)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
