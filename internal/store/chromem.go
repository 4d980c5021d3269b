package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/indexd/internal/extract"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var storeTracer = otel.Tracer("indexd.store")

const contentCollection = "content"

// IndexStore is the chromem-backed Store for one repository index
// directory. Content search runs against an embedded persistent vector
// collection; symbol lookup runs against a sidecar catalog kept next to
// it, since exact and prefix name matching have no use for embeddings.
type IndexStore struct {
	dir     string
	db      *chromem.DB
	content *chromem.Collection
	logger  *zap.Logger

	mu      sync.RWMutex
	symbols *symbolCatalog
}

// Exists reports whether path holds an index directory.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Open opens (or creates) the index at dir.
func Open(dir string, logger *zap.Logger) (*IndexStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: empty index path", ErrStorageUnavailable)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrStorageUnavailable, dir, err)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem at %s: %v", ErrStorageUnavailable, dir, err)
	}

	coll, err := db.GetOrCreateCollection(contentCollection, nil, newEmbeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("%w: content collection: %v", ErrStorageUnavailable, err)
	}

	catalog, err := loadSymbolCatalog(dir)
	if err != nil {
		return nil, fmt.Errorf("loading symbol catalog: %w", err)
	}

	logger.Debug("index store opened",
		zap.String("dir", dir),
		zap.Int("files", len(catalog.Files)),
	)

	return &IndexStore{
		dir:     dir,
		db:      db,
		content: coll,
		logger:  logger,
		symbols: catalog,
	}, nil
}

// docID derives the stable content document ID for a file path.
func docID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// UpsertFileSymbols replaces everything indexed for path in one step.
// The content document is rewritten under its stable ID and the symbol
// catalog swaps the file's record, so a reader sees either the old file
// or the new one, never a mix.
func (s *IndexStore) UpsertFileSymbols(ctx context.Context, path string, symbols []extract.Symbol, content []byte, contentHash string) error {
	ctx, span := storeTracer.Start(ctx, "IndexStore.UpsertFileSymbols")
	defer span.End()
	span.SetAttributes(
		attribute.String("file", path),
		attribute.Int("symbols", len(symbols)),
	)

	text := string(content)
	doc := chromem.Document{
		ID:      docID(path),
		Content: text,
		Metadata: map[string]string{
			"path": path,
			"hash": contentHash,
		},
		Embedding: hashEmbedding(text),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop any previous version of the file before inserting under the
	// same ID. The delete is a no-op for first-time paths.
	if err := s.content.Delete(ctx, nil, nil, doc.ID); err != nil {
		s.logger.Debug("stale content doc delete", zap.String("file", path), zap.Error(err))
	}
	if err := s.content.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: storing %s: %v", ErrStorageUnavailable, path, err)
	}

	s.symbols.put(path, contentHash, symbols)
	if err := s.symbols.save(s.dir); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: saving symbol catalog: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// DeleteFile drops everything indexed for path. Deleting a file that
// was never indexed is a no-op.
func (s *IndexStore) DeleteFile(ctx context.Context, path string) error {
	ctx, span := storeTracer.Start(ctx, "IndexStore.DeleteFile")
	defer span.End()
	span.SetAttributes(attribute.String("file", path))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.content.Delete(ctx, nil, nil, docID(path)); err != nil {
		s.logger.Debug("content doc delete", zap.String("file", path), zap.Error(err))
	}
	if !s.symbols.remove(path) {
		return nil
	}
	if err := s.symbols.save(s.dir); err != nil {
		return fmt.Errorf("%w: saving symbol catalog: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// RenameFile moves a file's index entry, reindexing under the new path.
func (s *IndexStore) RenameFile(ctx context.Context, oldPath, newPath string, symbols []extract.Symbol, content []byte, contentHash string) error {
	if err := s.DeleteFile(ctx, oldPath); err != nil {
		return err
	}
	return s.UpsertFileSymbols(ctx, newPath, symbols, content, contentHash)
}

// ContentHash returns the stored hash for path, if the file is indexed.
func (s *IndexStore) ContentHash(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.symbols.Files[path]
	if !ok {
		return "", false
	}
	return rec.Hash, true
}

// Search runs similarity search over indexed file contents.
func (s *IndexStore) Search(ctx context.Context, query string, limit int) ([]ContentResult, error) {
	ctx, span := storeTracer.Start(ctx, "IndexStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	// chromem rejects nResults above the document count.
	count := s.content.Count()
	if count == 0 {
		return []ContentResult{}, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := s.content.Query(ctx, query, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying content: %v", ErrStorageUnavailable, err)
	}

	results := make([]ContentResult, 0, len(hits))
	for _, h := range hits {
		line, snippet := locateSnippet(h.Content, query)
		results = append(results, ContentResult{
			File:    h.Metadata["path"],
			Line:    line,
			Snippet: snippet,
			Score:   float64(h.Similarity),
		})
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// SearchSymbol looks up symbols by name. Exact matches rank above
// prefix matches, ties break on file path then line.
func (s *IndexStore) SearchSymbol(ctx context.Context, name string, limit int) ([]SymbolResult, error) {
	_, span := storeTracer.Start(ctx, "IndexStore.SearchSymbol")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", name))

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("symbol name cannot be empty")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SymbolResult
	for path, rec := range s.symbols.Files {
		for _, sym := range rec.Symbols {
			var score float64
			switch {
			case sym.Name == name:
				score = 1.0
			case strings.HasPrefix(sym.Name, name):
				score = 0.75
			default:
				continue
			}
			results = append(results, SymbolResult{
				Name:      sym.Name,
				Kind:      sym.Kind,
				File:      path,
				Line:      sym.Line,
				Signature: sym.Signature,
				Score:     score,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].File != results[j].File {
			return results[i].File < results[j].File
		}
		return results[i].Line < results[j].Line
	})
	if len(results) > limit {
		results = results[:limit]
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// Stats reports what the index currently holds.
func (s *IndexStore) Stats(ctx context.Context) (Stats, error) {
	_, span := storeTracer.Start(ctx, "IndexStore.Stats")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalFiles: len(s.symbols.Files),
		Languages:  make(map[string]int),
	}
	for _, rec := range s.symbols.Files {
		stats.TotalSymbols += len(rec.Symbols)
		if rec.Language != "" {
			stats.Languages[rec.Language]++
		}
	}
	return stats, nil
}

// Close flushes the symbol catalog. chromem persists on every write, so
// there is nothing else to release.
func (s *IndexStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbols.save(s.dir)
}

// locateSnippet picks the line that best matches the query tokens,
// falling back to the first non-empty line.
func locateSnippet(content, query string) (int, string) {
	tokens := tokenize(query)
	lines := strings.Split(content, "\n")

	bestLine, bestCount := 0, 0
	firstNonEmpty := -1
	for i, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if trimmed == "" {
			continue
		}
		if firstNonEmpty < 0 {
			firstNonEmpty = i
		}
		lower := strings.ToLower(trimmed)
		count := 0
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				count++
			}
		}
		if count > bestCount {
			bestCount, bestLine = count, i
		}
	}

	if bestCount == 0 {
		if firstNonEmpty < 0 {
			return 1, ""
		}
		bestLine = firstNonEmpty
	}
	snippet := strings.TrimSpace(lines[bestLine])
	const maxSnippet = 200
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return bestLine + 1, snippet
}

var _ Store = (*IndexStore)(nil)
