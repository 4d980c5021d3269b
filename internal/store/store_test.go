package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/extract"
)

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func upsert(t *testing.T, s *IndexStore, path, content string, symbols []extract.Symbol) {
	t.Helper()
	require.NoError(t, s.UpsertFileSymbols(context.Background(), path, symbols, []byte(content), hashOf(content)))
}

func TestIndexStoreSearch(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	upsert(t, s, "auth/login.go", "package auth\n\nfunc ValidateToken(token string) error {\n\treturn nil\n}\n", nil)
	upsert(t, s, "db/pool.go", "package db\n\nfunc OpenPool(dsn string) error {\n\treturn nil\n}\n", nil)

	results, err := s.Search(context.Background(), "validate token", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "auth/login.go", top.File)
	assert.Equal(t, 3, top.Line)
	assert.Contains(t, top.Snippet, "ValidateToken")
	assert.Greater(t, top.Score, 0.0)
}

func TestIndexStoreUpsertReplaces(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	upsert(t, s, "main.go", "func OldName() {}\n", []extract.Symbol{{Name: "OldName", Kind: "function", Line: 1}})
	upsert(t, s, "main.go", "func NewName() {}\n", []extract.Symbol{{Name: "NewName", Kind: "function", Line: 1}})

	results, err := s.Search(context.Background(), "NewName", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "replaced file must not leave a stale document")
	assert.Contains(t, results[0].Snippet, "NewName")

	old, err := s.SearchSymbol(context.Background(), "OldName", 10)
	require.NoError(t, err)
	assert.Empty(t, old)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.TotalSymbols)
}

func TestIndexStoreDeleteFile(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	upsert(t, s, "gone.py", "def removed():\n    pass\n", []extract.Symbol{{Name: "removed", Kind: "function", Line: 1}})

	require.NoError(t, s.DeleteFile(context.Background(), "gone.py"))

	results, err := s.Search(context.Background(), "removed", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	syms, err := s.SearchSymbol(context.Background(), "removed", 5)
	require.NoError(t, err)
	assert.Empty(t, syms)

	// Deleting a path that was never indexed is a no-op.
	assert.NoError(t, s.DeleteFile(context.Background(), "never/indexed.go"))
}

func TestIndexStoreRenameFile(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	content := "func Moved() {}\n"
	sym := []extract.Symbol{{Name: "Moved", Kind: "function", Line: 1}}
	upsert(t, s, "old/place.go", content, sym)

	require.NoError(t, s.RenameFile(context.Background(), "old/place.go", "new/place.go", sym, []byte(content), hashOf(content)))

	syms, err := s.SearchSymbol(context.Background(), "Moved", 5)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "new/place.go", syms[0].File)

	_, ok := s.ContentHash("old/place.go")
	assert.False(t, ok)
}

func TestIndexStoreSearchSymbolRanking(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	upsert(t, s, "a.go", "package a\n", []extract.Symbol{
		{Name: "Parse", Kind: "function", Line: 3},
		{Name: "ParseConfig", Kind: "function", Line: 9},
		{Name: "Render", Kind: "function", Line: 15},
	})

	results, err := s.SearchSymbol(context.Background(), "Parse", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Parse", results[0].Name)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "ParseConfig", results[1].Name)
	assert.Less(t, results[1].Score, results[0].Score)

	limited, err := s.SearchSymbol(context.Background(), "Parse", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Parse", limited[0].Name)
}

func TestIndexStoreContentHash(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	content := "const answer = 42\n"
	upsert(t, s, "answer.js", content, nil)

	hash, ok := s.ContentHash("answer.js")
	require.True(t, ok)
	assert.Equal(t, hashOf(content), hash)

	_, ok = s.ContentHash("missing.js")
	assert.False(t, ok)
}

func TestIndexStorePersistence(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	upsert(t, s, "svc/handler.go", "package svc\n\nfunc HandleRequest() {}\n", []extract.Symbol{
		{Name: "HandleRequest", Kind: "function", Line: 3},
	})
	require.NoError(t, s.Close())

	reopened, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.TotalSymbols)
	assert.Equal(t, 1, stats.Languages["go"])

	results, err := reopened.Search(context.Background(), "handle request", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "svc/handler.go", results[0].File)
}

func TestIndexStoreEmptyQuery(t *testing.T) {
	s, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), "   ", 5)
	assert.Error(t, err)

	_, err = s.SearchSymbol(context.Background(), "", 5)
	assert.Error(t, err)

	// An empty index answers rather than failing.
	results, err := s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHashEmbeddingDeterministic(t *testing.T) {
	a := hashEmbedding("func ValidateToken(token string) error")
	b := hashEmbedding("func ValidateToken(token string) error")
	assert.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-3)
}
