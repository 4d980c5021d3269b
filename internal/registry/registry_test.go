package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/gittest"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return r
}

func TestRegistry_Register(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "main.go", "package main\n")
	repo.Commit(t, "init")

	r := newTestRegistry(t)

	id, err := r.Register(repo.Dir, true)
	require.NoError(t, err)
	require.True(t, IsValidID(id))

	info := r.Get(id)
	require.NotNil(t, info)
	assert.Equal(t, filepath.Base(repo.Dir), info.Name)
	assert.Equal(t, repo.Head(t), info.CurrentCommit)
	assert.True(t, info.AutoSync)
	assert.True(t, info.Active)
	assert.Empty(t, info.IndexPath, "index path is set only after a sync")

	// Idempotent: same path returns the same id.
	id2, err := r.Register(repo.Dir, false)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.True(t, r.Get(id).AutoSync, "re-registration must not touch the entry")
}

func TestRegistry_Register_InvalidPath(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Register(filepath.Join(t.TempDir(), "missing"), true)
	assert.ErrorIs(t, err, ErrNotRepository)

	// A plain directory is not a repository root.
	_, err = r.Register(t.TempDir(), true)
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestRegistry_GetByPath(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	repo.Commit(t, "init")

	r := newTestRegistry(t)
	id, err := r.Register(repo.Dir, true)
	require.NoError(t, err)

	info := r.GetByPath(repo.Dir)
	require.NotNil(t, info)
	assert.Equal(t, id, info.RepositoryID)

	assert.Nil(t, r.GetByPath(t.TempDir()))
}

func TestRegistry_Durability(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	commit := repo.Commit(t, "init")

	base := t.TempDir()
	r1, err := New(base, nil)
	require.NoError(t, err)
	id, err := r1.Register(repo.Dir, true)
	require.NoError(t, err)

	// Reload in a fresh instance, as a new process would.
	r2, err := New(base, nil)
	require.NoError(t, err)

	info := r2.Get(id)
	require.NotNil(t, info)
	assert.Equal(t, repo.Dir, info.Path)
	assert.Equal(t, filepath.Base(repo.Dir), info.Name)
	assert.Equal(t, commit, info.CurrentCommit)

	// Reverse index survives the reload too.
	require.NotNil(t, r2.GetByPath(repo.Dir))
}

func TestRegistry_UpdateCurrentCommit(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	repo.Commit(t, "c1")

	r := newTestRegistry(t)
	id, err := r.Register(repo.Dir, true)
	require.NoError(t, err)

	repo.WriteFile(t, "b.txt", "b")
	c2 := repo.Commit(t, "c2")

	got, err := r.UpdateCurrentCommit(id)
	require.NoError(t, err)
	assert.Equal(t, c2, got)
	assert.Equal(t, c2, r.Get(id).CurrentCommit)

	_, err = r.UpdateCurrentCommit("ffffffffffffffff")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_UpdateStatistics(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.go", "package a\n")
	repo.Commit(t, "init")

	r := newTestRegistry(t)
	id, err := r.Register(repo.Dir, true)
	require.NoError(t, err)

	indexDir := t.TempDir()
	err = r.UpdateStatistics(id, indexDir, Statistics{
		TotalFiles:    3,
		TotalSymbols:  12,
		LanguageStats: map[string]int{"go": 2, "markdown": 1},
	})
	require.NoError(t, err)

	info := r.Get(id)
	assert.Equal(t, indexDir, info.IndexPath)
	assert.Equal(t, 3, info.TotalFiles)
	assert.Equal(t, 12, info.TotalSymbols)
	assert.Equal(t, map[string]int{"go": 2, "markdown": 1}, info.LanguageStats)
	assert.False(t, info.IndexedAt.IsZero())
}

func TestRegistry_PriorityAndStatus(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	repo.Commit(t, "init")

	r := newTestRegistry(t)
	id, err := r.Register(repo.Dir, true)
	require.NoError(t, err)

	require.NoError(t, r.UpdatePriority(id, 7))
	require.NoError(t, r.UpdateStatus(id, false))

	info := r.Get(id)
	assert.Equal(t, 7, info.Priority)
	assert.False(t, info.Active)

	assert.ErrorIs(t, r.UpdatePriority("ffffffffffffffff", 1), ErrNotRegistered)
	assert.ErrorIs(t, r.UpdateStatus("ffffffffffffffff", true), ErrNotRegistered)
}

func TestRegistry_Cleanup(t *testing.T) {
	repoA := gittest.Init(t)
	repoA.WriteFile(t, "a.txt", "a")
	repoA.Commit(t, "init")
	repoB := gittest.Init(t)
	repoB.WriteFile(t, "b.txt", "b")
	repoB.Commit(t, "init")

	r := newTestRegistry(t)
	idA, err := r.Register(repoA.Dir, true)
	require.NoError(t, err)
	idB, err := r.Register(repoB.Dir, true)
	require.NoError(t, err)

	// A has a live index, B's index directory is gone.
	liveIndex := t.TempDir()
	require.NoError(t, r.UpdateStatistics(idA, liveIndex, Statistics{}))
	goneIndex := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(goneIndex, 0o755))
	require.NoError(t, r.UpdateStatistics(idB, goneIndex, Statistics{}))
	require.NoError(t, os.RemoveAll(goneIndex))

	removed, err := r.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NotNil(t, r.Get(idA))
	assert.Nil(t, r.Get(idB))
}

func TestRegistry_Unregister(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	repo.Commit(t, "init")

	r := newTestRegistry(t)
	id, err := r.Register(repo.Dir, true)
	require.NoError(t, err)

	require.NoError(t, r.Unregister(id))
	assert.Nil(t, r.Get(id))
	assert.Nil(t, r.GetByPath(repo.Dir))
	assert.ErrorIs(t, r.Unregister(id), ErrNotRegistered)
}

func TestRegistry_ListAllOrdering(t *testing.T) {
	r := newTestRegistry(t)

	var ids []string
	for range 3 {
		repo := gittest.Init(t)
		repo.WriteFile(t, "f.txt", "x")
		repo.Commit(t, "init")
		id, err := r.Register(repo.Dir, true)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, r.UpdatePriority(ids[2], 10))

	all := r.ListAll()
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].RepositoryID, "highest priority first")
	assert.LessOrEqual(t, all[1].Name, all[2].Name, "ties break by name")
}
