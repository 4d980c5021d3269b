package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/gittest"
	"github.com/fyrsmithlabs/indexd/internal/registry"
	"github.com/fyrsmithlabs/indexd/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return New(reg, config.NewDefaultConfig().Index, zap.NewNop()), reg
}

func TestSyncFullThenNoop(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)
	repo.WriteFile(t, "main.go", "package main\n\nfunc Run() {}\n")
	repo.WriteFile(t, "util/strings.go", "package util\n\nfunc Reverse(s string) string { return s }\n")
	head := repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionFull, result.Action)
	assert.Equal(t, head, result.Commit)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Empty(t, result.Errors)

	info := reg.Get(id)
	require.NotNil(t, info)
	assert.NotEmpty(t, info.IndexPath)
	assert.Equal(t, head, info.CurrentCommit)
	assert.Equal(t, 2, info.TotalFiles)
	assert.Equal(t, 2, info.TotalSymbols)
	assert.Equal(t, 2, info.LanguageStats["go"])

	again, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, again.Action)
	assert.Zero(t, again.FilesProcessed)
}

func TestSyncIncremental(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)
	repo.WriteFile(t, "alpha.go", "package app\n\nfunc Alpha() {}\n")
	repo.WriteFile(t, "beta.go", "package app\n\nfunc Beta() {}\n")
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)
	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)

	repo.WriteFile(t, "alpha.go", "package app\n\nfunc Alpha() {}\n\nfunc AlphaPrime() {}\n")
	repo.WriteFile(t, "gamma.go", "package app\n\nfunc Gamma() {}\n")
	repo.Remove(t, "beta.go")
	head := repo.Commit(t, "second")

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionIncremental, result.Action)
	assert.Equal(t, head, result.Commit)
	assert.Equal(t, 3, result.FilesProcessed, "modified alpha, added gamma, deleted beta")
	assert.Equal(t, 1, result.FilesRemoved, "deleted beta")

	info := reg.Get(id)
	st, err := store.Open(info.IndexPath, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	syms, err := st.SearchSymbol(context.Background(), "Gamma", 5)
	require.NoError(t, err)
	assert.Len(t, syms, 1)

	gone, err := st.SearchSymbol(context.Background(), "Beta", 5)
	require.NoError(t, err)
	assert.Empty(t, gone)

	prime, err := st.SearchSymbol(context.Background(), "AlphaPrime", 5)
	require.NoError(t, err)
	assert.Len(t, prime, 1)
}

func TestSyncEmptyDiffNoop(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.go", "package a\n\nfunc A() {}\n")
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)
	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)

	head := repo.CommitEmpty(t, "tag release")

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, result.Action)
	assert.Zero(t, result.FilesProcessed)

	// The stored commit advanced, so the next sync short-circuits
	// before diffing.
	assert.Equal(t, head, reg.Get(id).CurrentCommit)
	again, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, again.Action)
}

func TestSyncRename(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)

	// Enough identical content for the rename similarity heuristic.
	var body string
	for i := 0; i < 50; i++ {
		body += "// stable line of documentation text kept across the move\n"
	}
	repo.WriteFile(t, "old/name.go", "package old\n\nfunc Kept() {}\n"+body)
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)
	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)

	repo.Rename(t, "old/name.go", "new/name.go")
	repo.Commit(t, "move")

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionIncremental, result.Action)

	info := reg.Get(id)
	st, err := store.Open(info.IndexPath, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	syms, err := st.SearchSymbol(context.Background(), "Kept", 5)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "new/name.go", syms[0].File)
}

func TestSyncForceFull(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.go", "package a\n\nfunc A() {}\n")
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)
	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)

	result, err := m.Sync(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, ActionFull, result.Action)
	assert.Equal(t, 1, result.FilesProcessed)
}

func TestSyncEmptyRepository(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionFull, result.Action)
	assert.Empty(t, result.Commit)
	assert.Zero(t, result.FilesProcessed)

	info := reg.Get(id)
	assert.NotEmpty(t, info.IndexPath, "empty sync still establishes the index")

	again, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, again.Action)
}

func TestSyncUnregistered(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Sync(context.Background(), "0123456789abcdef", false)
	require.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestSyncSkipsBinaryAndUnsupported(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)
	repo.WriteFile(t, "good.go", "package good\n\nfunc Good() {}\n")
	repo.WriteFile(t, "blob.go", "\xff\xfe\x00binary payload")
	repo.WriteFile(t, "image.png", "not really a png")
	repo.Commit(t, "mixed")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 2, result.FilesSkipped)
	assert.Empty(t, result.Errors)
}

func TestSyncHonorsExcludePatterns(t *testing.T) {
	reg, err := registry.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	cfg := config.NewDefaultConfig().Index
	cfg.ExcludePatterns = []string{"*_generated.go", "testdata/**"}
	m := New(reg, cfg, zap.NewNop())

	repo := gittest.Init(t)
	repo.WriteFile(t, "app.go", "package app\n\nfunc App() {}\n")
	repo.WriteFile(t, "schema_generated.go", "package app\n\nfunc Generated() {}\n")
	repo.WriteFile(t, "testdata/fixture.go", "package fixture\n\nfunc Fixture() {}\n")
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)

	result, err := m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 2, result.FilesSkipped)
}

func TestSyncAll(t *testing.T) {
	m, reg := newTestManager(t)

	repoA := gittest.Init(t)
	repoA.WriteFile(t, "a.go", "package a\n\nfunc A() {}\n")
	repoA.Commit(t, "a")
	repoB := gittest.Init(t)
	repoB.WriteFile(t, "b.go", "package b\n\nfunc B() {}\n")
	repoB.Commit(t, "b")

	idA, err := reg.Register(repoA.Dir, false)
	require.NoError(t, err)
	idB, err := reg.Register(repoB.Dir, false)
	require.NoError(t, err)

	results := m.SyncAll(context.Background(), false)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, ActionFull, res.Action)
		assert.Equal(t, 1, res.FilesProcessed)
		assert.Empty(t, res.Errors)
	}

	// Deactivated repositories are left alone.
	require.NoError(t, reg.UpdateStatus(idB, false))
	results = m.SyncAll(context.Background(), false)
	require.Len(t, results, 1)
	assert.Equal(t, idA, results[0].RepositoryID)
	assert.Equal(t, ActionNoop, results[0].Action)
}

func TestStatus(t *testing.T) {
	m, reg := newTestManager(t)
	repo := gittest.Init(t)
	repo.WriteFile(t, "svc.go", "package svc\n\nfunc Serve() {}\n")
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)
	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)

	status, err := m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "master", status.Branch)
	assert.False(t, status.Dirty)
	assert.False(t, status.SyncPending)
	require.NotNil(t, status.IndexStats)
	assert.Equal(t, 1, status.IndexStats.TotalFiles)

	repo.WriteFile(t, "svc.go", "package svc\n\nfunc Serve() {}\n\nfunc Stop() {}\n")
	repo.Commit(t, "second")

	status, err = m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, status.SyncPending)
}

type recordingArchiver struct {
	created []string
	pruned  []string
}

func (a *recordingArchiver) Create(_ context.Context, repoID, _ string, commit string) (string, error) {
	a.created = append(a.created, repoID+"@"+commit)
	return "artifact.tar.gz", nil
}

func (a *recordingArchiver) Cleanup(_ context.Context, repoID string, _ int) (int, error) {
	a.pruned = append(a.pruned, repoID)
	return 0, nil
}

func TestSyncCreatesArtifacts(t *testing.T) {
	m, reg := newTestManager(t)
	arch := &recordingArchiver{}
	m.SetArchiver(arch)

	repo := gittest.Init(t)
	repo.WriteFile(t, "a.go", "package a\n\nfunc A() {}\n")
	head := repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, false)
	require.NoError(t, err)

	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	require.Len(t, arch.created, 1)
	assert.Equal(t, id+"@"+head, arch.created[0])
	assert.Equal(t, []string{id}, arch.pruned)

	// A noop sync must not snapshot again.
	_, err = m.Sync(context.Background(), id, false)
	require.NoError(t, err)
	assert.Len(t, arch.created, 1)
}
