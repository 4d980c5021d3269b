package watcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/gittest"
	"github.com/fyrsmithlabs/indexd/internal/registry"
)

func TestWatcherTriggersSyncOnCommit(t *testing.T) {
	reg, err := registry.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	repo := gittest.Init(t)
	repo.WriteFile(t, "main.go", "package main\n")
	repo.Commit(t, "initial")

	id, err := reg.Register(repo.Dir, true)
	require.NoError(t, err)

	synced := make(chan string, 10)
	w, err := New(reg, SyncFunc(func(_ context.Context, id string, force bool) error {
		assert.False(t, force)
		synced <- id
		return nil
	}), 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	repo.WriteFile(t, "next.go", "package main\n\nfunc Next() {}\n")
	repo.Commit(t, "second")

	select {
	case got := <-synced:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no sync triggered after commit")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	reg, err := registry.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	repo := gittest.Init(t)
	repo.WriteFile(t, "main.go", "package main\n")
	repo.Commit(t, "initial")

	_, err = reg.Register(repo.Dir, true)
	require.NoError(t, err)

	synced := make(chan string, 10)
	w, err := New(reg, SyncFunc(func(_ context.Context, id string, _ bool) error {
		synced <- id
		return nil
	}), 300*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Several commits in quick succession collapse into one sync.
	for i := 0; i < 3; i++ {
		repo.WriteFile(t, "churn.go", fmt.Sprintf("package main\n// rev %d\n", i))
		repo.Commit(t, fmt.Sprintf("churn %d", i))
	}

	select {
	case <-synced:
	case <-time.After(5 * time.Second):
		t.Fatal("no sync triggered after commits")
	}
	select {
	case <-synced:
		t.Fatal("burst of commits produced more than one sync")
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcherIgnoresManualSyncRepos(t *testing.T) {
	reg, err := registry.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	repo := gittest.Init(t)
	repo.WriteFile(t, "main.go", "package main\n")
	repo.Commit(t, "initial")

	_, err = reg.Register(repo.Dir, false)
	require.NoError(t, err)

	synced := make(chan string, 1)
	w, err := New(reg, SyncFunc(func(_ context.Context, id string, _ bool) error {
		synced <- id
		return nil
	}), 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	repo.WriteFile(t, "other.go", "package main\n")
	repo.Commit(t, "change")

	select {
	case <-synced:
		t.Fatal("manual-sync repository must not auto-sync")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestDetectGitDir(t *testing.T) {
	repo := gittest.Init(t)
	dir, err := detectGitDir(repo.Dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = detectGitDir(t.TempDir())
	require.ErrorIs(t, err, registry.ErrNotRepository)
}
