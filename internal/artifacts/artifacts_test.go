package artifacts

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const repoID = "0123456789abcdef"

func writeIndexDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}
	return dir
}

func TestCreateAndList(t *testing.T) {
	m := NewManager(t.TempDir(), zap.NewNop())
	index := writeIndexDir(t, map[string]string{
		"symbols.json":     `{"version":1}`,
		"content/data.gob": "vector data",
	})

	commit := "aabbccddeeff00112233445566778899aabbccdd"
	path, err := m.Create(context.Background(), repoID, index, commit)
	require.NoError(t, err)
	require.FileExists(t, path)
	assert.Equal(t, repoID+"_aabbccddeeff.tar.gz", filepath.Base(path))

	list, err := m.List(context.Background(), repoID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "aabbccddeeff", list[0].Commit)
	assert.Greater(t, list[0].SizeMB, 0.0)

	// Snapshots are immutable: a second create for the same commit
	// returns the existing artifact.
	info, err := os.Stat(path)
	require.NoError(t, err)
	again, err := m.Create(context.Background(), repoID, index, commit)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestCreateArchiveContents(t *testing.T) {
	m := NewManager(t.TempDir(), zap.NewNop())
	index := writeIndexDir(t, map[string]string{
		"symbols.json": `{"version":1}`,
	})

	path, err := m.Create(context.Background(), repoID, index, "feedfacecafef00d")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "symbols.json", hdr.Name)
	data, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCreateSkipsMissingOrEmptyIndex(t *testing.T) {
	m := NewManager(t.TempDir(), zap.NewNop())

	path, err := m.Create(context.Background(), repoID, filepath.Join(t.TempDir(), "nope"), "abc123")
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = m.Create(context.Background(), repoID, t.TempDir(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, path)

	list, err := m.List(context.Background(), repoID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCleanupKeepsNewest(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base, zap.NewNop())
	index := writeIndexDir(t, map[string]string{"symbols.json": "{}"})

	commits := []string{"commit000001", "commit000002", "commit000003"}
	now := time.Now()
	for i, c := range commits {
		path, err := m.Create(context.Background(), repoID, index, c)
		require.NoError(t, err)
		// Stagger mod times so ordering is unambiguous.
		stamp := now.Add(time.Duration(i-len(commits)) * time.Minute)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}

	removed, err := m.Cleanup(context.Background(), repoID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	list, err := m.List(context.Background(), repoID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "commit000003", list[0].Commit)
	assert.Equal(t, "commit000002", list[1].Commit)

	// keep_last of zero drops everything.
	removed, err = m.Cleanup(context.Background(), repoID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	list, err = m.List(context.Background(), repoID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = m.Cleanup(context.Background(), repoID, -1)
	assert.Error(t, err)
}
