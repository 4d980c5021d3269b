package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/gittest"
)

// writeTestConfig points the CLI at an isolated state directory and
// returns after sync so commands operate on real indexed data.
func writeTestConfig(t *testing.T) {
	t.Helper()

	base := t.TempDir()
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("registry:\n  base_path: %s\n", base)
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))

	prev := configPath
	configPath = cfgFile
	t.Cleanup(func() { configPath = prev })

	// Context is normally installed by Execute.
	for _, c := range []*cobra.Command{registerCmd, syncCmd, listCmd, statusCmd} {
		c.SetContext(context.Background())
	}
}

func TestOpenEnv(t *testing.T) {
	writeTestConfig(t)

	e, err := openEnv()
	require.NoError(t, err)
	assert.NotNil(t, e.registry)
	assert.NotNil(t, e.manager)
	assert.NotNil(t, e.artifacts)
	assert.NotNil(t, e.dispatcher)
}

func TestRegisterSyncList(t *testing.T) {
	writeTestConfig(t)

	repo := gittest.Init(t)
	repo.WriteFile(t, "main.go", "package main\n\nfunc main() {}\n")
	repo.Commit(t, "initial")

	require.NoError(t, runRegister(registerCmd, []string{repo.Dir}))
	require.NoError(t, runSync(syncCmd, []string{repo.Dir}))
	require.NoError(t, runList(listCmd, nil))
	require.NoError(t, runStatus(statusCmd, []string{repo.Dir}))
}

func TestRegisterRejectsNonRepository(t *testing.T) {
	writeTestConfig(t)

	err := runRegister(registerCmd, []string{t.TempDir()})
	assert.Error(t, err)
}

func TestResolveRepoUnknown(t *testing.T) {
	writeTestConfig(t)

	e, err := openEnv()
	require.NoError(t, err)

	_, err = e.resolveRepo("ffffffffffffffff")
	assert.Error(t, err)
}
