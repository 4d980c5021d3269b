package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/gittest"
	gitconfig "github.com/go-git/go-git/v5/config"
)

func TestCanonicalRemoteURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https", "https://github.com/acme/widgets.git", "github.com/acme/widgets"},
		{"https no suffix", "https://github.com/acme/widgets", "github.com/acme/widgets"},
		{"trailing slash", "https://github.com/acme/widgets/", "github.com/acme/widgets"},
		{"ssh scp-like", "git@github.com:acme/widgets.git", "github.com/acme/widgets"},
		{"ssh scheme", "ssh://git@github.com/acme/widgets.git", "github.com/acme/widgets"},
		{"case folded", "https://GitHub.com/Acme/Widgets", "github.com/acme/widgets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalRemoteURL(tt.in))
		})
	}
}

func TestHashRemoteURL_EquivalentFormsAgree(t *testing.T) {
	a := HashRemoteURL("https://github.com/acme/widgets.git")
	b := HashRemoteURL("git@github.com:acme/widgets.git")
	assert.Equal(t, a, b)
	assert.True(t, IsValidID(a))

	other := HashRemoteURL("https://github.com/acme/gadgets.git")
	assert.NotEqual(t, a, other)
}

func TestDeriveID_PathFallback(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	repo.Commit(t, "init")

	id, err := DeriveID(repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, HashLocalPath(repo.Dir), id)

	// Deterministic across calls.
	id2, err := DeriveID(repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestDeriveID_PrefersRemote(t *testing.T) {
	repo := gittest.Init(t)
	repo.WriteFile(t, "a.txt", "a")
	repo.Commit(t, "init")

	_, err := repo.Git.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/acme/widgets.git"},
	})
	require.NoError(t, err)

	id, err := DeriveID(repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, HashRemoteURL("https://github.com/acme/widgets.git"), id)
	assert.NotEqual(t, HashLocalPath(repo.Dir), id)
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("0123456789abcdef"))
	assert.False(t, IsValidID("0123456789ABCDEF"))
	assert.False(t, IsValidID("short"))
	assert.False(t, IsValidID("/home/user/repo"))
}
