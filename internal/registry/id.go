package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// idPattern matches a well-formed repository id: 16 lowercase hex chars.
var idPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

// IsValidID reports whether s already has repository-id shape.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}

// DeriveID computes the stable repository id for a local checkout.
//
// The id is the hash of the canonicalized origin remote URL when one is
// configured, otherwise the hash of the canonical absolute path. Either
// way the id is deterministic for the life of the registration.
func DeriveID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if repo, err := git.PlainOpen(abs); err == nil {
		if remote, err := repo.Remote(git.DefaultRemoteName); err == nil {
			if urls := remote.Config().URLs; len(urls) > 0 && urls[0] != "" {
				return HashRemoteURL(urls[0]), nil
			}
		}
	}

	return HashLocalPath(abs), nil
}

// HashRemoteURL hashes a canonicalized remote URL into a repository id.
func HashRemoteURL(url string) string {
	return shortHash(CanonicalRemoteURL(url))
}

// HashLocalPath hashes a canonical filesystem path into a repository id.
func HashLocalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return shortHash(filepath.Clean(abs))
}

// CanonicalRemoteURL normalizes the remote URL forms that point at the
// same repository: scheme casing, trailing ".git", and trailing slashes.
// SSH scp-like syntax (git@host:owner/repo) is rewritten to host/owner/repo.
func CanonicalRemoteURL(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	for _, prefix := range []string{"https://", "http://", "ssh://", "git://"} {
		if strings.HasPrefix(strings.ToLower(u), prefix) {
			u = u[len(prefix):]
			break
		}
	}
	if at := strings.Index(u, "@"); at >= 0 {
		u = u[at+1:]
	}
	u = strings.Replace(u, ":", "/", 1)

	return strings.ToLower(u)
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
