// Package vcs wraps git operations the indexer depends on: ref
// resolution, commit-to-commit diffs, and working-tree state.
package vcs

import (
	"context"
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Errors for version-control operations.
var (
	ErrNotRepository   = errors.New("not a git repository")
	ErrUnresolvableRef = errors.New("cannot resolve ref")
)

// ResolveRef resolves a revision (branch, tag, "HEAD", or commit SHA) to
// a full commit hash.
func ResolveRef(repoPath, ref string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %q in %s: %v", ErrUnresolvableRef, ref, repoPath, err)
	}
	return hash.String(), nil
}

// CurrentBranch returns the checked-out branch name, or "" for a
// detached HEAD.
func CurrentBranch(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "", nil
}

// HasUncommittedChanges reports whether the working tree is dirty.
func HasUncommittedChanges(repoPath string) (bool, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("opening worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading status: %w", err)
	}
	return !status.IsClean(), nil
}

// TrackedFiles lists every file path tracked at the given commit.
func TrackedFiles(ctx context.Context, repoPath, commit string) ([]string, error) {
	tree, err := commitTree(repoPath, commit)
	if err != nil {
		return nil, err
	}

	var files []string
	iter := tree.Files()
	defer iter.Close()
	err = iter.ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking tree at %s: %w", commit, err)
	}
	return files, nil
}

func commitTree(repoPath, commit string) (*object.Tree, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}
	hash := plumbing.NewHash(commit)
	c, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s: %v", ErrUnresolvableRef, commit, repoPath, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", commit, err)
	}
	return tree, nil
}
