// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var signature = &object.Signature{
	Name:  "indexd test",
	Email: "indexd@test.invalid",
	When:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

// Repo wraps a real repository in a temp directory.
type Repo struct {
	Dir  string
	Git  *git.Repository
	Tree *git.Worktree
}

// Init creates an empty repository under t.TempDir().
func Init(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("git init: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	return &Repo{Dir: dir, Git: repo, Tree: wt}
}

// WriteFile writes content and stages the file.
func (r *Repo) WriteFile(t *testing.T, rel, content string) {
	t.Helper()

	full := filepath.Join(r.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	if _, err := r.Tree.Add(rel); err != nil {
		t.Fatalf("git add %s: %v", rel, err)
	}
}

// Remove deletes a file and stages the deletion.
func (r *Repo) Remove(t *testing.T, rel string) {
	t.Helper()

	if _, err := r.Tree.Remove(rel); err != nil {
		t.Fatalf("git rm %s: %v", rel, err)
	}
}

// Rename moves a file and stages both sides.
func (r *Repo) Rename(t *testing.T, oldRel, newRel string) {
	t.Helper()

	oldFull := filepath.Join(r.Dir, oldRel)
	newFull := filepath.Join(r.Dir, newRel)
	data, err := os.ReadFile(oldFull)
	if err != nil {
		t.Fatalf("read %s: %v", oldRel, err)
	}
	if _, err := r.Tree.Remove(oldRel); err != nil {
		t.Fatalf("git rm %s: %v", oldRel, err)
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(newFull, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", newRel, err)
	}
	if _, err := r.Tree.Add(newRel); err != nil {
		t.Fatalf("git add %s: %v", newRel, err)
	}
}

// Commit commits staged changes and returns the commit hash.
func (r *Repo) Commit(t *testing.T, msg string) string {
	t.Helper()

	sig := *signature
	sig.When = time.Now()
	hash, err := r.Tree.Commit(msg, &git.CommitOptions{Author: &sig, Committer: &sig})
	if err != nil {
		t.Fatalf("git commit: %v", err)
	}
	return hash.String()
}

// CommitEmpty advances HEAD without changing any file.
func (r *Repo) CommitEmpty(t *testing.T, msg string) string {
	t.Helper()

	sig := *signature
	sig.When = time.Now()
	hash, err := r.Tree.Commit(msg, &git.CommitOptions{
		Author:            &sig,
		Committer:         &sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		t.Fatalf("git commit: %v", err)
	}
	return hash.String()
}

// Head returns the current HEAD commit hash.
func (r *Repo) Head(t *testing.T) string {
	t.Helper()

	ref, err := r.Git.Head()
	if err != nil {
		t.Fatalf("git head: %v", err)
	}
	return ref.Hash().String()
}
