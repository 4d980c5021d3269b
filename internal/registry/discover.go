package registry

import (
	"os"
	"path/filepath"
	"sort"
)

// skipDirs are directories never worth descending into during discovery.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".next":        true,
}

// Discover recursively scans each root for repository roots.
//
// Once a repository root is found, discovery does not descend into it
// looking for nested repositories; siblings and unrelated subtrees are
// still scanned. Plain, non-repository directories are walked but never
// returned. The result is sorted and de-duplicated.
func Discover(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var found []string

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			continue
		}
		if err := discoverInto(abs, seen, &found); err != nil {
			return nil, err
		}
	}

	sort.Strings(found)
	return found, nil
}

func discoverInto(dir string, seen map[string]bool, found *[]string) error {
	if isRepositoryRoot(dir) {
		if !seen[dir] {
			seen[dir] = true
			*found = append(*found, dir)
		}
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Unreadable directories are skipped, not fatal.
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if skipDirs[name] || name == ".git" {
			continue
		}
		if err := discoverInto(filepath.Join(dir, name), seen, found); err != nil {
			return err
		}
	}
	return nil
}

// isRepositoryRoot reports whether dir is the top of a working tree.
// A .git directory or file (worktrees, submodules) both count.
func isRepositoryRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
