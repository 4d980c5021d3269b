package indexer

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/indexd/internal/extract"
)

// skipDirs are path components that never contain first-party source
// worth indexing, even when git tracks them.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// fileFilter decides which tracked files enter the index.
type fileFilter struct {
	excludePatterns []string
	maxFileSize     int64
}

// admitPath checks the relative path alone, before any file read.
func (f *fileFilter) admitPath(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if skipDirs[part] {
			return false
		}
	}
	if !extract.IsIndexable(relPath) {
		return false
	}

	basename := filepath.Base(relPath)
	for _, pattern := range f.excludePatterns {
		if matched, _ := filepath.Match(pattern, basename); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return false
		}
		if strings.Contains(pattern, "**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(relPath, prefix+"/") {
				return false
			}
		}
	}
	return true
}

// admitContent checks properties only visible after reading the file.
// Binary files are skipped silently, same as oversized ones.
func (f *fileFilter) admitContent(content []byte) bool {
	if f.maxFileSize > 0 && int64(len(content)) > f.maxFileSize {
		return false
	}
	return utf8.Valid(content)
}
