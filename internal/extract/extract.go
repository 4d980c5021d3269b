// Package extract pulls named symbols out of source files.
//
// Extraction strategies are selected once per file through a map keyed
// by file extension. The indexer only depends on replace-on-reindex
// semantics per file; it is agnostic to how symbols are found.
package extract

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedLanguage indicates no extractor handles the file type.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Symbol is a named code entity with its source location.
type Symbol struct {
	Name      string            `json:"name"`
	Kind      string            `json:"kind"`
	Line      int               `json:"line"`
	Column    int               `json:"column"`
	Signature string            `json:"signature,omitempty"`
	Scope     string            `json:"scope,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Extractor extracts symbols from one language family.
type Extractor interface {
	// Language is the canonical language name this extractor serves.
	Language() string

	// Extract returns the symbols defined in content. Implementations
	// must be deterministic: re-extracting unchanged content yields the
	// same symbol set.
	Extract(path string, content []byte) ([]Symbol, error)
}

// Registry maps file extensions to extraction strategies.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the built-in extractors wired.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}

	goEx := newRegexExtractor("go", goPatterns)
	for _, ext := range []string{".go"} {
		r.byExt[ext] = goEx
	}

	pyEx := newRegexExtractor("python", pythonPatterns)
	for _, ext := range []string{".py", ".pyi"} {
		r.byExt[ext] = pyEx
	}

	jsEx := newRegexExtractor("javascript", jsPatterns)
	for _, ext := range []string{".js", ".jsx", ".mjs"} {
		r.byExt[ext] = jsEx
	}

	tsEx := newRegexExtractor("typescript", tsPatterns)
	for _, ext := range []string{".ts", ".tsx"} {
		r.byExt[ext] = tsEx
	}

	rsEx := newRegexExtractor("rust", rustPatterns)
	r.byExt[".rs"] = rsEx

	return r
}

// ForFile returns the extractor for a path, or nil when the file type
// has no symbol support (the file is still content-indexed).
func (r *Registry) ForFile(path string) Extractor {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}

// Extract runs the extractor selected for path. Files without an
// extractor yield ErrUnsupportedLanguage.
func (r *Registry) Extract(path string, content []byte) ([]Symbol, error) {
	ex := r.ForFile(path)
	if ex == nil {
		return nil, ErrUnsupportedLanguage
	}
	return ex.Extract(path, content)
}
