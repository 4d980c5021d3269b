package extract

import (
	"path/filepath"
	"strings"
)

// languageByExt maps file extensions to language names for statistics.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".lua":   "lua",
	".ex":    "elixir",
	".exs":   "elixir",
	".hs":    "haskell",
	".ml":    "ocaml",
	".dart":  "dart",
	".sql":   "sql",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".json":  "json",
	".xml":   "xml",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".md":    "markdown",
	".mdx":   "markdown",
	".rst":   "rst",
	".txt":   "text",
	".proto": "protobuf",
	".tf":    "terraform",
	".zig":   "zig",
	".nim":   "nim",
	".vue":   "vue",
}

// DetectLanguage returns the language name for a path, or "unknown".
func DetectLanguage(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "unknown"
}

// IsIndexable reports whether the file type is worth content-indexing.
// Binary and unrecognized formats are skipped.
func IsIndexable(path string) bool {
	_, ok := languageByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}
