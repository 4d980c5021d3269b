package extract

import (
	"regexp"
	"strings"
)

// pattern pairs a compiled line regex with the symbol kind it yields.
// The first capture group is the symbol name.
type pattern struct {
	re   *regexp.Regexp
	kind string
}

var goPatterns = []pattern{
	{regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*(?:\[[^\]]*\])?\(`), "function"},
	{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\b`), "struct"},
	{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+interface\b`), "interface"},
	{regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "type"},
	{regexp.MustCompile(`^var\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "variable"},
	{regexp.MustCompile(`^const\s+([A-Za-z_][A-Za-z0-9_]*)\b`), "constant"},
}

var pythonPatterns = []pattern{
	{regexp.MustCompile(`^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), "function"},
	{regexp.MustCompile(`^\s*async\s+def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), "function"},
	{regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[(:]`), "class"},
}

var jsPatterns = []pattern{
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`), "function"},
	{regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`), "class"},
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$][A-Za-z0-9_$]*)\s*=>`), "function"},
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`), "variable"},
}

var tsPatterns = append([]pattern{
	{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)`), "interface"},
	{regexp.MustCompile(`^\s*(?:export\s+)?type\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`), "type"},
	{regexp.MustCompile(`^\s*(?:export\s+)?enum\s+([A-Za-z_$][A-Za-z0-9_$]*)`), "enum"},
}, jsPatterns...)

var rustPatterns = []pattern{
	{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`), "function"},
	{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`), "struct"},
	{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+([A-Za-z_][A-Za-z0-9_]*)`), "enum"},
	{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+([A-Za-z_][A-Za-z0-9_]*)`), "trait"},
}

// regexExtractor scans line by line and reports the first pattern that
// matches each line. Crude next to a real parser, but deterministic and
// language-servicing enough for symbol lookup.
type regexExtractor struct {
	language string
	patterns []pattern
}

func newRegexExtractor(language string, patterns []pattern) *regexExtractor {
	return &regexExtractor{language: language, patterns: patterns}
}

func (e *regexExtractor) Language() string { return e.language }

func (e *regexExtractor) Extract(path string, content []byte) ([]Symbol, error) {
	var symbols []Symbol

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		for _, p := range e.patterns {
			loc := p.re.FindStringSubmatchIndex(line)
			if loc == nil {
				continue
			}
			name := line[loc[2]:loc[3]]
			symbols = append(symbols, Symbol{
				Name:      name,
				Kind:      p.kind,
				Line:      i + 1,
				Column:    loc[2] + 1,
				Signature: strings.TrimSpace(line),
			})
			break
		}
	}
	return symbols, nil
}
