package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbolNames(symbols []Symbol) []string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return names
}

func TestRegistry_Extract_Go(t *testing.T) {
	src := []byte(`package widgets

const maxRetries = 3

var defaultTimeout = 10

type Widget struct {
	Name string
}

type Assembler interface {
	Assemble() error
}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

func (w *Widget) Render() string {
	return w.Name
}
`)

	r := NewRegistry()
	symbols, err := r.Extract("widget.go", src)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"maxRetries", "defaultTimeout", "Widget", "Assembler", "NewWidget", "Render"},
		symbolNames(symbols),
	)

	byName := make(map[string]Symbol)
	for _, s := range symbols {
		byName[s.Name] = s
	}
	assert.Equal(t, "struct", byName["Widget"].Kind)
	assert.Equal(t, "interface", byName["Assembler"].Kind)
	assert.Equal(t, "function", byName["NewWidget"].Kind)
	assert.Equal(t, "constant", byName["maxRetries"].Kind)
	assert.Equal(t, 3, byName["maxRetries"].Line)
	assert.Positive(t, byName["NewWidget"].Column)
}

func TestRegistry_Extract_Python(t *testing.T) {
	src := []byte(`import os

class Parser:
    def parse(self, text):
        return text

    async def parse_async(self, text):
        return text

def top_level():
    pass
`)

	r := NewRegistry()
	symbols, err := r.Extract("parser.py", src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Parser", "parse", "parse_async", "top_level"}, symbolNames(symbols))
}

func TestRegistry_Extract_TypeScript(t *testing.T) {
	src := []byte(`export interface Options {
  limit: number;
}

export type ResultMap = Record<string, number>;

export const search = async (q: string) => {
  return q;
};

export function plain(a: number) {
  return a;
}
`)

	r := NewRegistry()
	symbols, err := r.Extract("api.ts", src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Options", "ResultMap", "search", "plain"}, symbolNames(symbols))
}

func TestRegistry_Extract_Unsupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract("image.png", []byte{0x89, 0x50})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Nil(t, r.ForFile("image.png"))
}

func TestRegistry_Extract_Deterministic(t *testing.T) {
	src := []byte("func Alpha() {}\nfunc Beta() {}\n")
	r := NewRegistry()

	first, err := r.Extract("x.go", src)
	require.NoError(t, err)
	second, err := r.Extract("x.go", src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app/models.py", "python"},
		{"web/App.TSX", "typescript"},
		{"README.md", "markdown"},
		{"photo.png", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path))
		})
	}
}

func TestIsIndexable(t *testing.T) {
	assert.True(t, IsIndexable("main.go"))
	assert.True(t, IsIndexable("doc.md"))
	assert.False(t, IsIndexable("binary.exe"))
	assert.False(t, IsIndexable("archive.tar.gz"))
}
