package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/indexd/internal/extract"
)

const symbolCatalogFile = "symbols.json"

// fileRecord is the indexed state of one file in the symbol catalog.
type fileRecord struct {
	Hash     string           `json:"hash"`
	Language string           `json:"language"`
	Symbols  []extract.Symbol `json:"symbols"`
}

// symbolCatalog holds every indexed file's symbols, persisted as JSON
// beside the vector data. Callers serialize access through IndexStore.
type symbolCatalog struct {
	Version int                    `json:"version"`
	Files   map[string]*fileRecord `json:"files"`
}

func loadSymbolCatalog(dir string) (*symbolCatalog, error) {
	catalog := &symbolCatalog{Version: 1, Files: make(map[string]*fileRecord)}

	raw, err := os.ReadFile(filepath.Join(dir, symbolCatalogFile))
	if os.IsNotExist(err) {
		return catalog, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading symbol catalog: %w", err)
	}
	if err := json.Unmarshal(raw, catalog); err != nil {
		return nil, fmt.Errorf("parsing symbol catalog: %w", err)
	}
	if catalog.Files == nil {
		catalog.Files = make(map[string]*fileRecord)
	}
	return catalog, nil
}

func (c *symbolCatalog) put(path, hash string, symbols []extract.Symbol) {
	c.Files[path] = &fileRecord{
		Hash:     hash,
		Language: extract.DetectLanguage(path),
		Symbols:  symbols,
	}
}

func (c *symbolCatalog) remove(path string) bool {
	if _, ok := c.Files[path]; !ok {
		return false
	}
	delete(c.Files, path)
	return true
}

// save writes the catalog via temp file and rename so a crash mid-write
// never leaves a truncated catalog behind.
func (c *symbolCatalog) save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding symbol catalog: %w", err)
	}

	target := filepath.Join(dir, symbolCatalogFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing symbol catalog: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing symbol catalog: %w", err)
	}
	return nil
}
