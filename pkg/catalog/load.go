package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed diagnostic.yaml
var defaultCatalog []byte

// Format selects the decoder used by Parse.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Parse decodes and compiles a catalog. Unknown fields are rejected so that
// typos in catalog files surface at load time instead of silently dropping data.
func Parse(data []byte, format Format) (*Catalog, error) {
	var def Definition

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse catalog json: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
		}
	}

	return Compile(def)
}

// LoadFile reads a catalog from a YAML or JSON file (by extension).
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	format := FormatYAML
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		format = FormatJSON
	}
	return Parse(data, format)
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultCatalog, FormatYAML)
})

// Default returns the embedded "Strategic Digital Diagnostic" catalog.
// It panics if the embedded file is invalid, which the package tests rule out.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return loadDefault()
	}
	return LoadFile(path)
}
