package describe

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed catalog.toml
var catalogTOML []byte

// DefaultCategory is used for categories missing from the catalog.
const DefaultCategory = "nature"

// minSentences is the smallest number of sentences a category may carry.
const minSentences = 8

// Catalog maps an image category to its fallback sentences.
type Catalog map[string][]string

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(catalogTOML)
}

// ParseCatalog decodes a TOML catalog and validates it.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if _, ok := c[DefaultCategory]; !ok {
		return nil, fmt.Errorf("catalog has no %q category", DefaultCategory)
	}
	for name, sentences := range c {
		if len(sentences) < minSentences {
			return nil, fmt.Errorf("category %q has %d sentences, need at least %d", name, len(sentences), minSentences)
		}
	}
	return c, nil
}

// Sentences returns the sentences for category, or the default category's
// sentences when it is unknown.
func (c Catalog) Sentences(category string) []string {
	if s, ok := c[strings.ToLower(strings.TrimSpace(category))]; ok {
		return s
	}
	return c[DefaultCategory]
}
