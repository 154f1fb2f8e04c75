package model

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Info describes one recognition model known to the service
type Info struct {
	Name      string `yaml:"name"`
	Repo      string `yaml:"repo"`
	Size      string `yaml:"size"` // Human-readable, surfaced by check-model
	SizeBytes int64  `yaml:"size_bytes"`
	URL       string `yaml:"url"`
}

// Catalog is the set of models the service can download and load
type Catalog struct {
	Models []Info `yaml:"models"`
}

// DefaultCatalog parses the embedded model manifest
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(embeddedCatalog)
}

// LoadCatalog reads a catalog from a YAML file. An empty path falls back to
// the embedded manifest.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	if len(c.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}
	for _, m := range c.Models {
		if m.Name == "" || m.URL == "" {
			return nil, fmt.Errorf("model catalog entry missing name or url: %+v", m)
		}
	}
	return &c, nil
}

// Lookup finds a model by name
func (c *Catalog) Lookup(name string) (Info, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Info{}, false
}

// Names lists the catalog's model names in manifest order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		names = append(names, m.Name)
	}
	return names
}

// ArtifactPath returns where a model's artifacts live under the cache dir
func ArtifactPath(cacheDir string, info Info) string {
	return filepath.Join(cacheDir, info.Name, "model.bin")
}
