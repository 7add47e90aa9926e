package pages

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed pages.yaml
var defaultPages []byte

// Parse decodes a YAML page list and builds a Registry from it.
func Parse(data []byte) (*Registry, error) {
	var descs []Descriptor
	if err := yaml.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("pages: decode yaml: %w", err)
	}
	return NewRegistry(descs)
}

// Default returns the registry shipped with the binary.
func Default() (*Registry, error) {
	return Parse(defaultPages)
}

// Load reads the registry from path, falling back to the embedded default when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pages: read %s: %w", path, err)
	}
	return Parse(data)
}
