package modelpkg

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Metadata mirrors a model package's metadata.yml (spec §6.1).
type Metadata struct {
	MaintainerName  string `yaml:"maintainer_name"`
	MaintainerEmail string `yaml:"maintainer_email"`
	ShortDesc       string `yaml:"short_description"`
	Vers            string `yaml:"vers"`
	Cite            []string `yaml:"cite"`
	DocURL          string `yaml:"doc"`
}

// loadMetadata reads <package>/metadata.yml. Absence is reported to the
// caller rather than silently tolerated: a model package without metadata
// is a malformed package (spec §4.1 "reported with the originating
// file/element").
func loadMetadata(packageDir string) (*Metadata, error) {
	path := filepath.Join(packageDir, "metadata.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &md, nil
}
