package quality

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed quality_definitions.yaml
var definitionsSeed []byte

// Definition bounds acceptable release sizes for a quality tier.
// Sizes are whole-release megabytes; a zero Max means unbounded.
type Definition struct {
	QualityID   int     `yaml:"quality_id" json:"qualityId"`
	Title       string  `yaml:"title" json:"title"`
	MinSizeMB   float64 `yaml:"min_mb" json:"minSizeMb"`
	MaxSizeMB   float64 `yaml:"max_mb" json:"maxSizeMb"`
	PreferredMB float64 `yaml:"preferred_mb" json:"preferredMb"`
}

type definitionsFile struct {
	Definitions []Definition `yaml:"definitions"`
}

// LoadDefinitions parses the embedded seed table.
func LoadDefinitions() ([]Definition, error) {
	var f definitionsFile
	if err := yaml.Unmarshal(definitionsSeed, &f); err != nil {
		return nil, fmt.Errorf("failed to parse quality definitions: %w", err)
	}
	return f.Definitions, nil
}

// DefinitionFor returns the size bounds for a quality, if defined.
func DefinitionFor(defs []Definition, qualityID int) (Definition, bool) {
	for _, d := range defs {
		if d.QualityID == qualityID {
			return d, true
		}
	}
	return Definition{}, false
}

// SizeAcceptable checks a release size against a quality's bounds.
func SizeAcceptable(defs []Definition, qualityID int, sizeBytes int64) bool {
	d, ok := DefinitionFor(defs, qualityID)
	if !ok {
		return true
	}
	mb := float64(sizeBytes) / (1024 * 1024)
	if d.MinSizeMB > 0 && mb < d.MinSizeMB {
		return false
	}
	if d.MaxSizeMB > 0 && mb > d.MaxSizeMB {
		return false
	}
	return true
}
