package quality

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpecType identifies a custom-format specification variant.
type SpecType string

const (
	SpecReleaseTitle SpecType = "release_title"
	SpecSource       SpecType = "source"
	SpecResolution   SpecType = "resolution"
	SpecCodec        SpecType = "codec"
	SpecLanguage     SpecType = "language"
	SpecReleaseGroup SpecType = "release_group"
	SpecSizeRange    SpecType = "size_range"
	SpecIndexerFlag  SpecType = "indexer_flag"
)

// FormatInput carries the release fields specifications match against.
type FormatInput struct {
	Title        string
	Source       string
	Resolution   int
	Codec        string
	Language     string
	ReleaseGroup string
	SizeBytes    int64
	IndexerFlags []string
}

// Specification is one predicate within a custom format. Value holds
// the comparison operand: a regex for title specs, a name for
// source/codec/language/group specs, a pixel height for resolution.
type Specification struct {
	Type      SpecType `json:"type"`
	Negate    bool     `json:"negate"`
	Required  bool     `json:"required"`
	Value     string   `json:"value"`
	MinSizeMB int64    `json:"minSizeMb,omitempty"`
	MaxSizeMB int64    `json:"maxSizeMb,omitempty"`
}

// Match evaluates the specification against a release, honouring Negate.
func (s *Specification) Match(in FormatInput) bool {
	matched := s.match(in)
	if s.Negate {
		return !matched
	}
	return matched
}

func (s *Specification) match(in FormatInput) bool {
	switch s.Type {
	case SpecReleaseTitle:
		re, err := regexp.Compile("(?i)" + s.Value)
		if err != nil {
			return false
		}
		return re.MatchString(in.Title)
	case SpecSource:
		return strings.EqualFold(in.Source, s.Value)
	case SpecResolution:
		want, err := strconv.Atoi(s.Value)
		if err != nil {
			return false
		}
		return in.Resolution == want
	case SpecCodec:
		return strings.EqualFold(in.Codec, s.Value)
	case SpecLanguage:
		return strings.EqualFold(in.Language, s.Value)
	case SpecReleaseGroup:
		return strings.EqualFold(in.ReleaseGroup, s.Value)
	case SpecSizeRange:
		mb := in.SizeBytes / (1024 * 1024)
		if s.MinSizeMB > 0 && mb < s.MinSizeMB {
			return false
		}
		if s.MaxSizeMB > 0 && mb > s.MaxSizeMB {
			return false
		}
		return true
	case SpecIndexerFlag:
		for _, f := range in.IndexerFlags {
			if strings.EqualFold(f, s.Value) {
				return true
			}
		}
		return false
	}
	return false
}

// CustomFormat is a named boolean predicate over release metadata.
type CustomFormat struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	IncludeWhenRenaming bool            `json:"includeWhenRenaming"`
	Specifications      []Specification `json:"specifications"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Matches reports whether the format applies to a release: every
// required specification must match, and at least one non-required
// specification must match when any exist.
func (f *CustomFormat) Matches(in FormatInput) bool {
	anyOptional := false
	optionalHit := false

	for i := range f.Specifications {
		s := &f.Specifications[i]
		if s.Required {
			if !s.Match(in) {
				return false
			}
			continue
		}
		anyOptional = true
		if s.Match(in) {
			optionalHit = true
		}
	}

	if anyOptional && !optionalHit {
		return false
	}
	return len(f.Specifications) > 0
}

// SerializeSpecs converts specifications to JSON for database storage.
func SerializeSpecs(specs []Specification) (string, error) {
	data, err := json.Marshal(specs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeSpecs parses JSON specifications from database.
func DeserializeSpecs(data string) ([]Specification, error) {
	var specs []Specification
	if err := json.Unmarshal([]byte(data), &specs); err != nil {
		return nil, err
	}
	return specs, nil
}
