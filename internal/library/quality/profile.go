// Package quality defines quality tiers, profiles, and custom formats
// used to rank releases.
package quality

import (
	"encoding/json"
	"time"
)

// Quality represents a quality tier.
type Quality struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Source     string `json:"source"`     // "bluray", "webdl", "hdtv", etc.
	Resolution int    `json:"resolution"` // 480, 720, 1080, 2160
	Weight     int    `json:"weight"`     // Higher = better quality
}

// QualityItem represents a quality in a profile with its allowed status.
type QualityItem struct {
	Quality Quality `json:"quality"`
	Allowed bool    `json:"allowed"`
}

// FormatItem assigns a score to a custom format within a profile.
type FormatItem struct {
	FormatID int64  `json:"formatId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// Profile represents a quality profile.
type Profile struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Cutoff            int           `json:"cutoff"` // Quality ID at which upgrades stop
	UpgradeAllowed    bool          `json:"upgradeAllowed"`
	Items             []QualityItem `json:"items"` // Ordered list of qualities
	FormatItems       []FormatItem  `json:"formatItems"`
	MinFormatScore    int           `json:"minFormatScore"`
	CutoffFormatScore int           `json:"cutoffFormatScore"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// PredefinedQualities are the standard quality definitions, ordered
// worst to best.
var PredefinedQualities = []Quality{
	{ID: 1, Name: "SDTV", Source: "tv", Resolution: 480, Weight: 1},
	{ID: 2, Name: "DVD", Source: "dvd", Resolution: 480, Weight: 2},
	{ID: 3, Name: "WEBRip-480p", Source: "webrip", Resolution: 480, Weight: 3},
	{ID: 4, Name: "HDTV-720p", Source: "tv", Resolution: 720, Weight: 4},
	{ID: 5, Name: "WEBRip-720p", Source: "webrip", Resolution: 720, Weight: 5},
	{ID: 6, Name: "WEBDL-720p", Source: "webdl", Resolution: 720, Weight: 6},
	{ID: 7, Name: "Bluray-720p", Source: "bluray", Resolution: 720, Weight: 7},
	{ID: 8, Name: "HDTV-1080p", Source: "tv", Resolution: 1080, Weight: 8},
	{ID: 9, Name: "WEBRip-1080p", Source: "webrip", Resolution: 1080, Weight: 9},
	{ID: 10, Name: "WEBDL-1080p", Source: "webdl", Resolution: 1080, Weight: 10},
	{ID: 11, Name: "Bluray-1080p", Source: "bluray", Resolution: 1080, Weight: 11},
	{ID: 12, Name: "Remux-1080p", Source: "remux", Resolution: 1080, Weight: 12},
	{ID: 13, Name: "HDTV-2160p", Source: "tv", Resolution: 2160, Weight: 13},
	{ID: 14, Name: "WEBRip-2160p", Source: "webrip", Resolution: 2160, Weight: 14},
	{ID: 15, Name: "WEBDL-2160p", Source: "webdl", Resolution: 2160, Weight: 15},
	{ID: 16, Name: "Bluray-2160p", Source: "bluray", Resolution: 2160, Weight: 16},
	{ID: 17, Name: "Remux-2160p", Source: "remux", Resolution: 2160, Weight: 17},
}

// Unknown is the sentinel quality for releases the resolver cannot place.
var Unknown = Quality{ID: 0, Name: "Unknown", Source: "", Resolution: 0, Weight: 0}

// qualityByID is a lookup map for qualities by ID.
var qualityByID map[int]Quality

func init() {
	qualityByID = make(map[int]Quality)
	for _, q := range PredefinedQualities {
		qualityByID[q.ID] = q
	}
}

// GetQualityByID returns a quality by its ID.
func GetQualityByID(id int) (Quality, bool) {
	q, ok := qualityByID[id]
	return q, ok
}

// GetQualityByName finds a quality by name.
func GetQualityByName(name string) (Quality, bool) {
	for _, q := range PredefinedQualities {
		if q.Name == name {
			return q, true
		}
	}
	return Quality{}, false
}

// DefaultProfile returns a default "Any" profile that accepts all qualities.
func DefaultProfile() Profile {
	items := make([]QualityItem, len(PredefinedQualities))
	for i, q := range PredefinedQualities {
		items[i] = QualityItem{
			Quality: q,
			Allowed: true,
		}
	}
	return Profile{
		Name:           "Any",
		Cutoff:         11, // Bluray-1080p
		UpgradeAllowed: true,
		Items:          items,
	}
}

// HD1080pProfile returns a profile targeting 1080p content.
func HD1080pProfile() Profile {
	items := make([]QualityItem, len(PredefinedQualities))
	for i, q := range PredefinedQualities {
		items[i] = QualityItem{
			Quality: q,
			Allowed: q.Resolution >= 720 && q.Resolution <= 1080,
		}
	}
	return Profile{
		Name:           "HD-1080p",
		Cutoff:         11, // Bluray-1080p
		UpgradeAllowed: true,
		Items:          items,
	}
}

// SerializeItems converts quality items to JSON for database storage.
func SerializeItems(items []QualityItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeItems parses JSON quality items from database.
func DeserializeItems(data string) ([]QualityItem, error) {
	var items []QualityItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// IsAcceptable checks if a quality is acceptable for this profile.
func (p *Profile) IsAcceptable(qualityID int) bool {
	for _, item := range p.Items {
		if item.Quality.ID == qualityID && item.Allowed {
			return true
		}
	}
	return false
}

// Rank returns the position of a quality among the profile's allowed
// items, counted from the worst allowed quality. Disallowed or unknown
// qualities rank -1.
func (p *Profile) Rank(qualityID int) int {
	rank := -1
	pos := 0
	for _, item := range p.Items {
		if !item.Allowed {
			continue
		}
		if item.Quality.ID == qualityID {
			rank = pos
		}
		pos++
	}
	return rank
}

// IsUpgrade checks if candidate quality is an upgrade over current
// quality. Comparison follows the profile's item order, the same
// ordering the evaluator scores releases with; items are reorderable,
// so the predefined weights cannot decide this.
func (p *Profile) IsUpgrade(currentQualityID, candidateQualityID int) bool {
	if !p.UpgradeAllowed {
		return false
	}

	candidateRank := p.Rank(candidateQualityID)
	if candidateRank < 0 {
		return false
	}

	// At or above cutoff, no upgrades. A current quality outside the
	// profile ranks -1 and any allowed candidate upgrades it.
	currentRank := p.Rank(currentQualityID)
	if cutoffRank := p.Rank(p.Cutoff); cutoffRank >= 0 && currentRank >= cutoffRank {
		return false
	}

	return candidateRank > currentRank
}
