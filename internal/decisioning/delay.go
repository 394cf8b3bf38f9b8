package decisioning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/indexer/types"
)

// DelayProfile controls protocol preference and propagation delay.
type DelayProfile struct {
	ID                     int64          `json:"id"`
	PreferredProtocol      types.Protocol `json:"preferredProtocol"`
	EnableUsenet           bool           `json:"enableUsenet"`
	EnableTorrent          bool           `json:"enableTorrent"`
	UsenetDelayMin         int            `json:"usenetDelay"`
	TorrentDelayMin        int            `json:"torrentDelay"`
	BypassIfHighestQuality bool           `json:"bypassIfHighestQuality"`
	BypassAboveCFScore     bool           `json:"bypassIfAboveCustomFormatScore"`
	MinimumCFScore         int            `json:"minimumCustomFormatScore"`
	Priority               int            `json:"priority"`
	Tags                   []int64        `json:"tags"`
}

// AllowsProtocol reports whether the profile permits the protocol.
func (p *DelayProfile) AllowsProtocol(protocol types.Protocol) bool {
	switch protocol {
	case types.ProtocolUsenet:
		return p.EnableUsenet
	case types.ProtocolTorrent:
		return p.EnableTorrent
	}
	return false
}

// DelayFor returns the propagation delay for the protocol.
func (p *DelayProfile) DelayFor(protocol types.Protocol) time.Duration {
	switch protocol {
	case types.ProtocolUsenet:
		return time.Duration(p.UsenetDelayMin) * time.Minute
	case types.ProtocolTorrent:
		return time.Duration(p.TorrentDelayMin) * time.Minute
	}
	return 0
}

// DelayService manages delay profiles.
type DelayService struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewDelayService creates the delay profile store.
func NewDelayService(db *sql.DB, logger zerolog.Logger) *DelayService {
	return &DelayService{
		db:     db,
		logger: logger.With().Str("component", "delay-profiles").Logger(),
	}
}

// EnsureDefault seeds the global profile when none exist.
func (s *DelayService) EnsureDefault(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delay_profiles`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count delay profiles: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delay_profiles (preferred_protocol, enable_usenet, enable_torrent, usenet_delay_min, torrent_delay_min,
			bypass_if_highest_quality, bypass_above_cf_score, minimum_cf_score, priority, tags)
		 VALUES ('torrent', 1, 1, 0, 0, 1, 0, 0, 2147483647, '[]')`)
	if err != nil {
		return fmt.Errorf("failed to seed default delay profile: %w", err)
	}
	return nil
}

// List returns all delay profiles ordered by priority.
func (s *DelayService) List(ctx context.Context) ([]*DelayProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preferred_protocol, enable_usenet, enable_torrent, usenet_delay_min, torrent_delay_min,
			bypass_if_highest_quality, bypass_above_cf_score, minimum_cf_score, priority, tags
		 FROM delay_profiles ORDER BY priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to list delay profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*DelayProfile
	for rows.Next() {
		var (
			p    DelayProfile
			tags sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.PreferredProtocol, &p.EnableUsenet, &p.EnableTorrent, &p.UsenetDelayMin,
			&p.TorrentDelayMin, &p.BypassIfHighestQuality, &p.BypassAboveCFScore,
			&p.MinimumCFScore, &p.Priority, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan delay profile: %w", err)
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
				return nil, fmt.Errorf("failed to decode delay profile tags: %w", err)
			}
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// Create adds a delay profile.
func (s *DelayService) Create(ctx context.Context, p *DelayProfile) (*DelayProfile, error) {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	if p.PreferredProtocol == "" {
		p.PreferredProtocol = types.ProtocolTorrent
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO delay_profiles (preferred_protocol, enable_usenet, enable_torrent, usenet_delay_min, torrent_delay_min,
			bypass_if_highest_quality, bypass_above_cf_score, minimum_cf_score, priority, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.PreferredProtocol), p.EnableUsenet, p.EnableTorrent, p.UsenetDelayMin, p.TorrentDelayMin,
		p.BypassIfHighestQuality, p.BypassAboveCFScore, p.MinimumCFScore, p.Priority, string(tags))
	if err != nil {
		return nil, fmt.Errorf("failed to create delay profile: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

// Delete removes a delay profile.
func (s *DelayService) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM delay_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete delay profile: %w", err)
	}
	return nil
}

// ProfileForTags selects the applicable delay profile for an event's
// tags: the highest-priority (lowest number) profile whose tag set
// intersects, falling back to the untagged global profile.
func ProfileForTags(profiles []*DelayProfile, eventTags []int64) *DelayProfile {
	tagSet := make(map[int64]bool, len(eventTags))
	for _, t := range eventTags {
		tagSet[t] = true
	}

	var best, global *DelayProfile
	for _, p := range profiles {
		if len(p.Tags) == 0 {
			if global == nil || p.Priority < global.Priority {
				global = p
			}
			continue
		}
		for _, t := range p.Tags {
			if tagSet[t] {
				if best == nil || p.Priority < best.Priority {
					best = p
				}
				break
			}
		}
	}
	if best != nil {
		return best
	}
	return global
}

// CheckDelay decides whether a release has aged past the propagation
// delay for its protocol. A release at the profile cutoff or above the
// custom-format threshold bypasses the delay when the profile says so.
func CheckDelay(profile *DelayProfile, rel *types.ReleaseSearchResult, isHighestQuality bool, cfScore int, now time.Time) (bool, string) {
	if profile == nil {
		return true, ""
	}
	if !profile.AllowsProtocol(rel.Protocol) {
		return false, fmt.Sprintf("protocol %s is not allowed by the delay profile", rel.Protocol)
	}
	delay := profile.DelayFor(rel.Protocol)
	if delay <= 0 {
		return true, ""
	}
	if profile.BypassIfHighestQuality && isHighestQuality {
		return true, ""
	}
	if profile.BypassAboveCFScore && cfScore >= profile.MinimumCFScore {
		return true, ""
	}
	if rel.PublishDate.IsZero() {
		return true, ""
	}
	age := now.Sub(rel.PublishDate)
	if age < delay {
		return false, fmt.Sprintf("waiting for propagation delay, %s remaining", (delay - age).Round(time.Minute))
	}
	return true, ""
}
