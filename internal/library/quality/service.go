package quality

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Service provides quality profile and custom format persistence.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new quality service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "quality").Logger(),
	}
}

// EnsureDefaults seeds the quality definition table and a default
// profile when the database is empty. Called once at startup.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	defs, err := LoadDefinitions()
	if err != nil {
		return err
	}
	for _, d := range defs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO quality_definitions (quality_id, title, weight, min_size, max_size, preferred_size)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(quality_id) DO NOTHING`,
			d.QualityID, d.Title, d.QualityID, d.MinSizeMB, d.MaxSizeMB, d.PreferredMB)
		if err != nil {
			return fmt.Errorf("failed to seed quality definition %d: %w", d.QualityID, err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quality_profiles`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		def := DefaultProfile()
		if _, err := s.CreateProfile(ctx, &def); err != nil {
			return err
		}
		s.logger.Info().Str("profile", def.Name).Msg("seeded default quality profile")
	}
	return nil
}

// GetDefinitions returns the persisted quality definitions.
func (s *Service) GetDefinitions(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quality_id, title, COALESCE(min_size, 0), COALESCE(max_size, 0), COALESCE(preferred_size, 0)
		FROM quality_definitions ORDER BY weight`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.QualityID, &d.Title, &d.MinSizeMB, &d.MaxSizeMB, &d.PreferredMB); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// UpdateDefinition updates size bounds for one quality tier.
func (s *Service) UpdateDefinition(ctx context.Context, d Definition) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quality_definitions SET min_size = ?, max_size = ?, preferred_size = ?
		WHERE quality_id = ?`,
		d.MinSizeMB, d.MaxSizeMB, d.PreferredMB, d.QualityID)
	return err
}

// GetProfile returns a quality profile by id.
func (s *Service) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, cutoff, upgrade_allowed, items, min_format_score, cutoff_format_score, format_items
		FROM quality_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// ListProfiles returns all quality profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, cutoff, upgrade_allowed, items, min_format_score, cutoff_format_score, format_items
		FROM quality_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CreateProfile persists a new profile and sets its ID.
func (s *Service) CreateProfile(ctx context.Context, p *Profile) (*Profile, error) {
	items, err := SerializeItems(p.Items)
	if err != nil {
		return nil, err
	}
	formats, err := serializeFormatItems(p.FormatItems)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quality_profiles (name, cutoff, upgrade_allowed, items, min_format_score, cutoff_format_score, format_items)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Cutoff, p.UpgradeAllowed, items, p.MinFormatScore, p.CutoffFormatScore, formats)
	if err != nil {
		return nil, err
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile replaces an existing profile.
func (s *Service) UpdateProfile(ctx context.Context, p *Profile) error {
	items, err := SerializeItems(p.Items)
	if err != nil {
		return err
	}
	formats, err := serializeFormatItems(p.FormatItems)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE quality_profiles
		SET name = ?, cutoff = ?, upgrade_allowed = ?, items = ?, min_format_score = ?, cutoff_format_score = ?, format_items = ?
		WHERE id = ?`,
		p.Name, p.Cutoff, p.UpgradeAllowed, items, p.MinFormatScore, p.CutoffFormatScore, formats, p.ID)
	return err
}

// DeleteProfile removes a profile.
func (s *Service) DeleteProfile(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM quality_profiles WHERE id = ?`, id)
	return err
}

// ListFormats returns all custom formats.
func (s *Service) ListFormats(ctx context.Context) ([]*CustomFormat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, include_when_renaming, specifications FROM custom_formats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var formats []*CustomFormat
	for rows.Next() {
		var f CustomFormat
		var specs string
		if err := rows.Scan(&f.ID, &f.Name, &f.IncludeWhenRenaming, &specs); err != nil {
			return nil, err
		}
		if f.Specifications, err = DeserializeSpecs(specs); err != nil {
			return nil, err
		}
		formats = append(formats, &f)
	}
	return formats, rows.Err()
}

// CreateFormat persists a new custom format and sets its ID.
func (s *Service) CreateFormat(ctx context.Context, f *CustomFormat) (*CustomFormat, error) {
	specs, err := SerializeSpecs(f.Specifications)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_formats (name, include_when_renaming, specifications) VALUES (?, ?, ?)`,
		f.Name, f.IncludeWhenRenaming, specs)
	if err != nil {
		return nil, err
	}
	f.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFormat removes a custom format.
func (s *Service) DeleteFormat(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM custom_formats WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var items, formats string
	err := row.Scan(&p.ID, &p.Name, &p.Cutoff, &p.UpgradeAllowed, &items,
		&p.MinFormatScore, &p.CutoffFormatScore, &formats)
	if err != nil {
		return nil, err
	}
	if p.Items, err = DeserializeItems(items); err != nil {
		return nil, err
	}
	if p.FormatItems, err = deserializeFormatItems(formats); err != nil {
		return nil, err
	}
	return &p, nil
}
