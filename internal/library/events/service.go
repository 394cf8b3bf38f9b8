package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/websocket"
)

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrFileNotFound   = errors.New("event file not found")
	ErrLeagueNotFound = errors.New("league not found")
)

const eventColumns = `id, league_id, title, sport, event_type, season, round, event_date, year,
	venue, location, home_team, away_team, monitored, has_file,
	monitored_parts, monitored_sessions, allow_full_event, quality_profile_id, tags,
	created_at, updated_at`

// Service provides event catalogue operations.
type Service struct {
	db     *sql.DB
	hub    *websocket.Hub
	logger zerolog.Logger
}

// NewService creates a new events service.
func NewService(db *sql.DB, hub *websocket.Hub, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		hub:    hub,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Get retrieves an event by ID, including its files.
func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	files, err := s.GetFiles(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("eventId", id).Msg("Failed to get event files")
	} else {
		ev.Files = files
	}
	return ev, nil
}

// List returns events with optional filtering.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	var args []any

	if opts.LeagueID != nil {
		query += ` AND league_id = ?`
		args = append(args, *opts.LeagueID)
	}
	if opts.Monitored != nil {
		query += ` AND monitored = ?`
		args = append(args, *opts.Monitored)
	}
	if opts.Missing {
		query += ` AND has_file = 0`
	}
	query += ` ORDER BY event_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// ListMonitored returns all monitored events belonging to a league.
func (s *Service) ListMonitored(ctx context.Context) ([]*Event, error) {
	monitored := true
	return s.List(ctx, ListOptions{Monitored: &monitored})
}

// Create persists a new event.
func (s *Service) Create(ctx context.Context, input CreateEventInput) (*Event, error) {
	parts, _ := json.Marshal(orEmpty(input.MonitoredParts))
	var sessions any
	if input.MonitoredSessions != nil {
		b, _ := json.Marshal(input.MonitoredSessions)
		sessions = string(b)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (league_id, title, sport, event_type, season, round, event_date, year,
			venue, location, home_team, away_team, monitored, monitored_parts, monitored_sessions, quality_profile_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.LeagueID, input.Title, string(input.Sport), input.EventType, input.Season,
		input.Round, nullTime(input.EventDate), input.Year, input.Venue, input.Location,
		input.HomeTeam, input.AwayTeam, input.Monitored, string(parts), sessions, input.QualityProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.Broadcast("event:added", ev)
	}
	return ev, nil
}

// SetMonitored flips monitoring for an event.
func (s *Service) SetMonitored(ctx context.Context, id int64, monitored bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET monitored = ?, updated_at = datetime('now') WHERE id = ?`, monitored, id)
	return err
}

// SetMonitoredParts replaces the monitored part set for an event.
func (s *Service) SetMonitoredParts(ctx context.Context, id int64, parts []string) error {
	b, _ := json.Marshal(orEmpty(parts))
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET monitored_parts = ?, updated_at = datetime('now') WHERE id = ?`, string(b), id)
	return err
}

// SetAllowFullEvent overrides full-event acceptance for a multi-part event.
func (s *Service) SetAllowFullEvent(ctx context.Context, id int64, allow *bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET allow_full_event = ?, updated_at = datetime('now') WHERE id = ?`, allow, id)
	return err
}

// Delete removes an event and its files.
func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.Broadcast("event:deleted", map[string]int64{"id": id})
	}
	return nil
}

// GetFiles returns the files recorded for an event.
func (s *Service) GetFiles(ctx context.Context, eventID int64) ([]EventFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, part_name, part_number, relative_path, path, size_bytes,
			quality, release_group, file_exists, last_verified, date_added
		FROM event_files WHERE event_id = ? ORDER BY part_number, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []EventFile
	for rows.Next() {
		var f EventFile
		var lastVerified, dateAdded sql.NullString
		if err := rows.Scan(&f.ID, &f.EventID, &f.PartName, &f.PartNumber, &f.RelativePath,
			&f.Path, &f.Size, &f.Quality, &f.ReleaseGroup, &f.Exists, &lastVerified, &dateAdded); err != nil {
			return nil, err
		}
		f.LastVerified = parseNullTime(lastVerified)
		if t := parseNullTime(dateAdded); t != nil {
			f.DateAdded = *t
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListFiles returns every file record in the library. Used by the
// library scan to reconcile records with disk.
func (s *Service) ListFiles(ctx context.Context) ([]EventFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, part_name, part_number, relative_path, path, size_bytes,
			quality, release_group, file_exists, last_verified, date_added
		FROM event_files ORDER BY event_id, part_number, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []EventFile
	for rows.Next() {
		var f EventFile
		var lastVerified, dateAdded sql.NullString
		if err := rows.Scan(&f.ID, &f.EventID, &f.PartName, &f.PartNumber, &f.RelativePath,
			&f.Path, &f.Size, &f.Quality, &f.ReleaseGroup, &f.Exists, &lastVerified, &dateAdded); err != nil {
			return nil, err
		}
		f.LastVerified = parseNullTime(lastVerified)
		if t := parseNullTime(dateAdded); t != nil {
			f.DateAdded = *t
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// AddFile records an imported file and keeps the has-file flag in step.
func (s *Service) AddFile(ctx context.Context, eventID int64, input CreateFileInput) (*EventFile, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_files (event_id, part_name, part_number, relative_path, path, size_bytes, quality, release_group)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, input.PartName, input.PartNumber, input.RelativePath, input.Path,
		input.Size, input.Quality, input.ReleaseGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to add event file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := s.refreshHasFile(ctx, eventID); err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Broadcast("event:fileAdded", map[string]int64{"eventId": eventID, "fileId": id})
	}

	return &EventFile{
		ID:           id,
		EventID:      eventID,
		PartName:     input.PartName,
		PartNumber:   input.PartNumber,
		RelativePath: input.RelativePath,
		Path:         input.Path,
		Size:         input.Size,
		Quality:      input.Quality,
		ReleaseGroup: input.ReleaseGroup,
		Exists:       true,
		DateAdded:    time.Now().UTC(),
	}, nil
}

// RemoveFile deletes a file record and keeps the has-file flag in step.
func (s *Service) RemoveFile(ctx context.Context, fileID int64) error {
	var eventID int64
	err := s.db.QueryRowContext(ctx, `SELECT event_id FROM event_files WHERE id = ?`, fileID).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM event_files WHERE id = ?`, fileID); err != nil {
		return err
	}
	return s.refreshHasFile(ctx, eventID)
}

// MarkFileMissing flags a file as gone from disk without deleting history.
func (s *Service) MarkFileMissing(ctx context.Context, fileID int64) error {
	var eventID int64
	err := s.db.QueryRowContext(ctx, `SELECT event_id FROM event_files WHERE id = ?`, fileID).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE event_files SET file_exists = 0, last_verified = datetime('now') WHERE id = ?`, fileID)
	if err != nil {
		return err
	}
	return s.refreshHasFile(ctx, eventID)
}

// refreshHasFile recomputes has_file so it always tracks the presence of
// at least one existing file.
func (s *Service) refreshHasFile(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events SET has_file = EXISTS (
			SELECT 1 FROM event_files WHERE event_id = ? AND file_exists = 1
		), updated_at = datetime('now') WHERE id = ?`, eventID, eventID)
	return err
}

// GetLeague retrieves a league by ID.
func (s *Service) GetLeague(ctx context.Context, id int64) (*League, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, sport, aliases, monitored, quality_profile_id, root_folder_path, tags, created_at, updated_at
		FROM leagues WHERE id = ?`, id)

	var l League
	var aliases, tags string
	var qp sql.NullInt64
	var created, updated string
	err := row.Scan(&l.ID, &l.Name, &l.Sport, &aliases, &l.Monitored, &qp, &l.RootFolderPath, &tags, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeagueNotFound
	}
	if err != nil {
		return nil, err
	}
	if qp.Valid {
		l.QualityProfileID = &qp.Int64
	}
	json.Unmarshal([]byte(aliases), &l.Aliases)
	json.Unmarshal([]byte(tags), &l.Tags)
	l.CreatedAt = parseTime(created)
	l.UpdatedAt = parseTime(updated)
	return &l, nil
}

// CreateLeague persists a new league.
func (s *Service) CreateLeague(ctx context.Context, l *League) (*League, error) {
	aliases, _ := json.Marshal(orEmpty(l.Aliases))
	tags, _ := json.Marshal(l.Tags)
	if l.Tags == nil {
		tags = []byte("[]")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leagues (name, sport, aliases, monitored, quality_profile_id, root_folder_path, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.Name, string(l.Sport), string(aliases), l.Monitored, l.QualityProfileID, l.RootFolderPath, string(tags))
	if err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}
	l.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var ev Event
	var round sql.NullInt64
	var eventDate, sessions sql.NullString
	var allowFull sql.NullBool
	var qp sql.NullInt64
	var parts, tags, created, updated string

	err := row.Scan(&ev.ID, &ev.LeagueID, &ev.Title, &ev.Sport, &ev.EventType, &ev.Season,
		&round, &eventDate, &ev.Year, &ev.Venue, &ev.Location, &ev.HomeTeam, &ev.AwayTeam,
		&ev.Monitored, &ev.HasFile, &parts, &sessions, &allowFull, &qp, &tags, &created, &updated)
	if err != nil {
		return nil, err
	}

	if round.Valid {
		r := int(round.Int64)
		ev.Round = &r
	}
	ev.EventDate = parseNullTime(eventDate)
	if allowFull.Valid {
		ev.AllowFullEvent = &allowFull.Bool
	}
	if qp.Valid {
		ev.QualityProfileID = &qp.Int64
	}
	json.Unmarshal([]byte(parts), &ev.MonitoredParts)
	if sessions.Valid {
		json.Unmarshal([]byte(sessions.String), &ev.MonitoredSessions)
	}
	json.Unmarshal([]byte(tags), &ev.Tags)
	ev.CreatedAt = parseTime(created)
	ev.UpdatedAt = parseTime(updated)
	return &ev, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
