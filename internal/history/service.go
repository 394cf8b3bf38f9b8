// Package history records what happened to each event: grabs, imports,
// failures, deletions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// EventType classifies a history entry.
type EventType string

const (
	EventTypeGrabbed        EventType = "grabbed"
	EventTypeImported       EventType = "imported"
	EventTypeImportFailed   EventType = "import_failed"
	EventTypeDownloadFailed EventType = "download_failed"
	EventTypeFileDeleted    EventType = "file_deleted"
	EventTypeBlocklisted    EventType = "blocklisted"
)

// Entry is one recorded occurrence for an event.
type Entry struct {
	ID        int64          `json:"id"`
	EventType EventType      `json:"eventType"`
	EventID   int64          `json:"eventId"`
	Source    string         `json:"source,omitempty"`
	Quality   string         `json:"quality,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CreateInput contains fields for recording a history entry.
type CreateInput struct {
	EventType EventType
	EventID   int64
	Source    string
	Quality   string
	Data      map[string]any
}

// ListOptions filters and paginates history listings.
type ListOptions struct {
	EventID   *int64
	EventType EventType
	Page      int
	PageSize  int
}

// ListResponse is one page of history plus the total count.
type ListResponse struct {
	Entries    []*Entry `json:"entries"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
}

// Service provides history recording and retrieval.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record writes a history entry. Data is stored as JSON.
func (s *Service) Record(ctx context.Context, input CreateInput) (*Entry, error) {
	var data interface{}
	if input.Data != nil {
		bytes, err := json.Marshal(input.Data)
		if err != nil {
			return nil, fmt.Errorf("marshalling history data: %w", err)
		}
		data = string(bytes)
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO history (event_type, event_id, source, quality, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(input.EventType), input.EventID, input.Source, input.Quality,
		data, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("recording history: %w", err)
	}
	id, _ := res.LastInsertId()

	return &Entry{
		ID:        id,
		EventType: input.EventType,
		EventID:   input.EventID,
		Source:    input.Source,
		Quality:   input.Quality,
		Data:      input.Data,
		CreatedAt: now,
	}, nil
}

// List returns one page of history, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	where := "1=1"
	var args []interface{}
	if opts.EventID != nil {
		where += " AND event_id = ?"
		args = append(args, *opts.EventID)
	}
	if opts.EventType != "" {
		where += " AND event_type = ?"
		args = append(args, string(opts.EventType))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting history: %w", err)
	}

	query := `SELECT id, event_type, event_id, source, quality, data, created_at
		FROM history WHERE ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		var data sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.EventType, &e.EventID, &e.Source,
			&e.Quality, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				s.logger.Warn().Err(err).Int64("id", e.ID).Msg("Malformed history data")
			}
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResponse{
		Entries:    entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
	}, nil
}

// ForEvent returns the full history of a single event, newest first.
func (s *Service) ForEvent(ctx context.Context, eventID int64) ([]*Entry, error) {
	resp, err := s.List(ctx, ListOptions{EventID: &eventID, PageSize: 100})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Prune deletes entries older than the retention window.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("Pruned history entries")
	}
	return n, nil
}
