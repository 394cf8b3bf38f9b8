package downloader

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
)

// Blocklist stores releases that must not be grabbed again.
type Blocklist struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBlocklist(db *sql.DB, logger zerolog.Logger) *Blocklist {
	return &Blocklist{db: db, logger: logger.With().Str("component", "blocklist").Logger()}
}

func (b *Blocklist) Add(ctx context.Context, e *BlocklistEntry) error {
	if e.BlockedAt.IsZero() {
		e.BlockedAt = time.Now().UTC().Truncate(time.Second)
	}
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO blocklist (event_id, title, guid, indexer_id, protocol, reason, blocked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Title, e.GUID, e.IndexerID, string(e.Protocol),
		e.Reason, e.BlockedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("adding blocklist entry: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	b.logger.Info().Str("title", e.Title).Str("reason", e.Reason).Msg("Release blocklisted")
	return nil
}

func (b *Blocklist) List(ctx context.Context) ([]*BlocklistEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, event_id, title, guid, indexer_id, protocol, reason, blocked_at
		FROM blocklist ORDER BY blocked_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing blocklist: %w", err)
	}
	defer rows.Close()

	var entries []*BlocklistEntry
	for rows.Next() {
		var e BlocklistEntry
		var eventID, indexerID sql.NullInt64
		var protocol string
		var blockedAt string
		if err := rows.Scan(&e.ID, &eventID, &e.Title, &e.GUID, &indexerID,
			&protocol, &e.Reason, &blockedAt); err != nil {
			return nil, fmt.Errorf("scanning blocklist entry: %w", err)
		}
		if eventID.Valid {
			e.EventID = &eventID.Int64
		}
		if indexerID.Valid {
			e.IndexerID = &indexerID.Int64
		}
		e.Protocol = indexertypes.Protocol(protocol)
		e.BlockedAt, _ = time.Parse(time.RFC3339, blockedAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (b *Blocklist) Delete(ctx context.Context, id int64) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM blocklist WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting blocklist entry: %w", err)
	}
	return nil
}

// IsBlocked checks the blocklist by release guid or info hash. Torrent
// entries auto-added after repeated failures carry the hash as their
// guid, so either identifier matching counts.
func (b *Blocklist) IsBlocked(ctx context.Context, eventID int64, infoHash, guid string) (bool, error) {
	if guid == "" && infoHash == "" {
		return false, nil
	}
	var n int
	err := b.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocklist
		WHERE (event_id = ? OR event_id IS NULL)
		  AND ((guid != '' AND guid = ?) OR (? != '' AND guid = ?))`,
		eventID, guid, infoHash, infoHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking blocklist: %w", err)
	}
	return n > 0, nil
}
