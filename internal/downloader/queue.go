package downloader

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Queue persists download queue items.
type Queue struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewQueue(db *sql.DB, logger zerolog.Logger) *Queue {
	return &Queue{db: db, logger: logger.With().Str("component", "download-queue").Logger()}
}

const queueColumns = `id, event_id, download_client_id, download_id, title, release_guid,
	indexer_id, protocol, status, status_message, error_message, size_bytes, size_left,
	eta_seconds, output_path, grabbed_at, completed_at, imported_at`

func scanQueueItem(row interface{ Scan(...interface{}) error }) (*QueueItem, error) {
	var it QueueItem
	var clientID, indexerID, eta sql.NullInt64
	var grabbedAt string
	var completedAt, importedAt sql.NullString
	err := row.Scan(&it.ID, &it.EventID, &clientID, &it.DownloadID, &it.Title, &it.ReleaseGUID,
		&indexerID, &it.Protocol, &it.Status, &it.StatusMessage, &it.ErrorMessage,
		&it.Size, &it.SizeLeft, &eta, &it.OutputPath, &grabbedAt, &completedAt, &importedAt)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		it.DownloadClientID = &clientID.Int64
	}
	if indexerID.Valid {
		it.IndexerID = &indexerID.Int64
	}
	if eta.Valid {
		it.ETASeconds = &eta.Int64
	}
	it.GrabbedAt, _ = time.Parse(time.RFC3339, grabbedAt)
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			it.CompletedAt = &t
		}
	}
	if importedAt.Valid {
		if t, err := time.Parse(time.RFC3339, importedAt.String); err == nil {
			it.ImportedAt = &t
		}
	}
	return &it, nil
}

func (q *Queue) Add(ctx context.Context, it *QueueItem) error {
	if it.Status == "" {
		it.Status = ItemQueued
	}
	if it.GrabbedAt.IsZero() {
		it.GrabbedAt = time.Now().UTC().Truncate(time.Second)
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO download_queue (event_id, download_client_id, download_id, title,
			release_guid, indexer_id, protocol, status, size_bytes, size_left, grabbed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.EventID, it.DownloadClientID, it.DownloadID, it.Title,
		it.ReleaseGUID, it.IndexerID, it.Protocol, it.Status,
		it.Size, it.SizeLeft, it.GrabbedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("adding queue item: %w", err)
	}
	it.ID, _ = res.LastInsertId()
	return nil
}

func (q *Queue) Get(ctx context.Context, id int64) (*QueueItem, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM download_queue WHERE id = ?`, id)
	it, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting queue item: %w", err)
	}
	return it, nil
}

// List returns all queue items, newest grab first.
func (q *Queue) List(ctx context.Context) ([]*QueueItem, error) {
	return q.query(ctx,
		`SELECT `+queueColumns+` FROM download_queue ORDER BY grabbed_at DESC, id DESC`)
}

// ListActive returns items the monitor still needs to track.
func (q *Queue) ListActive(ctx context.Context) ([]*QueueItem, error) {
	return q.query(ctx, `SELECT `+queueColumns+` FROM download_queue
		WHERE status NOT IN ('imported', 'failed')
		ORDER BY grabbed_at, id`)
}

func (q *Queue) query(ctx context.Context, sqlText string, args ...interface{}) ([]*QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("querying download queue: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		it, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateProgress records the client's view of an in-flight download.
func (q *Queue) UpdateProgress(ctx context.Context, id int64, sizeLeft int64, eta *int64, outputPath string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue
		SET size_left = ?, eta_seconds = ?, output_path = COALESCE(NULLIF(?, ''), output_path)
		WHERE id = ?`,
		sizeLeft, nullInt64(eta), outputPath, id)
	if err != nil {
		return fmt.Errorf("updating queue progress: %w", err)
	}
	return nil
}

func (q *Queue) SetStatus(ctx context.Context, id int64, status ItemStatus, message string) error {
	var stampCol string
	switch status {
	case ItemCompleted:
		stampCol = "completed_at"
	case ItemImported:
		stampCol = "imported_at"
	}

	var err error
	now := time.Now().UTC().Format(time.RFC3339)
	if stampCol != "" {
		_, err = q.db.ExecContext(ctx, `
			UPDATE download_queue SET status = ?, status_message = ?, `+stampCol+` = ?
			WHERE id = ?`, status, message, now, id)
	} else {
		_, err = q.db.ExecContext(ctx, `
			UPDATE download_queue SET status = ?, status_message = ? WHERE id = ?`,
			status, message, id)
	}
	if err != nil {
		return fmt.Errorf("setting queue status: %w", err)
	}
	return nil
}

// SetFailed marks an item failed with the reason the client reported.
func (q *Queue) SetFailed(ctx context.Context, id int64, errMessage string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET status = 'failed', error_message = ? WHERE id = ?`,
		errMessage, id)
	if err != nil {
		return fmt.Errorf("marking queue item failed: %w", err)
	}
	return nil
}

// SetDownloadID backfills the client's identifier once it is known.
func (q *Queue) SetDownloadID(ctx context.Context, id int64, downloadID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE download_queue SET download_id = ? WHERE id = ?`, downloadID, id)
	if err != nil {
		return fmt.Errorf("setting queue download id: %w", err)
	}
	return nil
}

// PruneTerminal deletes imported and failed items that reached their
// terminal state longer than the grace period ago. The grace window
// keeps recent outcomes visible in the queue UI.
func (q *Queue) PruneTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM download_queue
		WHERE status IN ('imported', 'failed')
		  AND COALESCE(imported_at, completed_at, grabbed_at) < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning download queue: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		q.logger.Info().Int64("removed", n).Msg("Pruned terminal queue items")
	}
	return n, nil
}

func (q *Queue) Remove(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM download_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("removing queue item: %w", err)
	}
	return nil
}

// HasActiveItem reports whether the event already has a download in
// flight. Failed and imported items do not count.
func (q *Queue) HasActiveItem(ctx context.Context, eventID int64) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM download_queue
		WHERE event_id = ? AND status NOT IN ('imported', 'failed')`, eventID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking active queue items: %w", err)
	}
	return n > 0, nil
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
