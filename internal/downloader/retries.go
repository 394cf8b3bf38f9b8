package downloader

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryTracker records failed grab attempts per (event, release) pair
// so the decision engine can back off and eventually give up.
type RetryTracker struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewRetryTracker(db *sql.DB, logger zerolog.Logger) *RetryTracker {
	return &RetryTracker{
		db:     db,
		logger: logger.With().Str("component", "failed-grabs").Logger(),
		now:    time.Now,
	}
}

// Attempts returns how many times this release has failed for the
// event and when the last attempt happened.
func (r *RetryTracker) Attempts(ctx context.Context, eventID int64, releaseGUID string) (int, *time.Time, error) {
	if releaseGUID == "" {
		return 0, nil, nil
	}
	var attempts int
	var lastAttempt string
	err := r.db.QueryRowContext(ctx, `
		SELECT attempts, last_attempt_at FROM failed_grabs
		WHERE event_id = ? AND release_guid = ?`, eventID, releaseGUID).
		Scan(&attempts, &lastAttempt)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("reading failed grabs: %w", err)
	}
	t, err := time.Parse(time.RFC3339, lastAttempt)
	if err != nil {
		return attempts, nil, nil
	}
	return attempts, &t, nil
}

// RecordFailure bumps the attempt counter for the pair.
func (r *RetryTracker) RecordFailure(ctx context.Context, eventID int64, releaseGUID string) error {
	if releaseGUID == "" {
		return nil
	}
	now := r.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failed_grabs (event_id, release_guid, attempts, last_attempt_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(event_id, release_guid) DO UPDATE SET
			attempts = attempts + 1,
			last_attempt_at = excluded.last_attempt_at`,
		eventID, releaseGUID, now)
	if err != nil {
		return fmt.Errorf("recording failed grab: %w", err)
	}
	return nil
}

// Clear drops the failure history once a grab finally succeeds.
func (r *RetryTracker) Clear(ctx context.Context, eventID int64, releaseGUID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM failed_grabs WHERE event_id = ? AND release_guid = ?`,
		eventID, releaseGUID)
	if err != nil {
		return fmt.Errorf("clearing failed grabs: %w", err)
	}
	return nil
}
