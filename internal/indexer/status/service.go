package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service tracks indexer health and enforces failure backoff.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new status service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "indexer-status").Logger(),
		now:    time.Now,
	}
}

// GetStatus retrieves the current status for an indexer. Indexers
// without a status row are reported healthy.
func (s *Service) GetStatus(ctx context.Context, indexerID int64) (*IndexerStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT indexer_id, escalation_level, initial_failure, most_recent_failure,
			last_success, disabled_till, last_rss_sync
		 FROM indexer_status WHERE indexer_id = ?`, indexerID)

	var (
		st                                 IndexerStatus
		initial, recent, success, disabled sql.NullString
		rssSync                            sql.NullString
	)
	err := row.Scan(&st.IndexerID, &st.EscalationLevel, &initial, &recent,
		&success, &disabled, &rssSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &IndexerStatus{IndexerID: indexerID}, nil
		}
		return nil, fmt.Errorf("failed to get indexer status: %w", err)
	}

	st.InitialFailure = parseNullTime(initial)
	st.MostRecentFailure = parseNullTime(recent)
	st.LastSuccess = parseNullTime(success)
	st.DisabledTill = parseNullTime(disabled)
	st.LastRSSSync = parseNullTime(rssSync)
	st.IsDisabled = st.DisabledTill != nil && st.DisabledTill.After(s.now())
	return &st, nil
}

// RecordSuccess clears the failure streak and any cooldown.
func (s *Service) RecordSuccess(ctx context.Context, indexerID int64) error {
	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indexer_status (indexer_id, escalation_level, last_success)
		 VALUES (?, 0, ?)
		 ON CONFLICT(indexer_id) DO UPDATE SET
			escalation_level = 0,
			initial_failure = NULL,
			most_recent_failure = NULL,
			disabled_till = NULL,
			last_success = excluded.last_success`,
		indexerID, now)
	if err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return nil
}

// RecordFailure bumps the failure streak and applies the escalating
// backoff cooldown.
func (s *Service) RecordFailure(ctx context.Context, indexerID int64, opError error) error {
	st, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return err
	}

	now := s.now()
	level := st.EscalationLevel + 1
	backoff := BackoffFor(level)

	initial := now
	if st.InitialFailure != nil {
		initial = *st.InitialFailure
	}

	var disabledTill interface{}
	if backoff > 0 {
		disabledTill = now.Add(backoff).UTC().Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO indexer_status (indexer_id, escalation_level, initial_failure, most_recent_failure, disabled_till)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(indexer_id) DO UPDATE SET
			escalation_level = excluded.escalation_level,
			initial_failure = excluded.initial_failure,
			most_recent_failure = excluded.most_recent_failure,
			disabled_till = excluded.disabled_till`,
		indexerID, level,
		initial.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339),
		disabledTill)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}

	s.logger.Warn().
		Int64("indexerId", indexerID).
		Int("failures", level).
		Dur("backoff", backoff).
		Err(opError).
		Msg("Recorded indexer failure")
	return nil
}

// RecordRateLimit applies a server-requested cooldown without touching
// the failure streak.
func (s *Service) RecordRateLimit(ctx context.Context, indexerID int64, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	till := s.now().Add(retryAfter).UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indexer_status (indexer_id, disabled_till)
		 VALUES (?, ?)
		 ON CONFLICT(indexer_id) DO UPDATE SET
			disabled_till = excluded.disabled_till`,
		indexerID, till)
	if err != nil {
		return fmt.Errorf("failed to record rate limit: %w", err)
	}

	s.logger.Warn().
		Int64("indexerId", indexerID).
		Dur("retryAfter", retryAfter).
		Msg("Indexer rate limited, honouring cooldown")
	return nil
}

// IsAvailable reports whether the indexer may be queried right now.
func (s *Service) IsAvailable(ctx context.Context, indexerID int64) (bool, string, error) {
	st, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return false, "", err
	}
	if st.DisabledTill != nil && st.DisabledTill.After(s.now()) {
		reason := fmt.Sprintf("disabled until %s", st.DisabledTill.Format(time.RFC3339))
		return false, reason, nil
	}
	return true, "", nil
}

// RecordRSSSync stamps the last RSS sync time.
func (s *Service) RecordRSSSync(ctx context.Context, indexerID int64) error {
	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indexer_status (indexer_id, last_rss_sync)
		 VALUES (?, ?)
		 ON CONFLICT(indexer_id) DO UPDATE SET
			last_rss_sync = excluded.last_rss_sync`,
		indexerID, now)
	if err != nil {
		return fmt.Errorf("failed to record RSS sync: %w", err)
	}
	return nil
}

// GetHealth returns the health summary for an indexer.
func (s *Service) GetHealth(ctx context.Context, indexerID int64, indexerName string) (*IndexerHealth, error) {
	st, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return nil, err
	}

	health := &IndexerHealth{
		IndexerID:   indexerID,
		IndexerName: indexerName,
		LastSuccess: st.LastSuccess,
		LastFailure: st.MostRecentFailure,
	}

	switch {
	case st.DisabledTill != nil && s.now().Before(*st.DisabledTill):
		remaining := st.DisabledTill.Sub(s.now())
		health.Status = HealthStatusDisabled
		health.DisabledFor = &Duration{remaining}
		health.Message = fmt.Sprintf("Disabled for %s due to repeated failures", remaining.Round(time.Minute))
	case st.EscalationLevel > 0:
		health.Status = HealthStatusWarning
		health.Message = fmt.Sprintf("Experienced %d recent failure(s)", st.EscalationLevel)
	default:
		health.Status = HealthStatusHealthy
		health.Message = "Operating normally"
	}
	return health, nil
}

// ClearStatus resets all status information for an indexer.
func (s *Service) ClearStatus(ctx context.Context, indexerID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM indexer_status WHERE indexer_id = ?`, indexerID)
	if err != nil {
		return fmt.Errorf("failed to clear status: %w", err)
	}
	s.logger.Info().Int64("indexerId", indexerID).Msg("Cleared indexer status")
	return nil
}

// GetAllStatuses returns a status row per tracked indexer.
func (s *Service) GetAllStatuses(ctx context.Context) ([]*IndexerStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.indexer_id, i.name, s.escalation_level, s.most_recent_failure,
			s.last_success, s.disabled_till
		 FROM indexer_status s
		 JOIN indexers i ON i.id = s.indexer_id
		 ORDER BY i.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*IndexerStatus
	for rows.Next() {
		var (
			st                        IndexerStatus
			recent, success, disabled sql.NullString
		)
		if err := rows.Scan(&st.IndexerID, &st.IndexerName, &st.EscalationLevel,
			&recent, &success, &disabled); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		st.MostRecentFailure = parseNullTime(recent)
		st.LastSuccess = parseNullTime(success)
		st.DisabledTill = parseNullTime(disabled)
		st.IsDisabled = st.DisabledTill != nil && st.DisabledTill.After(s.now())
		statuses = append(statuses, &st)
	}
	return statuses, rows.Err()
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	for _, format := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(format, v.String); err == nil {
			return &t
		}
	}
	return nil
}
