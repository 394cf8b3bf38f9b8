package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/indexer/types"
)

var (
	ErrIndexerNotFound = errors.New("indexer not found")
	ErrInvalidIndexer  = errors.New("invalid indexer configuration")
)

// Service provides CRUD operations for configured indexers.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new indexer service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "indexer").Logger(),
	}
}

const indexerColumns = `id, name, implementation, base_url, api_key, categories,
	priority, enable_rss, enable_search, seed_ratio, seed_time_min, created_at`

// Get retrieves an indexer by ID.
func (s *Service) Get(ctx context.Context, id int64) (*types.Indexer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+indexerColumns+` FROM indexers WHERE id = ?`, id)
	ix, err := scanIndexer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIndexerNotFound
		}
		return nil, fmt.Errorf("failed to get indexer: %w", err)
	}
	return ix, nil
}

// List returns all indexers ordered by priority.
func (s *Service) List(ctx context.Context) ([]*types.Indexer, error) {
	return s.query(ctx, `SELECT `+indexerColumns+` FROM indexers ORDER BY priority, name`)
}

// ListForSearch returns indexers with interactive/automatic search enabled.
func (s *Service) ListForSearch(ctx context.Context) ([]*types.Indexer, error) {
	return s.query(ctx,
		`SELECT `+indexerColumns+` FROM indexers WHERE enable_search = 1 ORDER BY priority, name`)
}

// ListForRss returns indexers with RSS sync enabled.
func (s *Service) ListForRss(ctx context.Context) ([]*types.Indexer, error) {
	return s.query(ctx,
		`SELECT `+indexerColumns+` FROM indexers WHERE enable_rss = 1 ORDER BY priority, name`)
}

// Create adds a new indexer.
func (s *Service) Create(ctx context.Context, ix *types.Indexer) (*types.Indexer, error) {
	if err := validate(ix); err != nil {
		return nil, err
	}

	cats, err := json.Marshal(ix.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO indexers (name, implementation, base_url, api_key, categories,
			priority, enable_rss, enable_search, seed_ratio, seed_time_min)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ix.Name, string(ix.Implementation), ix.BaseURL, ix.APIKey, string(cats),
		ix.Priority, ix.EnableRss, ix.EnableSearch, ix.SeedRatio, ix.SeedTimeMin)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get indexer id: %w", err)
	}

	s.logger.Info().
		Int64("id", id).
		Str("name", ix.Name).
		Str("implementation", string(ix.Implementation)).
		Msg("Indexer created")
	return s.Get(ctx, id)
}

// Update modifies an existing indexer.
func (s *Service) Update(ctx context.Context, ix *types.Indexer) (*types.Indexer, error) {
	if err := validate(ix); err != nil {
		return nil, err
	}

	cats, err := json.Marshal(ix.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE indexers SET name = ?, implementation = ?, base_url = ?, api_key = ?,
			categories = ?, priority = ?, enable_rss = ?, enable_search = ?,
			seed_ratio = ?, seed_time_min = ?
		 WHERE id = ?`,
		ix.Name, string(ix.Implementation), ix.BaseURL, ix.APIKey, string(cats),
		ix.Priority, ix.EnableRss, ix.EnableSearch, ix.SeedRatio, ix.SeedTimeMin, ix.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update indexer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrIndexerNotFound
	}
	return s.Get(ctx, ix.ID)
}

// Delete removes an indexer and its health status row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM indexer_status WHERE indexer_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete indexer status: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM indexers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete indexer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrIndexerNotFound
	}
	s.logger.Info().Int64("id", id).Msg("Indexer deleted")
	return nil
}

func (s *Service) query(ctx context.Context, q string, args ...interface{}) ([]*types.Indexer, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}
	defer rows.Close()

	var indexers []*types.Indexer
	for rows.Next() {
		ix, err := scanIndexer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indexer: %w", err)
		}
		indexers = append(indexers, ix)
	}
	return indexers, rows.Err()
}

func validate(ix *types.Indexer) error {
	if ix.Name == "" || ix.BaseURL == "" {
		return ErrInvalidIndexer
	}
	switch ix.Implementation {
	case types.IndexerTypeTorznab, types.IndexerTypeNewznab:
	default:
		return ErrInvalidIndexer
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIndexer(row rowScanner) (*types.Indexer, error) {
	var (
		ix        types.Indexer
		impl      string
		cats      sql.NullString
		createdAt sql.NullString
	)
	err := row.Scan(&ix.ID, &ix.Name, &impl, &ix.BaseURL, &ix.APIKey, &cats,
		&ix.Priority, &ix.EnableRss, &ix.EnableSearch, &ix.SeedRatio, &ix.SeedTimeMin,
		&createdAt)
	if err != nil {
		return nil, err
	}
	ix.Implementation = types.IndexerType(impl)
	if createdAt.Valid {
		for _, format := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(format, createdAt.String); err == nil {
				ix.CreatedAt = t
				break
			}
		}
	}
	if cats.Valid && cats.String != "" {
		if err := json.Unmarshal([]byte(cats.String), &ix.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
	}
	return &ix, nil
}
