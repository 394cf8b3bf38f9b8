// Package releasecache persists releases seen on indexer RSS feeds so
// later searches can be answered without re-querying every indexer.
package releasecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/matching"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// Cached releases expire a week after their last sighting.
const cacheTTL = 7 * 24 * time.Hour

// Candidate rows fetched per match query.
const matchCandidateLimit = 1000

// CachedRelease is one row of the release cache.
type CachedRelease struct {
	ID          int64
	GUID        string
	IndexerID   int64
	Title       string
	SearchTerms string
	SportPrefix string
	Year        int
	EventDate   *time.Time
	Quality     string
	Source      string
	Codec       string
	Group       string
	IsPack      bool
	Size        int64
	Seeders     *int
	Leechers    *int
	Protocol    types.Protocol
	DownloadURL string
	InfoURL     string
	Categories  []int
	PublishedAt *time.Time
	IngestedAt  time.Time
	ExpiresAt   time.Time
}

// ToSearchResult converts a cached row back into the shape the rest of
// the pipeline evaluates and grabs.
func (c *CachedRelease) ToSearchResult() types.ReleaseSearchResult {
	rel := types.ReleaseSearchResult{
		GUID:        c.GUID,
		Title:       c.Title,
		DownloadURL: c.DownloadURL,
		InfoURL:     c.InfoURL,
		Size:        c.Size,
		Categories:  c.Categories,
		IndexerID:   c.IndexerID,
		Protocol:    c.Protocol,
		Seeders:     c.Seeders,
		Leechers:    c.Leechers,
		IsPack:      c.IsPack,
	}
	if c.PublishedAt != nil {
		rel.PublishDate = *c.PublishedAt
	}
	return rel
}

// ScoredRelease pairs a cached release with its match against an event.
type ScoredRelease struct {
	Release CachedRelease
	Match   matching.Result
}

// Service owns the release cache table.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "release-cache").Logger(),
		now:    time.Now,
	}
}

// Ingest stores releases from an RSS sweep. A release already cached
// under the same GUID keeps its original ingest time; only its swarm
// stats and expiry are refreshed. Returns how many rows were new.
func (s *Service) Ingest(ctx context.Context, releases []types.ReleaseSearchResult) (int, error) {
	// RFC3339 storage is second precision; truncate so the stamp
	// round-trips equal.
	now := s.now().UTC().Truncate(time.Second)
	expires := now.Add(cacheTTL)

	inserted := 0
	for _, rel := range releases {
		parsed := parser.Parse(rel.Title)
		cats, err := json.Marshal(rel.Categories)
		if err != nil {
			cats = []byte("[]")
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO release_cache (
				guid, indexer_id, title, search_terms, sport_prefix, year,
				event_date, quality, source, codec, release_group, is_pack,
				size_bytes, seeders, leechers, protocol, download_url,
				info_url, categories, published_at, ingested_at, expires_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(guid) DO UPDATE SET
				seeders = excluded.seeders,
				leechers = excluded.leechers,
				expires_at = excluded.expires_at`,
			rel.GUID, rel.IndexerID, rel.Title, searchTerms(rel.Title),
			parsed.SportPrefix, parsed.Year, formatNullTime(eventDate(parsed)),
			parsed.Quality, parsed.Source, parsed.Codec, parsed.Group,
			boolToInt(parsed.IsPack), rel.Size, rel.Seeders, rel.Leechers,
			string(rel.Protocol), rel.DownloadURL, rel.InfoURL, string(cats),
			formatNullTime(publishDate(rel)), now.Format(time.RFC3339),
			expires.Format(time.RFC3339),
		)
		if err != nil {
			return inserted, fmt.Errorf("caching release %q: %w", rel.GUID, err)
		}
		if s.insertedAt(ctx, rel.GUID, now) {
			inserted++
		}
	}
	return inserted, nil
}

// insertedAt reports whether the upsert created the row on this sweep.
// Updates never touch ingested_at, so a fresh row is the one stamped
// with this sweep's timestamp.
func (s *Service) insertedAt(ctx context.Context, guid string, now time.Time) bool {
	var ingested string
	err := s.db.QueryRowContext(ctx,
		`SELECT ingested_at FROM release_cache WHERE guid = ?`, guid).Scan(&ingested)
	if err != nil {
		return false
	}
	ts, err := time.Parse(time.RFC3339, ingested)
	return err == nil && ts.Equal(now)
}

// FindMatching returns unexpired cached releases that match the event,
// best match first.
func (s *Service) FindMatching(ctx context.Context, ev *events.Event, multiPartEnabled bool) ([]ScoredRelease, error) {
	key := matching.BuildEventKey(ev)
	if key.Parsed.SportPrefix == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cacheColumns+` FROM release_cache
		WHERE sport_prefix = ? AND year = ? AND expires_at > ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?`,
		key.Parsed.SportPrefix, key.Year, s.now().UTC().Format(time.RFC3339),
		matchCandidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying release cache: %w", err)
	}
	defer rows.Close()

	var matched []ScoredRelease
	for rows.Next() {
		rel, err := scanCached(rows)
		if err != nil {
			return nil, err
		}
		result := matching.Match(parser.Parse(rel.Title), key, multiPartEnabled)
		if !result.IsMatch {
			continue
		}
		matched = append(matched, ScoredRelease{Release: *rel, Match: result})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Match.Confidence > matched[j].Match.Confidence
	})
	return matched, nil
}

// FindByQuery returns unexpired cached releases whose indexed terms
// contain every token of the query.
func (s *Service) FindByQuery(ctx context.Context, query string) ([]CachedRelease, error) {
	tokens := matching.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	q := `SELECT ` + cacheColumns + ` FROM release_cache WHERE expires_at > ?`
	args := []interface{}{s.now().UTC().Format(time.RFC3339)}
	for _, tok := range tokens {
		q += ` AND search_terms LIKE ?`
		args = append(args, "%"+tok+"%")
	}
	q += ` ORDER BY published_at DESC, id DESC LIMIT ?`
	args = append(args, matchCandidateLimit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying release cache: %w", err)
	}
	defer rows.Close()

	var out []CachedRelease
	for rows.Next() {
		rel, err := scanCached(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

// SweepExpired deletes rows past their expiry. Returns how many went.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM release_cache WHERE expires_at <= ?`,
		s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("sweeping release cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug().Int64("removed", n).Msg("Swept expired cached releases")
	}
	return n, nil
}

const cacheColumns = `id, guid, indexer_id, title, search_terms, sport_prefix, year,
	event_date, quality, source, codec, release_group, is_pack, size_bytes,
	seeders, leechers, protocol, download_url, info_url, categories,
	published_at, ingested_at, expires_at`

func scanCached(rows *sql.Rows) (*CachedRelease, error) {
	var (
		c          CachedRelease
		eventDate  sql.NullString
		published  sql.NullString
		ingested   string
		expires    string
		categories string
		isPack     int
		protocol   string
	)
	err := rows.Scan(
		&c.ID, &c.GUID, &c.IndexerID, &c.Title, &c.SearchTerms,
		&c.SportPrefix, &c.Year, &eventDate, &c.Quality, &c.Source,
		&c.Codec, &c.Group, &isPack, &c.Size, &c.Seeders, &c.Leechers,
		&protocol, &c.DownloadURL, &c.InfoURL, &categories,
		&published, &ingested, &expires,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning cached release: %w", err)
	}
	c.IsPack = isPack != 0
	c.Protocol = types.Protocol(protocol)
	c.EventDate = parseNullTime(eventDate)
	c.PublishedAt = parseNullTime(published)
	if ts, err := time.Parse(time.RFC3339, ingested); err == nil {
		c.IngestedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, expires); err == nil {
		c.ExpiresAt = ts
	}
	if err := json.Unmarshal([]byte(categories), &c.Categories); err != nil {
		c.Categories = nil
	}
	return &c, nil
}

// searchTerms flattens the expanded token set of a title into a
// space-joined, sorted string for LIKE matching.
func searchTerms(title string) string {
	tokens := matching.ExpandTokens(title)
	terms := make([]string, 0, len(tokens))
	for tok := range tokens {
		terms = append(terms, tok)
	}
	sort.Strings(terms)
	return strings.Join(terms, " ")
}

func eventDate(p parser.ParsedRelease) *time.Time {
	if p.Year == 0 || p.Month == 0 || p.Day == 0 {
		return nil
	}
	d := time.Date(p.Year, time.Month(p.Month), p.Day, 0, 0, 0, 0, time.UTC)
	return &d
}

func publishDate(rel types.ReleaseSearchResult) *time.Time {
	if rel.PublishDate.IsZero() {
		return nil
	}
	d := rel.PublishDate.UTC()
	return &d
}

func formatNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
