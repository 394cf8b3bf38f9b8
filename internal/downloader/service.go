package downloader

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/downloader/qbittorrent"
	"github.com/sportarr/sportarr/internal/downloader/sabnzbd"
	"github.com/sportarr/sportarr/internal/downloader/transmission"
	"github.com/sportarr/sportarr/internal/downloader/types"
	"github.com/sportarr/sportarr/internal/history"
	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
)

// GrabLimiter tracks per-indexer hourly grab budgets. Satisfied by the
// indexer rate limiter.
type GrabLimiter interface {
	CheckGrabLimit(indexerID int64) bool
	RecordGrab(indexerID int64)
}

// Service manages download client configurations and dispatches grabs.
type Service struct {
	db       *sql.DB
	queue    *Queue
	retries  *RetryTracker
	grabLock *decisioning.GrabLock
	history  *history.Service
	limiter  GrabLimiter
	logger   zerolog.Logger

	// newClient builds an adapter for a configuration. Tests swap it
	// out for fakes.
	newClient func(*DownloadClient) (types.Client, error)

	now func() time.Time
}

func NewService(db *sql.DB, queue *Queue, retries *RetryTracker, logger zerolog.Logger) *Service {
	s := &Service{
		db:       db,
		queue:    queue,
		retries:  retries,
		grabLock: decisioning.NewGrabLock(),
		logger:   logger.With().Str("component", "downloader").Logger(),
		now:      time.Now,
	}
	s.newClient = s.buildClient
	return s
}

// SetHistory enables history recording for grabs. Optional.
func (s *Service) SetHistory(h *history.Service) {
	s.history = h
}

// SetGrabLimiter enables the per-indexer hourly grab budget. Optional.
func (s *Service) SetGrabLimiter(l GrabLimiter) {
	s.limiter = l
}

func (s *Service) buildClient(c *DownloadClient) (types.Client, error) {
	cfg := c.clientConfig()
	switch c.Implementation {
	case types.ClientTypeQBittorrent:
		return qbittorrent.New(cfg, s.logger), nil
	case types.ClientTypeTransmission:
		return transmission.New(cfg, s.logger), nil
	case types.ClientTypeSABnzbd:
		return sabnzbd.New(cfg, s.logger), nil
	default:
		return nil, fmt.Errorf("unknown download client implementation %q", c.Implementation)
	}
}

const clientColumns = `id, name, implementation, host, port, use_ssl, url_base,
	username, password, api_key, category, priority, enable, remove_completed`

func scanClient(row interface{ Scan(...interface{}) error }) (*DownloadClient, error) {
	var c DownloadClient
	var useSSL, enable, removeCompleted int
	err := row.Scan(&c.ID, &c.Name, &c.Implementation, &c.Host, &c.Port, &useSSL,
		&c.URLBase, &c.Username, &c.Password, &c.APIKey, &c.Category,
		&c.Priority, &enable, &removeCompleted)
	if err != nil {
		return nil, err
	}
	c.UseSSL = useSSL != 0
	c.Enable = enable != 0
	c.RemoveCompleted = removeCompleted != 0
	return &c, nil
}

func (s *Service) List(ctx context.Context) ([]*DownloadClient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM download_clients ORDER BY priority, name`)
	if err != nil {
		return nil, fmt.Errorf("listing download clients: %w", err)
	}
	defer rows.Close()

	var clients []*DownloadClient
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning download client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Service) Get(ctx context.Context, id int64) (*DownloadClient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM download_clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("download client %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting download client: %w", err)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, c *DownloadClient) error {
	if c.Category == "" {
		c.Category = "sportarr"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO download_clients (name, implementation, host, port, use_ssl, url_base,
			username, password, api_key, category, priority, enable, remove_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Implementation, c.Host, c.Port, boolToInt(c.UseSSL), c.URLBase,
		c.Username, c.Password, c.APIKey, c.Category, c.Priority,
		boolToInt(c.Enable), boolToInt(c.RemoveCompleted))
	if err != nil {
		return fmt.Errorf("creating download client: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	s.logger.Info().Str("name", c.Name).Str("implementation", string(c.Implementation)).
		Msg("Download client created")
	return nil
}

func (s *Service) Update(ctx context.Context, c *DownloadClient) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE download_clients
		SET name = ?, implementation = ?, host = ?, port = ?, use_ssl = ?, url_base = ?,
			username = ?, password = ?, api_key = ?, category = ?, priority = ?,
			enable = ?, remove_completed = ?
		WHERE id = ?`,
		c.Name, c.Implementation, c.Host, c.Port, boolToInt(c.UseSSL), c.URLBase,
		c.Username, c.Password, c.APIKey, c.Category, c.Priority,
		boolToInt(c.Enable), boolToInt(c.RemoveCompleted), c.ID)
	if err != nil {
		return fmt.Errorf("updating download client: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM download_clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting download client: %w", err)
	}
	return nil
}

// Test connects to the configured client and verifies credentials.
func (s *Service) Test(ctx context.Context, c *DownloadClient) error {
	client, err := s.newClient(c)
	if err != nil {
		return err
	}
	return client.Test(ctx)
}

// HasClientFor reports whether an enabled client serves the protocol.
func (s *Service) HasClientFor(ctx context.Context, protocol indexertypes.Protocol) (bool, error) {
	clients, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range clients {
		if c.Enable && c.Protocol() == protocol {
			return true, nil
		}
	}
	return false, nil
}

// clientFor picks the enabled client with the lowest priority value
// for the release's protocol.
func (s *Service) clientFor(ctx context.Context, protocol indexertypes.Protocol) (*DownloadClient, error) {
	clients, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var eligible []*DownloadClient
	for _, c := range clients {
		if c.Enable && c.Protocol() == protocol {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("no enabled download client for protocol %s", protocol)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority < eligible[j].Priority
	})
	return eligible[0], nil
}

// Grab sends a release to a download client and records the queue item.
// Concurrent grabs of the same event are rejected; RSS sync and
// scheduled search can race for one event otherwise.
func (s *Service) Grab(ctx context.Context, ev *events.Event, rel indexertypes.ReleaseSearchResult) error {
	key := decisioning.Key(ev.ID)
	if !s.grabLock.TryAcquire(key) {
		return fmt.Errorf("grab already in progress for event %d", ev.ID)
	}
	defer s.grabLock.Release(key)

	if s.limiter != nil && rel.IndexerID != 0 && s.limiter.CheckGrabLimit(rel.IndexerID) {
		return fmt.Errorf("indexer %s is over its hourly grab limit", rel.IndexerName)
	}

	protocol := rel.Protocol
	if protocol == "" {
		protocol = indexertypes.ProtocolTorrent
	}

	cfg, err := s.clientFor(ctx, protocol)
	if err != nil {
		return err
	}

	url := rel.DownloadURL
	if url == "" {
		return fmt.Errorf("release %q has no download url", rel.Title)
	}

	client, err := s.newClient(cfg)
	if err != nil {
		return err
	}

	result := client.AddDownload(ctx, url, cfg.Category, rel.Title)
	if !result.Success {
		s.recordGrabFailure(ctx, ev.ID, rel)
		return fmt.Errorf("adding %q to %s: %s", rel.Title, cfg.Name, result.Message)
	}
	if s.limiter != nil && rel.IndexerID != 0 {
		s.limiter.RecordGrab(rel.IndexerID)
	}

	item := &QueueItem{
		EventID:          ev.ID,
		DownloadClientID: &cfg.ID,
		DownloadID:       result.DownloadID,
		Title:            rel.Title,
		ReleaseGUID:      rel.GUID,
		Protocol:         protocol,
		Status:           ItemQueued,
		Size:             rel.Size,
		SizeLeft:         rel.Size,
		GrabbedAt:        s.now().UTC().Truncate(time.Second),
	}
	if rel.IndexerID != 0 {
		id := rel.IndexerID
		item.IndexerID = &id
	}
	if err := s.queue.Add(ctx, item); err != nil {
		return fmt.Errorf("recording queue item: %w", err)
	}

	if s.history != nil {
		if _, err := s.history.Record(ctx, history.CreateInput{
			EventType: history.EventTypeGrabbed,
			EventID:   ev.ID,
			Source:    rel.IndexerName,
			Quality:   rel.Quality,
			Data: map[string]any{
				"title":    rel.Title,
				"guid":     rel.GUID,
				"protocol": string(protocol),
				"client":   cfg.Name,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record grab history")
		}
	}

	s.logger.Info().Str("title", rel.Title).Str("client", cfg.Name).
		Str("downloadId", result.DownloadID).Msg("Release grabbed")
	return nil
}

func (s *Service) recordGrabFailure(ctx context.Context, eventID int64, rel indexertypes.ReleaseSearchResult) {
	if s.retries == nil {
		return
	}
	if err := s.retries.RecordFailure(ctx, eventID, rel.GUID); err != nil {
		s.logger.Warn().Err(err).Str("guid", rel.GUID).Msg("Failed to record grab failure")
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
