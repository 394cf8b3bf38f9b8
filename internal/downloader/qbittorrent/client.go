// Package qbittorrent adapts the qBittorrent Web API to the download
// client contract.
package qbittorrent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/downloader/types"
	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
)

// qBittorrent reports this ETA when it has no estimate.
const etaInfinity = 8640000

// How long to wait for an added torrent to surface in the list.
const (
	identifyAttempts = 5
	identifyDelay    = time.Second
)

// Client wraps a qBittorrent Web API session. The embedded library
// client caches the session cookie; method access is serialised so a
// re-login never races an in-flight request.
type Client struct {
	qbt      *qbt.Client
	config   types.ClientConfig
	logger   zerolog.Logger
	probe    *http.Client
	sleep    func(time.Duration)
	mu       sync.Mutex
	loggedIn bool
}

func New(cfg types.ClientConfig, logger zerolog.Logger) *Client {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	host := fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Host, cfg.Port, cfg.URLBase)
	return &Client{
		qbt: qbt.NewClient(qbt.Config{
			Host:     host,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  100,
		}),
		config: cfg,
		logger: logger.With().Str("component", "qbittorrent").Str("host", cfg.Host).Logger(),
		probe:  &http.Client{Timeout: 10 * time.Second},
		sleep:  time.Sleep,
	}
}

func (c *Client) Type() types.ClientType          { return types.ClientTypeQBittorrent }
func (c *Client) Protocol() indexertypes.Protocol { return indexertypes.ProtocolTorrent }

func (c *Client) login(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	if err := c.qbt.LoginCtx(ctx); err != nil {
		return fmt.Errorf("%w: %s", types.ErrAuthFailed, err)
	}
	c.loggedIn = true
	return nil
}

// Test verifies connectivity and credentials.
func (c *Client) Test(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = false
	if err := c.login(ctx); err != nil {
		return err
	}
	if _, err := c.qbt.GetWebAPIVersionCtx(ctx); err != nil {
		return fmt.Errorf("querying qBittorrent version: %w", err)
	}
	return nil
}

// AddDownload sends a torrent URL or magnet to the client and
// identifies the resulting torrent hash.
func (c *Client) AddDownload(ctx context.Context, url, category, expectedName string) types.AddDownloadResult {
	if errType, conclusive := types.PrevalidateURL(ctx, c.probe, url); conclusive {
		return types.AddDownloadResult{
			ErrorType: errType,
			Message:   "download URL serves an HTML page instead of a torrent",
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.login(ctx); err != nil {
		return types.AddDownloadResult{ErrorType: types.ErrorLoginFailed, Message: err.Error()}
	}

	before, err := c.hashesIn(ctx, category)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to snapshot torrents before add")
		before = nil
	}

	opts := map[string]string{}
	if category != "" {
		opts["category"] = category
	}
	if err := c.qbt.AddTorrentFromUrlCtx(ctx, url, opts); err != nil {
		return types.AddDownloadResult{ErrorType: classifyAddError(err), Message: err.Error()}
	}

	hash, err := c.identifyAdded(ctx, category, expectedName, before)
	if err != nil {
		// The torrent was accepted; losing track of it is not a failed add.
		c.logger.Warn().Err(err).Str("name", expectedName).Msg("Added torrent could not be identified")
		return types.AddDownloadResult{Success: true}
	}
	return types.AddDownloadResult{Success: true, DownloadID: hash}
}

// identifyAdded finds the hash of a just-added torrent. Strategies,
// best to worst: new hash in the category; category + expected name;
// expected name among new hashes; a single new hash overall.
func (c *Client) identifyAdded(ctx context.Context, category, expectedName string, before map[string]bool) (string, error) {
	for attempt := 0; attempt < identifyAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(identifyDelay)
		}
		torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
		if err != nil {
			return "", err
		}

		var fresh []qbt.Torrent
		for _, t := range torrents {
			if !before[t.Hash] {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) == 1 {
			return fresh[0].Hash, nil
		}
		for _, t := range fresh {
			if expectedName != "" && strings.EqualFold(t.Name, expectedName) {
				return t.Hash, nil
			}
		}
		if expectedName != "" {
			for _, t := range torrents {
				if strings.EqualFold(t.Name, expectedName) {
					return t.Hash, nil
				}
			}
		}
	}
	return "", errors.New("torrent did not appear in client list")
}

func (c *Client) hashesIn(ctx context.Context, category string) (map[string]bool, error) {
	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]bool, len(torrents))
	for _, t := range torrents {
		hashes[t.Hash] = true
	}
	return hashes, nil
}

// GetStatus looks a torrent up by hash.
func (c *Client) GetStatus(ctx context.Context, downloadID string) (*types.ClientStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{downloadID}})
	if err != nil {
		return nil, fmt.Errorf("querying torrent %s: %w", downloadID, err)
	}
	if len(torrents) == 0 {
		return nil, nil
	}
	status := mapTorrent(torrents[0])
	return &status, nil
}

// FindByTitle locates a torrent by display name within the category.
func (c *Client) FindByTitle(ctx context.Context, title, category string) (string, *types.ClientStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.login(ctx); err != nil {
		return "", nil, err
	}
	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
	if err != nil {
		return "", nil, err
	}
	for _, t := range torrents {
		if strings.EqualFold(t.Name, title) {
			status := mapTorrent(t)
			return t.Hash, &status, nil
		}
	}
	return "", nil, nil
}

func (c *Client) Remove(ctx context.Context, downloadID string, deleteFiles bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.login(ctx); err != nil {
		return err
	}
	return c.qbt.DeleteTorrentsCtx(ctx, []string{downloadID}, deleteFiles)
}

// mapTorrent translates a qBittorrent torrent to the canonical status.
func mapTorrent(t qbt.Torrent) types.ClientStatus {
	status := types.ClientStatus{
		Status:     mapState(t.State),
		Progress:   t.Progress * 100,
		Downloaded: t.Downloaded,
		Size:       t.Size,
		SavePath:   t.SavePath,
	}
	if t.ETA > 0 && t.ETA < etaInfinity {
		eta := int64(t.ETA)
		status.TimeRemaining = &eta
	}
	if t.State == qbt.TorrentStateError || t.State == qbt.TorrentStateMissingFiles {
		status.Error = string(t.State)
	}
	return status
}

// mapState translates qBittorrent's state strings. Anything on the
// upload side of the lifecycle means the payload is fully on disk.
func mapState(state qbt.TorrentState) types.DownloadStatus {
	switch state {
	case qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
		return types.StatusFailed
	case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp, qbt.TorrentStatePausedUp,
		qbt.TorrentStateQueuedUp, qbt.TorrentStateForcedUp, qbt.TorrentStateStoppedUp,
		qbt.TorrentStateCheckingUp, qbt.TorrentStateMoving:
		return types.StatusCompleted
	case qbt.TorrentStateStalledDl:
		return types.StatusWarning
	case qbt.TorrentStatePausedDl, qbt.TorrentStateStoppedDl:
		return types.StatusPaused
	case qbt.TorrentStateQueuedDl, qbt.TorrentStateAllocating, qbt.TorrentStateMetaDl,
		qbt.TorrentStateCheckingDl, qbt.TorrentStateCheckingResumeData:
		return types.StatusQueued
	default:
		return types.StatusDownloading
	}
}

func classifyAddError(err error) types.ErrorType {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "login"):
		return types.ErrorLoginFailed
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return types.ErrorTimeout
	case strings.Contains(msg, "unsupported") || strings.Contains(msg, "invalid"):
		return types.ErrorInvalidTorrent
	case strings.Contains(msg, "connect") || strings.Contains(msg, "refused"):
		return types.ErrorConnectionFailed
	default:
		return types.ErrorUnknown
	}
}
