// Package sabnzbd adapts the SABnzbd JSON API to the download client
// contract.
package sabnzbd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/downloader/types"
	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
)

// Client speaks the SABnzbd api endpoint. Downloads live in the queue
// while active and move to history on completion, so status lookups
// consult both.
type Client struct {
	config     types.ClientConfig
	logger     zerolog.Logger
	httpClient *http.Client
}

func New(cfg types.ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		config:     cfg,
		logger:     logger.With().Str("component", "sabnzbd").Str("host", cfg.Host).Logger(),
		httpClient: &http.Client{Timeout: 100 * time.Second},
	}
}

func (c *Client) Type() types.ClientType          { return types.ClientTypeSABnzbd }
func (c *Client) Protocol() indexertypes.Protocol { return indexertypes.ProtocolUsenet }

// Test verifies connectivity and the API key.
func (c *Client) Test(ctx context.Context) error {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, url.Values{"mode": {"version"}}, &out); err != nil {
		return err
	}
	if out.Version == "" {
		return fmt.Errorf("sabnzbd returned no version, check the API key")
	}
	return nil
}

// AddDownload sends an NZB URL to the queue.
func (c *Client) AddDownload(ctx context.Context, nzbURL, category, expectedName string) types.AddDownloadResult {
	params := url.Values{
		"mode": {"addurl"},
		"name": {nzbURL},
	}
	if category != "" {
		params.Set("cat", category)
	}
	if expectedName != "" {
		params.Set("nzbname", expectedName)
	}

	var out struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
		Error  string   `json:"error"`
	}
	if err := c.get(ctx, params, &out); err != nil {
		return types.AddDownloadResult{ErrorType: classifyError(err), Message: err.Error()}
	}
	if !out.Status {
		return types.AddDownloadResult{ErrorType: types.ErrorTorrentRejected, Message: out.Error}
	}
	res := types.AddDownloadResult{Success: true}
	if len(out.NzoIDs) > 0 {
		res.DownloadID = out.NzoIDs[0]
	}
	return res
}

// GetStatus looks a download up by nzo id in the queue, then history.
func (c *Client) GetStatus(ctx context.Context, downloadID string) (*types.ClientStatus, error) {
	if status, err := c.findInQueue(ctx, func(s queueSlot) bool { return s.NzoID == downloadID }); err != nil || status != nil {
		return status, err
	}
	return c.findInHistory(ctx, func(s historySlot) bool { return s.NzoID == downloadID })
}

// FindByTitle locates a download by job name within the category.
func (c *Client) FindByTitle(ctx context.Context, title, category string) (string, *types.ClientStatus, error) {
	var foundID string
	match := func(name, cat, id string) bool {
		if category != "" && !strings.EqualFold(cat, category) {
			return false
		}
		if strings.EqualFold(name, title) {
			foundID = id
			return true
		}
		return false
	}
	status, err := c.findInQueue(ctx, func(s queueSlot) bool { return match(s.Filename, s.Cat, s.NzoID) })
	if err != nil || status != nil {
		return foundID, status, err
	}
	status, err = c.findInHistory(ctx, func(s historySlot) bool { return match(s.Name, s.Category, s.NzoID) })
	return foundID, status, err
}

func (c *Client) Remove(ctx context.Context, downloadID string, deleteFiles bool) error {
	delFiles := "0"
	if deleteFiles {
		delFiles = "1"
	}
	// The id lives in either the queue or the history; delete from both.
	queueErr := c.get(ctx, url.Values{
		"mode": {"queue"}, "name": {"delete"}, "value": {downloadID}, "del_files": {delFiles},
	}, nil)
	historyErr := c.get(ctx, url.Values{
		"mode": {"history"}, "name": {"delete"}, "value": {downloadID}, "del_files": {delFiles},
	}, nil)
	if queueErr != nil && historyErr != nil {
		return queueErr
	}
	return nil
}

type queueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Cat        string `json:"cat"`
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
	MB         string `json:"mb"`
	MBLeft     string `json:"mbleft"`
	TimeLeft   string `json:"timeleft"`
}

type historySlot struct {
	NzoID    string `json:"nzo_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Bytes    int64  `json:"bytes"`
	Storage  string `json:"storage"`
	FailMsg  string `json:"fail_message"`
}

func (c *Client) findInQueue(ctx context.Context, match func(queueSlot) bool) (*types.ClientStatus, error) {
	var out struct {
		Queue struct {
			Slots []queueSlot `json:"slots"`
		} `json:"queue"`
	}
	if err := c.get(ctx, url.Values{"mode": {"queue"}}, &out); err != nil {
		return nil, err
	}
	for _, slot := range out.Queue.Slots {
		if match(slot) {
			status := mapQueueSlot(slot)
			return &status, nil
		}
	}
	return nil, nil
}

func (c *Client) findInHistory(ctx context.Context, match func(historySlot) bool) (*types.ClientStatus, error) {
	var out struct {
		History struct {
			Slots []historySlot `json:"slots"`
		} `json:"history"`
	}
	if err := c.get(ctx, url.Values{"mode": {"history"}}, &out); err != nil {
		return nil, err
	}
	for _, slot := range out.History.Slots {
		if match(slot) {
			status := mapHistorySlot(slot)
			return &status, nil
		}
	}
	return nil, nil
}

// mapQueueSlot translates an active queue entry.
func mapQueueSlot(s queueSlot) types.ClientStatus {
	status := types.ClientStatus{Progress: parseFloat(s.Percentage)}
	totalMB := parseFloat(s.MB)
	leftMB := parseFloat(s.MBLeft)
	status.Size = int64(totalMB * 1024 * 1024)
	status.Downloaded = int64((totalMB - leftMB) * 1024 * 1024)

	switch strings.ToLower(s.Status) {
	case "paused":
		status.Status = types.StatusPaused
	case "downloading":
		status.Status = types.StatusDownloading
	default:
		status.Status = types.StatusQueued
	}

	if secs := parseTimeLeft(s.TimeLeft); secs > 0 {
		status.TimeRemaining = &secs
	}
	return status
}

// mapHistorySlot translates a finished entry.
func mapHistorySlot(s historySlot) types.ClientStatus {
	status := types.ClientStatus{
		Size:       s.Bytes,
		Downloaded: s.Bytes,
		SavePath:   s.Storage,
	}
	switch strings.ToLower(s.Status) {
	case "completed":
		status.Status = types.StatusCompleted
		status.Progress = 100
	case "failed":
		status.Status = types.StatusFailed
		status.Error = s.FailMsg
	default:
		// Verifying, repairing, extracting: nearly done but not importable.
		status.Status = types.StatusDownloading
		status.Progress = 100
	}
	return status
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	params.Set("output", "json")
	params.Set("apikey", c.config.APIKey)
	endpoint := fmt.Sprintf("%s://%s:%d%s/api?%s", scheme, c.config.Host, c.config.Port, c.config.URLBase, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sabnzbd api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return types.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sabnzbd api returned HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding sabnzbd response: %w", err)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// parseTimeLeft decodes SABnzbd's "H:MM:SS" estimate.
func parseTimeLeft(s string) int64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0
	}
	h, _ := strconv.ParseInt(parts[0], 10, 64)
	m, _ := strconv.ParseInt(parts[1], 10, 64)
	sec, _ := strconv.ParseInt(parts[2], 10, 64)
	return h*3600 + m*60 + sec
}

func classifyError(err error) types.ErrorType {
	switch {
	case errors.Is(err, types.ErrAuthFailed):
		return types.ErrorLoginFailed
	case strings.Contains(err.Error(), "deadline") || strings.Contains(err.Error(), "timeout"):
		return types.ErrorTimeout
	case strings.Contains(err.Error(), "connect"):
		return types.ErrorConnectionFailed
	default:
		return types.ErrorUnknown
	}
}
