// Package transmission adapts the Transmission RPC API to the
// download client contract.
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/downloader/types"
	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
)

const sessionIDHeader = "X-Transmission-Session-Id"

// Transmission torrent status codes.
const (
	statusStopped      = 0
	statusCheckWait    = 1
	statusCheck        = 2
	statusDownloadWait = 3
	statusDownload     = 4
	statusSeedWait     = 5
	statusSeed         = 6
)

var torrentFields = []string{
	"id", "name", "status", "percentDone", "totalSize", "downloadDir",
	"hashString", "eta", "downloadedEver", "error", "errorString",
}

// Client speaks the Transmission RPC protocol. The session ID handed
// out via 409 responses is cached; access is serialised per instance.
type Client struct {
	config     types.ClientConfig
	logger     zerolog.Logger
	httpClient *http.Client
	probe      *http.Client

	mu        sync.Mutex
	sessionID string
}

func New(cfg types.ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		config:     cfg,
		logger:     logger.With().Str("component", "transmission").Str("host", cfg.Host).Logger(),
		httpClient: &http.Client{Timeout: 100 * time.Second},
		probe:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Type() types.ClientType          { return types.ClientTypeTransmission }
func (c *Client) Protocol() indexertypes.Protocol { return indexertypes.ProtocolTorrent }

// Test verifies connectivity and credentials.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.call(ctx, "session-get", nil)
	return err
}

// AddDownload sends a torrent URL or magnet to the client.
// Transmission returns the added torrent directly, so no list-diff
// identification is needed.
func (c *Client) AddDownload(ctx context.Context, url, category, expectedName string) types.AddDownloadResult {
	if errType, conclusive := types.PrevalidateURL(ctx, c.probe, url); conclusive {
		return types.AddDownloadResult{
			ErrorType: errType,
			Message:   "download URL serves an HTML page instead of a torrent",
		}
	}

	args := map[string]interface{}{"filename": url}
	resp, err := c.call(ctx, "torrent-add", args)
	if err != nil {
		return types.AddDownloadResult{ErrorType: classifyError(err), Message: err.Error()}
	}

	hash, err := extractHash(resp)
	if err != nil {
		return types.AddDownloadResult{ErrorType: types.ErrorTorrentRejected, Message: err.Error()}
	}
	return types.AddDownloadResult{Success: true, DownloadID: hash}
}

// GetStatus looks a torrent up by hash.
func (c *Client) GetStatus(ctx context.Context, downloadID string) (*types.ClientStatus, error) {
	torrents, err := c.getTorrents(ctx, []string{downloadID})
	if err != nil {
		return nil, err
	}
	if len(torrents) == 0 {
		return nil, nil
	}
	status := mapTorrent(torrents[0])
	return &status, nil
}

// FindByTitle locates a torrent by display name. Transmission has no
// categories, so the category argument is ignored.
func (c *Client) FindByTitle(ctx context.Context, title, category string) (string, *types.ClientStatus, error) {
	torrents, err := c.getTorrents(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	for _, t := range torrents {
		if strings.EqualFold(getString(t, "name"), title) {
			status := mapTorrent(t)
			return getString(t, "hashString"), &status, nil
		}
	}
	return "", nil, nil
}

func (c *Client) Remove(ctx context.Context, downloadID string, deleteFiles bool) error {
	_, err := c.call(ctx, "torrent-remove", map[string]interface{}{
		"ids":               []string{downloadID},
		"delete-local-data": deleteFiles,
	})
	return err
}

func (c *Client) getTorrents(ctx context.Context, ids []string) ([]map[string]interface{}, error) {
	args := map[string]interface{}{"fields": torrentFields}
	if len(ids) > 0 {
		args["ids"] = ids
	}
	resp, err := c.call(ctx, "torrent-get", args)
	if err != nil {
		return nil, err
	}
	raw, ok := resp.Arguments["torrents"].([]interface{})
	if !ok {
		return nil, nil
	}
	torrents := make([]map[string]interface{}, 0, len(raw))
	for _, t := range raw {
		if m, ok := t.(map[string]interface{}); ok {
			torrents = append(torrents, m)
		}
	}
	return torrents, nil
}

// mapTorrent translates a Transmission torrent to the canonical
// status. Seeding states mean the payload is fully on disk.
func mapTorrent(t map[string]interface{}) types.ClientStatus {
	size := getInt(t, "totalSize")
	progress := getFloat(t, "percentDone") * 100
	status := types.ClientStatus{
		Progress:   progress,
		Downloaded: getInt(t, "downloadedEver"),
		Size:       size,
		SavePath:   getString(t, "downloadDir"),
		Error:      getString(t, "errorString"),
	}

	if getInt(t, "error") != 0 {
		status.Status = types.StatusFailed
		return status
	}

	switch getInt(t, "status") {
	case statusStopped:
		if progress >= 100 {
			status.Status = types.StatusCompleted
		} else {
			status.Status = types.StatusPaused
		}
	case statusCheckWait, statusCheck, statusDownloadWait:
		status.Status = types.StatusQueued
	case statusDownload:
		status.Status = types.StatusDownloading
	case statusSeedWait, statusSeed:
		status.Status = types.StatusCompleted
	default:
		status.Status = types.StatusDownloading
	}

	if eta := getInt(t, "eta"); eta > 0 {
		status.TimeRemaining = &eta
	}
	return status
}

// extractHash pulls the hash from a torrent-add response. A duplicate
// add is treated as success pointing at the existing torrent.
func extractHash(resp *rpcResponse) (string, error) {
	for _, key := range []string{"torrent-added", "torrent-duplicate"} {
		if raw, ok := resp.Arguments[key].(map[string]interface{}); ok {
			if hash := getString(raw, "hashString"); hash != "" {
				return hash, nil
			}
		}
	}
	return "", fmt.Errorf("torrent-add response carried no torrent")
}

type rpcRequest struct {
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string                 `json:"result"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, args map[string]interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callLocked(ctx, method, args, true)
}

func (c *Client) callLocked(ctx context.Context, method string, args map[string]interface{}, retryConflict bool) (*rpcResponse, error) {
	req, err := c.buildRequest(ctx, method, args)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transmission rpc: %w", err)
	}
	defer resp.Body.Close()

	// Transmission hands out a session ID via 409 on first contact.
	if resp.StatusCode == http.StatusConflict && retryConflict {
		c.sessionID = resp.Header.Get(sessionIDHeader)
		if c.sessionID == "" {
			return nil, fmt.Errorf("transmission sent 409 without a session ID")
		}
		return c.callLocked(ctx, method, args, false)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, types.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transmission rpc returned HTTP %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding transmission response: %w", err)
	}
	if out.Result != "success" {
		return nil, fmt.Errorf("transmission rpc: %s", out.Result)
	}
	return &out, nil
}

func (c *Client) buildRequest(ctx context.Context, method string, args map[string]interface{}) (*http.Request, error) {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d%s/transmission/rpc", scheme, c.config.Host, c.config.Port, c.config.URLBase)

	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(sessionIDHeader, c.sessionID)
	}
	if c.config.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}
	return req, nil
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

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int64 {
	if v, ok := m[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
