// Package types defines the download client contract shared by the
// vendor adapters and the queue machinery.
package types

import (
	"context"
	"errors"

	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
)

var (
	ErrNotConnected = errors.New("client not connected")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrNotFound     = errors.New("download not found")
)

// ClientType identifies a download client implementation.
type ClientType string

const (
	ClientTypeQBittorrent  ClientType = "qbittorrent"
	ClientTypeTransmission ClientType = "transmission"
	ClientTypeSABnzbd      ClientType = "sabnzbd"
)

// ProtocolForClient returns the protocol a client type serves.
func ProtocolForClient(clientType ClientType) indexertypes.Protocol {
	switch clientType {
	case ClientTypeQBittorrent, ClientTypeTransmission:
		return indexertypes.ProtocolTorrent
	case ClientTypeSABnzbd:
		return indexertypes.ProtocolUsenet
	default:
		return ""
	}
}

// ClientConfig holds connection settings common to all adapters.
type ClientConfig struct {
	Host     string
	Port     int
	UseSSL   bool
	URLBase  string
	Username string
	Password string
	APIKey   string
	Category string
}

// ErrorType classifies why an add failed.
type ErrorType string

const (
	ErrorNone             ErrorType = ""
	ErrorInvalidTorrent   ErrorType = "invalid_torrent"
	ErrorTorrentRejected  ErrorType = "torrent_rejected"
	ErrorLoginFailed      ErrorType = "login_failed"
	ErrorConnectionFailed ErrorType = "connection_failed"
	ErrorTimeout          ErrorType = "timeout"
	ErrorUnknown          ErrorType = "unknown"
)

// AddDownloadResult is the outcome of sending a release to a client.
type AddDownloadResult struct {
	Success    bool
	DownloadID string
	ErrorType  ErrorType
	Message    string
}

// DownloadStatus is the canonical status every vendor status maps to.
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusDownloading DownloadStatus = "downloading"
	StatusPaused      DownloadStatus = "paused"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	// StatusWarning marks a download that is alive but not progressing,
	// e.g. a stalled torrent.
	StatusWarning DownloadStatus = "warning"
)

// ClientStatus is a point-in-time view of one download inside a client.
type ClientStatus struct {
	Status     DownloadStatus
	Progress   float64 // 0-100
	Downloaded int64
	Size       int64
	// Seconds until completion; nil when the client reports no usable
	// estimate (vendor infinity sentinels included).
	TimeRemaining *int64
	SavePath      string
	Error         string
}

// Client is the contract every vendor adapter implements.
type Client interface {
	Type() ClientType
	Protocol() indexertypes.Protocol

	Test(ctx context.Context) error

	// AddDownload sends a release URL (torrent file, magnet, or NZB)
	// to the client under the given category. expectedName, when
	// known, helps identify the download afterwards.
	AddDownload(ctx context.Context, url, category, expectedName string) AddDownloadResult

	// GetStatus looks a download up by the ID AddDownload returned.
	// A nil status with nil error means the download is gone.
	GetStatus(ctx context.Context, downloadID string) (*ClientStatus, error)

	// FindByTitle locates a download by display name within a
	// category. Fallback for clients that rewrite IDs.
	FindByTitle(ctx context.Context, title, category string) (string, *ClientStatus, error)

	Remove(ctx context.Context, downloadID string, deleteFiles bool) error
}
