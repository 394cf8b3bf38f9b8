// Package downloader owns the download side of the pipeline: client
// configurations, the grab dispatcher, the download queue, and the
// monitor that walks queue items through their lifecycle.
package downloader

import (
	"time"

	"github.com/sportarr/sportarr/internal/downloader/types"
	indexertypes "github.com/sportarr/sportarr/internal/indexer/types"
)

// DownloadClient is a configured download client instance.
type DownloadClient struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Implementation  types.ClientType `json:"implementation"`
	Host            string           `json:"host"`
	Port            int              `json:"port"`
	UseSSL          bool             `json:"useSsl"`
	URLBase         string           `json:"urlBase,omitempty"`
	Username        string           `json:"username,omitempty"`
	Password        string           `json:"-"`
	APIKey          string           `json:"-"`
	Category        string           `json:"category"`
	Priority        int              `json:"priority"`
	Enable          bool             `json:"enable"`
	RemoveCompleted bool             `json:"removeCompleted"`
}

// Protocol returns the protocol this client serves.
func (c *DownloadClient) Protocol() indexertypes.Protocol {
	return types.ProtocolForClient(c.Implementation)
}

func (c *DownloadClient) clientConfig() types.ClientConfig {
	return types.ClientConfig{
		Host:     c.Host,
		Port:     c.Port,
		UseSSL:   c.UseSSL,
		URLBase:  c.URLBase,
		Username: c.Username,
		Password: c.Password,
		APIKey:   c.APIKey,
		Category: c.Category,
	}
}

// ItemStatus is a queue item's position in its lifecycle.
type ItemStatus string

const (
	ItemQueued      ItemStatus = "queued"
	ItemDownloading ItemStatus = "downloading"
	ItemPaused      ItemStatus = "paused"
	ItemCompleted   ItemStatus = "completed"
	ItemImporting   ItemStatus = "importing"
	ItemImported    ItemStatus = "imported"
	ItemFailed      ItemStatus = "failed"
)

// Terminal reports whether the monitor is done with this status.
func (s ItemStatus) Terminal() bool {
	return s == ItemImported || s == ItemFailed
}

// QueueItem is one tracked download.
type QueueItem struct {
	ID               int64                   `json:"id"`
	EventID          int64                   `json:"eventId"`
	DownloadClientID *int64                  `json:"downloadClientId,omitempty"`
	DownloadID       string                  `json:"downloadId,omitempty"`
	Title            string                  `json:"title"`
	ReleaseGUID      string                  `json:"releaseGuid,omitempty"`
	IndexerID        *int64                  `json:"indexerId,omitempty"`
	Protocol         indexertypes.Protocol   `json:"protocol"`
	Status           ItemStatus              `json:"status"`
	StatusMessage    string                  `json:"statusMessage,omitempty"`
	ErrorMessage     string                  `json:"errorMessage,omitempty"`
	Size             int64                   `json:"size"`
	SizeLeft         int64                   `json:"sizeLeft"`
	ETASeconds       *int64                  `json:"etaSeconds,omitempty"`
	OutputPath       string                  `json:"outputPath,omitempty"`
	GrabbedAt        time.Time               `json:"grabbedAt"`
	CompletedAt      *time.Time              `json:"completedAt,omitempty"`
	ImportedAt       *time.Time              `json:"importedAt,omitempty"`
}

// BlocklistEntry records a release barred from re-grabbing.
type BlocklistEntry struct {
	ID        int64                 `json:"id"`
	EventID   *int64                `json:"eventId,omitempty"`
	Title     string                `json:"title"`
	GUID      string                `json:"guid,omitempty"`
	IndexerID *int64                `json:"indexerId,omitempty"`
	Protocol  indexertypes.Protocol `json:"protocol,omitempty"`
	Reason    string                `json:"reason"`
	BlockedAt time.Time             `json:"blockedAt"`
}
