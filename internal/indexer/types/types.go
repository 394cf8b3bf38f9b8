// Package types contains shared type definitions for indexer packages.
package types

import (
	"context"
	"time"
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// IndexerType represents the type of indexer API.
type IndexerType string

const (
	IndexerTypeTorznab IndexerType = "torznab"
	IndexerTypeNewznab IndexerType = "newznab"
)

// ProtocolFor maps the indexer API type to the download protocol it serves.
func ProtocolFor(t IndexerType) Protocol {
	if t == IndexerTypeNewznab {
		return ProtocolUsenet
	}
	return ProtocolTorrent
}

// Indexer represents a configured indexer.
type Indexer struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Implementation IndexerType `json:"implementation"`
	BaseURL        string      `json:"baseUrl"`
	APIKey         string      `json:"-"`
	Categories     []int       `json:"categories"`
	Priority       int         `json:"priority"`
	EnableRss      bool        `json:"enableRss"`
	EnableSearch   bool        `json:"enableSearch"`
	SeedRatio      *float64    `json:"seedRatio,omitempty"`
	SeedTimeMin    *int        `json:"seedTimeMin,omitempty"`
	CreatedAt      time.Time   `json:"createdAt,omitempty"`
}

// Protocol returns the download protocol this indexer serves.
func (i *Indexer) Protocol() Protocol {
	return ProtocolFor(i.Implementation)
}

// SearchCriteria defines search parameters.
type SearchCriteria struct {
	Query      string `json:"query,omitempty"`
	Categories []int  `json:"categories,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// ReleaseSearchResult is a normalised release from any indexer.
type ReleaseSearchResult struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	DownloadURL string    `json:"downloadUrl"`
	InfoURL     string    `json:"infoUrl,omitempty"`
	Size        int64     `json:"size"`
	PublishDate time.Time `json:"publishDate"`
	Categories  []int     `json:"categories"`

	IndexerID   int64    `json:"indexerId"`
	IndexerName string   `json:"indexer"`
	Protocol    Protocol `json:"protocol"`

	Seeders         *int     `json:"seeders,omitempty"`
	Leechers        *int     `json:"leechers,omitempty"`
	TorrentInfoHash string   `json:"torrentInfoHash,omitempty"`
	IndexerFlags    []string `json:"indexerFlags,omitempty"`

	// Parsed quality info (from title)
	Quality  string `json:"quality,omitempty"`
	Source   string `json:"source,omitempty"`
	Codec    string `json:"codec,omitempty"`
	Language string `json:"language,omitempty"`
	Group    string `json:"releaseGroup,omitempty"`
	Part     string `json:"part,omitempty"`
	IsPack   bool   `json:"isPack,omitempty"`

	// Evaluation results, annotated by the decision engine.
	Approved          bool     `json:"approved"`
	Rejections        []string `json:"rejections,omitempty"`
	QualityScore      int      `json:"qualityScore"`
	CustomFormatScore int      `json:"customFormatScore"`
	SizeScore         int      `json:"sizeScore"`
	Score             int      `json:"score"`
	MatchedFormats    []string `json:"matchedFormats,omitempty"`
	MatchScore        *int     `json:"matchScore,omitempty"`
}

// Client is the capability set every indexer protocol implements.
type Client interface {
	Test(ctx context.Context) error
	Search(ctx context.Context, criteria SearchCriteria) ([]ReleaseSearchResult, error)
	FetchRss(ctx context.Context, limit int) ([]ReleaseSearchResult, error)
}
