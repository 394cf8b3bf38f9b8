// Package torznab implements the Torznab torrent indexer API protocol.
package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/indexer"
	"github.com/sportarr/sportarr/internal/indexer/types"
)

// Client is a Torznab API client for a single indexer.
type Client struct {
	indexer    types.Indexer
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Torznab client for the given indexer definition.
func NewClient(ix types.Indexer, logger zerolog.Logger) *Client {
	return &Client{
		indexer: ix,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().
			Str("component", "torznab").
			Str("indexer", ix.Name).
			Logger(),
	}
}

// Test performs a capabilities request to verify connectivity and credentials.
func (c *Client) Test(ctx context.Context) error {
	params := url.Values{}
	params.Set("t", "caps")
	params.Set("apikey", c.indexer.APIKey)

	resp, err := c.get(ctx, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	return nil
}

// Search queries the indexer for releases.
func (c *Client) Search(ctx context.Context, criteria types.SearchCriteria) ([]types.ReleaseSearchResult, error) {
	params := url.Values{}
	params.Set("t", "search")
	params.Set("apikey", c.indexer.APIKey)
	if criteria.Query != "" {
		params.Set("q", criteria.Query)
	}
	cats := criteria.Categories
	if len(cats) == 0 {
		cats = c.indexer.Categories
	}
	if len(cats) > 0 {
		params.Set("cat", joinCategories(cats))
	}
	if criteria.Limit > 0 {
		params.Set("limit", strconv.Itoa(criteria.Limit))
	}
	if criteria.Offset > 0 {
		params.Set("offset", strconv.Itoa(criteria.Offset))
	}

	start := time.Now()
	results, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("query", criteria.Query).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Search complete")
	return results, nil
}

// FetchRss retrieves the indexer's latest releases without a search query.
func (c *Client) FetchRss(ctx context.Context, limit int) ([]types.ReleaseSearchResult, error) {
	params := url.Values{}
	params.Set("t", "search")
	params.Set("apikey", c.indexer.APIKey)
	if len(c.indexer.Categories) > 0 {
		params.Set("cat", joinCategories(c.indexer.Categories))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	results, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("results", len(results)).Msg("RSS fetch complete")
	return results, nil
}

func (c *Client) get(ctx context.Context, params url.Values) (*http.Response, error) {
	reqURL, err := url.Parse(strings.TrimSuffix(c.indexer.BaseURL, "/") + "/api")
	if err != nil {
		return nil, indexer.NewConfigError(c.indexer.ID, c.indexer.Name, fmt.Sprintf("invalid base URL: %v", err))
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, indexer.NewSearchError(c.indexer.ID, c.indexer.Name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, indexer.NewNetworkError(c.indexer.ID, c.indexer.Name, err)
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return indexer.NewAuthError(c.indexer.ID, c.indexer.Name, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return indexer.NewRateLimitError(c.indexer.ID, c.indexer.Name, parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return indexer.NewTemporaryError(c.indexer.ID, c.indexer.Name, fmt.Errorf("status %d", resp.StatusCode))
	default:
		return indexer.NewSearchError(c.indexer.ID, c.indexer.Name, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (c *Client) fetch(ctx context.Context, params url.Values) ([]types.ReleaseSearchResult, error) {
	resp, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, indexer.NewParseError(c.indexer.ID, c.indexer.Name, "invalid torznab response", err)
	}
	if rss.ErrorCode != 0 {
		if rss.ErrorCode == 100 || rss.ErrorCode == 101 {
			return nil, indexer.NewAuthError(c.indexer.ID, c.indexer.Name, fmt.Errorf("api error %d: %s", rss.ErrorCode, rss.ErrorDesc))
		}
		return nil, indexer.NewSearchError(c.indexer.ID, c.indexer.Name, fmt.Errorf("api error %d: %s", rss.ErrorCode, rss.ErrorDesc))
	}

	results := make([]types.ReleaseSearchResult, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		rel := types.ReleaseSearchResult{
			GUID:        item.GUID,
			Title:       item.Title,
			DownloadURL: item.Link,
			InfoURL:     item.Comments,
			IndexerID:   c.indexer.ID,
			IndexerName: c.indexer.Name,
			Protocol:    types.ProtocolTorrent,
			PublishDate: parsePubDate(item.PubDate),
			Size:        item.Size,
		}
		if rel.DownloadURL == "" {
			rel.DownloadURL = item.Enclosure.URL
		}
		if rel.Size == 0 && item.Enclosure.Length > 0 {
			rel.Size = item.Enclosure.Length
		}
		if rel.GUID == "" {
			rel.GUID = rel.DownloadURL
		}
		for _, cat := range item.Categories {
			if n, err := strconv.Atoi(cat); err == nil {
				rel.Categories = append(rel.Categories, n)
			}
		}
		applyAttrs(&rel, item.Attrs)
		results = append(results, rel)
	}
	return results, nil
}

func applyAttrs(rel *types.ReleaseSearchResult, attrs []torznabAttr) {
	for _, attr := range attrs {
		switch attr.Name {
		case "seeders":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				rel.Seeders = &n
			}
		case "peers":
			// Torznab reports peers = seeders + leechers.
			if n, err := strconv.Atoi(attr.Value); err == nil {
				leech := n
				if rel.Seeders != nil {
					leech = n - *rel.Seeders
					if leech < 0 {
						leech = 0
					}
				}
				rel.Leechers = &leech
			}
		case "infohash":
			rel.TorrentInfoHash = strings.ToLower(attr.Value)
		case "size":
			if rel.Size == 0 {
				rel.Size, _ = strconv.ParseInt(attr.Value, 10, 64)
			}
		case "category":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				rel.Categories = appendUniqueCategory(rel.Categories, n)
			}
		case "tag", "indexerflags":
			for _, f := range strings.Split(attr.Value, ",") {
				if f = strings.TrimSpace(f); f != "" {
					rel.IndexerFlags = append(rel.IndexerFlags, f)
				}
			}
		}
	}
}

func appendUniqueCategory(cats []int, n int) []int {
	for _, c := range cats {
		if c == n {
			return cats
		}
	}
	return append(cats, n)
}

func joinCategories(cats []int) string {
	parts := make([]string, len(cats))
	for i, cat := range cats {
		parts[i] = strconv.Itoa(cat)
	}
	return strings.Join(parts, ",")
}

// parseRetryAfter handles both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func parsePubDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, format := range []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 02 Jan 2006 15:04:05 MST",
	} {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
