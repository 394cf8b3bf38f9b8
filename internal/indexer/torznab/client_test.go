package torznab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sportarr/sportarr/internal/indexer"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/testutil"
)

const searchResponse = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>UFC.300.PPV.Main.Card.1080p.WEB-DL.H264-GRP</title>
      <guid>https://tracker.example/details/12345</guid>
      <link>https://tracker.example/download/12345.torrent</link>
      <comments>https://tracker.example/details/12345</comments>
      <pubDate>Sat, 13 Apr 2024 22:00:00 +0000</pubDate>
      <category>5060</category>
      <enclosure url="https://tracker.example/download/12345.torrent" length="4500000000" type="application/x-bittorrent" />
      <torznab:attr name="seeders" value="120" />
      <torznab:attr name="peers" value="150" />
      <torznab:attr name="infohash" value="AABBCCDDEEFF00112233445566778899AABBCCDD" />
    </item>
    <item>
      <title>Formula.1.2024.Round.04.Japanese.GP.Race.720p.HDTV</title>
      <guid>https://tracker.example/details/12346</guid>
      <link></link>
      <pubDate>Sun, 07 Apr 2024 09:00:00 +0000</pubDate>
      <enclosure url="https://tracker.example/download/12346.torrent" length="2000000000" type="application/x-bittorrent" />
      <torznab:attr name="size" value="2000000000" />
    </item>
  </channel>
</rss>`

func testIndexer(baseURL string) types.Indexer {
	return types.Indexer{
		ID:             3,
		Name:           "TestTracker",
		Implementation: types.IndexerTypeTorznab,
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Categories:     []int{5060, 5070},
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" {
			t.Errorf("path = %q, want /api", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("t") != "search" || q.Get("apikey") != "test-key" {
			t.Errorf("unexpected query params: %v", q)
		}
		if q.Get("q") != "ufc 300" {
			t.Errorf("q = %q, want %q", q.Get("q"), "ufc 300")
		}
		if q.Get("cat") != "5060,5070" {
			t.Errorf("cat = %q, want default categories", q.Get("cat"))
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(searchResponse))
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	results, err := client.Search(context.Background(), types.SearchCriteria{Query: "ufc 300"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	first := results[0]
	if first.Title != "UFC.300.PPV.Main.Card.1080p.WEB-DL.H264-GRP" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Protocol != types.ProtocolTorrent {
		t.Errorf("protocol = %q", first.Protocol)
	}
	if first.Size != 4500000000 {
		t.Errorf("size = %d", first.Size)
	}
	if first.Seeders == nil || *first.Seeders != 120 {
		t.Errorf("seeders = %v, want 120", first.Seeders)
	}
	if first.Leechers == nil || *first.Leechers != 30 {
		t.Errorf("leechers = %v, want 30 (peers - seeders)", first.Leechers)
	}
	if first.TorrentInfoHash != "aabbccddeeff00112233445566778899aabbccdd" {
		t.Errorf("infohash = %q, want lowercased", first.TorrentInfoHash)
	}
	if first.IndexerID != 3 || first.IndexerName != "TestTracker" {
		t.Errorf("indexer attribution = %d %q", first.IndexerID, first.IndexerName)
	}
	if first.PublishDate.IsZero() {
		t.Error("publish date not parsed")
	}

	second := results[1]
	if second.DownloadURL != "https://tracker.example/download/12346.torrent" {
		t.Errorf("download URL should fall back to enclosure, got %q", second.DownloadURL)
	}
	if second.Size != 2000000000 {
		t.Errorf("size = %d", second.Size)
	}
}

func TestSearchRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	_, err := client.Search(context.Background(), types.SearchCriteria{Query: "anything"})
	if !indexer.IsRateLimitError(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if got := indexer.RetryAfterOf(err); got != 2*time.Minute {
		t.Errorf("RetryAfterOf = %v, want 2m", got)
	}
}

func TestSearchAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	_, err := client.Search(context.Background(), types.SearchCriteria{Query: "anything"})
	if !indexer.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if indexer.IsRetryable(err) {
		t.Error("auth failures should not be retryable")
	}
}

func TestSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><error code="100" description="Incorrect user credentials"/>`))
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	_, err := client.Search(context.Background(), types.SearchCriteria{Query: "anything"})
	if !indexer.IsAuthError(err) {
		t.Fatalf("expected auth error for api code 100, got %v", err)
	}
}

func TestTestCaps(t *testing.T) {
	var sawCaps bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "caps" {
			sawCaps = true
		}
		_, _ = w.Write([]byte(`<caps></caps>`))
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	if err := client.Test(context.Background()); err != nil {
		t.Fatalf("Test: %v", err)
	}
	if !sawCaps {
		t.Error("expected a caps request")
	}
}

func TestFetchRss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "" {
			t.Errorf("RSS fetch should not carry a query, got %q", q.Get("q"))
		}
		if q.Get("limit") != "100" {
			t.Errorf("limit = %q, want 100", q.Get("limit"))
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(searchResponse))
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	results, err := client.FetchRss(context.Background(), 100)
	if err != nil {
		t.Fatalf("FetchRss: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("90"); got != 90*time.Second {
		t.Errorf("parseRetryAfter(90) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(empty) = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("parseRetryAfter(garbage) = %v", got)
	}
}
