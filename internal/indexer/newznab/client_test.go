package newznab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sportarr/sportarr/internal/indexer"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/testutil"
)

const searchResponse = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:newznab="http://www.newznab.com/DTD/2010/feeds/attributes/">
  <channel>
    <item>
      <title>WWE.WrestleMania.40.Night.1.1080p.WEB.h264-GRP</title>
      <guid>nzb-guid-1</guid>
      <link>https://nzb.example/getnzb/1</link>
      <pubDate>Sun, 07 Apr 2024 03:00:00 +0000</pubDate>
      <enclosure url="https://nzb.example/getnzb/1" length="0" type="application/x-nzb" />
      <newznab:attr name="size" value="9000000000" />
      <newznab:attr name="category" value="5060" />
    </item>
  </channel>
</rss>`

func testIndexer(baseURL string) types.Indexer {
	return types.Indexer{
		ID:             7,
		Name:           "TestNZB",
		Implementation: types.IndexerTypeNewznab,
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Categories:     []int{5060},
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("t") != "search" || q.Get("apikey") != "test-key" {
			t.Errorf("unexpected query params: %v", q)
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(searchResponse))
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	results, err := client.Search(context.Background(), types.SearchCriteria{Query: "wrestlemania 40"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	rel := results[0]
	if rel.Protocol != types.ProtocolUsenet {
		t.Errorf("protocol = %q", rel.Protocol)
	}
	if rel.Size != 9000000000 {
		t.Errorf("size = %d, want size attr value", rel.Size)
	}
	if len(rel.Categories) == 0 || rel.Categories[0] != 5060 {
		t.Errorf("categories = %v", rel.Categories)
	}
	if rel.Seeders != nil {
		t.Error("usenet releases carry no seeders")
	}
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testIndexer(server.URL), testutil.NopLogger())
	_, err := client.Search(context.Background(), types.SearchCriteria{Query: "anything"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !indexer.IsRetryable(err) {
		t.Error("5xx should be retryable")
	}
}
