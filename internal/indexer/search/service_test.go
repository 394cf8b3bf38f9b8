package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/indexer"
	"github.com/sportarr/sportarr/internal/indexer/ratelimit"
	"github.com/sportarr/sportarr/internal/indexer/status"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/testutil"
)

type fakeClient struct {
	mu       sync.Mutex
	calls    int
	releases []types.ReleaseSearchResult
	err      error
}

func (f *fakeClient) Test(ctx context.Context) error { return nil }

func (f *fakeClient) Search(ctx context.Context, criteria types.SearchCriteria) ([]types.ReleaseSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.releases, f.err
}

func (f *fakeClient) FetchRss(ctx context.Context, limit int) ([]types.ReleaseSearchResult, error) {
	return f.Search(ctx, types.SearchCriteria{})
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProtocols struct {
	torrent bool
	usenet  bool
}

func (f *fakeProtocols) HasClientFor(ctx context.Context, protocol types.Protocol) (bool, error) {
	if protocol == types.ProtocolUsenet {
		return f.usenet, nil
	}
	return f.torrent, nil
}

type testHarness struct {
	svc     *Service
	clients map[int64]*fakeClient
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	db := testutil.NewTestDB(t)
	logger := testutil.NewTestLogger(t)
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		QueryLimit:  100,
		QueryPeriod: time.Hour,
		GrabLimit:   25,
		GrabPeriod:  time.Hour,
	}, logger)
	ixSvc := indexer.NewService(db.Conn, logger)
	statusSvc := status.NewService(db.Conn, logger)
	svc := NewService(ixSvc, statusSvc, limiter, &fakeProtocols{torrent: true, usenet: true}, nil, logger)

	h := &testHarness{svc: svc, clients: make(map[int64]*fakeClient)}
	svc.clientFor = func(ix types.Indexer) types.Client {
		c, ok := h.clients[ix.ID]
		if !ok {
			t.Fatalf("no fake client registered for indexer %d", ix.ID)
		}
		return c
	}
	return h
}

func (h *testHarness) addIndexer(t *testing.T, name, implementation string, client *fakeClient) int64 {
	t.Helper()
	ix, err := h.svc.indexers.Create(context.Background(), &types.Indexer{
		Name:           name,
		Implementation: types.IndexerType(implementation),
		BaseURL:        "http://" + name + ".example.com",
		EnableRss:      true,
		EnableSearch:   true,
	})
	if err != nil {
		t.Fatalf("create indexer: %v", err)
	}
	h.clients[ix.ID] = client
	return ix.ID
}

func testEvalInput(t *testing.T) decisioning.EvalInput {
	t.Helper()
	p := quality.DefaultProfile()
	defs, err := quality.LoadDefinitions()
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}
	return decisioning.EvalInput{
		Profile:          &p,
		Definitions:      defs,
		MultiPartEnabled: true,
	}
}

func intPtr(n int) *int { return &n }

func torrentRelease(guid, title, hash string, seeders int) types.ReleaseSearchResult {
	return types.ReleaseSearchResult{
		GUID:            guid,
		Title:           title,
		DownloadURL:     "http://example.com/" + guid,
		Size:            4 * 1024 * 1024 * 1024,
		Protocol:        types.ProtocolTorrent,
		Seeders:         intPtr(seeders),
		TorrentInfoHash: hash,
	}
}

func TestSearchAggregatesAndDeduplicates(t *testing.T) {
	h := newTestHarness(t)
	h.addIndexer(t, "alpha", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		torrentRelease("a1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", "abcd1234", 40),
		torrentRelease("a2", "UFC.310.Main.Card.2024.720p.HDTV-OTHER", "", 10),
	}})
	h.addIndexer(t, "beta", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		// Same payload as a1 with more seeders, should win the dedupe.
		torrentRelease("b1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", "ABCD1234", 90),
	}})

	releases, err := h.svc.Search(context.Background(), SearchInput{
		Query: "UFC 310",
		Eval:  testEvalInput(t),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("got %d releases, want 2", len(releases))
	}
	best := releases[0]
	if best.GUID != "b1" {
		t.Errorf("best release GUID = %q, want b1 (more seeders)", best.GUID)
	}
	if !best.Approved {
		t.Errorf("best release not approved: %v", best.Rejections)
	}
	if best.Quality != "WEBDL-1080p" {
		t.Errorf("best release quality = %q, want WEBDL-1080p", best.Quality)
	}
	if releases[1].QualityScore >= best.QualityScore {
		t.Errorf("releases not sorted by quality score: %d then %d", best.QualityScore, releases[1].QualityScore)
	}
}

func TestSearchFiltersMinimumSeeders(t *testing.T) {
	h := newTestHarness(t)
	h.addIndexer(t, "alpha", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		torrentRelease("a1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", "aaaa", 1),
		torrentRelease("a2", "UFC.310.Prelims.2024.1080p.WEBDL-GROUP", "bbbb", 25),
	}})

	releases, err := h.svc.Search(context.Background(), SearchInput{
		Query:          "UFC 310",
		Eval:           testEvalInput(t),
		MinimumSeeders: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("got %d releases, want 1", len(releases))
	}
	if releases[0].GUID != "a2" {
		t.Errorf("kept release GUID = %q, want a2", releases[0].GUID)
	}
}

func TestSearchSurvivesIndexerFailure(t *testing.T) {
	h := newTestHarness(t)
	goodID := h.addIndexer(t, "good", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		torrentRelease("g1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", "cccc", 30),
	}})
	badID := h.addIndexer(t, "bad", "torznab", &fakeClient{
		err: indexer.NewSearchError(0, "bad", errors.New("server exploded")),
	})

	releases, err := h.svc.Search(context.Background(), SearchInput{
		Query: "UFC 310",
		Eval:  testEvalInput(t),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(releases) != 1 || releases[0].GUID != "g1" {
		t.Fatalf("expected only the good indexer's release, got %v", releases)
	}

	ctx := context.Background()
	badStatus, err := h.svc.status.GetStatus(ctx, badID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if badStatus.EscalationLevel != 1 {
		t.Errorf("bad indexer escalation = %d, want 1", badStatus.EscalationLevel)
	}
	goodStatus, err := h.svc.status.GetStatus(ctx, goodID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if goodStatus.LastSuccess == nil {
		t.Error("good indexer success not recorded")
	}
}

func TestSearchSkipsRateLimitedIndexer(t *testing.T) {
	h := newTestHarness(t)
	limited := &fakeClient{err: indexer.NewRateLimitError(0, "limited", time.Hour)}
	h.addIndexer(t, "limited", "torznab", limited)
	h.addIndexer(t, "open", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		torrentRelease("o1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", "dddd", 15),
	}})

	ctx := context.Background()
	in := SearchInput{Query: "UFC 310", Eval: testEvalInput(t)}

	// First search hits the 429 and records the cooldown.
	if _, err := h.svc.Search(ctx, in); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := limited.callCount(); got != 1 {
		t.Fatalf("limited indexer queried %d times, want 1", got)
	}

	// While the cooldown holds, the indexer must not be queried again.
	if _, err := h.svc.Search(ctx, in); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := limited.callCount(); got != 1 {
		t.Errorf("limited indexer queried %d times during cooldown, want 1", got)
	}
}

func TestSearchSkipsProtocolWithoutClient(t *testing.T) {
	h := newTestHarness(t)
	h.svc.protocols = &fakeProtocols{torrent: true, usenet: false}
	usenetClient := &fakeClient{}
	h.addIndexer(t, "nzb", "newznab", usenetClient)
	h.addIndexer(t, "torrent", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		torrentRelease("t1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", "eeee", 12),
	}})

	releases, err := h.svc.Search(context.Background(), SearchInput{
		Query: "UFC 310",
		Eval:  testEvalInput(t),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("got %d releases, want 1", len(releases))
	}
	if usenetClient.callCount() != 0 {
		t.Error("usenet indexer queried despite no usenet download client")
	}
}

func TestFetchAllRssRecordsSync(t *testing.T) {
	h := newTestHarness(t)
	id := h.addIndexer(t, "alpha", "torznab", &fakeClient{releases: []types.ReleaseSearchResult{
		torrentRelease("r1", "NBA.2026.02.14.Lakers.vs.Celtics.720p.HDTV-GRP", "ffff", 8),
	}})

	releases, err := h.svc.FetchAllRss(context.Background(), 100)
	if err != nil {
		t.Fatalf("FetchAllRss: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("got %d releases, want 1", len(releases))
	}

	st, err := h.svc.status.GetStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.LastRSSSync == nil {
		t.Error("RSS sync timestamp not recorded")
	}
}

func TestDedupePrefersMostSeeders(t *testing.T) {
	releases := []types.ReleaseSearchResult{
		torrentRelease("g1", "Title.A", "HASH1", 5),
		torrentRelease("g2", "Title.A", "hash1", 50),
		torrentRelease("g3", "Title.B", "", 3),
		{GUID: " g3 ", Title: "Title.B", Protocol: types.ProtocolTorrent, Seeders: intPtr(9)},
	}
	out := dedupe(releases)
	if len(out) != 2 {
		t.Fatalf("got %d releases, want 2", len(out))
	}
	if out[0].GUID != "g2" {
		t.Errorf("hash dedupe kept %q, want g2", out[0].GUID)
	}
	if seederCount(out[1]) != 9 {
		t.Errorf("guid dedupe kept %d seeders, want 9", seederCount(out[1]))
	}
}
