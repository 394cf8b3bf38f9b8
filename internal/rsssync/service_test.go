package rsssync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/releasecache"
	"github.com/sportarr/sportarr/internal/sport"
	"github.com/sportarr/sportarr/internal/testutil"
)

type fakeFeeds struct {
	mu       sync.Mutex
	calls    int
	releases []types.ReleaseSearchResult
	err      error
}

func (f *fakeFeeds) FetchAllRss(ctx context.Context, perIndexerLimit int) ([]types.ReleaseSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.releases, f.err
}

func (f *fakeFeeds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGrabber struct {
	mu      sync.Mutex
	grabbed []string
	err     error
}

func (g *fakeGrabber) Grab(ctx context.Context, ev *events.Event, rel types.ReleaseSearchResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.grabbed = append(g.grabbed, rel.GUID)
	return nil
}

type syncHarness struct {
	svc     *Service
	feeds   *fakeFeeds
	grabber *fakeGrabber
	events  *events.Service
	setNow  func(time.Time)
}

func newSyncHarness(t *testing.T) *syncHarness {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	if _, err := tdb.Conn.Exec(
		`INSERT INTO indexers (name, implementation, base_url) VALUES ('Test', 'torznab', 'http://x')`); err != nil {
		t.Fatalf("seed indexer: %v", err)
	}

	qualitySvc := quality.NewService(tdb.Conn, tdb.Logger)
	if err := qualitySvc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("quality defaults: %v", err)
	}
	delays := decisioning.NewDelayService(tdb.Conn, tdb.Logger)
	if err := delays.EnsureDefault(ctx); err != nil {
		t.Fatalf("delay default: %v", err)
	}

	feeds := &fakeFeeds{}
	grabber := &fakeGrabber{}
	eventSvc := events.NewService(tdb.Conn, nil, tdb.Logger)
	cache := releasecache.NewService(tdb.Conn, tdb.Logger)
	checker := decisioning.NewGrabChecker(nil, nil, nil, tdb.Logger)

	svc := NewService(feeds, cache, eventSvc, qualitySvc, delays, checker, grabber, nil,
		DefaultSettings(), tdb.Logger)

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }
	return &syncHarness{
		svc:     svc,
		feeds:   feeds,
		grabber: grabber,
		events:  eventSvc,
		setNow:  func(t time.Time) { now = t },
	}
}

func (h *syncHarness) seedEvent(t *testing.T) *events.Event {
	t.Helper()
	ctx := context.Background()
	league, err := h.events.CreateLeague(ctx, &events.League{
		Name:      "UFC",
		Sport:     sport.Fighting,
		Monitored: true,
	})
	if err != nil {
		t.Fatalf("create league: %v", err)
	}
	ev, err := h.events.Create(ctx, events.CreateEventInput{
		LeagueID:  league.ID,
		Title:     "UFC 310: Pantoja vs Asakura",
		Sport:     sport.Fighting,
		EventType: "ppv",
		Year:      2024,
		Monitored: true,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func intPtr(n int) *int { return &n }

func feedRelease(guid, title string, published time.Time) types.ReleaseSearchResult {
	return types.ReleaseSearchResult{
		GUID:        guid,
		Title:       title,
		DownloadURL: "http://example.com/" + guid,
		Size:        4 * 1024 * 1024 * 1024,
		IndexerID:   1,
		Protocol:    types.ProtocolTorrent,
		Seeders:     intPtr(40),
		PublishDate: published,
	}
}

func TestRunGrabsMatchedRelease(t *testing.T) {
	h := newSyncHarness(t)
	h.seedEvent(t)
	published := time.Now().UTC().Add(-24 * time.Hour)
	h.feeds.releases = []types.ReleaseSearchResult{
		feedRelease("g1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", published),
		feedRelease("g2", "NBA.2026.02.14.Lakers.vs.Celtics.720p.HDTV-GRP", published),
	}

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := h.svc.LastStatus()
	if st.TotalReleases != 2 {
		t.Errorf("TotalReleases = %d, want 2", st.TotalReleases)
	}
	if st.Cached != 2 {
		t.Errorf("Cached = %d, want 2", st.Cached)
	}
	if st.Matched != 1 {
		t.Errorf("Matched = %d, want 1", st.Matched)
	}
	if st.Grabbed != 1 {
		t.Errorf("Grabbed = %d, want 1", st.Grabbed)
	}
	if len(h.grabber.grabbed) != 1 || h.grabber.grabbed[0] != "g1" {
		t.Errorf("grabbed = %v, want [g1]", h.grabber.grabbed)
	}
}

func TestRunFiltersStaleReleases(t *testing.T) {
	h := newSyncHarness(t)
	h.seedEvent(t)
	h.feeds.releases = []types.ReleaseSearchResult{
		feedRelease("old", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP",
			time.Now().UTC().Add(-30*24*time.Hour)),
	}

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := h.svc.LastStatus()
	if st.Cached != 0 {
		t.Errorf("Cached = %d, want 0 for stale release", st.Cached)
	}
	if len(h.grabber.grabbed) != 0 {
		t.Errorf("stale release grabbed: %v", h.grabber.grabbed)
	}
}

func TestRunTicksDoNotStack(t *testing.T) {
	h := newSyncHarness(t)
	h.svc.running.Store(true)

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.feeds.callCount() != 0 {
		t.Error("overlapping tick fetched feeds")
	}
}

func TestRunErrorCooldown(t *testing.T) {
	h := newSyncHarness(t)
	start := time.Now().UTC()
	h.setNow(start)
	h.feeds.err = errors.New("indexers unreachable")

	if err := h.svc.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded despite feed error")
	}
	if got := h.svc.LastStatus().Error; got == "" {
		t.Error("sweep error not recorded")
	}

	// Within the cooldown the next tick must not touch the indexers.
	h.feeds.err = nil
	h.setNow(start.Add(time.Minute))
	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.feeds.callCount() != 1 {
		t.Errorf("feeds fetched %d times during cooldown, want 1", h.feeds.callCount())
	}

	// Past the cooldown syncing resumes.
	h.setNow(start.Add(6 * time.Minute))
	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.feeds.callCount() != 2 {
		t.Errorf("feeds fetched %d times after cooldown, want 2", h.feeds.callCount())
	}
}

func TestRunGrabFailureFallsThrough(t *testing.T) {
	h := newSyncHarness(t)
	h.seedEvent(t)
	h.grabber.err = errors.New("client down")
	published := time.Now().UTC().Add(-time.Hour)
	h.feeds.releases = []types.ReleaseSearchResult{
		feedRelease("g1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP", published),
	}

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := h.svc.LastStatus()
	if st.Grabbed != 0 {
		t.Errorf("Grabbed = %d, want 0 when the client rejects the grab", st.Grabbed)
	}
	if st.Error != "" {
		t.Errorf("sweep marked failed for a grab error: %s", st.Error)
	}
}
