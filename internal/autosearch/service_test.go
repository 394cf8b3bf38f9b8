package autosearch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/indexer/search"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/sport"
	"github.com/sportarr/sportarr/internal/testutil"
)

type fakeSearcher struct {
	mu       sync.Mutex
	queries  []string
	releases []types.ReleaseSearchResult
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, in search.SearchInput) ([]types.ReleaseSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in.Query)
	return f.releases, f.err
}

func (f *fakeSearcher) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
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

type searchHarness struct {
	svc      *Service
	searcher *fakeSearcher
	grabber  *fakeGrabber
	events   *events.Service
	history  *history.Service
	setNow   func(time.Time)
}

func newSearchHarness(t *testing.T) *searchHarness {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	qualitySvc := quality.NewService(tdb.Conn, tdb.Logger)
	if err := qualitySvc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("quality defaults: %v", err)
	}
	delays := decisioning.NewDelayService(tdb.Conn, tdb.Logger)
	if err := delays.EnsureDefault(ctx); err != nil {
		t.Fatalf("delay default: %v", err)
	}

	searcher := &fakeSearcher{}
	grabber := &fakeGrabber{}
	eventSvc := events.NewService(tdb.Conn, nil, tdb.Logger)
	historySvc := history.NewService(tdb.Conn, tdb.Logger)
	checker := decisioning.NewGrabChecker(nil, nil, nil, tdb.Logger)

	svc := NewService(searcher, eventSvc, qualitySvc, delays, checker, grabber,
		historySvc, nil, DefaultSettings(), tdb.Logger)

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }
	return &searchHarness{
		svc:      svc,
		searcher: searcher,
		grabber:  grabber,
		events:   eventSvc,
		history:  historySvc,
		setNow:   func(t time.Time) { now = t },
	}
}

func (h *searchHarness) seedEvent(t *testing.T, eventDate time.Time) *events.Event {
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
		EventDate: &eventDate,
		Monitored: true,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func intPtr(n int) *int { return &n }

func searchRelease(guid, title string) types.ReleaseSearchResult {
	return types.ReleaseSearchResult{
		GUID:        guid,
		Title:       title,
		DownloadURL: "http://example.com/" + guid,
		Size:        4 * 1024 * 1024 * 1024,
		IndexerID:   1,
		Protocol:    types.ProtocolTorrent,
		Seeders:     intPtr(40),
	}
}

func TestSearchEventFiltersNonMatching(t *testing.T) {
	h := newSearchHarness(t)
	ev := h.seedEvent(t, time.Now().UTC().Add(-24*time.Hour))
	h.searcher.releases = []types.ReleaseSearchResult{
		searchRelease("g1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP"),
		searchRelease("g2", "NBA.2026.02.14.Lakers.vs.Celtics.720p.HDTV-GRP"),
	}

	results, err := h.svc.SearchEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("SearchEvent: %v", err)
	}
	if len(results) != 1 || results[0].GUID != "g1" {
		t.Fatalf("results = %v, want [g1]", results)
	}
}

func TestRunGrabsBestForWantedEvent(t *testing.T) {
	h := newSearchHarness(t)
	h.seedEvent(t, time.Now().UTC().Add(-24*time.Hour))
	h.searcher.releases = []types.ReleaseSearchResult{
		searchRelease("g1", "UFC.310.Main.Card.2024.1080p.WEBDL-GROUP"),
	}

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.grabber.grabbed) != 1 || h.grabber.grabbed[0] != "g1" {
		t.Errorf("grabbed = %v, want [g1]", h.grabber.grabbed)
	}
}

func TestRunSkipsFutureEvents(t *testing.T) {
	h := newSearchHarness(t)
	h.seedEvent(t, time.Now().UTC().Add(48*time.Hour))

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.searcher.queryCount() != 0 {
		t.Errorf("searcher queried %d times for a future event, want 0", h.searcher.queryCount())
	}
}

func TestRunSuppressesRecentlyGrabbed(t *testing.T) {
	h := newSearchHarness(t)
	ev := h.seedEvent(t, time.Now().UTC().Add(-24*time.Hour))

	if _, err := h.history.Record(context.Background(), history.CreateInput{
		EventType: history.EventTypeGrabbed,
		EventID:   ev.ID,
		Source:    "rss",
	}); err != nil {
		t.Fatalf("record history: %v", err)
	}

	if err := h.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.searcher.queryCount() != 0 {
		t.Errorf("searcher queried %d times within the suppression window, want 0", h.searcher.queryCount())
	}
}

func TestBuildQueryAppendsYear(t *testing.T) {
	ev := &events.Event{Title: "UFC 310: Pantoja vs Asakura", Year: 2024}
	if got := buildQuery(ev); got != "UFC 310: Pantoja vs Asakura 2024" {
		t.Errorf("buildQuery = %q", got)
	}

	ev = &events.Event{Title: "Formula 1 2024 Monaco Grand Prix", Year: 2024}
	if got := buildQuery(ev); got != "Formula 1 2024 Monaco Grand Prix" {
		t.Errorf("buildQuery = %q, want year not repeated", got)
	}
}
