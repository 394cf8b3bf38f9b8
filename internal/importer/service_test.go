package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/rootfolder"
	"github.com/sportarr/sportarr/internal/sport"
	"github.com/sportarr/sportarr/internal/testutil"
)

type fakeClients struct{ host string }

func (f *fakeClients) Get(ctx context.Context, id int64) (*downloader.DownloadClient, error) {
	return &downloader.DownloadClient{ID: id, Host: f.host}, nil
}

type importHarness struct {
	tdb     *testutil.TestDB
	svc     *Service
	events  *events.Service
	history *history.Service
	roots   *rootfolder.Service
	root    string
}

func newImportHarness(t *testing.T) *importHarness {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	eventSvc := events.NewService(tdb.Conn, nil, tdb.Logger)
	historySvc := history.NewService(tdb.Conn, tdb.Logger)
	roots := rootfolder.NewService(tdb.Conn, tdb.Logger)

	rootDir := t.TempDir()
	if _, err := roots.Add(ctx, rootDir); err != nil {
		t.Fatalf("add root folder: %v", err)
	}

	svc := NewService(tdb.Conn, eventSvc, &fakeClients{host: "localhost"}, roots, historySvc, tdb.Logger)
	return &importHarness{
		tdb:     tdb,
		svc:     svc,
		events:  eventSvc,
		history: historySvc,
		roots:   roots,
		root:    rootDir,
	}
}

func (h *importHarness) seedEvent(t *testing.T) *events.Event {
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

// seedDownload lays out a finished download directory with a main video,
// a sample, and scene clutter.
func seedDownload(t *testing.T, title string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), title)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	write := func(name string, size int) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(title+".mkv", 4096)
	write(title+".sample.mkv", 64)
	write(title+".nfo", 16)
	return dir
}

func queueItem(ev *events.Event, outputPath string) *downloader.QueueItem {
	clientID := int64(1)
	return &downloader.QueueItem{
		ID:               1,
		EventID:          ev.ID,
		DownloadClientID: &clientID,
		Title:            "UFC.310.Main.Card.2024.1080p.WEB.h264-GRP",
		ReleaseGUID:      "g1",
		OutputPath:       outputPath,
	}
}

func TestImportPlacesFileAndRecords(t *testing.T) {
	h := newImportHarness(t)
	defer h.tdb.Close()
	ctx := context.Background()

	ev := h.seedEvent(t)
	downloadDir := seedDownload(t, "UFC.310.Main.Card.2024.1080p.WEB.h264-GRP")

	if err := h.svc.Import(ctx, queueItem(ev, downloadDir)); err != nil {
		t.Fatalf("Import: %v", err)
	}

	files, err := h.events.GetFiles(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("event files = %d, want 1", len(files))
	}
	f := files[0]
	if _, err := os.Stat(f.Path); err != nil {
		t.Errorf("imported file missing on disk: %v", err)
	}
	if !strings.HasPrefix(f.Path, h.root) {
		t.Errorf("file %q outside root %q", f.Path, h.root)
	}
	if !strings.Contains(f.Path, "UFC") {
		t.Errorf("league folder missing from %q", f.Path)
	}
	if !strings.HasSuffix(f.Path, " - pt3.mkv") {
		t.Errorf("main card part suffix missing from %q", f.Path)
	}
	if f.PartName == nil || *f.PartName != "Main Card" {
		t.Errorf("partName = %v, want Main Card", f.PartName)
	}

	got, err := h.events.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("Get event: %v", err)
	}
	if !got.HasFile {
		t.Error("event not flagged as having a file")
	}

	entries, err := h.history.ForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].EventType != history.EventTypeImported {
		t.Errorf("history = %+v, want one imported entry", entries)
	}
}

func TestImportDeduplicatesDestination(t *testing.T) {
	h := newImportHarness(t)
	defer h.tdb.Close()
	ctx := context.Background()

	ev := h.seedEvent(t)

	first := seedDownload(t, "UFC.310.Main.Card.2024.1080p.WEB.h264-GRP")
	if err := h.svc.Import(ctx, queueItem(ev, first)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	second := seedDownload(t, "UFC.310.Main.Card.2024.1080p.WEB.h264-GRP")
	if err := h.svc.Import(ctx, queueItem(ev, second)); err != nil {
		t.Fatalf("second import: %v", err)
	}

	files, err := h.events.GetFiles(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("event files = %d, want 2", len(files))
	}
	var deduped bool
	for _, f := range files {
		if strings.HasSuffix(f.Path, " (1).mkv") {
			deduped = true
		}
	}
	if !deduped {
		t.Errorf("no ' (1)' suffix among %v", []string{files[0].Path, files[1].Path})
	}
}

func TestImportFailsWithoutSpace(t *testing.T) {
	h := newImportHarness(t)
	defer h.tdb.Close()
	ctx := context.Background()

	ev := h.seedEvent(t)
	downloadDir := seedDownload(t, "UFC.310.Main.Card.2024.1080p.WEB.h264-GRP")

	settings := DefaultSettings()
	settings.MinimumFreeSpaceMB = 1 << 40 // absurd floor no drive satisfies
	if err := h.svc.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	err := h.svc.Import(ctx, queueItem(ev, downloadDir))
	if !errors.Is(err, ErrNotEnoughSpace) {
		t.Fatalf("err = %v, want ErrNotEnoughSpace", err)
	}

	entries, err := h.history.ForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].EventType != history.EventTypeImportFailed {
		t.Errorf("history = %+v, want one import_failed entry", entries)
	}
}

func TestImportRemapsRemotePath(t *testing.T) {
	h := newImportHarness(t)
	defer h.tdb.Close()
	ctx := context.Background()

	ev := h.seedEvent(t)
	downloadDir := seedDownload(t, "UFC.310.Main.Card.2024.1080p.WEB.h264-GRP")

	if err := h.svc.Mappings().Add(ctx, &RemotePathMapping{
		Host:       "localhost",
		RemotePath: "/data/torrents",
		LocalPath:  filepath.Dir(downloadDir),
	}); err != nil {
		t.Fatalf("add mapping: %v", err)
	}

	remote := "/data/torrents/" + filepath.Base(downloadDir)
	if err := h.svc.Import(ctx, queueItem(ev, remote)); err != nil {
		t.Fatalf("Import via mapping: %v", err)
	}
}

func TestImportRejectsEmptyDownload(t *testing.T) {
	h := newImportHarness(t)
	defer h.tdb.Close()
	ctx := context.Background()

	ev := h.seedEvent(t)
	empty := t.TempDir()

	err := h.svc.Import(ctx, queueItem(ev, empty))
	if !errors.Is(err, ErrNoVideoFile) {
		t.Fatalf("err = %v, want ErrNoVideoFile", err)
	}
}
