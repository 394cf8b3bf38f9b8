package events

import (
	"context"
	"testing"
	"time"

	"github.com/sportarr/sportarr/internal/sport"
	"github.com/sportarr/sportarr/internal/testutil"
)

func newTestService(t *testing.T) (*Service, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	svc := NewService(tdb.Conn, nil, tdb.Logger)
	return svc, tdb.Close
}

func seedLeague(t *testing.T, svc *Service) *League {
	t.Helper()
	l, err := svc.CreateLeague(context.Background(), &League{
		Name:      "UFC",
		Sport:     sport.Fighting,
		Aliases:   []string{"Ultimate Fighting Championship"},
		Monitored: true,
	})
	if err != nil {
		t.Fatalf("create league: %v", err)
	}
	return l
}

func TestCreateAndGetEvent(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	l := seedLeague(t, svc)
	date := time.Date(2024, 12, 7, 0, 0, 0, 0, time.UTC)

	ev, err := svc.Create(ctx, CreateEventInput{
		LeagueID:       l.ID,
		Title:          "UFC 310: Pantoja vs Asakura",
		Sport:          sport.Fighting,
		EventType:      "ppv",
		Year:           2024,
		EventDate:      &date,
		Monitored:      true,
		MonitoredParts: []string{"Early Prelims", "Main Card"},
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	got, err := svc.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Title != "UFC 310: Pantoja vs Asakura" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Year != 2024 {
		t.Errorf("year = %d, want 2024", got.Year)
	}
	if got.HasFile {
		t.Error("new event should not have a file")
	}
	if !got.PartMonitored("Main Card") || got.PartMonitored("Prelims") {
		t.Errorf("monitored parts = %v", got.MonitoredParts)
	}
	if got.EventDate == nil || !got.EventDate.Equal(date) {
		t.Errorf("event date = %v, want %v", got.EventDate, date)
	}
}

func TestHasFileTracksFiles(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	l := seedLeague(t, svc)
	ev, err := svc.Create(ctx, CreateEventInput{
		LeagueID: l.ID, Title: "UFC 310", Sport: sport.Fighting, Year: 2024, Monitored: true,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	f, err := svc.AddFile(ctx, ev.ID, CreateFileInput{
		RelativePath: "UFC/2024/UFC 310.mkv",
		Path:         "/media/UFC/2024/UFC 310.mkv",
		Size:         4 << 30,
		Quality:      "WEBDL-1080p",
	})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	got, _ := svc.Get(ctx, ev.ID)
	if !got.HasFile {
		t.Error("has_file = false after adding a file")
	}
	if len(got.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(got.Files))
	}

	if err := svc.MarkFileMissing(ctx, f.ID); err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	got, _ = svc.Get(ctx, ev.ID)
	if got.HasFile {
		t.Error("has_file = true after sole file went missing")
	}

	if err := svc.RemoveFile(ctx, f.ID); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := svc.RemoveFile(ctx, f.ID); err != ErrFileNotFound {
		t.Errorf("second remove = %v, want ErrFileNotFound", err)
	}
}

func TestMultiPartFiles(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	l := seedLeague(t, svc)
	ev, _ := svc.Create(ctx, CreateEventInput{
		LeagueID: l.ID, Title: "UFC 310", Sport: sport.Fighting, Year: 2024, Monitored: true,
	})

	prelims := "Prelims"
	prelimsNum := 2
	main := "Main Card"
	mainNum := 3

	svc.AddFile(ctx, ev.ID, CreateFileInput{
		PartName: &main, PartNumber: &mainNum,
		RelativePath: "a.mkv", Path: "/media/a.mkv", Size: 1,
	})
	svc.AddFile(ctx, ev.ID, CreateFileInput{
		PartName: &prelims, PartNumber: &prelimsNum,
		RelativePath: "b.mkv", Path: "/media/b.mkv", Size: 1,
	})

	files, err := svc.GetFiles(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	// Ordered by part number.
	if *files[0].PartName != "Prelims" || *files[1].PartName != "Main Card" {
		t.Errorf("order = %q, %q", *files[0].PartName, *files[1].PartName)
	}
}

func TestListMissing(t *testing.T) {
	svc, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	l := seedLeague(t, svc)
	ev1, _ := svc.Create(ctx, CreateEventInput{LeagueID: l.ID, Title: "UFC 310", Sport: sport.Fighting, Monitored: true})
	ev2, _ := svc.Create(ctx, CreateEventInput{LeagueID: l.ID, Title: "UFC 311", Sport: sport.Fighting, Monitored: true})

	svc.AddFile(ctx, ev1.ID, CreateFileInput{RelativePath: "a.mkv", Path: "/a.mkv", Size: 1})

	missing, err := svc.List(ctx, ListOptions{Missing: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != ev2.ID {
		t.Errorf("missing = %+v, want only event %d", missing, ev2.ID)
	}
}

func TestSessionMonitored(t *testing.T) {
	ev := &Event{}
	if !ev.SessionMonitored("Race") {
		t.Error("nil session set should monitor all")
	}
	ev.MonitoredSessions = []string{}
	if ev.SessionMonitored("Race") {
		t.Error("empty session set should monitor none")
	}
	ev.MonitoredSessions = []string{"Race", "Qualifying"}
	if !ev.SessionMonitored("Race") || ev.SessionMonitored("FP1") {
		t.Error("session filtering incorrect")
	}
}
