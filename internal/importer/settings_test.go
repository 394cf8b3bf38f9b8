package importer

import (
	"context"
	"testing"

	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/rootfolder"
	"github.com/sportarr/sportarr/internal/testutil"
)

func newSettingsService(t *testing.T) (*Service, context.Context) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(func() { tdb.Close() })
	eventSvc := events.NewService(tdb.Conn, nil, tdb.Logger)
	historySvc := history.NewService(tdb.Conn, tdb.Logger)
	roots := rootfolder.NewService(tdb.Conn, tdb.Logger)
	svc := NewService(tdb.Conn, eventSvc, &fakeClients{host: "localhost"}, roots, historySvc, tdb.Logger)
	return svc, context.Background()
}

func TestGetSettingsWithoutRowReturnsDefaults(t *testing.T) {
	svc, ctx := newSettingsService(t)

	st, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if st != DefaultSettings() {
		t.Errorf("GetSettings = %+v, want defaults %+v", st, DefaultSettings())
	}
}

func TestEnsureSettingsSeedsOnce(t *testing.T) {
	svc, ctx := newSettingsService(t)

	seed := DefaultSettings()
	seed.TransferMode = TransferCopy
	seed.FolderFormat = "{League}/{Event Title}"
	if err := svc.EnsureSettings(ctx, seed); err != nil {
		t.Fatalf("EnsureSettings: %v", err)
	}

	st, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if st.TransferMode != TransferCopy || st.FolderFormat != "{League}/{Event Title}" {
		t.Errorf("seeded settings = %+v", st)
	}

	// A second seed must not clobber the existing row.
	other := DefaultSettings()
	other.TransferMode = TransferMove
	if err := svc.EnsureSettings(ctx, other); err != nil {
		t.Fatalf("EnsureSettings again: %v", err)
	}
	st, err = svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if st.TransferMode != TransferCopy {
		t.Errorf("TransferMode = %q after reseed, want %q", st.TransferMode, TransferCopy)
	}
}

func TestSaveSettingsOverridesSeed(t *testing.T) {
	svc, ctx := newSettingsService(t)

	if err := svc.EnsureSettings(ctx, DefaultSettings()); err != nil {
		t.Fatalf("EnsureSettings: %v", err)
	}

	edited := DefaultSettings()
	edited.TransferMode = TransferMove
	edited.SkipFreeSpaceCheck = true
	edited.MinimumFreeSpaceMB = 500
	if err := svc.SaveSettings(ctx, edited); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	st, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if st != edited {
		t.Errorf("GetSettings = %+v, want %+v", st, edited)
	}
}

func TestSaveSettingsWithoutRowInserts(t *testing.T) {
	svc, ctx := newSettingsService(t)

	st := DefaultSettings()
	st.FileFormat = "{Event Title} {Quality Full}"
	if err := svc.SaveSettings(ctx, st); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.FileFormat != st.FileFormat {
		t.Errorf("FileFormat = %q, want %q", got.FileFormat, st.FileFormat)
	}
}
