package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/scanner"
)

func (h *importHarness) addFileOnDisk(t *testing.T, eventID int64, name string) *events.EventFile {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(h.root, name)
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	f, err := h.events.AddFile(ctx, eventID, events.CreateFileInput{
		RelativePath: name,
		Path:         path,
		Size:         5,
		Quality:      "WEBDL-1080p",
	})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	return f
}

func TestScanLibraryMarksDeletedFilesMissing(t *testing.T) {
	h := newImportHarness(t)
	h.svc.SetScanner(scanner.NewService(h.tdb.Logger))
	ctx := context.Background()

	ev := h.seedEvent(t)
	kept := h.addFileOnDisk(t, ev.ID, "UFC 310 Main Card.mkv")
	gone := h.addFileOnDisk(t, ev.ID, "UFC 310 Prelims.mkv")
	if err := os.Remove(gone.Path); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	if err := h.svc.ScanLibrary(ctx); err != nil {
		t.Fatalf("scan library: %v", err)
	}

	files, err := h.events.GetFiles(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get files: %v", err)
	}
	byID := make(map[int64]events.EventFile, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}
	if !byID[kept.ID].Exists {
		t.Error("file still on disk should remain present")
	}
	if byID[gone.ID].Exists {
		t.Error("deleted file should be marked missing")
	}

	entries, err := h.history.ForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.EventType == history.EventTypeFileDeleted {
			found = true
		}
	}
	if !found {
		t.Error("expected a file_deleted history entry")
	}
}

func TestScanLibraryIgnoresIntactLibrary(t *testing.T) {
	h := newImportHarness(t)
	h.svc.SetScanner(scanner.NewService(h.tdb.Logger))
	ctx := context.Background()

	ev := h.seedEvent(t)
	h.addFileOnDisk(t, ev.ID, "UFC 310.mkv")

	if err := h.svc.ScanLibrary(ctx); err != nil {
		t.Fatalf("scan library: %v", err)
	}

	entries, err := h.history.ForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	for _, e := range entries {
		if e.EventType == history.EventTypeFileDeleted {
			t.Error("intact file should not produce a deletion entry")
		}
	}
}
