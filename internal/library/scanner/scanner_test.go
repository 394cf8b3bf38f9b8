package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanFindsVideosSkipsNoise(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "UFC", "UFC 310 Main Card.mkv"))
	writeFile(t, filepath.Join(root, "UFC", "UFC 310 Main Card.nfo"))
	writeFile(t, filepath.Join(root, "UFC", "ufc.310.sample.mkv"))
	writeFile(t, filepath.Join(root, ".hidden", "stray.mkv"))

	svc := NewService(zerolog.Nop())
	files, err := svc.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 video, got %d: %v", len(files), files)
	}
	if filepath.Base(files[0].Path) != "UFC 310 Main Card.mkv" {
		t.Errorf("unexpected file %q", files[0].Path)
	}
	if files[0].Size == 0 {
		t.Error("expected a non-zero size")
	}
}

func TestIsVideoFileCaseInsensitive(t *testing.T) {
	if !IsVideoFile("event.MKV") {
		t.Error("extension match should be case-insensitive")
	}
	if IsVideoFile("event.srt") {
		t.Error("subtitle file is not a video")
	}
}
