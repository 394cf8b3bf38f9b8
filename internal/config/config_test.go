package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClampRssInterval(t *testing.T) {
	tests := []struct {
		input int
		want  int
	}{
		{0, 10},
		{9, 10},
		{10, 10},
		{15, 15},
		{120, 120},
		{121, 120},
		{999, 120},
	}

	for _, tt := range tests {
		if got := ClampRssInterval(tt.input); got != tt.want {
			t.Errorf("ClampRssInterval(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 7879 {
		t.Errorf("default port = %d, want 7879", cfg.Server.Port)
	}
	if cfg.Rss.SyncIntervalMin != 15 {
		t.Errorf("default rss interval = %d, want 15", cfg.Rss.SyncIntervalMin)
	}
	if cfg.Rss.MaxReleasesPerIndexer != 500 {
		t.Errorf("default max releases = %d, want 500", cfg.Rss.MaxReleasesPerIndexer)
	}
	if cfg.Rss.ReleaseAgeLimitDays != 14 {
		t.Errorf("default age limit = %d, want 14", cfg.Rss.ReleaseAgeLimitDays)
	}
}

func TestSaveKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Server.Port = 9001
	if err := cfg.Save(path); err != nil {
		t.Fatalf("first save: %v", err)
	}

	cfg.Server.Port = 9002
	if err := cfg.Save(path); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("config file is empty")
	}
}

func TestLoadClampsInterval(t *testing.T) {
	t.Setenv("SPORTARR_RSS_SYNC_INTERVAL_MIN", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rss.SyncIntervalMin != MinRssSyncIntervalMin {
		t.Errorf("interval = %d, want clamped to %d", cfg.Rss.SyncIntervalMin, MinRssSyncIntervalMin)
	}
}
