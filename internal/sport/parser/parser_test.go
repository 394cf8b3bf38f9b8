package parser

import (
	"testing"

	"github.com/sportarr/sportarr/internal/sport"
)

func TestParseFightCard(t *testing.T) {
	p := Parse("UFC.310.Early.Prelims.2024.1080p.WEB-DL-GROUP")

	if p.SportPrefix != "UFC" {
		t.Errorf("prefix = %q, want UFC", p.SportPrefix)
	}
	if p.Sport != sport.Fighting {
		t.Errorf("sport = %q, want Fighting", p.Sport)
	}
	if p.EventNumber != 310 {
		t.Errorf("event number = %d, want 310", p.EventNumber)
	}
	if p.Year != 2024 {
		t.Errorf("year = %d, want 2024", p.Year)
	}
	if p.Part == nil || p.Part.Name != "Early Prelims" {
		t.Errorf("part = %v, want Early Prelims", p.Part)
	}
	if p.Quality != "1080p" {
		t.Errorf("quality = %q, want 1080p", p.Quality)
	}
	if p.Source != "WEB-DL" {
		t.Errorf("source = %q, want WEB-DL", p.Source)
	}
	if p.Group != "GROUP" {
		t.Errorf("group = %q, want GROUP", p.Group)
	}
}

func TestParseMotorsport(t *testing.T) {
	p := Parse("Formula1.2025.Round24.AbuDhabi.Race.1080p-Y")

	if p.SportPrefix != "Formula1" {
		t.Errorf("prefix = %q, want Formula1", p.SportPrefix)
	}
	if p.Sport != sport.Motorsport {
		t.Errorf("sport = %q, want Motorsport", p.Sport)
	}
	if p.Year != 2025 {
		t.Errorf("year = %d, want 2025", p.Year)
	}
	if p.Round != 24 {
		t.Errorf("round = %d, want 24", p.Round)
	}
	if p.Group != "Y" {
		t.Errorf("group = %q, want Y", p.Group)
	}
	if p.IsPack {
		t.Error("motorsport round release flagged as pack")
	}
	if p.Part != nil {
		t.Errorf("part = %v, want nil for motorsport", p.Part)
	}
}

func TestParseYearBounds(t *testing.T) {
	tests := []struct {
		title string
		want  int
	}{
		{"NFL 2019 Week 12", 0},
		{"NFL 2020 Week 12", 2020},
		{"NFL 2100 Week 12", 2100},
		{"NFL 20 Week 12", 0},
	}

	for _, tt := range tests {
		if got := Parse(tt.title).Year; got != tt.want {
			t.Errorf("Parse(%q).Year = %d, want %d", tt.title, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	p := Parse("NBA.2024-12-25.Lakers.vs.Warriors.720p.HDTV")

	if p.Year != 2024 || p.Month != 12 || p.Day != 25 {
		t.Errorf("date = %d-%d-%d, want 2024-12-25", p.Year, p.Month, p.Day)
	}
	if p.Sport != sport.TeamSport {
		t.Errorf("sport = %q, want TeamSport", p.Sport)
	}
	if p.Source != "HDTV" {
		t.Errorf("source = %q, want HDTV", p.Source)
	}
	if p.IsPack {
		t.Error("head-to-head release flagged as pack")
	}
}

func TestParsePack(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"NFL.2024.Week.15.Complete.1080p", true},
		{"NFL.2024.Week15.720p.HDTV", true},
		{"NFL.2024.Week.15.Bills.vs.Lions.720p", false},
		{"UFC.310.All.Events.2024", true},
	}

	for _, tt := range tests {
		if got := Parse(tt.title).IsPack; got != tt.want {
			t.Errorf("Parse(%q).IsPack = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestParseQualitySource(t *testing.T) {
	tests := []struct {
		title   string
		quality string
		source  string
		codec   string
	}{
		{"UFC.310.2160p.UHD.BluRay.x265", "2160p", "BluRay", "x265"},
		{"UFC.310.1080p.WEBRip.h264", "1080p", "WEBRip", "x264"},
		{"UFC.310.720p.HDTV.XviD", "720p", "HDTV", "XviD"},
		{"UFC.310.Remux.2160p.HEVC", "2160p", "Remux", "HEVC"},
		{"UFC 310", "", "", ""},
	}

	for _, tt := range tests {
		p := Parse(tt.title)
		if p.Quality != tt.quality || p.Source != tt.source || p.Codec != tt.codec {
			t.Errorf("Parse(%q) = %q/%q/%q, want %q/%q/%q",
				tt.title, p.Quality, p.Source, p.Codec, tt.quality, tt.source, tt.codec)
		}
	}
}

func TestParseNeverFails(t *testing.T) {
	for _, title := range []string{"", "   ", "----", "!!!", "a"} {
		p := Parse(title)
		if p.Title != title {
			t.Errorf("Parse(%q) lost original title", title)
		}
	}
}

func TestParseFullEvent(t *testing.T) {
	p := Parse("UFC.310.Full.Event.2024.1080p.WEB-DL")
	if p.Part != nil {
		t.Errorf("part = %v, want nil for full event", p.Part)
	}
	if !p.FullEvent {
		t.Error("FullEvent = false, want true")
	}
}
