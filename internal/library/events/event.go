// Package events manages the catalogue of monitored sporting events.
package events

import (
	"time"

	"github.com/sportarr/sportarr/internal/sport"
)

// Event represents a sporting event under monitoring.
type Event struct {
	ID                int64       `json:"id"`
	LeagueID          int64       `json:"leagueId"`
	Title             string      `json:"title"`
	Sport             sport.Sport `json:"sport"`
	EventType         string      `json:"eventType,omitempty"`
	Season            int         `json:"season,omitempty"`
	Round             *int        `json:"round,omitempty"`
	EventDate         *time.Time  `json:"eventDate,omitempty"`
	Year              int         `json:"year,omitempty"`
	Venue             string      `json:"venue,omitempty"`
	Location          string      `json:"location,omitempty"`
	HomeTeam          string      `json:"homeTeam,omitempty"`
	AwayTeam          string      `json:"awayTeam,omitempty"`
	Monitored         bool        `json:"monitored"`
	HasFile           bool        `json:"hasFile"`
	MonitoredParts    []string    `json:"monitoredParts"`
	MonitoredSessions []string    `json:"monitoredSessions,omitempty"`
	AllowFullEvent    *bool       `json:"allowFullEvent,omitempty"`
	QualityProfileID  *int64      `json:"qualityProfileId,omitempty"`
	Tags              []int64     `json:"tags"`
	Files             []EventFile `json:"files,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// PartMonitored reports whether a named fight-card segment is wanted.
// An empty monitored-parts set means every part is wanted.
func (e *Event) PartMonitored(partName string) bool {
	if len(e.MonitoredParts) == 0 {
		return true
	}
	for _, p := range e.MonitoredParts {
		if p == partName {
			return true
		}
	}
	return false
}

// SessionMonitored reports whether a motorsport session is wanted.
// Nil means all sessions; an empty set means none.
func (e *Event) SessionMonitored(session string) bool {
	if e.MonitoredSessions == nil {
		return true
	}
	for _, s := range e.MonitoredSessions {
		if s == session {
			return true
		}
	}
	return false
}

// FullEventAllowed reports whether a full-event release may satisfy
// this event even when individual parts are being tracked.
func (e *Event) FullEventAllowed() bool {
	return e.AllowFullEvent != nil && *e.AllowFullEvent
}

// EventFile represents one physical file belonging to an event.
// Multi-part events may own several.
type EventFile struct {
	ID           int64      `json:"id"`
	EventID      int64      `json:"eventId"`
	PartName     *string    `json:"partName,omitempty"`
	PartNumber   *int       `json:"partNumber,omitempty"`
	RelativePath string     `json:"relativePath"`
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	Quality      string     `json:"quality,omitempty"`
	ReleaseGroup string     `json:"releaseGroup,omitempty"`
	Exists       bool       `json:"exists"`
	LastVerified *time.Time `json:"lastVerified,omitempty"`
	DateAdded    time.Time  `json:"dateAdded"`
}

// League groups events under one organisation or competition.
type League struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Sport            sport.Sport `json:"sport"`
	Aliases          []string    `json:"aliases"`
	Monitored        bool        `json:"monitored"`
	QualityProfileID *int64      `json:"qualityProfileId,omitempty"`
	RootFolderPath   string      `json:"rootFolderPath,omitempty"`
	Tags             []int64     `json:"tags"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// CreateEventInput contains fields for creating an event.
type CreateEventInput struct {
	LeagueID          int64       `json:"leagueId"`
	Title             string      `json:"title"`
	Sport             sport.Sport `json:"sport"`
	EventType         string      `json:"eventType,omitempty"`
	Season            int         `json:"season,omitempty"`
	Round             *int        `json:"round,omitempty"`
	EventDate         *time.Time  `json:"eventDate,omitempty"`
	Year              int         `json:"year,omitempty"`
	Venue             string      `json:"venue,omitempty"`
	Location          string      `json:"location,omitempty"`
	HomeTeam          string      `json:"homeTeam,omitempty"`
	AwayTeam          string      `json:"awayTeam,omitempty"`
	Monitored         bool        `json:"monitored"`
	MonitoredParts    []string    `json:"monitoredParts,omitempty"`
	MonitoredSessions []string    `json:"monitoredSessions,omitempty"`
	QualityProfileID  *int64      `json:"qualityProfileId,omitempty"`
}

// CreateFileInput contains fields for recording an imported file.
type CreateFileInput struct {
	PartName     *string `json:"partName,omitempty"`
	PartNumber   *int    `json:"partNumber,omitempty"`
	RelativePath string  `json:"relativePath"`
	Path         string  `json:"path"`
	Size         int64   `json:"size"`
	Quality      string  `json:"quality,omitempty"`
	ReleaseGroup string  `json:"releaseGroup,omitempty"`
}

// ListOptions filters event listings.
type ListOptions struct {
	LeagueID  *int64
	Monitored *bool
	Missing   bool
}
