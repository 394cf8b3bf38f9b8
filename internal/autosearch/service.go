// Package autosearch runs on-demand and scheduled searches for
// monitored events that are missing files.
package autosearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/indexer/search"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/matching"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// Searcher fans a query out across the configured indexers.
// Implemented by the search service.
type Searcher interface {
	Search(ctx context.Context, in search.SearchInput) ([]types.ReleaseSearchResult, error)
}

// Grabber sends an approved release to a download client. Implemented
// by the downloader service.
type Grabber interface {
	Grab(ctx context.Context, ev *events.Event, rel types.ReleaseSearchResult) error
}

// Broadcaster pushes search progress to connected UI clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// RecentGrabs exposes an event's history. Implemented by the history
// service.
type RecentGrabs interface {
	ForEvent(ctx context.Context, eventID int64) ([]*history.Entry, error)
}

// Settings tunes one search orchestrator instance.
type Settings struct {
	// Whether fight cards may be grabbed per part.
	MultiPartEnabled bool
	// Torrent seeder floor applied before matching.
	MinimumSeeders int
	// How long after a grab an event sits out of scheduled runs.
	GrabSuppression time.Duration
	// Wanted events searched per scheduled run. Zero means no cap.
	MaxEventsPerRun int
}

// DefaultSettings returns the stock search tuning.
func DefaultSettings() Settings {
	return Settings{
		MultiPartEnabled: true,
		MinimumSeeders:   1,
		GrabSuppression:  2 * time.Hour,
		MaxEventsPerRun:  25,
	}
}

// Service orchestrates searches for wanted events.
type Service struct {
	searcher    Searcher
	events      *events.Service
	quality     *quality.Service
	delays      *decisioning.DelayService
	checker     *decisioning.GrabChecker
	grabber     Grabber
	recent      RecentGrabs
	broadcaster Broadcaster
	settings    Settings
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(
	searcher Searcher,
	eventSvc *events.Service,
	qualitySvc *quality.Service,
	delays *decisioning.DelayService,
	checker *decisioning.GrabChecker,
	grabber Grabber,
	recent RecentGrabs,
	broadcaster Broadcaster,
	settings Settings,
	logger zerolog.Logger,
) *Service {
	return &Service{
		searcher:    searcher,
		events:      eventSvc,
		quality:     qualitySvc,
		delays:      delays,
		checker:     checker,
		grabber:     grabber,
		recent:      recent,
		broadcaster: broadcaster,
		settings:    settings,
		logger:      logger.With().Str("component", "autosearch").Logger(),
		now:         time.Now,
	}
}

// SearchEvent queries every indexer for one event and returns the
// releases that match it, evaluated and ranked best-first.
func (s *Service) SearchEvent(ctx context.Context, eventID int64) ([]types.ReleaseSearchResult, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	candidates, _, err := s.searchOne(ctx, ev)
	return candidates, err
}

// GrabRelease sends a specific release for an event to a download
// client. Manual grabs skip the scheduled checklist; the user picked
// the release deliberately.
func (s *Service) GrabRelease(ctx context.Context, eventID int64, rel types.ReleaseSearchResult) error {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.grabber.Grab(ctx, ev, rel); err != nil {
		return fmt.Errorf("failed to grab %q: %w", rel.Title, err)
	}
	s.logger.Info().Int64("eventId", ev.ID).Str("release", rel.Title).Msg("Grabbed release manually")
	return nil
}

// searchOne runs a full indexer search for one event and filters the
// results through the match engine.
func (s *Service) searchOne(ctx context.Context, ev *events.Event) ([]types.ReleaseSearchResult, decisioning.EvalInput, error) {
	eval, err := s.evalFor(ctx, ev)
	if err != nil {
		return nil, decisioning.EvalInput{}, err
	}

	releases, err := s.searcher.Search(ctx, search.SearchInput{
		Query:          buildQuery(ev),
		Eval:           eval,
		MinimumSeeders: s.settings.MinimumSeeders,
	})
	if err != nil {
		return nil, eval, err
	}

	key := matching.BuildEventKey(ev)
	matched := releases[:0]
	for _, rel := range releases {
		res := matching.Match(parser.Parse(rel.Title), key, s.settings.MultiPartEnabled)
		if res.IsMatch {
			matched = append(matched, rel)
		}
	}
	return matched, eval, nil
}

func (s *Service) evalFor(ctx context.Context, ev *events.Event) (decisioning.EvalInput, error) {
	profile, err := s.profileFor(ctx, ev)
	if err != nil {
		return decisioning.EvalInput{}, err
	}
	formats, err := s.quality.ListFormats(ctx)
	if err != nil {
		return decisioning.EvalInput{}, err
	}
	definitions, err := s.quality.GetDefinitions(ctx)
	if err != nil {
		return decisioning.EvalInput{}, err
	}
	return decisioning.EvalInput{
		Profile:          profile,
		Formats:          formats,
		Definitions:      definitions,
		Event:            ev,
		MultiPartEnabled: s.settings.MultiPartEnabled,
	}, nil
}

func (s *Service) profileFor(ctx context.Context, ev *events.Event) (*quality.Profile, error) {
	if ev.QualityProfileID != nil {
		return s.quality.GetProfile(ctx, *ev.QualityProfileID)
	}
	p := quality.DefaultProfile()
	return &p, nil
}

// buildQuery derives the indexer query from the event identity. The
// year is appended when the title does not already carry it.
func buildQuery(ev *events.Event) string {
	q := strings.TrimSpace(ev.Title)
	year := ev.Year
	if year == 0 && ev.EventDate != nil {
		year = ev.EventDate.Year()
	}
	if year > 0 && !strings.Contains(q, strconv.Itoa(year)) {
		q += " " + strconv.Itoa(year)
	}
	return q
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("Broadcast failed")
	}
}
