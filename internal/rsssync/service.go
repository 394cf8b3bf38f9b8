// Package rsssync runs the periodic RSS sweep: fetch feeds, cache the
// releases, match them against monitored events, and grab upgrades.
package rsssync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/matching"
	"github.com/sportarr/sportarr/internal/releasecache"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// Settings tunes one sync service instance.
type Settings struct {
	// Releases published longer ago than this are not worth caching.
	MaxReleaseAge time.Duration
	// Releases to pull per indexer per sweep.
	PerIndexerLimit int
	// How long to sit out after a sweep-level failure.
	ErrorCooldown time.Duration
	// Torrent seeder floor applied before matching.
	MinimumSeeders int
	// Whether fight cards may be grabbed per part.
	MultiPartEnabled bool
}

// DefaultSettings returns the stock sync tuning.
func DefaultSettings() Settings {
	return Settings{
		MaxReleaseAge:    14 * 24 * time.Hour,
		PerIndexerLimit:  100,
		ErrorCooldown:    5 * time.Minute,
		MultiPartEnabled: true,
	}
}

// SyncStatus holds the result of the last sweep.
type SyncStatus struct {
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"lastRun,omitempty"`
	TotalReleases int       `json:"totalReleases"`
	Cached        int       `json:"cached"`
	Matched       int       `json:"matched"`
	Grabbed       int       `json:"grabbed"`
	ElapsedMs     int       `json:"elapsed"`
	Error         string    `json:"error,omitempty"`
}

// FeedSource provides aggregated RSS releases. Implemented by the
// search service.
type FeedSource interface {
	FetchAllRss(ctx context.Context, perIndexerLimit int) ([]types.ReleaseSearchResult, error)
}

// Grabber sends an approved release to a download client. Implemented
// by the downloader service.
type Grabber interface {
	Grab(ctx context.Context, ev *events.Event, rel types.ReleaseSearchResult) error
}

// Broadcaster pushes sweep progress to connected UI clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service orchestrates RSS sync sweeps.
type Service struct {
	feeds       FeedSource
	cache       *releasecache.Service
	events      *events.Service
	quality     *quality.Service
	delays      *decisioning.DelayService
	checker     *decisioning.GrabChecker
	grabber     Grabber
	broadcaster Broadcaster
	logger      zerolog.Logger
	settings    Settings

	running atomic.Bool
	now     func() time.Time

	mu            sync.RWMutex
	status        SyncStatus
	cooldownUntil time.Time
}

func NewService(
	feeds FeedSource,
	cache *releasecache.Service,
	eventSvc *events.Service,
	qualitySvc *quality.Service,
	delays *decisioning.DelayService,
	checker *decisioning.GrabChecker,
	grabber Grabber,
	broadcaster Broadcaster,
	settings Settings,
	logger zerolog.Logger,
) *Service {
	return &Service{
		feeds:       feeds,
		cache:       cache,
		events:      eventSvc,
		quality:     qualitySvc,
		delays:      delays,
		checker:     checker,
		grabber:     grabber,
		broadcaster: broadcaster,
		settings:    settings,
		logger:      logger.With().Str("component", "rss-sync").Logger(),
		now:         time.Now,
	}
}

// IsRunning reports whether a sweep is in flight.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// LastStatus returns the outcome of the most recent sweep.
func (s *Service) LastStatus() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Running = s.running.Load()
	return st
}

// Run executes one sweep. Overlapping ticks do not stack: a tick that
// arrives while a sweep is running returns immediately. After a
// sweep-level failure the service sits out the error cooldown.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("RSS sync already running, skipping tick")
		return nil
	}
	defer s.running.Store(false)

	start := s.now()
	s.mu.RLock()
	cooldown := s.cooldownUntil
	s.mu.RUnlock()
	if start.Before(cooldown) {
		s.logger.Debug().Time("until", cooldown).Msg("RSS sync in error cooldown, skipping tick")
		return nil
	}

	s.logger.Info().Msg("RSS sync starting")
	releases, err := s.feeds.FetchAllRss(ctx, s.settings.PerIndexerLimit)
	if err != nil {
		s.failSweep(start, err)
		return err
	}

	fresh := s.filterByAge(releases, start)
	cached, err := s.cache.Ingest(ctx, fresh)
	if err != nil {
		s.failSweep(start, err)
		return err
	}

	matched, grabbed, err := s.matchAndGrab(ctx, fresh)
	if err != nil {
		s.failSweep(start, err)
		return err
	}

	elapsed := int(s.now().Sub(start).Milliseconds())
	st := SyncStatus{
		LastRun:       start,
		TotalReleases: len(releases),
		Cached:        cached,
		Matched:       matched,
		Grabbed:       grabbed,
		ElapsedMs:     elapsed,
	}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.broadcast("rsssync:completed", st)

	s.logger.Info().
		Int("releases", len(releases)).
		Int("cached", cached).
		Int("matched", matched).
		Int("grabbed", grabbed).
		Int("elapsedMs", elapsed).
		Msg("RSS sync completed")
	return nil
}

// matchAndGrab matches the sweep's releases against every monitored
// event and grabs the best approved candidate per event.
func (s *Service) matchAndGrab(ctx context.Context, releases []types.ReleaseSearchResult) (matched, grabbed int, err error) {
	if len(releases) == 0 {
		return 0, 0, nil
	}
	monitored, err := s.events.ListMonitored(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(monitored) == 0 {
		return 0, 0, nil
	}

	formats, err := s.quality.ListFormats(ctx)
	if err != nil {
		return 0, 0, err
	}
	definitions, err := s.quality.GetDefinitions(ctx)
	if err != nil {
		return 0, 0, err
	}
	delayProfiles, err := s.delays.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	// Parse every title once; each monitored event re-reads the set.
	parsed := make([]parsedRelease, 0, len(releases))
	for _, rel := range releases {
		parsed = append(parsed, parsedRelease{rel: rel, parsed: parser.Parse(rel.Title)})
	}

	for _, ev := range monitored {
		key := matching.BuildEventKey(ev)
		candidates := s.matchEvent(parsed, key)
		if len(candidates) == 0 {
			continue
		}
		matched += len(candidates)

		profile, err := s.profileFor(ctx, ev)
		if err != nil {
			s.logger.Warn().Err(err).Int64("eventId", ev.ID).Msg("Failed to load quality profile")
			continue
		}
		eval := decisioning.EvalInput{
			Profile:          profile,
			Formats:          formats,
			Definitions:      definitions,
			Event:            ev,
			MultiPartEnabled: s.settings.MultiPartEnabled,
		}
		for i := range candidates {
			e := decisioning.Evaluate(&candidates[i], eval)
			decisioning.Annotate(&candidates[i], e)
		}

		delayProfile := decisioning.ProfileForTags(delayProfiles, ev.Tags)
		if s.grabBest(ctx, ev, candidates, eval, delayProfile) {
			grabbed++
		}
	}
	return matched, grabbed, nil
}

// grabBest ranks the candidates for dispatch and grabs the first one
// that passes the checklist. A failed grab falls through to the next.
func (s *Service) grabBest(ctx context.Context, ev *events.Event, candidates []types.ReleaseSearchResult, eval decisioning.EvalInput, delayProfile *decisioning.DelayProfile) bool {
	decisioning.RankForGrab(candidates, delayProfile)
	for i := range candidates {
		rel := &candidates[i]
		decision, err := s.checker.ShouldGrab(ctx, decisioning.ShouldGrabInput{
			Release:      rel,
			Event:        ev,
			Eval:         eval,
			DelayProfile: delayProfile,
		})
		if err != nil {
			s.logger.Warn().Err(err).Int64("eventId", ev.ID).Msg("Grab checklist failed")
			return false
		}
		if !decision.Grab {
			s.logger.Debug().
				Int64("eventId", ev.ID).
				Str("release", rel.Title).
				Str("reason", decision.Reason).
				Msg("Release not grabbed")
			continue
		}
		if err := s.grabber.Grab(ctx, ev, *rel); err != nil {
			s.logger.Warn().Err(err).
				Int64("eventId", ev.ID).
				Str("release", rel.Title).
				Msg("Grab failed, trying next candidate")
			continue
		}
		s.logger.Info().
			Int64("eventId", ev.ID).
			Str("release", rel.Title).
			Msg("Grabbed release from RSS")
		return true
	}
	return false
}

// parsedRelease pairs a release with its parsed title so titles are
// decoded once per sweep rather than once per monitored event.
type parsedRelease struct {
	rel    types.ReleaseSearchResult
	parsed parser.ParsedRelease
}

// matchEvent runs the match engine over the sweep's releases for one
// event, with a cheap prefix check first so most releases never reach
// the scoring path.
func (s *Service) matchEvent(releases []parsedRelease, key matching.EventKey) []types.ReleaseSearchResult {
	if key.Parsed.SportPrefix == "" {
		return nil
	}
	var out []types.ReleaseSearchResult
	for _, pr := range releases {
		if s.settings.MinimumSeeders > 0 && pr.rel.Protocol == types.ProtocolTorrent {
			if pr.rel.Seeders == nil || *pr.rel.Seeders < s.settings.MinimumSeeders {
				continue
			}
		}
		if pr.parsed.SportPrefix != key.Parsed.SportPrefix {
			continue
		}
		if res := matching.Match(pr.parsed, key, s.settings.MultiPartEnabled); res.IsMatch {
			out = append(out, pr.rel)
		}
	}
	return out
}

func (s *Service) profileFor(ctx context.Context, ev *events.Event) (*quality.Profile, error) {
	if ev.QualityProfileID != nil {
		return s.quality.GetProfile(ctx, *ev.QualityProfileID)
	}
	p := quality.DefaultProfile()
	return &p, nil
}

func (s *Service) filterByAge(releases []types.ReleaseSearchResult, now time.Time) []types.ReleaseSearchResult {
	if s.settings.MaxReleaseAge <= 0 {
		return releases
	}
	cutoff := now.Add(-s.settings.MaxReleaseAge)
	out := releases[:0]
	for _, rel := range releases {
		// Releases without a publish date cannot be age-checked; keep them.
		if !rel.PublishDate.IsZero() && rel.PublishDate.Before(cutoff) {
			continue
		}
		out = append(out, rel)
	}
	return out
}

func (s *Service) failSweep(start time.Time, err error) {
	until := s.now().Add(s.settings.ErrorCooldown)
	s.mu.Lock()
	s.status = SyncStatus{LastRun: start, Error: err.Error()}
	s.cooldownUntil = until
	s.mu.Unlock()
	s.logger.Error().Err(err).Time("cooldownUntil", until).Msg("RSS sync failed")
	s.broadcast("rsssync:failed", s.LastStatus())
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to broadcast sync status")
	}
}
