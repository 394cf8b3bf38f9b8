package autosearch

import (
	"context"
	"time"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
)

// RunStatus summarizes a scheduled search run.
type RunStatus struct {
	LastRun  time.Time `json:"lastRun"`
	Wanted   int       `json:"wanted"`
	Searched int       `json:"searched"`
	Grabbed  int       `json:"grabbed"`
}

// Run searches for every monitored event that is missing a file and
// whose date has passed, grabbing the best approved release per event.
// Registered as the scheduled search task.
func (s *Service) Run(ctx context.Context) error {
	start := s.now()

	monitored := true
	wanted, err := s.events.List(ctx, events.ListOptions{Monitored: &monitored, Missing: true})
	if err != nil {
		return err
	}
	if len(wanted) == 0 {
		return nil
	}

	delayProfiles, err := s.delays.List(ctx)
	if err != nil {
		return err
	}

	status := RunStatus{LastRun: start, Wanted: len(wanted)}
	for _, ev := range wanted {
		if s.settings.MaxEventsPerRun > 0 && status.Searched >= s.settings.MaxEventsPerRun {
			break
		}
		if !s.eligible(ctx, ev) {
			continue
		}
		status.Searched++

		candidates, eval, err := s.searchOne(ctx, ev)
		if err != nil {
			s.logger.Warn().Err(err).Int64("eventId", ev.ID).Msg("Search failed")
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		delayProfile := decisioning.ProfileForTags(delayProfiles, ev.Tags)
		if s.grabBest(ctx, ev, candidates, eval, delayProfile) {
			status.Grabbed++
		}
	}

	s.logger.Info().
		Int("wanted", status.Wanted).
		Int("searched", status.Searched).
		Int("grabbed", status.Grabbed).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Scheduled search complete")
	s.broadcast("autosearch:completed", status)
	return nil
}

// eligible filters out events that have not happened yet and events
// grabbed within the suppression window.
func (s *Service) eligible(ctx context.Context, ev *events.Event) bool {
	if ev.EventDate == nil || ev.EventDate.After(s.now()) {
		return false
	}
	if s.settings.GrabSuppression <= 0 || s.recent == nil {
		return true
	}
	entries, err := s.recent.ForEvent(ctx, ev.ID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("eventId", ev.ID).Msg("Failed to load event history")
		return true
	}
	cutoff := s.now().Add(-s.settings.GrabSuppression)
	for _, entry := range entries {
		if entry.EventType == history.EventTypeGrabbed && entry.CreatedAt.After(cutoff) {
			return false
		}
	}
	return true
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
			Msg("Grabbed release from scheduled search")
		return true
	}
	return false
}
