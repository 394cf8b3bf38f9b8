package decisioning

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
)

// QueueChecker reports whether an event already has an active download.
type QueueChecker interface {
	HasActiveItem(ctx context.Context, eventID int64) (bool, error)
}

// BlocklistChecker reports whether a release is blocklisted for an event.
type BlocklistChecker interface {
	IsBlocked(ctx context.Context, eventID int64, infoHash, guid string) (bool, error)
}

// RetryTracker exposes the failed-grab history for an (event, release)
// pair.
type RetryTracker interface {
	Attempts(ctx context.Context, eventID int64, releaseGUID string) (int, *time.Time, error)
}

// RetryBackoffFor returns the wait before re-grabbing after the given
// number of failed attempts, saturating at eight hours.
func RetryBackoffFor(attempts int) time.Duration {
	periods := []time.Duration{
		30 * time.Minute,
		1 * time.Hour,
		2 * time.Hour,
		4 * time.Hour,
		8 * time.Hour,
	}
	if attempts <= 0 {
		return 0
	}
	if attempts > len(periods) {
		return periods[len(periods)-1]
	}
	return periods[attempts-1]
}

// GrabDecision is the outcome of the grab checklist.
type GrabDecision struct {
	Grab   bool
	Reason string
}

// GrabChecker runs the pre-grab checklist for a matched release.
type GrabChecker struct {
	queue     QueueChecker
	blocklist BlocklistChecker
	retries   RetryTracker
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGrabChecker wires the checklist's collaborators.
func NewGrabChecker(queue QueueChecker, blocklist BlocklistChecker, retries RetryTracker, logger zerolog.Logger) *GrabChecker {
	return &GrabChecker{
		queue:     queue,
		blocklist: blocklist,
		retries:   retries,
		logger:    logger.With().Str("component", "grab-checker").Logger(),
		now:       time.Now,
	}
}

// ShouldGrabInput carries everything the checklist needs for one
// (release, event) pair.
type ShouldGrabInput struct {
	Release      *types.ReleaseSearchResult
	Event        *events.Event
	Eval         EvalInput
	DelayProfile *DelayProfile
}

// ShouldGrab decides whether a matched release should be sent to a
// download client. At most one active grab per event is allowed.
func (c *GrabChecker) ShouldGrab(ctx context.Context, in ShouldGrabInput) (GrabDecision, error) {
	rel, ev := in.Release, in.Event

	if c.queue != nil {
		active, err := c.queue.HasActiveItem(ctx, ev.ID)
		if err != nil {
			return GrabDecision{}, err
		}
		if active {
			return GrabDecision{Reason: "event already has an active download"}, nil
		}
	}

	if c.blocklist != nil {
		blocked, err := c.blocklist.IsBlocked(ctx, ev.ID, rel.TorrentInfoHash, rel.GUID)
		if err != nil {
			return GrabDecision{}, err
		}
		if blocked {
			return GrabDecision{Reason: "release is blocklisted for this event"}, nil
		}
	}

	if c.retries != nil {
		attempts, lastAttempt, err := c.retries.Attempts(ctx, ev.ID, rel.GUID)
		if err != nil {
			return GrabDecision{}, err
		}
		if attempts > 0 && lastAttempt != nil {
			if until := lastAttempt.Add(RetryBackoffFor(attempts)); c.now().Before(until) {
				return GrabDecision{Reason: "within retry backoff window"}, nil
			}
		}
	}

	eval := Evaluate(rel, in.Eval)
	if !eval.Approved {
		reason := "release rejected"
		if len(eval.Rejections) > 0 {
			reason = eval.Rejections[0]
		}
		return GrabDecision{Reason: reason}, nil
	}

	if ev.HasFile && in.Eval.Profile != nil {
		current := bestExistingQuality(ev, in.Eval.Profile)
		if !in.Eval.Profile.IsUpgrade(current, eval.Quality.ID) {
			return GrabDecision{Reason: "existing file is equal or better quality"}, nil
		}
	}

	isHighest := in.Eval.Profile != nil && eval.Quality.ID == in.Eval.Profile.Cutoff
	if ok, reason := CheckDelay(in.DelayProfile, rel, isHighest, eval.CustomFormatScore, c.now()); !ok {
		return GrabDecision{Reason: reason}, nil
	}

	return GrabDecision{Grab: true}, nil
}

// bestExistingQuality returns the quality ID the profile ranks highest
// among the event's files, 0 when none resolve. Ranking follows the
// profile's item order, matching the evaluator's scoring.
func bestExistingQuality(ev *events.Event, p *quality.Profile) int {
	best := 0
	bestRank := -1
	for _, f := range ev.Files {
		q, ok := quality.GetQualityByName(f.Quality)
		if !ok {
			continue
		}
		if r := p.Rank(q.ID); r > bestRank {
			best = q.ID
			bestRank = r
		}
	}
	return best
}
