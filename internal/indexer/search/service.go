// Package search fans queries out across the configured indexers,
// aggregates the responses, and ranks the releases for grabbing.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/indexer"
	"github.com/sportarr/sportarr/internal/indexer/newznab"
	"github.com/sportarr/sportarr/internal/indexer/ratelimit"
	"github.com/sportarr/sportarr/internal/indexer/status"
	"github.com/sportarr/sportarr/internal/indexer/torznab"
	"github.com/sportarr/sportarr/internal/indexer/types"
)

const (
	// Per-indexer search timeout.
	searchTimeout = 30 * time.Second

	// Concurrent indexer queries per search.
	maxConcurrentSearches = 5

	// How long a finished search status stays visible before clearing.
	statusLinger = 5 * time.Second
)

// Broadcaster pushes search progress to connected UI clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// ProtocolChecker reports whether a download client exists for a
// protocol. Indexers whose protocol has no backing client are skipped.
type ProtocolChecker interface {
	HasClientFor(ctx context.Context, protocol types.Protocol) (bool, error)
}

// SearchInput is one aggregated search request.
type SearchInput struct {
	Query          string
	Categories     []int
	Limit          int
	Eval           decisioning.EvalInput
	MinimumSeeders int
}

// Service orchestrates multi-indexer searches.
type Service struct {
	indexers    *indexer.Service
	status      *status.Service
	limiter     *ratelimit.Limiter
	protocols   ProtocolChecker
	broadcaster Broadcaster
	logger      zerolog.Logger

	active    statusCell
	clientFor func(types.Indexer) types.Client
	sem       *semaphore.Weighted
	now       func() time.Time
}

// NewService creates the search orchestrator. protocols and
// broadcaster may be nil; skipping and progress updates are then
// disabled respectively.
func NewService(indexers *indexer.Service, statusSvc *status.Service, limiter *ratelimit.Limiter, protocols ProtocolChecker, broadcaster Broadcaster, logger zerolog.Logger) *Service {
	svc := &Service{
		indexers:    indexers,
		status:      statusSvc,
		limiter:     limiter,
		protocols:   protocols,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "search").Logger(),
		sem:         semaphore.NewWeighted(maxConcurrentSearches),
		now:         time.Now,
	}
	svc.clientFor = func(ix types.Indexer) types.Client {
		switch ix.Implementation {
		case types.IndexerTypeNewznab:
			return newznab.NewClient(ix, logger)
		default:
			return torznab.NewClient(ix, logger)
		}
	}
	return svc
}

// ActiveStatus returns the in-flight search snapshot, nil when idle.
func (s *Service) ActiveStatus() *ActiveSearchStatus {
	return s.active.snapshot()
}

type indexerResult struct {
	indexer  *types.Indexer
	releases []types.ReleaseSearchResult
	err      error
}

// Search queries every eligible indexer, deduplicates the combined
// results, and returns them evaluated and ranked best-first. Indexer
// failures are recorded against the indexer and never fail the search.
func (s *Service) Search(ctx context.Context, in SearchInput) ([]types.ReleaseSearchResult, error) {
	candidates, err := s.indexers.ListForSearch(ctx)
	if err != nil {
		return nil, err
	}
	eligible := s.filterEligible(ctx, candidates)
	if len(eligible) == 0 {
		s.logger.Warn().Str("query", in.Query).Msg("No eligible indexers for search")
		return nil, nil
	}

	gen := s.active.begin(in.Query, len(eligible), s.now())
	s.broadcastStatus()
	defer func() {
		s.active.finish()
		s.broadcastStatus()
		go func() {
			time.Sleep(statusLinger)
			s.active.clear(gen)
		}()
	}()

	criteria := types.SearchCriteria{
		Query:      in.Query,
		Categories: in.Categories,
		Limit:      in.Limit,
	}
	results := s.dispatch(ctx, eligible, func(qctx context.Context, c types.Client) ([]types.ReleaseSearchResult, error) {
		return c.Search(qctx, criteria)
	}, true)

	var all []types.ReleaseSearchResult
	for _, res := range results {
		all = append(all, res.releases...)
	}
	releases := dedupe(all)
	releases = filterMinSeeders(releases, in.MinimumSeeders)
	for i := range releases {
		ev := decisioning.Evaluate(&releases[i], in.Eval)
		decisioning.Annotate(&releases[i], ev)
	}
	decisioning.SortReleases(releases)

	s.logger.Info().
		Str("query", in.Query).
		Int("indexers", len(eligible)).
		Int("releases", len(releases)).
		Msg("Search complete")
	return releases, nil
}

// FetchAllRss pulls the latest releases from every RSS-enabled
// indexer. Per-indexer failures are recorded and skipped.
func (s *Service) FetchAllRss(ctx context.Context, perIndexerLimit int) ([]types.ReleaseSearchResult, error) {
	candidates, err := s.indexers.ListForRss(ctx)
	if err != nil {
		return nil, err
	}
	eligible := s.filterEligible(ctx, candidates)
	if len(eligible) == 0 {
		return nil, nil
	}

	results := s.dispatch(ctx, eligible, func(qctx context.Context, c types.Client) ([]types.ReleaseSearchResult, error) {
		return c.FetchRss(qctx, perIndexerLimit)
	}, false)

	var all []types.ReleaseSearchResult
	for _, res := range results {
		if res.err == nil {
			if err := s.status.RecordRSSSync(ctx, res.indexer.ID); err != nil {
				s.logger.Warn().Err(err).Int64("indexerId", res.indexer.ID).Msg("Failed to record RSS sync")
			}
		}
		all = append(all, res.releases...)
	}
	return dedupe(all), nil
}

// filterEligible drops indexers that are backed by no download client,
// disabled by the health tracker, or over their hourly query budget.
func (s *Service) filterEligible(ctx context.Context, candidates []*types.Indexer) []*types.Indexer {
	var eligible []*types.Indexer
	for _, ix := range candidates {
		if s.protocols != nil {
			ok, err := s.protocols.HasClientFor(ctx, ix.Protocol())
			if err != nil {
				s.logger.Warn().Err(err).Int64("indexerId", ix.ID).Msg("Protocol availability check failed")
			} else if !ok {
				s.logger.Debug().
					Str("indexer", ix.Name).
					Str("protocol", string(ix.Protocol())).
					Msg("Skipping indexer, no download client for protocol")
				continue
			}
		}
		available, reason, err := s.status.IsAvailable(ctx, ix.ID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("indexerId", ix.ID).Msg("Indexer status check failed")
		} else if !available {
			s.logger.Debug().Str("indexer", ix.Name).Str("reason", reason).Msg("Skipping unavailable indexer")
			continue
		}
		if s.limiter.CheckQueryLimit(ix.ID) {
			s.logger.Debug().Str("indexer", ix.Name).Msg("Skipping indexer, hourly query limit reached")
			continue
		}
		eligible = append(eligible, ix)
	}
	return eligible
}

type queryFunc func(ctx context.Context, c types.Client) ([]types.ReleaseSearchResult, error)

// dispatch runs one query per indexer with bounded concurrency,
// recording each outcome against the indexer's health.
func (s *Service) dispatch(ctx context.Context, indexers []*types.Indexer, query queryFunc, trackProgress bool) []indexerResult {
	ch := make(chan indexerResult, len(indexers))
	for _, ix := range indexers {
		ix := ix
		if err := s.sem.Acquire(ctx, 1); err != nil {
			ch <- indexerResult{indexer: ix, err: err}
			continue
		}
		go func() {
			defer s.sem.Release(1)
			if trackProgress {
				s.active.taskStarted()
				s.broadcastStatus()
			}
			releases, err := s.queryOne(ctx, ix, query)
			if trackProgress {
				s.active.taskCompleted(len(releases))
				s.broadcastStatus()
			}
			ch <- indexerResult{indexer: ix, releases: releases, err: err}
		}()
	}

	results := make([]indexerResult, 0, len(indexers))
	for range indexers {
		results = append(results, <-ch)
	}
	return results
}

func (s *Service) queryOne(ctx context.Context, ix *types.Indexer, query queryFunc) ([]types.ReleaseSearchResult, error) {
	if err := s.limiter.Wait(ctx, ix.ID); err != nil {
		return nil, err
	}
	s.limiter.RecordQuery(ix.ID)

	qctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	releases, err := query(qctx, s.clientFor(*ix))
	if err != nil {
		s.recordFailure(ctx, ix, err)
		return nil, err
	}
	if err := s.status.RecordSuccess(ctx, ix.ID); err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", ix.ID).Msg("Failed to record indexer success")
	}
	return releases, nil
}

func (s *Service) recordFailure(ctx context.Context, ix *types.Indexer, opErr error) {
	if indexer.IsRateLimitError(opErr) {
		retryAfter := indexer.RetryAfterOf(opErr)
		s.logger.Warn().
			Str("indexer", ix.Name).
			Dur("retryAfter", retryAfter).
			Msg("Indexer rate limited")
		if err := s.status.RecordRateLimit(ctx, ix.ID, retryAfter); err != nil {
			s.logger.Warn().Err(err).Int64("indexerId", ix.ID).Msg("Failed to record rate limit")
		}
		return
	}
	s.logger.Warn().Err(opErr).Str("indexer", ix.Name).Msg("Indexer query failed")
	if err := s.status.RecordFailure(ctx, ix.ID, opErr); err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", ix.ID).Msg("Failed to record indexer failure")
	}
}

func (s *Service) broadcastStatus() {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast("search:status", s.active.snapshot()); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to broadcast search status")
	}
}

// dedupe collapses releases that refer to the same payload. Torrents
// with an info hash dedupe on the hash, everything else on GUID. The
// copy with the most seeders wins.
func dedupe(releases []types.ReleaseSearchResult) []types.ReleaseSearchResult {
	seen := make(map[string]int, len(releases))
	out := make([]types.ReleaseSearchResult, 0, len(releases))
	for _, rel := range releases {
		key := dedupeKey(rel)
		if idx, ok := seen[key]; ok {
			if seederCount(rel) > seederCount(out[idx]) {
				out[idx] = rel
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, rel)
	}
	return out
}

func dedupeKey(rel types.ReleaseSearchResult) string {
	if rel.TorrentInfoHash != "" {
		return "hash:" + strings.ToLower(rel.TorrentInfoHash)
	}
	return "guid:" + strings.ToLower(strings.TrimSpace(rel.GUID))
}

func seederCount(rel types.ReleaseSearchResult) int {
	if rel.Seeders == nil {
		return 0
	}
	return *rel.Seeders
}

// filterMinSeeders drops torrent releases below the seeder floor.
// Usenet releases carry no seeders and always pass.
func filterMinSeeders(releases []types.ReleaseSearchResult, min int) []types.ReleaseSearchResult {
	if min <= 0 {
		return releases
	}
	out := releases[:0]
	for _, rel := range releases {
		if rel.Protocol == types.ProtocolTorrent && seederCount(rel) < min {
			continue
		}
		out = append(out, rel)
	}
	return out
}
