// Package ratelimit provides request pacing for indexer operations.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config defines rate limit configuration.
type Config struct {
	// MinInterval is the minimum gap between requests to one indexer
	MinInterval time.Duration
	// MaxJitter is added randomly on top of MinInterval
	MaxJitter time.Duration
	// QueryLimit is the maximum number of queries allowed in the period
	QueryLimit int
	// QueryPeriod is the time period for query limiting
	QueryPeriod time.Duration
	// GrabLimit is the maximum number of grabs allowed in the period
	GrabLimit int
	// GrabPeriod is the time period for grab limiting
	GrabPeriod time.Duration
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		MinInterval: 2 * time.Second,
		MaxJitter:   500 * time.Millisecond,
		QueryLimit:  100,
		QueryPeriod: time.Hour,
		GrabLimit:   25,
		GrabPeriod:  time.Hour,
	}
}

// Limiter paces requests per indexer and tracks query/grab counts.
type Limiter struct {
	logger zerolog.Logger
	config Config

	mu          sync.Mutex
	lastRequest map[int64]time.Time
	queryCounts map[int64]*rateBucket
	grabCounts  map[int64]*rateBucket

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// rateBucket tracks rate limit state for a single indexer.
type rateBucket struct {
	count     int
	resetTime time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config, logger zerolog.Logger) *Limiter {
	return &Limiter{
		logger:      logger.With().Str("component", "rate-limiter").Logger(),
		config:      config,
		lastRequest: make(map[int64]time.Time),
		queryCounts: make(map[int64]*rateBucket),
		grabCounts:  make(map[int64]*rateBucket),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait blocks until the indexer's minimum inter-request interval has
// elapsed, adding a small random jitter. Returns early on context
// cancellation.
func (l *Limiter) Wait(ctx context.Context, indexerID int64) error {
	l.mu.Lock()
	now := l.now()
	gap := l.config.MinInterval
	if l.config.MaxJitter > 0 {
		gap += time.Duration(rand.Int63n(int64(l.config.MaxJitter)))
	}
	var delay time.Duration
	if last, ok := l.lastRequest[indexerID]; ok {
		if next := last.Add(gap); next.After(now) {
			delay = next.Sub(now)
		}
	}
	l.lastRequest[indexerID] = now.Add(delay)
	l.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	return l.sleep(ctx, delay)
}

// CheckQueryLimit returns whether the indexer has reached its query limit.
func (l *Limiter) CheckQueryLimit(indexerID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.resetBucket(l.queryCounts, indexerID, l.config.QueryPeriod)
	if bucket.count >= l.config.QueryLimit {
		l.logger.Warn().
			Int64("indexerId", indexerID).
			Int("count", bucket.count).
			Int("limit", l.config.QueryLimit).
			Msg("Query rate limit reached")
		return true
	}
	return false
}

// CheckGrabLimit returns whether the indexer has reached its grab limit.
func (l *Limiter) CheckGrabLimit(indexerID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.resetBucket(l.grabCounts, indexerID, l.config.GrabPeriod)
	if bucket.count >= l.config.GrabLimit {
		l.logger.Warn().
			Int64("indexerId", indexerID).
			Int("count", bucket.count).
			Int("limit", l.config.GrabLimit).
			Msg("Grab rate limit reached")
		return true
	}
	return false
}

// RecordQuery records a query for rate limiting purposes.
func (l *Limiter) RecordQuery(indexerID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetBucket(l.queryCounts, indexerID, l.config.QueryPeriod).count++
}

// RecordGrab records a grab for rate limiting purposes.
func (l *Limiter) RecordGrab(indexerID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetBucket(l.grabCounts, indexerID, l.config.GrabPeriod).count++
}

// resetBucket returns the bucket for the indexer, resetting it when its
// period has lapsed. Caller holds l.mu.
func (l *Limiter) resetBucket(buckets map[int64]*rateBucket, indexerID int64, period time.Duration) *rateBucket {
	bucket, ok := buckets[indexerID]
	if !ok {
		bucket = &rateBucket{resetTime: l.now().Add(period)}
		buckets[indexerID] = bucket
	}
	if l.now().After(bucket.resetTime) {
		bucket.count = 0
		bucket.resetTime = l.now().Add(period)
	}
	return bucket
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
