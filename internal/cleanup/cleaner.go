// Package cleanup removes abandoned sessions. A conversation that stalls
// before committing a profile is deleted after the retention TTL; finalized
// sessions are kept indefinitely.
package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/metrics"
	"github.com/tandemhq/profile-agent/internal/session"
)

// Cleaner periodically sweeps the session store.
type Cleaner struct {
	store    *session.Store
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewCleaner creates a retention sweeper.
func NewCleaner(store *session.Store, ttl, interval time.Duration, logger zerolog.Logger) *Cleaner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Cleaner{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With().Str("component", "cleanup").Logger(),
	}
}

// SetMetrics enables the active-session gauge, refreshed on every sweep.
func (c *Cleaner) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// Run blocks until the context is cancelled, sweeping once per interval.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("ttl", c.ttl).Dur("interval", c.interval).Msg("retention sweeper started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("retention sweeper stopped")
			return
		case <-ticker.C:
			removed := c.Sweep(ctx)
			if removed > 0 {
				c.logger.Info().Int("removed", removed).Msg("retention sweep complete")
			}
		}
	}
}

// Sweep removes every expired session and returns how many were deleted.
func (c *Cleaner) Sweep(ctx context.Context) int {
	ids, err := c.store.ListIDs(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("retention sweep could not list sessions")
		return 0
	}

	cutoff := time.Now().Add(-c.ttl)
	removed := 0
	for _, id := range ids {
		if c.sweepOne(ctx, id, cutoff) {
			removed++
		}
	}
	if c.metrics != nil {
		c.metrics.SessionsActive.Set(float64(len(ids) - removed))
	}
	return removed
}

// sweepOne deletes one session if it is past retention. The session lock is
// held across the check-then-delete so an in-flight turn cannot resurrect
// the session body after its contact pointers were removed.
func (c *Cleaner) sweepOne(ctx context.Context, id string, cutoff time.Time) bool {
	c.store.Lock(id)
	defer c.store.Unlock(id)

	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return false
	}
	if !expired(sess, cutoff) {
		return false
	}
	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("session", id).Msg("retention delete failed")
		return false
	}
	return true
}

// expired reports whether a session is past retention. Anything with a
// committed profile is kept.
func expired(sess *session.Session, cutoff time.Time) bool {
	if sess.CommittedProfile != nil {
		return false
	}
	return sess.UpdatedAt.Before(cutoff)
}
