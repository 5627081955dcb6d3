// Package drops keeps the candidate cadence going after a profile is live.
// The first drop is pulled by the request_matches action; this scheduler
// repeats it on an interval for every session that reached the matching
// state.
package drops

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/stage"
)

// Finder assembles candidates for one drop.
type Finder interface {
	Find(ctx context.Context, excludeProfileID string, n int) ([]session.Candidate, error)
}

// Sender delivers the drop message.
type Sender interface {
	Send(ctx context.Context, to, body, mediaURL string) error
}

// Formatter renders a candidate list into the outbound message body.
type Formatter func(candidates []session.Candidate) string

// Scheduler sweeps all sessions on a fixed interval and serves a new drop to
// each one that is in the matching state and has not received a drop within
// the interval.
type Scheduler struct {
	store    *session.Store
	finder   Finder
	sender   Sender
	format   Formatter
	interval time.Duration
	dropSize int
	logger   zerolog.Logger
}

// NewScheduler creates a drop scheduler.
func NewScheduler(store *session.Store, finder Finder, sender Sender, format Formatter, interval time.Duration, dropSize int, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if dropSize <= 0 {
		dropSize = 3
	}
	return &Scheduler{
		store:    store,
		finder:   finder,
		sender:   sender,
		format:   format,
		interval: interval,
		dropSize: dropSize,
		logger:   logger.With().Str("component", "drops").Logger(),
	}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("drop scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("drop scheduler stopped")
			return
		case <-ticker.C:
			served := s.Sweep(ctx)
			if served > 0 {
				s.logger.Info().Int("served", served).Msg("drop sweep complete")
			}
		}
	}
}

// Sweep serves one drop to every due session and returns how many it served.
func (s *Scheduler) Sweep(ctx context.Context) int {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("drop sweep could not list sessions")
		return 0
	}

	served := 0
	for _, id := range ids {
		if s.sweepOne(ctx, id) {
			served++
		}
	}
	return served
}

// sweepOne serves a drop to one session if it is due. The session lock is
// held across the whole load-modify-save so a concurrent turn cannot
// overwrite the recorded drop with a stale copy.
func (s *Scheduler) sweepOne(ctx context.Context, id string) bool {
	s.store.Lock(id)
	defer s.store.Unlock(id)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return false
	}
	if !s.due(sess) {
		return false
	}
	if err := s.serve(ctx, sess); err != nil {
		s.logger.Error().Err(err).Str("session", id).Msg("drop delivery failed")
		return false
	}
	return true
}

// due reports whether the session should receive a drop this sweep.
func (s *Scheduler) due(sess *session.Session) bool {
	if sess.Stage != stage.FetchingProfiles || sess.CommittedProfile == nil {
		return false
	}
	if len(sess.DailyDrops) == 0 {
		return true
	}
	last := sess.DailyDrops[len(sess.DailyDrops)-1]
	return time.Since(last.Timestamp) >= s.interval
}

func (s *Scheduler) serve(ctx context.Context, sess *session.Session) error {
	candidates, err := s.finder.Find(ctx, sess.CommittedProfile.ID, s.dropSize)
	if err != nil {
		return err
	}

	sess.DailyDrops = append(sess.DailyDrops, session.DailyDrop{
		Timestamp:  time.Now().UTC(),
		Candidates: candidates,
	})
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	if len(candidates) == 0 {
		return nil
	}
	to := recipient(sess)
	if to == "" {
		return nil
	}
	return s.sender.Send(ctx, to, s.format(candidates), "")
}

func recipient(sess *session.Session) string {
	if sess.PrimaryUser != nil {
		if _, ok := sess.Participant(sess.PrimaryUser.ContactID); ok {
			return sess.PrimaryUser.ContactID
		}
	}
	if len(sess.Participants) > 0 {
		return sess.Participants[0].ContactID
	}
	return ""
}
