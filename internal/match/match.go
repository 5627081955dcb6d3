// Package match picks candidate profiles for a daily drop. Candidates come
// exclusively from snapshots other sessions have committed; the finder never
// fabricates a profile and returns fewer than requested when the pool is
// small.
package match

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/session"
)

// ProfileLister is the slice of the session store the finder needs.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]*session.Snapshot, error)
}

// StoreFinder samples committed profiles from the store.
type StoreFinder struct {
	profiles ProfileLister
	logger   zerolog.Logger
}

// NewStoreFinder creates a finder backed by the session store's profile pool.
func NewStoreFinder(profiles ProfileLister, logger zerolog.Logger) *StoreFinder {
	return &StoreFinder{
		profiles: profiles,
		logger:   logger.With().Str("component", "match").Logger(),
	}
}

// Find returns up to n random committed profiles, excluding the caller's own.
func (f *StoreFinder) Find(ctx context.Context, excludeProfileID string, n int) ([]session.Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	all, err := f.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profile pool: %w", err)
	}

	pool := make([]*session.Snapshot, 0, len(all))
	for _, snap := range all {
		if snap.ID == excludeProfileID || snap.Status != session.StatusCommitted {
			continue
		}
		pool = append(pool, snap)
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}

	candidates := make([]session.Candidate, 0, len(pool))
	for _, snap := range pool {
		candidates = append(candidates, session.Candidate{
			ProfileID: snap.ID,
			Headline:  Headline(snap),
		})
	}
	f.logger.Debug().Int("pool", len(all)).Int("returned", len(candidates)).Msg("drop assembled")
	return candidates, nil
}

// FormatDrop numbers the candidates into the outbound message body and asks
// for a pick.
func FormatDrop(candidates []session.Candidate) string {
	var b strings.Builder
	b.WriteString("Today's drop:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Headline)
	}
	b.WriteString("Reply with a number to pick one.")
	return b.String()
}

// Headline builds the one-line teaser shown in a drop, from whatever fields
// the snapshot actually has.
func Headline(snap *session.Snapshot) string {
	var parts []string
	if name, ok := snap.Fields["name"].(string); ok && name != "" {
		parts = append(parts, name)
	}
	switch age := snap.Fields["age"].(type) {
	case int:
		parts = append(parts, fmt.Sprintf("%d", age))
	case float64:
		parts = append(parts, fmt.Sprintf("%d", int(age)))
	}
	if loc, ok := snap.Fields["location"].(string); ok && loc != "" {
		parts = append(parts, loc)
	}
	if occ, ok := snap.Fields["occupation"].(string); ok && occ != "" {
		parts = append(parts, occ)
	}
	if len(parts) == 0 {
		return "A mystery profile"
	}
	return strings.Join(parts, ", ")
}
