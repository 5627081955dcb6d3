package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/tandemhq/profile-agent/internal/errors"
)

const (
	sessionKeyPrefix = "session:"
	contactKeyPrefix = "contact:"
	profileKeyPrefix = "profile:"
)

// Store persists sessions, contact pointers and committed profile snapshots
// on top of a KV backend. It also owns the per-session lock table so that
// every writer, turn handling and background sweeps alike, serializes its
// read-modify-write through the same locks.
type Store struct {
	kv     KV
	locks  *Locker
	logger zerolog.Logger
}

// NewStore creates a session store.
func NewStore(kv KV, logger zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		locks:  NewLocker(),
		logger: logger.With().Str("component", "session.store").Logger(),
	}
}

// Lock acquires the write lock for a session. Callers must hold it across
// the whole load-modify-save cycle.
func (s *Store) Lock(id string) { s.locks.Lock(id) }

// Unlock releases the write lock for a session.
func (s *Store) Unlock(id string) { s.locks.Unlock(id) }

// Get loads a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	raw, ok, err := s.kv.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !ok {
		return nil, perrors.ErrSessionMissing
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Save persists a session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+sess.ID, string(raw)); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// ByContact resolves the contact pointer to its session, if any.
func (s *Store) ByContact(ctx context.Context, contactID string) (*Session, error) {
	id, ok, err := s.kv.Get(ctx, contactKeyPrefix+contactID)
	if err != nil {
		return nil, fmt.Errorf("resolve contact %s: %w", contactID, err)
	}
	if !ok {
		return nil, perrors.ErrSessionMissing
	}
	sess, err := s.Get(ctx, id)
	if err == perrors.ErrSessionMissing {
		// dangling pointer; clean it up rather than serving a ghost
		_ = s.kv.Delete(ctx, contactKeyPrefix+contactID)
	}
	return sess, err
}

// PointContact binds a contact to a session.
func (s *Store) PointContact(ctx context.Context, contactID, sessionID string) error {
	if err := s.kv.Set(ctx, contactKeyPrefix+contactID, sessionID); err != nil {
		return fmt.Errorf("point contact %s: %w", contactID, err)
	}
	return nil
}

// Delete removes a session AND every contact pointer of its participants.
// Dangling pointers are a correctness bug, not an accepted trade-off.
func (s *Store) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil && err != perrors.ErrSessionMissing {
		return err
	}
	if sess != nil {
		for _, p := range sess.Participants {
			if err := s.kv.Delete(ctx, contactKeyPrefix+p.ContactID); err != nil {
				return fmt.Errorf("delete contact pointer %s: %w", p.ContactID, err)
			}
		}
	}
	if err := s.kv.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// ListIDs returns every stored session ID.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, sessionKeyPrefix))
	}
	return ids, nil
}

// SaveProfile stores a committed profile snapshot for the matching pool.
func (s *Store) SaveProfile(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", snap.ID, err)
	}
	if err := s.kv.Set(ctx, profileKeyPrefix+snap.ID, string(raw)); err != nil {
		return fmt.Errorf("save profile %s: %w", snap.ID, err)
	}
	return nil
}

// GetProfile loads a committed profile snapshot.
func (s *Store) GetProfile(ctx context.Context, id string) (*Snapshot, error) {
	raw, ok, err := s.kv.Get(ctx, profileKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", id, err)
	}
	if !ok {
		return nil, perrors.ErrNotFound
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return &snap, nil
}

// ListProfiles loads every stored profile snapshot.
func (s *Store) ListProfiles(ctx context.Context) ([]*Snapshot, error) {
	keys, err := s.kv.Keys(ctx, profileKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]*Snapshot, 0, len(keys))
	for _, k := range keys {
		raw, ok, err := s.kv.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			s.logger.Warn().Str("key", k).Err(err).Msg("skipping undecodable profile")
			continue
		}
		out = append(out, &snap)
	}
	return out, nil
}
