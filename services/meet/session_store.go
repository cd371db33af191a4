package meet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meetpoint/pkg/cache"
)

// sessionStore is the contract shared by the two copies of session
// state. The coordinator composes the implementations by priority: the
// cache copy is consulted first and is authoritative when present; the
// durable copy only backs cache misses.
//
// FindSession returns (nil, nil) on a miss. A miss is a normal outcome,
// not an error.
type sessionStore interface {
	SaveSession(ctx context.Context, s *Session) error
	FindSession(ctx context.Context, id uuid.UUID) (*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// DurableStore is the relational, cross-restart copy of session state.
// It is optional: with a nil DurableStore sessions live only in the
// cache for their TTL. All writes to it are best-effort from the
// coordinator's point of view.
type DurableStore interface {
	sessionStore
	SaveParticipant(ctx context.Context, p *Participant) error
	SaveVote(ctx context.Context, v *Vote) error
}

const cacheKeyPrefix = "meet:session:"

func sessionKey(id uuid.UUID) string {
	return cacheKeyPrefix + id.String()
}

func participantPrefix(sessionID uuid.UUID) string {
	return cacheKeyPrefix + sessionID.String() + ":participant:"
}

func participantKey(sessionID, participantID uuid.UUID) string {
	return participantPrefix(sessionID) + participantID.String()
}

func ballotsKey(sessionID uuid.UUID) string {
	return cacheKeyPrefix + sessionID.String() + ":votes"
}

// cacheStore keeps the live projection in Redis. Keys expire together:
// everything under a session carries the time remaining until the
// session's ExpiresAt.
type cacheStore struct {
	c *cache.Client
}

var _ sessionStore = (*cacheStore)(nil)

func newCacheStore(c *cache.Client) *cacheStore {
	return &cacheStore{c: c}
}

func (s *cacheStore) SaveSession(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}
	return s.c.SetJSON(ctx, sessionKey(sess.ID), sess, ttl)
}

func (s *cacheStore) FindSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	found, err := s.c.GetJSON(ctx, sessionKey(id), &sess)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &sess, nil
}

func (s *cacheStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.c.Delete(ctx, sessionKey(id))
}

// DeleteSessionTree removes the session key together with every
// participant and ballot key under it in one delete, so no orphaned
// entries stay reachable under the old session id.
func (s *cacheStore) DeleteSessionTree(ctx context.Context, id uuid.UUID) error {
	keys, err := s.c.ScanPrefix(ctx, sessionKey(id))
	if err != nil {
		return fmt.Errorf("scan session keys: %w", err)
	}
	return s.c.Delete(ctx, keys...)
}

func (s *cacheStore) SaveParticipant(ctx context.Context, p *Participant, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", p.SessionID)
	}
	return s.c.SetJSON(ctx, participantKey(p.SessionID, p.ID), p, ttl)
}

func (s *cacheStore) FindParticipant(ctx context.Context, sessionID, participantID uuid.UUID) (*Participant, error) {
	var p Participant
	found, err := s.c.GetJSON(ctx, participantKey(sessionID, participantID), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

func (s *cacheStore) Participants(ctx context.Context, sessionID uuid.UUID) ([]*Participant, error) {
	keys, err := s.c.ScanPrefix(ctx, participantPrefix(sessionID))
	if err != nil {
		return nil, err
	}

	participants := make([]*Participant, 0, len(keys))
	for _, key := range keys {
		var p Participant
		found, err := s.c.GetJSON(ctx, key, &p)
		if err != nil {
			return nil, err
		}
		if !found {
			// Expired between scan and read.
			continue
		}
		participants = append(participants, &p)
	}
	return participants, nil
}

// Ballots maps participant id to the place they currently vote for.
func (s *cacheStore) Ballots(ctx context.Context, sessionID uuid.UUID) (map[string]string, error) {
	ballots := make(map[string]string)
	if _, err := s.c.GetJSON(ctx, ballotsKey(sessionID), &ballots); err != nil {
		return nil, err
	}
	return ballots, nil
}

func (s *cacheStore) SaveBallots(ctx context.Context, sessionID uuid.UUID, ballots map[string]string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sessionID)
	}
	return s.c.SetJSON(ctx, ballotsKey(sessionID), ballots, ttl)
}
