package meet

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"meetpoint/pkg/cache"
)

// DefaultSessionTTL is the fixed lifetime of a session, counted from
// creation. Cache keys and the durable row's ExpiresAt stay in lockstep.
const DefaultSessionTTL = 24 * time.Hour

// CoordinatorConfig tunes a Coordinator. Zero values get defaults.
type CoordinatorConfig struct {
	SessionTTL time.Duration
	Now        func() time.Time
}

// Coordinator owns session lifecycle and the read-through/write-through
// policy between the fast cache and the durable store.
//
// The cache is the mandatory path: a cache write failure fails the
// operation. The durable store is best-effort: its failures are logged
// and counted but never surfaced, and a nil durable store is a supported
// configuration (cache-only sessions).
type Coordinator struct {
	cache   *cacheStore
	durable DurableStore
	emitter *Emitter
	logger  *log.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewCoordinator creates a Coordinator. cacheClient is required; durable
// and emitter may be nil.
func NewCoordinator(cacheClient *cache.Client, durable DurableStore, emitter *Emitter, logger *log.Logger, cfg CoordinatorConfig) (*Coordinator, error) {
	if cacheClient == nil {
		return nil, errors.New("cache client is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Coordinator{
		cache:   newCacheStore(cacheClient),
		durable: durable,
		emitter: emitter,
		logger:  logger,
		ttl:     cfg.SessionTTL,
		now:     cfg.Now,
	}, nil
}

// CreateSession creates a session and writes it to both stores. The
// cache write must succeed; the durable write is fire-and-forget.
func (c *Coordinator) CreateSession(ctx context.Context, title, hostName string) (*Session, error) {
	now := c.now().UTC()
	s := &Session{
		ID:        uuid.New(),
		Title:     title,
		HostName:  hostName,
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.cache.SaveSession(ctx, s); err != nil {
		return nil, &CreateError{Err: err}
	}
	c.saveDurable(ctx, s)

	sessionsCreated.Inc()
	return s, nil
}

// GetSession reads through the stores in priority order: cache first,
// then the durable store, warming the cache on a durable hit. A miss in
// both returns (nil, nil).
func (c *Coordinator) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := c.cache.FindSession(ctx, id)
	if err != nil {
		return nil, &GetError{ID: id, Err: err}
	}
	if s != nil {
		return s, nil
	}

	if c.durable == nil {
		return nil, nil
	}
	s, err = c.durable.FindSession(ctx, id)
	if err != nil {
		return nil, &GetError{ID: id, Err: err}
	}
	if s == nil {
		return nil, nil
	}

	if err := c.cache.SaveSession(ctx, s); err != nil {
		c.logger.Printf("WARN coordinator: cache warm-up for session %s failed: %v", id, err)
	}
	return s, nil
}

// UpdateSession merges upd into the current projection and persists the
// result. The cache write is the commit point for visibility; the
// durable write is best-effort. A status change publishes exactly one
// status event after the commit.
//
// Concurrent updates to the same id are unguarded read-modify-write:
// the last writer to the cache wins.
func (c *Coordinator) UpdateSession(ctx context.Context, id uuid.UUID, upd SessionUpdate) (*Session, error) {
	s, err := c.GetSession(ctx, id)
	if err != nil {
		return nil, &UpdateError{ID: id, Err: err}
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	statusChanged := upd.Status != nil && *upd.Status != s.Status

	if upd.Status != nil {
		s.Status = *upd.Status
		if s.Status == StatusCompleted && s.CompletedAt == nil {
			completed := c.now().UTC()
			s.CompletedAt = &completed
		}
	}
	if upd.CenterPoint != nil {
		s.CenterPoint = upd.CenterPoint
	}
	if upd.CenterDisplayName != nil {
		s.CenterDisplayName = *upd.CenterDisplayName
	}
	if upd.SelectedPlaceID != nil {
		s.SelectedPlaceID = *upd.SelectedPlaceID
	}

	if err := c.cache.SaveSession(ctx, s); err != nil {
		return nil, &UpdateError{ID: id, Err: err}
	}
	c.saveDurable(ctx, s)

	if statusChanged {
		if s.Status == StatusCompleted {
			sessionsCompleted.Inc()
		}
		c.emitter.SessionStatusChanged(s.ID, s.Status)
	}
	return s, nil
}

// CompleteSession marks the session completed, optionally recording the
// chosen place.
func (c *Coordinator) CompleteSession(ctx context.Context, id uuid.UUID, selectedPlaceID string) (*Session, error) {
	completed := StatusCompleted
	upd := SessionUpdate{Status: &completed}
	if selectedPlaceID != "" {
		upd.SelectedPlaceID = &selectedPlaceID
	}
	return c.UpdateSession(ctx, id, upd)
}

// DeleteSession removes the session and everything cached under it. A
// failed cache removal is a DeleteError; a failed durable removal leaves
// the stores disagreeing and is only logged, the durable row expires on
// its own via ExpiresAt.
func (c *Coordinator) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := c.cache.DeleteSessionTree(ctx, id); err != nil {
		return &DeleteError{ID: id, Err: err}
	}

	if c.durable != nil {
		if err := c.durable.DeleteSession(ctx, id); err != nil {
			c.logger.Printf("WARN coordinator: durable delete of session %s failed: %v", id, err)
		}
	}
	return nil
}

// saveDurable is the best-effort half of every write. Failures are
// swallowed here so the asymmetry stays visible at the call sites.
func (c *Coordinator) saveDurable(ctx context.Context, s *Session) {
	if c.durable == nil {
		return
	}
	if err := c.durable.SaveSession(ctx, s); err != nil {
		durableWriteFailures.Inc()
		c.logger.Printf("WARN coordinator: durable save of session %s failed: %v", s.ID, err)
	}
}
