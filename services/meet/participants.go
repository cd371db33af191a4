package meet

import (
	"context"

	"github.com/google/uuid"
)

// JoinSession attaches a new participant to an existing session. Same
// dual-store policy as sessions: cache write mandatory, durable write
// best-effort. Participant keys inherit the session's remaining TTL.
func (c *Coordinator) JoinSession(ctx context.Context, sessionID uuid.UUID, name string, loc *Location) (*Participant, error) {
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	p := &Participant{
		ID:        uuid.New(),
		SessionID: sessionID,
		Name:      name,
		Location:  loc,
		JoinedAt:  c.now().UTC(),
	}

	if err := c.cache.SaveParticipant(ctx, p, s.ExpiresAt); err != nil {
		return nil, &UpdateError{ID: sessionID, Err: err}
	}
	if c.durable != nil {
		if err := c.durable.SaveParticipant(ctx, p); err != nil {
			durableWriteFailures.Inc()
			c.logger.Printf("WARN coordinator: durable save of participant %s failed: %v", p.ID, err)
		}
	}

	if loc != nil {
		c.emitter.ParticipantLocation(sessionID, p.ID, *loc)
	}
	return p, nil
}

// Participants lists the session's cached participants.
func (c *Coordinator) Participants(ctx context.Context, sessionID uuid.UUID) ([]*Participant, error) {
	participants, err := c.cache.Participants(ctx, sessionID)
	if err != nil {
		return nil, &GetError{ID: sessionID, Err: err}
	}
	return participants, nil
}

// UpdateParticipantLocation stores a participant's new position and
// broadcasts it to the session's room.
func (c *Coordinator) UpdateParticipantLocation(ctx context.Context, sessionID, participantID uuid.UUID, loc Location) (*Participant, error) {
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	p, err := c.cache.FindParticipant(ctx, sessionID, participantID)
	if err != nil {
		return nil, &GetError{ID: sessionID, Err: err}
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	p.Location = &loc
	if err := c.cache.SaveParticipant(ctx, p, s.ExpiresAt); err != nil {
		return nil, &UpdateError{ID: sessionID, Err: err}
	}
	if c.durable != nil {
		if err := c.durable.SaveParticipant(ctx, p); err != nil {
			durableWriteFailures.Inc()
			c.logger.Printf("WARN coordinator: durable save of participant %s failed: %v", p.ID, err)
		}
	}

	c.emitter.ParticipantLocation(sessionID, participantID, loc)
	return p, nil
}
