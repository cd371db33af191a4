package meet

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// CastVote records participantID's current choice of place, replacing
// any previous vote by the same participant. The ballot map lives in the
// cache under the session's TTL; the durable vote row is best-effort.
// Broadcasts a vote:cast event followed by a fresh vote:status snapshot.
//
// Like session updates, concurrent casts are last-writer-wins on the
// ballot map.
func (c *Coordinator) CastVote(ctx context.Context, sessionID, participantID uuid.UUID, placeID string) (*Vote, error) {
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	ballots, err := c.cache.Ballots(ctx, sessionID)
	if err != nil {
		return nil, &UpdateError{ID: sessionID, Err: err}
	}
	ballots[participantID.String()] = placeID
	if err := c.cache.SaveBallots(ctx, sessionID, ballots, s.ExpiresAt); err != nil {
		return nil, &UpdateError{ID: sessionID, Err: err}
	}

	v := &Vote{
		SessionID:     sessionID,
		ParticipantID: participantID,
		PlaceID:       placeID,
		CastAt:        c.now().UTC(),
	}
	if c.durable != nil {
		if err := c.durable.SaveVote(ctx, v); err != nil {
			durableWriteFailures.Inc()
			c.logger.Printf("WARN coordinator: durable save of vote by %s failed: %v", participantID, err)
		}
	}

	c.emitter.VoteCast(v)
	c.emitter.VoteStatus(tallyBallots(sessionID, ballots))
	return v, nil
}

// VoteStatus returns the current tally snapshot for the session.
func (c *Coordinator) VoteStatus(ctx context.Context, sessionID uuid.UUID) (VoteTally, error) {
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return VoteTally{}, err
	}
	if s == nil {
		return VoteTally{}, ErrSessionNotFound
	}

	ballots, err := c.cache.Ballots(ctx, sessionID)
	if err != nil {
		return VoteTally{}, &GetError{ID: sessionID, Err: err}
	}
	return tallyBallots(sessionID, ballots), nil
}

// tallyBallots groups a ballot map by place. Results are sorted by vote
// count descending, then place id, so snapshots are stable.
func tallyBallots(sessionID uuid.UUID, ballots map[string]string) VoteTally {
	byPlace := make(map[string][]string)
	for participant, place := range ballots {
		byPlace[place] = append(byPlace[place], participant)
	}

	results := make([]VoteResult, 0, len(byPlace))
	for place, voters := range byPlace {
		sort.Strings(voters)
		results = append(results, VoteResult{
			PlaceID:   place,
			VoteCount: len(voters),
			Voters:    voters,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		return results[i].PlaceID < results[j].PlaceID
	})

	return VoteTally{
		SessionID:  sessionID.String(),
		TotalVotes: len(ballots),
		Results:    results,
	}
}
