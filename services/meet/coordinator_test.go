package meet

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"meetpoint/pkg/cache"
	"meetpoint/pkg/realtime"
)

// memoryDurable is an in-memory DurableStore for tests.
type memoryDurable struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]Session
	votes     map[string]Vote
	findCalls int
	failAll   bool
}

func newMemoryDurable() *memoryDurable {
	return &memoryDurable{
		sessions: make(map[uuid.UUID]Session),
		votes:    make(map[string]Vote),
	}
}

func (m *memoryDurable) SaveSession(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errDurableDown
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryDurable) FindSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errDurableDown
	}
	m.findCalls++
	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now().UTC()) {
		return nil, nil
	}
	copied := s
	return &copied, nil
}

func (m *memoryDurable) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errDurableDown
	}
	delete(m.sessions, id)
	return nil
}

func (m *memoryDurable) SaveParticipant(ctx context.Context, p *Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errDurableDown
	}
	return nil
}

func (m *memoryDurable) SaveVote(ctx context.Context, v *Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errDurableDown
	}
	m.votes[v.SessionID.String()+"/"+v.ParticipantID.String()] = *v
	return nil
}

var errDurableDown = &testError{"durable store down"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

type testEnv struct {
	mr          *miniredis.Miniredis
	cacheClient *cache.Client
	hub         *realtime.Hub
	coord       *Coordinator
}

func newTestEnv(t *testing.T, durable DurableStore) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cacheClient := cache.NewFromClient(rdb)

	hub := realtime.NewHub(log.Default())
	emitter := NewEmitter(hub, log.Default())

	coord, err := NewCoordinator(cacheClient, durable, emitter, log.Default(), CoordinatorConfig{})
	require.NoError(t, err)

	return &testEnv{
		mr:          mr,
		cacheClient: cacheClient,
		hub:         hub,
		coord:       coord,
	}
}

func requireSessionsEqual(t *testing.T, want, got *Session) {
	t.Helper()
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON))
}

func drainEvents(sub *realtime.Subscriber, wait time.Duration) []realtime.Message {
	var msgs []realtime.Message
	deadline := time.After(wait)
	for {
		select {
		case msg := <-sub.C:
			msgs = append(msgs, msg)
		case <-deadline:
			return msgs
		}
	}
}

func TestCreateThenGetReturnsSameProjection(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)
	require.Equal(t, StatusActive, created.Status)
	require.WithinDuration(t, time.Now().Add(DefaultSessionTTL), created.ExpiresAt, time.Minute)

	got, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	requireSessionsEqual(t, created, got)
}

func TestCreateSucceedsWhenDurableStoreDown(t *testing.T) {
	durable := newMemoryDurable()
	durable.failAll = true
	env := newTestEnv(t, durable)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	// The cache copy stands alone.
	got, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestCreateFailsWhenCacheUnavailable(t *testing.T) {
	env := newTestEnv(t, newMemoryDurable())
	env.mr.Close()

	_, err := env.coord.CreateSession(context.Background(), "Lunch", "Ann")
	require.Error(t, err)

	var createErr *CreateError
	require.ErrorAs(t, err, &createErr)
}

func TestGetRecoversFromDurableStoreAndWarmsCache(t *testing.T) {
	durable := newMemoryDurable()
	env := newTestEnv(t, durable)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	// Simulate eviction of every cached key.
	env.mr.FlushAll()

	got, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 1, durable.findCalls)

	// Second read hits the warmed cache without touching the durable
	// store again.
	got2, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got2)
	require.Equal(t, 1, durable.findCalls)
	requireSessionsEqual(t, got, got2)
}

func TestGetIgnoresExpiredDurableRow(t *testing.T) {
	durable := newMemoryDurable()
	env := newTestEnv(t, durable)
	ctx := context.Background()

	id := uuid.New()
	durable.sessions[id] = Session{
		ID:        id,
		Title:     "Old",
		HostName:  "Ann",
		Status:    StatusActive,
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}

	got, err := env.coord.GetSession(ctx, id)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetMissIsNotAnError(t *testing.T) {
	env := newTestEnv(t, nil)

	got, err := env.coord.GetSession(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUpdateMissingSessionFailsWithoutEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	id := uuid.New()

	sub := env.hub.Subscribe(RoomKey(id))
	defer env.hub.Unsubscribe(sub)

	voting := StatusVoting
	_, err := env.coord.UpdateSession(context.Background(), id, SessionUpdate{Status: &voting})
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.Empty(t, drainEvents(sub, 100*time.Millisecond))
}

func TestStatusChangePublishesExactlyOneEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	sub := env.hub.Subscribe(RoomKey(created.ID))
	defer env.hub.Unsubscribe(sub)

	start := time.Now().UTC()
	voting := StatusVoting
	updated, err := env.coord.UpdateSession(ctx, created.ID, SessionUpdate{Status: &voting})
	require.NoError(t, err)
	require.Equal(t, StatusVoting, updated.Status)

	msgs := drainEvents(sub, 100*time.Millisecond)
	require.Len(t, msgs, 1)
	require.Equal(t, EventSessionStatus, msgs[0].Event)

	var payload struct {
		SessionID string `json:"sessionId"`
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	require.Equal(t, created.ID.String(), payload.SessionID)
	require.Equal(t, string(StatusVoting), payload.Status)

	ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	require.NoError(t, err)
	require.False(t, ts.Before(start.Truncate(time.Second)))
}

func TestNonStatusUpdatePublishesNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	sub := env.hub.Subscribe(RoomKey(created.ID))
	defer env.hub.Unsubscribe(sub)

	name := "Union Square"
	updated, err := env.coord.UpdateSession(ctx, created.ID, SessionUpdate{CenterDisplayName: &name})
	require.NoError(t, err)
	require.Equal(t, "Union Square", updated.CenterDisplayName)

	require.Empty(t, drainEvents(sub, 100*time.Millisecond))
}

func TestSettingUnchangedStatusPublishesNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	sub := env.hub.Subscribe(RoomKey(created.ID))
	defer env.hub.Unsubscribe(sub)

	active := StatusActive
	_, err = env.coord.UpdateSession(ctx, created.ID, SessionUpdate{Status: &active})
	require.NoError(t, err)

	require.Empty(t, drainEvents(sub, 100*time.Millisecond))
}

func TestUpdatePreservesUnspecifiedFields(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	center := &GeoPoint{Lat: 40.7359, Lng: -73.9911}
	name := "Union Square"
	_, err = env.coord.UpdateSession(ctx, created.ID, SessionUpdate{CenterPoint: center, CenterDisplayName: &name})
	require.NoError(t, err)

	voting := StatusVoting
	updated, err := env.coord.UpdateSession(ctx, created.ID, SessionUpdate{Status: &voting})
	require.NoError(t, err)

	require.Equal(t, StatusVoting, updated.Status)
	require.Equal(t, center, updated.CenterPoint)
	require.Equal(t, "Union Square", updated.CenterDisplayName)
	require.Equal(t, created.Title, updated.Title)
	require.Equal(t, created.HostName, updated.HostName)
}

func TestCompleteStampsCompletedAtOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	completed, err := env.coord.CompleteSession(ctx, created.ID, "p1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Equal(t, "p1", completed.SelectedPlaceID)
	require.NotNil(t, completed.CompletedAt)

	// A second completion keeps the original stamp.
	again, err := env.coord.CompleteSession(ctx, created.ID, "p1")
	require.NoError(t, err)
	require.True(t, completed.CompletedAt.Equal(*again.CompletedAt))
}

func TestDeleteRemovesSessionAndParticipants(t *testing.T) {
	durable := newMemoryDurable()
	env := newTestEnv(t, durable)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	_, err = env.coord.JoinSession(ctx, created.ID, "Bea", nil)
	require.NoError(t, err)
	_, err = env.coord.JoinSession(ctx, created.ID, "Cal", nil)
	require.NoError(t, err)

	require.NoError(t, env.coord.DeleteSession(ctx, created.ID))

	got, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	keys, err := env.cacheClient.ScanPrefix(ctx, sessionKey(created.ID))
	require.NoError(t, err)
	require.Empty(t, keys)

	participants, err := env.coord.Participants(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, participants)
}

func TestConcurrentDisjointUpdatesLeaveNoCorruptedHybrid(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	voting := StatusVoting
	name := "Union Square"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = env.coord.UpdateSession(ctx, created.ID, SessionUpdate{Status: &voting})
	}()
	go func() {
		defer wg.Done()
		_, _ = env.coord.UpdateSession(ctx, created.ID, SessionUpdate{CenterDisplayName: &name})
	}()
	wg.Wait()

	final, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, final)

	// Last-writer-wins: the final state is one of the valid
	// serializations, never a blend of half-applied fields.
	statusApplied := final.Status == StatusVoting
	nameApplied := final.CenterDisplayName == "Union Square"
	statusUntouched := final.Status == StatusActive
	nameUntouched := final.CenterDisplayName == ""

	require.True(t,
		(statusApplied && nameApplied) ||
			(statusApplied && nameUntouched) ||
			(statusUntouched && nameApplied),
		"final state status=%q center=%q is not a valid serialization", final.Status, final.CenterDisplayName)

	require.Equal(t, "Lunch", final.Title)
	require.Equal(t, "Ann", final.HostName)
}

func TestEndToEndLunchScenario(t *testing.T) {
	env := newTestEnv(t, newMemoryDurable())
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)
	require.Equal(t, StatusActive, created.Status)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), created.ExpiresAt, time.Minute)

	sub := env.hub.Subscribe(RoomKey(created.ID))
	defer env.hub.Unsubscribe(sub)

	voting := StatusVoting
	_, err = env.coord.UpdateSession(ctx, created.ID, SessionUpdate{Status: &voting})
	require.NoError(t, err)

	completed, err := env.coord.CompleteSession(ctx, created.ID, "p1")
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.Equal(t, "p1", completed.SelectedPlaceID)

	msgs := drainEvents(sub, 100*time.Millisecond)
	require.Len(t, msgs, 2)

	var first, second struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &second))
	require.Equal(t, string(StatusVoting), first.Status)
	require.Equal(t, string(StatusCompleted), second.Status)
}

func TestCastVoteTalliesAndBroadcasts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	bea, err := env.coord.JoinSession(ctx, created.ID, "Bea", nil)
	require.NoError(t, err)
	cal, err := env.coord.JoinSession(ctx, created.ID, "Cal", nil)
	require.NoError(t, err)

	sub := env.hub.Subscribe(RoomKey(created.ID))
	defer env.hub.Unsubscribe(sub)

	_, err = env.coord.CastVote(ctx, created.ID, bea.ID, "p1")
	require.NoError(t, err)
	_, err = env.coord.CastVote(ctx, created.ID, cal.ID, "p1")
	require.NoError(t, err)

	tally, err := env.coord.VoteStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, tally.TotalVotes)
	require.Len(t, tally.Results, 1)
	require.Equal(t, "p1", tally.Results[0].PlaceID)
	require.Equal(t, 2, tally.Results[0].VoteCount)
	require.ElementsMatch(t, []string{bea.ID.String(), cal.ID.String()}, tally.Results[0].Voters)

	// Each cast broadcasts vote:cast followed by a tally snapshot.
	msgs := drainEvents(sub, 100*time.Millisecond)
	require.Len(t, msgs, 4)
	require.Equal(t, EventVoteCast, msgs[0].Event)
	require.Equal(t, EventVoteStatus, msgs[1].Event)
	require.Equal(t, EventVoteCast, msgs[2].Event)
	require.Equal(t, EventVoteStatus, msgs[3].Event)
}

func TestRecastReplacesVote(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)
	bea, err := env.coord.JoinSession(ctx, created.ID, "Bea", nil)
	require.NoError(t, err)

	_, err = env.coord.CastVote(ctx, created.ID, bea.ID, "p1")
	require.NoError(t, err)
	_, err = env.coord.CastVote(ctx, created.ID, bea.ID, "p2")
	require.NoError(t, err)

	tally, err := env.coord.VoteStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tally.TotalVotes)
	require.Equal(t, "p2", tally.Results[0].PlaceID)
}

func TestParticipantLocationUpdateBroadcasts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)
	bea, err := env.coord.JoinSession(ctx, created.ID, "Bea", nil)
	require.NoError(t, err)

	sub := env.hub.Subscribe(RoomKey(created.ID))
	defer env.hub.Unsubscribe(sub)

	loc := Location{Lat: 40.73, Lng: -73.99, DisplayName: "14th St"}
	updated, err := env.coord.UpdateParticipantLocation(ctx, created.ID, bea.ID, loc)
	require.NoError(t, err)
	require.Equal(t, &loc, updated.Location)

	msgs := drainEvents(sub, 100*time.Millisecond)
	require.Len(t, msgs, 1)
	require.Equal(t, EventParticipantLocation, msgs[0].Event)

	var payload struct {
		ParticipantID string   `json:"participantId"`
		Location      Location `json:"location"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	require.Equal(t, bea.ID.String(), payload.ParticipantID)
	require.Equal(t, loc, payload.Location)
}

func TestLocationUpdateForUnknownParticipant(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	_, err = env.coord.UpdateParticipantLocation(ctx, created.ID, uuid.New(), Location{Lat: 1, Lng: 2})
	require.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestCacheEntryExpiryFallsBackToDurable(t *testing.T) {
	durable := newMemoryDurable()
	env := newTestEnv(t, durable)
	ctx := context.Background()

	created, err := env.coord.CreateSession(ctx, "Lunch", "Ann")
	require.NoError(t, err)

	// TTL lapse in Redis while the durable row is still valid: the
	// miniredis clock jumps past the 24h TTL, the durable store checks
	// against the real clock.
	env.mr.FastForward(25 * time.Hour)

	got, err := env.coord.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, created.ID, got.ID)
}
