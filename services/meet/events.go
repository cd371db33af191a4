package meet

import (
	"log"
	"time"

	"github.com/google/uuid"

	"meetpoint/pkg/realtime"
)

// Event kinds delivered to room subscribers.
const (
	EventSessionStatus       = "session:status"
	EventVoteCast            = "vote:cast"
	EventVoteStatus          = "vote:status"
	EventParticipantLocation = "participant:location"
)

// RoomKey derives the fan-out room for a session. It is a pure function
// of the id so every process addresses the same room.
func RoomKey(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// Emitter maps domain transitions to fan-out messages. It holds no state
// of its own. Emission is fire-and-forget: publish failures are logged
// and swallowed, and a nil emitter or unbound hub downgrades every emit
// to a warning.
type Emitter struct {
	hub    *realtime.Hub
	logger *log.Logger
	now    func() time.Time
}

// NewEmitter creates an Emitter publishing through hub.
func NewEmitter(hub *realtime.Hub, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.Default()
	}
	return &Emitter{hub: hub, logger: logger, now: time.Now}
}

func (e *Emitter) emit(room, event string, payload any) {
	if e == nil || e.hub == nil {
		logger := log.Default()
		if e != nil && e.logger != nil {
			logger = e.logger
		}
		logger.Printf("WARN events: fan-out layer not initialized, dropping %s", event)
		return
	}
	if err := e.hub.Publish(room, event, payload); err != nil {
		e.logger.Printf("WARN events: publish %s to %s failed: %v", event, room, err)
		return
	}
	eventsPublished.WithLabelValues(event).Inc()
}

// SessionStatusChanged announces a status transition to the session's
// room.
func (e *Emitter) SessionStatusChanged(sessionID uuid.UUID, status Status) {
	e.emit(RoomKey(sessionID), EventSessionStatus, map[string]any{
		"sessionId": sessionID.String(),
		"status":    status,
		"timestamp": e.timestamp(),
	})
}

// VoteCast announces a single vote.
func (e *Emitter) VoteCast(v *Vote) {
	e.emit(RoomKey(v.SessionID), EventVoteCast, map[string]any{
		"sessionId":     v.SessionID.String(),
		"participantId": v.ParticipantID.String(),
		"placeId":       v.PlaceID,
		"timestamp":     e.timestamp(),
	})
}

// VoteStatus broadcasts the current tally snapshot. The snapshot carries
// no timestamp; subscribers replace their previous copy wholesale.
func (e *Emitter) VoteStatus(tally VoteTally) {
	sessionID, err := uuid.Parse(tally.SessionID)
	if err != nil {
		log.Default().Printf("WARN events: invalid session id in tally: %v", err)
		return
	}
	e.emit(RoomKey(sessionID), EventVoteStatus, tally)
}

// ParticipantLocation announces a participant position update.
func (e *Emitter) ParticipantLocation(sessionID, participantID uuid.UUID, loc Location) {
	e.emit(RoomKey(sessionID), EventParticipantLocation, map[string]any{
		"sessionId":     sessionID.String(),
		"participantId": participantID.String(),
		"location":      loc,
		"timestamp":     e.timestamp(),
	})
}

func (e *Emitter) timestamp() string {
	if e == nil || e.now == nil {
		return time.Now().UTC().Format(time.RFC3339Nano)
	}
	return e.now().UTC().Format(time.RFC3339Nano)
}
