package meet

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle phase of a session. Transitions are driven by
// callers; the coordinator persists whatever status it is given and does
// not enforce a state machine.
type Status string

const (
	StatusActive    Status = "active"
	StatusVoting    Status = "voting"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a participant position, optionally labelled with a
// human-readable name.
type Location struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"displayName,omitempty"`
}

// Session is the shared state of one meeting-coordination run. The cache
// copy is authoritative whenever present and unexpired; the durable row
// only backs cache misses until ExpiresAt.
type Session struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	HostName          string     `json:"hostName"`
	Status            Status     `json:"status"`
	CenterPoint       *GeoPoint  `json:"centerPoint,omitempty"`
	CenterDisplayName string     `json:"centerDisplayName,omitempty"`
	SelectedPlaceID   string     `json:"selectedPlaceId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// Expired reports whether the session is logically gone even if a store
// still holds a copy.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionUpdate is a partial update. Nil fields leave the corresponding
// session field untouched; there is no way to clear a field by omission.
type SessionUpdate struct {
	Status            *Status   `json:"status,omitempty"`
	CenterPoint       *GeoPoint `json:"centerPoint,omitempty"`
	CenterDisplayName *string   `json:"centerDisplayName,omitempty"`
	SelectedPlaceID   *string   `json:"selectedPlaceId,omitempty"`
}

// Participant is a person attached to a session.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	Name      string    `json:"name"`
	Location  *Location `json:"location,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Vote records one participant's current choice of place. A participant
// has at most one standing vote per session; casting again replaces it.
type Vote struct {
	SessionID     uuid.UUID `json:"sessionId"`
	ParticipantID uuid.UUID `json:"participantId"`
	PlaceID       string    `json:"placeId"`
	CastAt        time.Time `json:"castAt"`
}

// VoteResult aggregates the votes for one place.
type VoteResult struct {
	PlaceID   string   `json:"placeId"`
	VoteCount int      `json:"voteCount"`
	Voters    []string `json:"voters"`
}

// VoteTally is the per-session vote snapshot broadcast to subscribers.
type VoteTally struct {
	SessionID  string       `json:"sessionId"`
	TotalVotes int          `json:"totalVotes"`
	Results    []VoteResult `json:"results"`
}
