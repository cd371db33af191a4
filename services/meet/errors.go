package meet

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrSessionNotFound marks the expected, non-retryable outcome of
// operating on a session that does not exist (or has expired). Callers
// translate it to a 404.
var ErrSessionNotFound = errors.New("session not found")

// ErrParticipantNotFound is the participant-scoped analogue of
// ErrSessionNotFound.
var ErrParticipantNotFound = errors.New("participant not found")

// CreateError reports a failed session creation. It only arises from the
// mandatory cache write; a failed durable write alone never produces one.
type CreateError struct {
	Err error
}

func (e *CreateError) Error() string { return fmt.Sprintf("create session: %v", e.Err) }
func (e *CreateError) Unwrap() error { return e.Err }

// GetError reports an unexpected fault while reading a session. A plain
// miss is not a GetError.
type GetError struct {
	ID  uuid.UUID
	Err error
}

func (e *GetError) Error() string { return fmt.Sprintf("get session %s: %v", e.ID, e.Err) }
func (e *GetError) Unwrap() error { return e.Err }

// UpdateError reports a failed session mutation on the mandatory cache
// path.
type UpdateError struct {
	ID  uuid.UUID
	Err error
}

func (e *UpdateError) Error() string { return fmt.Sprintf("update session %s: %v", e.ID, e.Err) }
func (e *UpdateError) Unwrap() error { return e.Err }

// DeleteError reports a failed session removal.
type DeleteError struct {
	ID  uuid.UUID
	Err error
}

func (e *DeleteError) Error() string { return fmt.Sprintf("delete session %s: %v", e.ID, e.Err) }
func (e *DeleteError) Unwrap() error { return e.Err }
