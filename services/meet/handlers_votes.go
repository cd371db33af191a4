package meet

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *API) handleCastVote(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	var req struct {
		ParticipantID string `json:"participantId"`
		PlaceID       string `json:"placeId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid participant id"))
		return
	}
	req.PlaceID = strings.TrimSpace(req.PlaceID)
	if req.PlaceID == "" {
		respondError(w, http.StatusBadRequest, errors.New("placeId is required"))
		return
	}

	v, err := a.coordinator.CastVote(r.Context(), sessionID, participantID, req.PlaceID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusCreated, map[string]any{"vote": v})
	}
}

func (a *API) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	tally, err := a.coordinator.VoteStatus(r.Context(), sessionID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, tally)
	}
}
