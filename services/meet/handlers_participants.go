package meet

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *API) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	var req struct {
		Name     string    `json:"name"`
		Location *Location `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	p, err := a.coordinator.JoinSession(r.Context(), sessionID, req.Name, req.Location)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusCreated, map[string]any{"participant": p})
	}
}

func (a *API) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	participants, err := a.coordinator.Participants(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

func (a *API) handleParticipantLocation(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}
	participantID, err := uuid.Parse(chi.URLParam(r, "participantID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid participant id"))
		return
	}

	var loc Location
	if err := decodeJSON(r, &loc); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	p, err := a.coordinator.UpdateParticipantLocation(r.Context(), sessionID, participantID, loc)
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrParticipantNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"participant": p})
	}
}
