package meet

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"meetpoint/pkg/db"
)

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		HostName string `json:"hostName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.HostName = strings.TrimSpace(req.HostName)
	if req.Title == "" || req.HostName == "" {
		respondError(w, http.StatusBadRequest, errors.New("title and hostName are required"))
		return
	}

	s, err := a.coordinator.CreateSession(r.Context(), req.Title, req.HostName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"session": s})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	s, err := a.coordinator.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if s == nil {
		respondError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (a *API) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	var upd SessionUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	s, err := a.coordinator.UpdateSession(r.Context(), id, upd)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"session": s})
	}
}

func (a *API) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	var req struct {
		SelectedPlaceID string `json:"selectedPlaceId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	s, err := a.coordinator.CompleteSession(r.Context(), id, req.SelectedPlaceID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"session": s})
	}
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	if err := a.coordinator.DeleteSession(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type sessionRow struct {
	ID        uuid.UUID `db:"id"`
	Title     string    `db:"title"`
	HostName  string    `db:"host_name"`
	Status    string    `db:"status"`
	CreatedAt string    `db:"created_at"`
	ExpiresAt string    `db:"expires_at"`
}

// handleListSessions is an operator surface reading straight from the
// durable store; the cache cannot enumerate sessions cheaply.
func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if a.store.DB == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("durable store not configured"))
		return
	}

	var rows []sessionRow
	err := db.Select(r.Context(), a.store.DB, &rows,
		`SELECT id, title, host_name, status, created_at::text, expires_at::text
		 FROM sessions
		 WHERE expires_at > now()
		 ORDER BY created_at DESC
		 LIMIT 200`)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": rows})
}
