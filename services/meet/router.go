package meet

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// API wires the coordinator, emitter, and configuration for HTTP
// handlers.
type API struct {
	store       *Store
	coordinator *Coordinator
	logger      *log.Logger
}

// New initialises the meet API layer.
func New(store *Store, logger *log.Logger, cfg CoordinatorConfig) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.Cache == nil {
		return nil, errors.New("store cache is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	var durable DurableStore
	if store.ORM != nil {
		durable = NewDurableStore(store.ORM)
	}

	emitter := NewEmitter(store.Hub, logger)
	coordinator, err := NewCoordinator(store.Cache, durable, emitter, logger, cfg)
	if err != nil {
		return nil, err
	}

	return &API{
		store:       store,
		coordinator: coordinator,
		logger:      logger,
	}, nil
}

// Coordinator exposes the session coordinator, e.g. for the CLI and
// tests.
func (a *API) Coordinator() *Coordinator {
	return a.coordinator
}

// Routes constructs the chi router containing all meet endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.handleCreateSession)
		r.Get("/", a.handleListSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetSession)
			r.Patch("/", a.handleUpdateSession)
			r.Post("/complete", a.handleCompleteSession)
			r.Delete("/", a.handleDeleteSession)

			r.Post("/participants", a.handleJoinSession)
			r.Get("/participants", a.handleListParticipants)
			r.Patch("/participants/{participantID}/location", a.handleParticipantLocation)

			r.Post("/votes", a.handleCastVote)
			r.Get("/votes", a.handleVoteStatus)
		})
	})

	r.Get("/ws/sessions/{id}", a.handleSessionSocket)

	return r, nil
}
