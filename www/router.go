package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetcore/engine"
	"fleetcore/fleetstate"
	"fleetcore/messaging"
)

// Options carries the optional collaborators of the HTTP surface.
type Options struct {
	// State serves robot reads from the Redis cache when set.
	State     *fleetstate.Manager
	Messaging *messaging.Client
}

type Handlers struct {
	engine    *engine.Engine
	state     *fleetstate.Manager
	msgClient *messaging.Client
	sessions  *sessions.CookieStore
	eventHub  *EventHub
}

// NewRouter builds the HTTP surface over eng. The returned func detaches the
// SSE hub from the engine and must be called on shutdown.
func NewRouter(eng *engine.Engine, opts Options) (http.Handler, func()) {
	cfg := eng.AppConfig()
	cfg.RLock()
	secret := cfg.Web.SessionSecret
	cfg.RUnlock()

	h := &Handlers{
		engine:    eng,
		state:     opts.State,
		msgClient: opts.Messaging,
		sessions:  newSessionStore(secret),
		eventHub:  NewEventHub(),
	}
	h.ensureDefaultAdmin()

	h.eventHub.Start()
	subs := h.eventHub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, middleware.Compress(5))

	r.Get("/events", h.eventHub.SSEHandler)
	r.Handle("/metrics", promhttp.HandlerFor(eng.Registry(), promhttp.HandlerOpts{}))
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Route("/api", h.mountAPI)

	return r, func() {
		for _, id := range subs {
			eng.Events.Unsubscribe(id)
		}
		h.eventHub.Stop()
	}
}

// mountAPI registers the JSON API. Reads are open; anything that changes the
// fleet or the simulation needs a session.
func (h *Handlers) mountAPI(r chi.Router) {
	r.Get("/health", h.apiHealthCheck)
	r.Get("/snapshot", h.apiSnapshot)
	r.Get("/graph", h.apiGraph)
	r.Get("/path", h.apiPath)
	r.Get("/warnings", h.apiWarnings)
	r.Get("/reservations", h.apiReservations)
	r.Get("/tasks", h.apiListTasks)
	r.Get("/events", h.apiListEvents)

	r.Route("/robots", func(r chi.Router) {
		r.Get("/", h.apiListRobots)
		r.With(h.requireAuth).Post("/", h.apiSpawnRobot)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.apiGetRobot)
			r.Get("/tasks", h.apiRobotTasks)
			r.Get("/events", h.apiRobotEvents)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/assign", h.apiAssignTask)
				r.Post("/select", h.apiSelectRobot)
				r.Post("/replan", h.apiReplanRobot)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/sim/start", h.apiSimStart)
		r.Post("/sim/stop", h.apiSimStop)
		r.Post("/sim/step", h.apiSimStep)
		r.Post("/admin/password", h.apiChangePassword)
	})
}
