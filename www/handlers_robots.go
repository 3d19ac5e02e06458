package www

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fleetcore/engine"
	"fleetcore/fleet"
	"fleetcore/navgraph"
	"fleetcore/reservation"
)

// statusFor maps coordination errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fleet.ErrUnknownRobot):
		return http.StatusNotFound
	case errors.Is(err, navgraph.ErrOutOfRange), errors.Is(err, engine.ErrNoDestination):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, navgraph.ErrNoPath):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) apiSpawnRobot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vertex navgraph.VertexID `json:"vertex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	view, err := h.engine.Spawn(req.Vertex)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	log.Printf("www: %s spawned robot %d at vertex %d", getUsername(r), view.ID, req.Vertex)
	h.jsonStatus(w, view, http.StatusCreated)
}

// apiAssignTask records the task even when no route exists; the stalled
// robot is returned alongside the error.
func (h *Handlers) apiAssignTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.robotID(w, r)
	if !ok {
		return
	}
	var req struct {
		Dest navgraph.VertexID `json:"dest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	view, err := h.engine.AssignTask(id, req.Dest)
	if err != nil {
		if errors.Is(err, fleet.ErrUnknownRobot) {
			h.jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.jsonStatus(w, map[string]any{"error": err.Error(), "robot": view}, statusFor(err))
		return
	}
	h.jsonOK(w, view)
}

func (h *Handlers) apiSelectRobot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.robotID(w, r)
	if !ok {
		return
	}
	var req struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	view, err := h.engine.Select(id, req.Selected)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	h.jsonOK(w, view)
}

func (h *Handlers) apiReplanRobot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.robotID(w, r)
	if !ok {
		return
	}
	view, err := h.engine.Replan(id)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	h.jsonOK(w, view)
}

func (h *Handlers) apiSimStart(w http.ResponseWriter, r *http.Request) {
	h.engine.Start()
	h.jsonOK(w, map[string]any{"running": true, "tick": h.engine.CurrentTick()})
}

func (h *Handlers) apiSimStop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	h.jsonOK(w, map[string]any{"running": false, "tick": h.engine.CurrentTick()})
}

// apiSimStep runs one tick by hand; refused while the loop is running.
func (h *Handlers) apiSimStep(w http.ResponseWriter, r *http.Request) {
	if h.engine.Running() {
		h.jsonError(w, "simulation is running", http.StatusConflict)
		return
	}
	h.jsonOK(w, h.engine.Tick())
}

func (h *Handlers) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	db, ok := h.journal(w)
	if !ok {
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := db.UpdateAdminPassword(getUsername(r), hash); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
