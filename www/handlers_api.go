package www

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleetcore/navgraph"
	"fleetcore/robot"
	"fleetcore/store"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	cacheOK := false
	if h.state != nil {
		cacheOK = h.state.Healthy()
	}
	messagingOK := false
	if h.msgClient != nil {
		messagingOK = h.msgClient.IsConnected()
	}
	database := ""
	if db := h.engine.DB(); db != nil {
		database = db.Driver()
	}
	h.jsonOK(w, map[string]any{
		"status":    "ok",
		"tick":      h.engine.CurrentTick(),
		"running":   h.engine.Running(),
		"cache":     cacheOK,
		"messaging": messagingOK,
		"database":  database,
	})
}

func (h *Handlers) apiSnapshot(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Snapshot())
}

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	var robots []robot.View
	if h.state != nil {
		robots = h.state.GetAllRobots()
	} else {
		robots = h.engine.RobotViews()
	}
	if robots == nil {
		robots = []robot.View{}
	}
	h.jsonOK(w, robots)
}

func (h *Handlers) apiGetRobot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.robotID(w, r)
	if !ok {
		return
	}
	if h.state != nil {
		if v, found := h.state.GetRobot(id); found {
			h.jsonOK(w, v)
			return
		}
	} else if v, found := h.engine.Robot(id); found {
		h.jsonOK(w, v)
		return
	}
	h.jsonError(w, "robot not found", http.StatusNotFound)
}

func (h *Handlers) apiGraph(w http.ResponseWriter, r *http.Request) {
	g := h.engine.Graph()
	h.jsonOK(w, map[string]any{
		"vertices": g.Vertices(),
		"lanes":    g.Lanes(),
	})
}

// apiPath previews the route between two vertices without touching any robot.
func (h *Handlers) apiPath(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.Atoi(r.URL.Query().Get("from"))
	to, err2 := strconv.Atoi(r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil {
		h.jsonError(w, "from and to must be vertex ids", http.StatusBadRequest)
		return
	}
	g := h.engine.Graph()
	path, err := g.FindPath(navgraph.VertexID(from), navgraph.VertexID(to))
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	h.jsonOK(w, map[string]any{
		"path":   path,
		"length": g.PathLength(path),
	})
}

func (h *Handlers) apiWarnings(w http.ResponseWriter, r *http.Request) {
	var warnings []string
	if h.state != nil {
		warnings = h.state.GetWarnings()
	} else {
		warnings = h.engine.Warnings()
	}
	if warnings == nil {
		warnings = []string{}
	}
	h.jsonOK(w, warnings)
}

func (h *Handlers) apiReservations(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Snapshot().Reservations)
}

func (h *Handlers) apiListTasks(w http.ResponseWriter, r *http.Request) {
	db, ok := h.journal(w)
	if !ok {
		return
	}
	tasks, err := db.ListTasks(parseLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	h.jsonOK(w, tasks)
}

func (h *Handlers) apiRobotTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.robotID(w, r)
	if !ok {
		return
	}
	db, ok := h.journal(w)
	if !ok {
		return
	}
	tasks, err := db.ListRobotTasks(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	h.jsonOK(w, tasks)
}

func (h *Handlers) apiListEvents(w http.ResponseWriter, r *http.Request) {
	db, ok := h.journal(w)
	if !ok {
		return
	}
	events, err := db.ListEvents(parseLimit(r, 200))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*store.FleetEvent{}
	}
	h.jsonOK(w, events)
}

func (h *Handlers) apiRobotEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.robotID(w, r)
	if !ok {
		return
	}
	db, ok := h.journal(w)
	if !ok {
		return
	}
	events, err := db.ListRobotEvents(id, parseLimit(r, 200))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*store.FleetEvent{}
	}
	h.jsonOK(w, events)
}

func (h *Handlers) journal(w http.ResponseWriter) (*store.DB, bool) {
	db := h.engine.DB()
	if db == nil {
		h.jsonError(w, "journal not configured", http.StatusServiceUnavailable)
		return nil, false
	}
	return db, true
}

func (h *Handlers) robotID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "invalid robot id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonStatus writes data with a non-200 status.
func (h *Handlers) jsonStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
