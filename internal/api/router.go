package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/monitor"
)

// API exposes the cross-context message protocol to out-of-process clients
// (players, stats UIs). Settings and stats endpoints are thin translations to
// bus requests; the tab endpoints drive the playback-monitor manager, with a
// remoteTab per attached tab bridging the client's position reports to the
// monitor's player interfaces.
type API struct {
	bus     *bus.Bus
	manager *monitor.Manager
	logger  logger.Logger

	tabsMu sync.Mutex
	tabs   map[string]*remoteTab
}

// New builds the HTTP router.
func New(b *bus.Bus, mgr *monitor.Manager, log logger.Logger) http.Handler {
	a := &API{bus: b, manager: mgr, logger: log, tabs: make(map[string]*remoteTab)}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/segments/fetch", a.handleFetchSegments)
		r.Post("/skips", a.handleSkipOccurred)
		r.Get("/stats", a.handleGetStats)
		r.Delete("/stats", a.handleResetStats)
		r.Put("/enabled", a.handleSetEnabled)
		r.Put("/categories", a.handleUpdateCategories)
		r.Put("/tabs/{tabID}", a.handleAttachTab)
		r.Delete("/tabs/{tabID}", a.handleDetachTab)
		r.Post("/tabs/{tabID}/position", a.handleReportPosition)
	})

	return r
}

func (a *API) handleFetchSegments(w http.ResponseWriter, r *http.Request) {
	var req bus.FetchSegmentsRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.forward(w, r, bus.ActionFetchSegments, req)
}

func (a *API) handleSkipOccurred(w http.ResponseWriter, r *http.Request) {
	var req bus.SkipOccurredRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.forward(w, r, bus.ActionSkipOccurred, req)
}

func (a *API) handleGetStats(w http.ResponseWriter, r *http.Request) {
	req := bus.GetStatsRequest{TabID: r.URL.Query().Get("tab")}
	a.forward(w, r, bus.ActionGetStats, req)
}

func (a *API) handleResetStats(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, bus.ActionResetStats, struct{}{})
}

func (a *API) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req bus.SetEnabledRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.forward(w, r, bus.ActionSetEnabled, req)
}

func (a *API) handleUpdateCategories(w http.ResponseWriter, r *http.Request) {
	var req bus.UpdateCategoriesRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Categories == nil {
		a.writeError(w, http.StatusBadRequest, "categories map is required")
		return
	}
	a.forward(w, r, bus.ActionUpdateCategories, req)
}

// decode unmarshals the request body into dst, answering 400 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// forward issues the bus request and writes its response as JSON.
func (a *API) forward(w http.ResponseWriter, r *http.Request, action bus.Action, payload interface{}) {
	resp, err := a.bus.Request(r.Context(), action, payload)
	if err != nil {
		a.logger.Errorf("Bus request %q failed: %v", action, err)
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Errorf("Failed to encode response: %v", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}
