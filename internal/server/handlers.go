package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"storewatch/internal/metrics"
	"storewatch/internal/monitor"
)

// ack is the ingestion response. total_stores_monitored exists purely for
// client observability.
type ack struct {
	Status               string `json:"status"`
	TotalStoresMonitored int    `json:"total_stores_monitored"`
}

// handleHeartbeat serves both the live and the buffered-replay path. The two
// are semantically identical; buffered arrivals are logged at debug and
// counted separately.
func (s *Server) handleHeartbeat(buffered bool) httprouter.Handle {
	path := "live"
	if buffered {
		path = "buffered"
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var hb monitor.Heartbeat
		if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
			s.rejected.Add(1)
			metrics.HeartbeatsRejected.Inc()
			writeError(w, http.StatusBadRequest, "malformed heartbeat: "+err.Error())
			return
		}
		if err := hb.Validate(); err != nil {
			s.rejected.Add(1)
			metrics.HeartbeatsRejected.Inc()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		receivedAt := s.clock.Now()
		transition, fired := s.registry.Observe(hb, receivedAt)
		if fired {
			s.dispatcher.Dispatch(r.Context(), transition)
		}

		// Persistence failure must not fail the ack: the heartbeat already
		// counted for liveness, and a 5xx would make the client re-buffer a
		// delivered heartbeat.
		if s.store != nil {
			snap, _ := s.registry.Get(hb.StoreID)
			if err := s.store.SaveHeartbeat(r.Context(), hb, receivedAt, snap.Status); err != nil {
				metrics.PersistFailures.Inc()
				logPersistFailure(hb.StoreID, err)
			}
		}

		s.accepted.Add(1)
		metrics.HeartbeatsTotal.WithLabelValues(path).Inc()
		writeJSON(w, http.StatusOK, ack{Status: "ok", TotalStoresMonitored: s.registry.Len()})
	}
}

type dashboardSummary struct {
	Total       int       `json:"total"`
	Online      int       `json:"online"`
	Offline     int       `json:"offline"`
	Unknown     int       `json:"unknown"`
	LastUpdated time.Time `json:"last_updated"`
}

type dashboardResponse struct {
	Stores  []monitor.StoreSnapshot `json:"stores"`
	Summary dashboardSummary        `json:"summary"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stores := s.registry.Snapshot()
	online, offline, unknown := s.registry.Counts()
	writeJSON(w, http.StatusOK, dashboardResponse{
		Stores: stores,
		Summary: dashboardSummary{
			Total:       len(stores),
			Online:      online,
			Offline:     offline,
			Unknown:     unknown,
			LastUpdated: s.clock.Now(),
		},
	})
}

func (s *Server) handleStore(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	snap, ok := s.registry.Get(ps.ByName("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown store")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		monitor.StoreSnapshot
		IsOnline bool `json:"is_online"`
	}{snap, snap.Status == monitor.StatusOnline})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "alert log unavailable")
		return
	}
	alerts, err := s.store.RecentAlerts(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query alerts: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": emptyIfNil(alerts)})
}

func (s *Server) handleStoreAlerts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "alert log unavailable")
		return
	}
	alerts, err := s.store.StoreAlerts(r.Context(), ps.ByName("id"), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query alerts: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": emptyIfNil(alerts)})
}

// handleTriggerSweep runs a hydration plus one sweep synchronously. Admin
// only; this and startup are the only places hydration happens.
func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper not running")
		return
	}
	hydrated, err := s.sweeper.Hydrate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hydrate: "+err.Error())
		return
	}
	transitions := s.sweeper.SweepOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"hydrated": hydrated, "transitions": transitions})
}

func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	snap, ok := s.registry.Get(id)
	if !ok {
		snap = monitor.StoreSnapshot{StoreID: id, StoreName: id, Status: monitor.StatusUnknown, StatusText: "unknown"}
	}
	s.dispatcher.DispatchTest(r.Context(), snap)
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued", "store_id": id})
}

func (s *Server) handleRecipientSnapshot(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.recipients == nil {
		writeJSON(w, http.StatusOK, map[string][]string{})
		return
	}
	writeJSON(w, http.StatusOK, s.recipients.Snapshot())
}

func (s *Server) handleRecipientReload(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.recipients == nil {
		writeError(w, http.StatusServiceUnavailable, "no recipients file configured")
		return
	}
	if err := s.recipients.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "reload recipients: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	online, offline, unknown := s.registry.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"uptime_seconds":      int(s.clock.Now().Sub(s.startedAt).Seconds()),
		"heartbeats_accepted": s.accepted.Load(),
		"heartbeats_rejected": s.rejected.Load(),
		"stores": map[string]int{
			"online": online, "offline": offline, "unknown": unknown,
		},
	})
}

func limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 50
}

func logPersistFailure(storeID string, err error) {
	slog.Error("persist heartbeat", "store", storeID, "err", err)
}

func emptyIfNil(alerts []monitor.Alert) []monitor.Alert {
	if alerts == nil {
		return []monitor.Alert{}
	}
	return alerts
}
