package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/models/dto/request"
	"tcgsync_api/internal/tcg/business/models/dto/response"
	syncsvc "tcgsync_api/internal/tcg/business/services/sync"
	"tcgsync_api/internal/tcg/storage"
	"tcgsync_api/pkg/logger"
)

var validOps = map[string]bool{
	models.OpGroups:     true,
	models.OpProducts:   true,
	models.OpPrices:     true,
	models.WildcardOpID: true,
}

// ControlHandler serves cancellation, status observation and stuck-state
// reset.
type ControlHandler struct {
	signals *storage.SignalRepository
	tracker *syncsvc.Tracker
	lg      logger.Logger
}

func NewControlHandler(signals *storage.SignalRepository, tracker *syncsvc.Tracker, lg logger.Logger) *ControlHandler {
	return &ControlHandler{signals: signals, tracker: tracker, lg: lg.WithPrefix("[api] ")}
}

func (h *ControlHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request body", http.StatusBadRequest)
		return
	}
	if !validOps[req.OpType] {
		writeJSON(w, http.StatusBadRequest, response.SyncResponse{Error: "opType must be groups, products, prices or *"})
		return
	}
	if req.OpID == "" {
		req.OpID = models.WildcardOpID
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}

	if err := h.signals.Set(r.Context(), req.OpType, req.OpID, true, req.CreatedBy); err != nil {
		h.lg.Warn("cancel %s/%s: %v", req.OpType, req.OpID, err)
		writeJSON(w, http.StatusInternalServerError, response.SyncResponse{Error: err.Error()})
		return
	}
	h.lg.Log("cancel signal raised for %s/%s by %s", req.OpType, req.OpID, req.CreatedBy)
	writeJSON(w, http.StatusOK, response.SyncResponse{Success: true})
}

// SignalsHandler lists the stored control signals so operators can see which
// cancel flags are still in force before triggering new runs.
func (h *ControlHandler) SignalsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	signals, err := h.signals.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response.SyncResponse{Error: err.Error()})
		return
	}
	if signals == nil {
		signals = []models.ControlSignal{}
	}
	writeJSON(w, http.StatusOK, response.SignalsResponse{Signals: signals})
}

func (h *ControlHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entityType := r.URL.Query().Get("entityType")
	entityID := r.URL.Query().Get("entityId")

	if entityID != "" {
		status, err := h.tracker.Observe(r.Context(), entityType, entityID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, response.SyncResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, response.StatusResponse{Statuses: []models.SyncStatus{status}})
		return
	}

	statuses, err := h.tracker.ObserveAll(r.Context(), entityType)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response.SyncResponse{Error: err.Error()})
		return
	}
	if statuses == nil {
		statuses = []models.SyncStatus{}
	}
	writeJSON(w, http.StatusOK, response.StatusResponse{Statuses: statuses})
}

func (h *ControlHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request body", http.StatusBadRequest)
		return
	}
	if req.EntityType == "" || req.EntityID == "" {
		writeJSON(w, http.StatusBadRequest, response.SyncResponse{Error: "entityType and entityId are required"})
		return
	}
	to := models.SyncState(req.To)
	if to == "" {
		to = models.StateError
	}
	if to != models.StateError && to != models.StateIdle {
		writeJSON(w, http.StatusBadRequest, response.SyncResponse{Error: "to must be error or idle"})
		return
	}

	if err := h.tracker.Reset(r.Context(), req.EntityType, req.EntityID, to); err != nil {
		// Only rows in syncing state may be reset; anything else is a
		// conflict, not a server failure.
		writeJSON(w, http.StatusConflict, response.SyncResponse{Error: err.Error()})
		return
	}
	h.lg.Log("status %s/%s manually reset to %s", req.EntityType, req.EntityID, to)
	writeJSON(w, http.StatusOK, response.SyncResponse{Success: true})
}

// HealthHandler answers liveness probes with a database ping.
type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
