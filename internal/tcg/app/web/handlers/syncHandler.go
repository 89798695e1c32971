package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/models/dto/request"
	"tcgsync_api/internal/tcg/business/models/dto/response"
	syncsvc "tcgsync_api/internal/tcg/business/services/sync"
	"tcgsync_api/internal/tcg/storage"
	"tcgsync_api/pkg/logger"
)

// SyncHandler exposes the sync trigger endpoints. One handler serves all
// three operations; the route decides which source runs.
type SyncHandler struct {
	orchestrator *syncsvc.Orchestrator
	sources      map[string]syncsvc.Source
	groups       *storage.GroupRepository
	lg           logger.Logger
}

func NewSyncHandler(orchestrator *syncsvc.Orchestrator, sources []syncsvc.Source, groups *storage.GroupRepository, lg logger.Logger) *SyncHandler {
	byOp := make(map[string]syncsvc.Source, len(sources))
	for _, src := range sources {
		byOp[src.Op()] = src
	}
	return &SyncHandler{
		orchestrator: orchestrator,
		sources:      byOp,
		groups:       groups,
		lg:           lg.WithPrefix("[api] "),
	}
}

func (h *SyncHandler) SyncGroupsHandler(w http.ResponseWriter, r *http.Request) {
	h.serveSync(w, r, models.OpGroups)
}

func (h *SyncHandler) SyncProductsHandler(w http.ResponseWriter, r *http.Request) {
	h.serveSync(w, r, models.OpProducts)
}

func (h *SyncHandler) SyncPricesHandler(w http.ResponseWriter, r *http.Request) {
	h.serveSync(w, r, models.OpPrices)
}

func (h *SyncHandler) serveSync(w http.ResponseWriter, r *http.Request, op string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request body", http.StatusBadRequest)
		return
	}
	if req.CategoryID == "" {
		writeJSON(w, http.StatusBadRequest, response.SyncResponse{Error: "categoryId is required"})
		return
	}

	src := h.sources[op]
	targets, err := h.resolveTargets(r, op, req)
	if err != nil {
		h.lg.Warn("%s: target resolution failed: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, response.SyncResponse{Error: err.Error()})
		return
	}
	if len(targets) == 0 {
		writeJSON(w, http.StatusOK, response.SyncResponse{
			Success: true,
			Summary: &models.SyncResult{},
		})
		return
	}

	opts := syncsvc.Options{
		DryRun: req.DryRun,
		Paging: syncsvc.PagingHints{Page: req.Page, PageSize: req.PageSize},
	}
	if req.Background {
		opID := h.orchestrator.RunBackground(src, targets, opts)
		writeJSON(w, http.StatusAccepted, response.SyncResponse{
			Success:     true,
			Started:     true,
			OperationID: opID,
		})
		return
	}

	started := time.Now()
	result := h.orchestrator.Run(r.Context(), src, targets, opts)
	h.lg.Log("%s run over %d target(s) served in %v", op, len(targets), time.Since(started).Round(time.Millisecond))
	writeJSON(w, http.StatusOK, response.SyncResponse{
		Success:     result.Errors == 0,
		OperationID: result.OperationID,
		Summary:     &result,
	})
}

// resolveTargets turns a request into the targets the run will cover. Groups
// runs target the category itself. Products and prices runs target the
// category's stored groups; when none are stored yet, a groups run is made
// first so a fresh database does not need a manual bootstrap step.
func (h *SyncHandler) resolveTargets(r *http.Request, op string, req request.SyncRequest) ([]models.SyncTarget, error) {
	if op == models.OpGroups {
		return []models.SyncTarget{{
			EntityType: models.OpGroups,
			ExternalID: req.CategoryID,
			Name:       "category " + req.CategoryID,
			CategoryID: req.CategoryID,
		}}, nil
	}

	ctx := r.Context()
	targets, err := h.groups.ListTargets(ctx, req.CategoryID, req.NameFilter)
	if err != nil {
		return nil, fmt.Errorf("listing groups of category %s: %w", req.CategoryID, err)
	}

	if len(targets) == 0 && len(req.GroupIDs) == 0 && req.NameFilter == "" {
		h.lg.Log("no stored groups for category %s, bootstrapping group catalog", req.CategoryID)
		bootstrap := h.orchestrator.Run(ctx, h.sources[models.OpGroups], []models.SyncTarget{{
			EntityType: models.OpGroups,
			ExternalID: req.CategoryID,
			Name:       "category " + req.CategoryID,
			CategoryID: req.CategoryID,
		}}, syncsvc.Options{})
		if bootstrap.Errors > 0 {
			return nil, fmt.Errorf("group bootstrap for category %s failed", req.CategoryID)
		}
		targets, err = h.groups.ListTargets(ctx, req.CategoryID, "")
		if err != nil {
			return nil, fmt.Errorf("listing groups of category %s: %w", req.CategoryID, err)
		}
	}

	if len(req.GroupIDs) > 0 {
		targets = filterByGroupIDs(targets, req.GroupIDs, req.CategoryID)
	}
	for i := range targets {
		targets[i].EntityType = op
		if op == models.OpPrices {
			// Expected counts describe the provider's product totals; they
			// say nothing about how many price rows a feed carries.
			targets[i].Expected = 0
		}
	}
	return targets, nil
}

// filterByGroupIDs narrows stored targets to the requested ids. Ids that are
// not stored yet still become targets so an explicit request is never
// silently dropped.
func filterByGroupIDs(stored []models.SyncTarget, ids []string, categoryID string) []models.SyncTarget {
	byID := make(map[string]models.SyncTarget, len(stored))
	for _, t := range stored {
		byID[t.ExternalID] = t
	}
	out := make([]models.SyncTarget, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if t, ok := byID[id]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, models.SyncTarget{
			ExternalID: id,
			CategoryID: categoryID,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
