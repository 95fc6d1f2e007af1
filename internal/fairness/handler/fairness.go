package handler

import (
	"encoding/json"
	"net/http"

	"fleetshare/internal/fairness/service"
	httputil "fleetshare/pkg/http"
	"fleetshare/pkg/logger"
	"fleetshare/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type FairnessHandler struct {
	service service.FairnessService
	log     *logger.Logger
}

func NewFairnessHandler(service service.FairnessService, log *logger.Logger) *FairnessHandler {
	return &FairnessHandler{
		service: service,
		log:     log,
	}
}

func (h *FairnessHandler) ComputeUsageStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.ComputePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	stats, err := h.service.ComputeUsageStats(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, stats)
}

func (h *FairnessHandler) ComputeScores(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.ComputePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	scores, err := h.service.ComputeScores(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, scores)
}

func (h *FairnessHandler) GetScores(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	scores, err := h.service.GetScores(r.Context(), query.Get("group_id"), query.Get("vehicle_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, scores)
}

func (h *FairnessHandler) GetSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	summary, err := h.service.GetSummary(r.Context(), query.Get("group_id"), query.Get("vehicle_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, summary)
}

// GetPriority is the scheduler-facing lookup. It answers 200 even when the
// engine is degraded; the payload flags it.
func (h *FairnessHandler) GetPriority(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	lookup, err := h.service.PriorityFor(r.Context(), query.Get("user_id"), query.Get("group_id"), query.Get("vehicle_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, lookup)
}

func (h *FairnessHandler) GenerateRecommendations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	recs, err := h.service.GenerateRecommendations(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, recs)
}

func (h *FairnessHandler) ListRecommendations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recs, total, err := h.service.ListRecommendations(r.Context(), query.Get("group_id"), query.Get("status"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, recs, total, limit, offset)
}

func (h *FairnessHandler) UpdateRecommendationStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.RecommendationStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	rec, err := h.service.UpdateRecommendationStatus(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, rec)
}

func (h *FairnessHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/fairness/usage-stats/compute", h.ComputeUsageStats)
	router.POST("/api/v1/fairness/scores/compute", h.ComputeScores)
	router.GET("/api/v1/fairness/scores", h.GetScores)
	router.GET("/api/v1/fairness/summary", h.GetSummary)
	router.GET("/api/v1/fairness/priority", h.GetPriority)
	router.POST("/api/v1/fairness/recommendations/generate", h.GenerateRecommendations)
	router.GET("/api/v1/recommendations", h.ListRecommendations)
	router.PATCH("/api/v1/recommendations/id/:id/status", h.UpdateRecommendationStatus)
}
