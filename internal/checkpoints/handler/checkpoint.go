package handler

import (
	"encoding/json"
	"net/http"

	"fleetshare/internal/checkpoints/service"
	httputil "fleetshare/pkg/http"
	"fleetshare/pkg/logger"
	"fleetshare/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CheckpointHandler struct {
	service service.CheckpointService
	log     *logger.Logger
}

func NewCheckpointHandler(service service.CheckpointService, log *logger.Logger) *CheckpointHandler {
	return &CheckpointHandler{
		service: service,
		log:     log,
	}
}

func (h *CheckpointHandler) Issue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.CheckpointIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	checkpoint, err := h.service.Issue(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, checkpoint)
}

func (h *CheckpointHandler) Scan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CheckpointScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	checkpoint, err := h.service.Scan(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, checkpoint)
}

func (h *CheckpointHandler) Sign(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CheckpointSignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	checkpoint, err := h.service.Sign(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, checkpoint)
}

func (h *CheckpointHandler) Complete(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CheckpointCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	result, err := h.service.Complete(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

func (h *CheckpointHandler) GetByToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	checkpoint, err := h.service.GetByToken(r.Context(), ps.ByName("token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, checkpoint)
}

func (h *CheckpointHandler) ListByReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	checkpoints, err := h.service.ListByReservation(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, checkpoints)
}

func (h *CheckpointHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations/id/:id/checkpoints", h.Issue)
	router.GET("/api/v1/reservations/id/:id/checkpoints", h.ListByReservation)
	router.POST("/api/v1/checkpoints/scan", h.Scan)
	router.POST("/api/v1/checkpoints/sign", h.Sign)
	router.POST("/api/v1/checkpoints/complete", h.Complete)
	router.GET("/api/v1/checkpoints/token/:token", h.GetByToken)
}
