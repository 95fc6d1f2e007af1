package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"fleetshare/internal/reservations/service"
	apperrors "fleetshare/pkg/errors"
	httputil "fleetshare/pkg/http"
	"fleetshare/pkg/logger"
	"fleetshare/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

// Request books a window. A rejected request is not an error: the decision
// body carries the conflicts and ranked alternatives.
func (h *ReservationHandler) Request(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reservation model.Reservation
	if err := json.NewDecoder(r.Body).Decode(&reservation); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	decision, err := h.service.Request(r.Context(), &reservation)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if !decision.Approved {
		status := http.StatusUnprocessableEntity
		if len(decision.Conflicts) > 0 {
			status = http.StatusConflict
		}
		httputil.WriteJSON(w, status, httputil.SuccessResponse{Data: decision})
		return
	}

	httputil.WriteCreated(w, decision)
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, reservation)
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reservations, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, reservations, total, limit, offset)
}

func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	vehicleID := r.URL.Query().Get("vehicle_id")

	startTime, err := httputil.ExtractTime(r, "start_time")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	endTime, err := httputil.ExtractTime(r, "end_time")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if startTime != nil && endTime != nil && !endTime.After(*startTime) {
		httputil.WriteError(w, apperrors.InvalidInput("end_time must be after start_time"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reservations, total, err := h.service.SearchByVehicle(r.Context(), vehicleID, startTime, endTime, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, reservations, total, limit, offset)
}

func (h *ReservationHandler) Start(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Start(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": model.ReservationStatusInUse})
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var completion model.ReservationCompletion
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&completion); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "Invalid request body",
			})
			return
		}
	}

	if err := h.service.Complete(r.Context(), ps.ByName("id"), &completion); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": model.ReservationStatusCompleted})
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		CancelledBy string `json:"cancelled_by"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "Invalid request body",
			})
			return
		}
	}

	if err := h.service.Cancel(r.Context(), ps.ByName("id"), body.CancelledBy); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": model.ReservationStatusCancelled})
}

func (h *ReservationHandler) Suggest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	desiredStart, err := httputil.ExtractRequiredTime(r, "desired_start")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	durationHours, err := strconv.ParseFloat(query.Get("duration_hours"), 64)
	if err != nil || durationHours <= 0 {
		httputil.WriteError(w, apperrors.InvalidInput("'duration_hours' must be a positive number"))
		return
	}

	req := &service.SuggestionRequest{
		UserID:       query.Get("user_id"),
		GroupID:      query.Get("group_id"),
		VehicleID:    query.Get("vehicle_id"),
		DesiredStart: desiredStart,
		Duration:     time.Duration(durationHours * float64(time.Hour)),
	}

	suggestions, err := h.service.Suggest(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, suggestions)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Request)
	router.GET("/api/v1/reservations", h.GetAll)
	router.GET("/api/v1/reservations/search", h.Search)
	router.GET("/api/v1/reservations/suggestions", h.Suggest)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.POST("/api/v1/reservations/id/:id/start", h.Start)
	router.POST("/api/v1/reservations/id/:id/complete", h.Complete)
	router.POST("/api/v1/reservations/id/:id/cancel", h.Cancel)
}
