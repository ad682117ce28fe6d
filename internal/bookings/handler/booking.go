package handler

import (
	"encoding/json"
	"net/http"
	"tourbook/internal/bookings/service"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type checkInRequest struct {
	Actor string `json:"actor"`
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.service.CreateWithRetry(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

func (h *BookingHandler) CreateManualBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	booking, err := h.service.CreateManual(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, booking)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, booking)
}

func (h *BookingHandler) ListSessionBookings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.ListBySession(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WritePaginated(w, bookings, total, limit, int(offset))
}

// CancelBooking is the customer facing cancellation.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.cancel(w, r, ps, false)
}

func (h *BookingHandler) StaffCancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.cancel(w, r, ps, true)
}

func (h *BookingHandler) cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params, staff bool) {
	var req service.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.BookingID = ps.ByName("id")
	req.Staff = staff

	booking, err := h.service.Cancel(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, booking)
}

func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.ConfirmPayment(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, booking)
}

func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req checkInRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	booking, err := h.service.CheckIn(r.Context(), ps.ByName("id"), req.Actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, booking)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.CreateBooking)
	router.POST("/api/v1/bookings/manual", h.CreateManualBooking)
	router.GET("/api/v1/bookings/id/:id", h.GetBooking)
	router.POST("/api/v1/bookings/id/:id/cancel", h.CancelBooking)
	router.POST("/api/v1/bookings/id/:id/staff-cancel", h.StaffCancelBooking)
	router.POST("/api/v1/bookings/id/:id/confirm-payment", h.ConfirmPayment)
	router.POST("/api/v1/bookings/id/:id/check-in", h.CheckIn)
	router.GET("/api/v1/sessions/id/:id/bookings", h.ListSessionBookings)
}
