package handler

import (
	"encoding/json"
	"net/http"
	"tourbook/internal/waitlist/service"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type WaitlistHandler struct {
	service service.WaitlistService
	log     *logger.Logger
}

func NewWaitlistHandler(service service.WaitlistService, log *logger.Logger) *WaitlistHandler {
	return &WaitlistHandler{
		service: service,
		log:     log,
	}
}

type notifyRequest struct {
	Slots int `json:"slots"`
}

func (h *WaitlistHandler) JoinWaitlist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	entry, err := h.service.Join(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, entry)
}

func (h *WaitlistHandler) GetQueuePosition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httputil.WriteError(w, apperrors.InvalidInput("email query parameter is required"))
		return
	}

	position, err := h.service.QueuePosition(r.Context(), ps.ByName("id"), email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int{"position": position})
}

func (h *WaitlistHandler) ListWaitlist(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, total, err := h.service.ListBySession(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WritePaginated(w, entries, total, limit, int(offset))
}

func (h *WaitlistHandler) NotifyWaitlist(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slots <= 0 {
		httputil.WriteError(w, apperrors.InvalidInput("slots must be a positive number"))
		return
	}

	notified, err := h.service.ProcessSlotOpen(r.Context(), ps.ByName("id"), req.Slots)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int{"notified": notified})
}

func (h *WaitlistHandler) ExpireWaitlist(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	expired, err := h.service.ExpireStale(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int64{"expired": expired})
}

func (h *WaitlistHandler) CancelWaitlistEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Cancel(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *WaitlistHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/waitlist", h.JoinWaitlist)
	router.DELETE("/api/v1/waitlist/id/:id", h.CancelWaitlistEntry)
	router.GET("/api/v1/sessions/id/:id/waitlist", h.ListWaitlist)
	router.GET("/api/v1/sessions/id/:id/waitlist/position", h.GetQueuePosition)
	router.POST("/api/v1/sessions/id/:id/waitlist/notify", h.NotifyWaitlist)
	router.POST("/api/v1/sessions/id/:id/waitlist/expire", h.ExpireWaitlist)
}
