package handler

import (
	"encoding/json"
	"net/http"
	"time"
	"tourbook/internal/sessions/service"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SessionHandler struct {
	service service.SessionService
	log     *logger.Logger
}

func NewSessionHandler(service service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log,
	}
}

type generateRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TTLDays int    `json:"ttl_days,omitempty"`
}

func (h *SessionHandler) CreateSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var sc model.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.CreateSchedule(r.Context(), &sc); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, sc)
}

func (h *SessionHandler) GenerateSessions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	from, to, err := httputil.ParseDateRange(req.From, req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.TTLDays < 0 {
		httputil.WriteError(w, apperrors.InvalidInput("ttl_days cannot be negative"))
		return
	}

	result, err := h.service.Generate(r.Context(), ps.ByName("id"), from, to, time.Duration(req.TTLDays)*24*time.Hour)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()
	from, to, err := httputil.ParseDateRange(query.Get("from"), query.Get("to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sessions, err := h.service.ListByTour(r.Context(), ps.ByName("id"), from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, sessions)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, session)
}

func (h *SessionHandler) ActivateSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Activate(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *SessionHandler) GetSessionCapacity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := h.service.GetCapacity(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (h *SessionHandler) ResyncCapacity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := h.service.ResyncCapacity(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (h *SessionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/schedules", h.CreateSchedule)
	router.POST("/api/v1/tours/id/:id/sessions/generate", h.GenerateSessions)
	router.GET("/api/v1/tours/id/:id/sessions", h.ListSessions)
	router.GET("/api/v1/sessions/id/:id", h.GetSession)
	router.POST("/api/v1/sessions/id/:id/activate", h.ActivateSession)
	router.GET("/api/v1/sessions/id/:id/capacity", h.GetSessionCapacity)
	router.POST("/api/v1/sessions/id/:id/resync", h.ResyncCapacity)
}
