package handler

import (
	"encoding/json"
	"net/http"
	"tourbook/internal/tours/service"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TourHandler struct {
	service service.TourService
	log     *logger.Logger
}

func NewTourHandler(service service.TourService, log *logger.Logger) *TourHandler {
	return &TourHandler{
		service: service,
		log:     log,
	}
}

func (h *TourHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var tour model.Tour
	if err := json.NewDecoder(r.Body).Decode(&tour); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.Create(r.Context(), &tour); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, tour)
}

func (h *TourHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tour, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tour)
}

func (h *TourHandler) CreatePolicy(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var policy model.ReturnPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.CreatePolicy(r.Context(), &policy); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, policy)
}

func (h *TourHandler) GetPolicy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	policy, err := h.service.GetPolicy(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, policy)
}

func (h *TourHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/tours", h.Create)
	router.GET("/api/v1/tours/id/:id", h.GetByID)
	router.POST("/api/v1/return-policies", h.CreatePolicy)
	router.GET("/api/v1/return-policies/id/:id", h.GetPolicy)
}
