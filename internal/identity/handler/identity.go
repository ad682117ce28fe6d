package handler

import (
	"encoding/json"
	"net/http"
	"tourbook/internal/identity/service"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type IdentityHandler struct {
	service service.IdentityService
	log     *logger.Logger
}

func NewIdentityHandler(service service.IdentityService, log *logger.Logger) *IdentityHandler {
	return &IdentityHandler{service: service, log: log}
}

func (h *IdentityHandler) CreateVendor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var vendor model.Vendor
	if err := json.NewDecoder(r.Body).Decode(&vendor); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.service.CreateVendor(r.Context(), &vendor); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, vendor)
}

func (h *IdentityHandler) GetVendor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	vendor, err := h.service.GetVendor(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, vendor)
}

func (h *IdentityHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/vendors", h.CreateVendor)
	router.GET("/api/v1/vendors/id/:id", h.GetVendor)
}
