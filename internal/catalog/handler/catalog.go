package handler

import (
	"net/http"

	"turnera/internal/catalog/service"
	apperrors "turnera/pkg/errors"
	httputil "turnera/pkg/http"
	"turnera/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type CatalogHandler struct {
	service service.CatalogService
	log     *logger.Logger
}

func NewCatalogHandler(service service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		log:     log,
	}
}

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		h.writeError(w, "ListServices", err)
		return
	}

	if err := httputil.WriteSuccess(w, services); err != nil {
		h.log.Error("failed to write success response", "handler", "ListServices", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) ListProfessionals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	category := r.URL.Query().Get("category")
	if category == "" {
		h.writeError(w, "ListProfessionals", apperrors.InvalidInput("category parameter is required"))
		return
	}

	professionals, err := h.service.ListProfessionalsByCategory(r.Context(), category)
	if err != nil {
		h.writeError(w, "ListProfessionals", err)
		return
	}

	if err := httputil.WriteSuccess(w, professionals); err != nil {
		h.log.Error("failed to write success response", "handler", "ListProfessionals", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CatalogHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/services", h.ListServices)
	router.GET("/api/v1/professionals", h.ListProfessionals)
}
