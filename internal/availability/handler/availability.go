package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"turnera/internal/availability/service"
	apperrors "turnera/pkg/errors"
	httputil "turnera/pkg/http"
	"turnera/pkg/logger"
	"turnera/pkg/sealer"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	sealer  *sealer.Sealer
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, slotSealer *sealer.Sealer, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		sealer:  slotSealer,
		log:     log,
	}
}

type slotResponse struct {
	Start time.Time `json:"start"`
	Token string    `json:"token"`
}

func (h *AvailabilityHandler) AvailableSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	professionalID := query.Get("professional_id")

	from, err := time.Parse(time.RFC3339, query.Get("from"))
	if err != nil {
		h.writeError(w, apperrors.InvalidInput(fmt.Sprintf("invalid from parameter: %s", query.Get("from"))))
		return
	}
	to, err := time.Parse(time.RFC3339, query.Get("to"))
	if err != nil {
		h.writeError(w, apperrors.InvalidInput(fmt.Sprintf("invalid to parameter: %s", query.Get("to"))))
		return
	}
	durationMin, err := strconv.Atoi(query.Get("duration_min"))
	if err != nil {
		h.writeError(w, apperrors.InvalidInput(fmt.Sprintf("invalid duration_min parameter: %s", query.Get("duration_min"))))
		return
	}

	slots, err := h.service.AvailableSlots(r.Context(), professionalID, from, to, durationMin)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := make([]slotResponse, 0, len(slots))
	for _, start := range slots {
		token, err := h.sealer.SealSlot(professionalID, start)
		if err != nil {
			h.writeError(w, apperrors.Internal("Failed to seal slot token", err))
			return
		}
		response = append(response, slotResponse{Start: start, Token: token})
	}

	if err := httputil.WriteSuccess(w, response); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "AvailableSlots", "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability", h.AvailableSlots)
}
