package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"turnera/internal/booking/fsm"
	"turnera/internal/booking/service"
	apperrors "turnera/pkg/errors"
	httputil "turnera/pkg/http"
	"turnera/pkg/logger"
	"turnera/pkg/sealer"

	"github.com/julienschmidt/httprouter"
)

type DialogHandler struct {
	service service.DialogService
	sealer  *sealer.Sealer
	log     *logger.Logger
}

func NewDialogHandler(service service.DialogService, slotSealer *sealer.Sealer, log *logger.Logger) *DialogHandler {
	return &DialogHandler{
		service: service,
		sealer:  slotSealer,
		log:     log,
	}
}

type submitIntentRequest struct {
	ConversationID string              `json:"conversation_id"`
	Intent         string              `json:"intent"`
	Fields         intentFieldsPayload `json:"fields"`
}

type intentFieldsPayload struct {
	ServiceIDs      []string   `json:"service_ids,omitempty"`
	ProfessionalID  string     `json:"professional_id,omitempty"`
	SlotToken       string     `json:"slot_token,omitempty"`
	SlotStart       *time.Time `json:"slot_start,omitempty"`
	SlotDurationMin int        `json:"slot_duration_min,omitempty"`
	CustomerName    string     `json:"customer_name,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

func (h *DialogHandler) SubmitIntent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req submitIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SubmitIntent", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	fields, err := h.resolveFields(req.Fields)
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.service.SubmitIntent(r.Context(), req.ConversationID, req.Intent, fields)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, outcome); err != nil {
		h.log.Error("failed to write success response", "handler", "SubmitIntent", "operation", "WriteSuccess", "error", err)
	}
}

// resolveFields unwraps an opaque slot token, when present, into the slot
// start the machine expects.
func (h *DialogHandler) resolveFields(payload intentFieldsPayload) (fsm.IntentFields, error) {
	fields := fsm.IntentFields{
		ServiceIDs:      payload.ServiceIDs,
		ProfessionalID:  payload.ProfessionalID,
		SlotStart:       payload.SlotStart,
		SlotDurationMin: payload.SlotDurationMin,
		CustomerName:    payload.CustomerName,
		Notes:           payload.Notes,
	}

	if payload.SlotToken != "" {
		professionalID, start, err := h.sealer.ParseSlot(payload.SlotToken)
		if err != nil {
			return fsm.IntentFields{}, apperrors.InvalidInput("Invalid slot token")
		}
		fields.SlotStart = &start
		if fields.ProfessionalID == "" {
			fields.ProfessionalID = professionalID
		}
	}

	return fields, nil
}

func (h *DialogHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "SubmitIntent", "operation", "WriteError", "error", writeErr)
	}
}

func (h *DialogHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/intents", h.SubmitIntent)
}
