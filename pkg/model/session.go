package model

import "time"

// Booking dialog states, in dialog order. BOOKED is terminal and resets
// to IDLE once its result has been surfaced to the caller.
const (
	StateIdle                  = "IDLE"
	StateServiceSelection      = "SERVICE_SELECTION"
	StateProfessionalSelection = "PROFESSIONAL_SELECTION"
	StateSlotSelection         = "SLOT_SELECTION"
	StateCustomerData          = "CUSTOMER_DATA"
	StateConfirmation          = "CONFIRMATION"
	StateBooked                = "BOOKED"
)

// Intents accepted by SubmitIntent. The NLU collaborator classifies raw
// text into one of these; the state machine decides whether it applies.
const (
	IntentStartBooking        = "start_booking"
	IntentConfirmServices     = "confirm_services"
	IntentSelectProfessional  = "select_professional"
	IntentSelectSlot          = "select_slot"
	IntentProvideCustomerData = "provide_customer_data"
	IntentConfirmBooking      = "confirm_booking"
	IntentCancelBooking       = "cancel_booking"
)

// Rejection reasons. The first three are dialog-flow rejections produced
// by the state machine; the rest are business-rule rejections produced by
// the reservation engine.
const (
	ReasonWrongState           = "wrong_state"
	ReasonMissingData          = "missing_data"
	ReasonValidationFailed     = "validation_failed"
	ReasonTooSoon              = "too_soon"
	ReasonCategoryMismatch     = "category_mismatch"
	ReasonSlotTaken            = "slot_taken"
	ReasonProfessionalNotFound = "professional_not_found"
	ReasonRetryLater           = "retry_later"
)

// Operations prescribed to the dialog driver after a transition. The
// driver performs the named read or write before composing its reply.
const (
	OpNone               = "none"
	OpListServices       = "list_services"
	OpListProfessionals  = "list_professionals"
	OpListAvailableSlots = "list_available_slots"
	OpCollectCustomer    = "collect_customer_data"
	OpConfirmSummary     = "confirm_summary"
)

// CollectedData is the partial reservation payload accumulated across
// dialog turns. Fields are only ever set by accepted transitions.
type CollectedData struct {
	ServiceIDs      []string   `json:"service_ids,omitempty"`
	ProfessionalID  string     `json:"professional_id,omitempty"`
	SlotStart       *time.Time `json:"slot_start,omitempty"`
	SlotDurationMin int        `json:"slot_duration_min,omitempty"`
	CustomerName    string     `json:"customer_name,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// BookingSession is the per-conversation dialog checkpoint. It is stored
// under a conversation-scoped key with a bounded TTL and is never shared
// between conversations.
type BookingSession struct {
	ConversationID string        `json:"conversation_id"`
	State          string        `json:"state"`
	Collected      CollectedData `json:"collected"`
	ReservationID  string        `json:"reservation_id,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func NewBookingSession(conversationID string) *BookingSession {
	return &BookingSession{
		ConversationID: conversationID,
		State:          StateIdle,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Reset clears collected data and returns the session to IDLE.
func (s *BookingSession) Reset() {
	s.State = StateIdle
	s.Collected = CollectedData{}
	s.ReservationID = ""
	s.UpdatedAt = time.Now().UTC()
}

// TransitionOutcome is what SubmitIntent returns to the dialog driver.
type TransitionOutcome struct {
	Accepted                bool   `json:"accepted"`
	Reason                  string `json:"reason,omitempty"`
	NewState                string `json:"new_state"`
	PrescribedNextOperation string `json:"prescribed_next_operation"`
	ReservationID           string `json:"reservation_id,omitempty"`
}
