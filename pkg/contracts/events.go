package contracts

import "time"

// ReservationEvent is published on turnera.reservation.events after a
// reservation is confirmed or cancelled. Downstream notification delivery
// is external to this system.
type ReservationEvent struct {
	EventType      string    `json:"event_type"`
	ReservationID  string    `json:"reservation_id"`
	CustomerRef    string    `json:"customer_ref"`
	ProfessionalID string    `json:"professional_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	CustomerName   string    `json:"customer_name"`
}

// MirrorCommand is published on turnera.calendar.mirror and consumed by
// the calendar mirror worker. EndTime includes the inter-appointment
// buffer so the external event blocks the full window.
type MirrorCommand struct {
	Action          string    `json:"action"`
	ReservationID   string    `json:"reservation_id"`
	ProfessionalID  string    `json:"professional_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	Summary         string    `json:"summary"`
	Notes           string    `json:"notes,omitempty"`
}

const (
	MirrorActionCreate = "create"
	MirrorActionDelete = "delete"
)
