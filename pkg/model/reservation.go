package model

import (
	"time"
)

const (
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusCancelled = "cancelled"
)

type Reservation struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	CustomerRef     string    `json:"customer_ref" bson:"customer_ref" validate:"required,min=3,max=64"`
	ProfessionalID  string    `json:"professional_id" bson:"professional_id" validate:"required,mongodb"`
	ServiceIDs      []string  `json:"service_ids" bson:"service_ids" validate:"required,min=1,dive,mongodb"`
	StartTime       time.Time `json:"start_time" bson:"start_time" validate:"required"`
	// EndTime is denormalized (start + duration, buffer excluded) so overlap
	// checks can run as a range query.
	EndTime         time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	DurationMin     int       `json:"duration_min" bson:"duration_min" validate:"required,min=1,max=600"`
	Status          string    `json:"status" bson:"status" validate:"required,oneof=confirmed cancelled"`
	CalendarEventID string    `json:"calendar_event_id,omitempty" bson:"calendar_event_id,omitempty"`
	CustomerName    string    `json:"customer_name" bson:"customer_name" validate:"required,min=2,max=100"`
	Notes           string    `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=500"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// BlockedEnd is the end of the conflict-checked window, buffer included.
func (r *Reservation) BlockedEnd(bufferMin int) time.Time {
	return r.EndTime.Add(time.Duration(bufferMin) * time.Minute)
}

type ReserveRequest struct {
	CustomerRef    string    `json:"customer_ref" validate:"required,min=3,max=64"`
	ProfessionalID string    `json:"professional_id" validate:"required,mongodb"`
	ServiceIDs     []string  `json:"service_ids" validate:"required,min=1,dive,mongodb"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	CustomerName   string    `json:"customer_name" validate:"required,min=2,max=100"`
	Notes          string    `json:"notes,omitempty" validate:"omitempty,max=500"`
}
