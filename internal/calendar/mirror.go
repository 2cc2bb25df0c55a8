package calendar

import (
	"context"
	"errors"
	"fmt"

	reservationserrors "turnera/internal/reservations/errors"
	"turnera/pkg/contracts"
	"turnera/pkg/kafka"
	"turnera/pkg/logger"
)

// EventsAPI is the subset of the calendar provider the mirror needs.
type EventsAPI interface {
	CreateEvent(ctx context.Context, cmd contracts.MirrorCommand) (string, error)
	DeleteEvent(ctx context.Context, professionalID, eventID string) error
}

// ReservationStore persists the provider event ID back onto the
// reservation so a later cancellation can find it. It reports ErrNotFound
// when no confirmed reservation carries the ID, including one cancelled
// while the create was in flight.
type ReservationStore interface {
	SetCalendarEventID(ctx context.Context, id string, calendarEventID string) error
}

// Mirror consumes mirror commands and applies them against the external
// calendar. The calendar is a mirror, never an authority: failures here
// never touch reservation state.
type Mirror struct {
	events       EventsAPI
	reservations ReservationStore
	log          *logger.Logger
}

func NewMirror(events EventsAPI, reservations ReservationStore, log *logger.Logger) *Mirror {
	return &Mirror{
		events:       events,
		reservations: reservations,
		log:          log,
	}
}

// Handle implements kafka.MessageHandler for the calendar mirror topic.
func (m *Mirror) Handle(ctx context.Context, msg kafka.Message) error {
	var cmd contracts.MirrorCommand
	if err := msg.DecodeValue(&cmd); err != nil {
		return kafka.NewPermanentError("failed to decode mirror command", err)
	}

	switch cmd.Action {
	case contracts.MirrorActionCreate:
		return m.handleCreate(ctx, cmd)
	case contracts.MirrorActionDelete:
		return m.handleDelete(ctx, cmd)
	default:
		return kafka.NewPermanentError(fmt.Sprintf("unknown mirror action: %s", cmd.Action), nil)
	}
}

func (m *Mirror) handleCreate(ctx context.Context, cmd contracts.MirrorCommand) error {
	eventID, err := m.events.CreateEvent(ctx, cmd)
	if err != nil {
		m.log.Error("failed to create calendar event",
			"reservation_id", cmd.ReservationID,
			"professional_id", cmd.ProfessionalID,
			"error", err)
		return kafka.NewTransientError("calendar create failed", err)
	}

	if err := m.reservations.SetCalendarEventID(ctx, cmd.ReservationID, eventID); err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			// Reservation was cancelled or removed while the create was in
			// flight. Remove the orphaned event so the calendar stays
			// consistent with the store.
			m.log.Warn("reservation no longer confirmed after calendar create, removing event",
				"reservation_id", cmd.ReservationID,
				"calendar_event_id", eventID)
			if delErr := m.events.DeleteEvent(ctx, cmd.ProfessionalID, eventID); delErr != nil {
				return kafka.NewTransientError("failed to remove orphaned calendar event", delErr)
			}
			return nil
		}
		return kafka.NewTransientError("failed to persist calendar event id", err)
	}

	m.log.Info("calendar event mirrored",
		"reservation_id", cmd.ReservationID,
		"professional_id", cmd.ProfessionalID,
		"calendar_event_id", eventID)

	return nil
}

func (m *Mirror) handleDelete(ctx context.Context, cmd contracts.MirrorCommand) error {
	if cmd.CalendarEventID == "" {
		// Nothing was ever mirrored, or the create is still pending.
		m.log.Warn("mirror delete without calendar event id, skipping",
			"reservation_id", cmd.ReservationID)
		return nil
	}

	if err := m.events.DeleteEvent(ctx, cmd.ProfessionalID, cmd.CalendarEventID); err != nil {
		m.log.Error("failed to delete calendar event",
			"reservation_id", cmd.ReservationID,
			"calendar_event_id", cmd.CalendarEventID,
			"error", err)
		return kafka.NewTransientError("calendar delete failed", err)
	}

	m.log.Info("calendar event removed",
		"reservation_id", cmd.ReservationID,
		"calendar_event_id", cmd.CalendarEventID)

	return nil
}
