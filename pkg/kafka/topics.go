package kafka

// Topics used by the booking core. Each topic has a paired dead letter
// queue for messages that exhaust their retries.
const (
	TopicReservationEvents    = "turnera.reservation.events"
	TopicReservationEventsDLQ = "turnera.reservation.events.dlq"

	TopicCalendarMirror    = "turnera.calendar.mirror"
	TopicCalendarMirrorDLQ = "turnera.calendar.mirror.dlq"

	GroupCalendarMirror = "turnera-calendar-mirror"
)

// Event types carried in the event-type header.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"

	EventMirrorCreate = "calendar.mirror.create"
	EventMirrorDelete = "calendar.mirror.delete"
)
