package fsm

import (
	"context"
	"time"

	"turnera/pkg/model"
)

// IntentFields is the slot-fill payload extracted by the NLU collaborator
// alongside the intent. Only the fields relevant to the intent are set.
type IntentFields struct {
	ServiceIDs      []string
	ProfessionalID  string
	SlotStart       *time.Time
	SlotDurationMin int
	CustomerName    string
	Notes           string
}

// Checks are the semantic validations the machine runs before accepting a
// transition. They read durable state but never mutate it; implementations
// return a plain error to signal validation_failed.
type Checks interface {
	// ServicesSameCategory verifies all services exist and share one
	// category, returning the category and summed duration in minutes.
	ServicesSameCategory(ctx context.Context, serviceIDs []string) (string, int, error)

	// ProfessionalOffers verifies the professional is active and offers
	// the category.
	ProfessionalOffers(ctx context.Context, professionalID, category string) error

	// SlotOpen is the advisory openness check used at slot selection; the
	// reservation transaction re-checks under a lock.
	SlotOpen(ctx context.Context, professionalID string, start time.Time, durationMin int) error
}

// Machine applies the booking dialog transition table. It mutates the
// session only when a transition is accepted; every rejection leaves
// state and collected data untouched.
type Machine struct {
	checks Checks
}

func New(checks Checks) *Machine {
	return &Machine{checks: checks}
}

const (
	maxCustomerNameLen = 100
	minCustomerNameLen = 2
)

// Apply attempts one transition. The returned outcome carries the typed
// rejection reason or, on acceptance, the new state and the operation the
// dialog driver must perform next.
func (m *Machine) Apply(ctx context.Context, session *model.BookingSession, intent string, fields IntentFields) model.TransitionOutcome {
	// Cancellation is permitted from every state and is idempotent.
	if intent == model.IntentCancelBooking {
		session.Reset()
		return accepted(session, model.OpNone)
	}

	switch session.State {
	case model.StateIdle:
		if intent != model.IntentStartBooking {
			return rejected(session, model.ReasonWrongState)
		}
		session.State = model.StateServiceSelection
		session.UpdatedAt = time.Now().UTC()
		return accepted(session, model.OpListServices)

	case model.StateServiceSelection:
		if intent != model.IntentConfirmServices {
			return rejected(session, model.ReasonWrongState)
		}
		if len(fields.ServiceIDs) == 0 {
			return rejected(session, model.ReasonMissingData)
		}
		_, totalMin, err := m.checks.ServicesSameCategory(ctx, fields.ServiceIDs)
		if err != nil {
			return rejected(session, model.ReasonValidationFailed)
		}
		session.Collected.ServiceIDs = append([]string(nil), fields.ServiceIDs...)
		session.Collected.SlotDurationMin = totalMin
		session.State = model.StateProfessionalSelection
		session.UpdatedAt = time.Now().UTC()
		return accepted(session, model.OpListProfessionals)

	case model.StateProfessionalSelection:
		if intent != model.IntentSelectProfessional {
			return rejected(session, model.ReasonWrongState)
		}
		if fields.ProfessionalID == "" {
			return rejected(session, model.ReasonMissingData)
		}
		category, _, err := m.checks.ServicesSameCategory(ctx, session.Collected.ServiceIDs)
		if err != nil {
			return rejected(session, model.ReasonValidationFailed)
		}
		if err := m.checks.ProfessionalOffers(ctx, fields.ProfessionalID, category); err != nil {
			return rejected(session, model.ReasonValidationFailed)
		}
		session.Collected.ProfessionalID = fields.ProfessionalID
		session.State = model.StateSlotSelection
		session.UpdatedAt = time.Now().UTC()
		return accepted(session, model.OpListAvailableSlots)

	case model.StateSlotSelection:
		if intent != model.IntentSelectSlot {
			return rejected(session, model.ReasonWrongState)
		}
		if fields.SlotStart == nil {
			return rejected(session, model.ReasonMissingData)
		}
		durationMin := session.Collected.SlotDurationMin
		if durationMin == 0 {
			durationMin = fields.SlotDurationMin
		}
		if durationMin <= 0 {
			return rejected(session, model.ReasonMissingData)
		}
		if err := m.checks.SlotOpen(ctx, session.Collected.ProfessionalID, *fields.SlotStart, durationMin); err != nil {
			return rejected(session, model.ReasonValidationFailed)
		}
		start := *fields.SlotStart
		session.Collected.SlotStart = &start
		session.Collected.SlotDurationMin = durationMin
		session.State = model.StateCustomerData
		session.UpdatedAt = time.Now().UTC()
		return accepted(session, model.OpCollectCustomer)

	case model.StateCustomerData:
		if intent != model.IntentProvideCustomerData {
			return rejected(session, model.ReasonWrongState)
		}
		if fields.CustomerName == "" {
			return rejected(session, model.ReasonMissingData)
		}
		if len(fields.CustomerName) < minCustomerNameLen || len(fields.CustomerName) > maxCustomerNameLen {
			return rejected(session, model.ReasonValidationFailed)
		}
		session.Collected.CustomerName = fields.CustomerName
		session.Collected.Notes = fields.Notes
		session.State = model.StateConfirmation
		session.UpdatedAt = time.Now().UTC()
		return accepted(session, model.OpConfirmSummary)

	case model.StateConfirmation:
		if intent != model.IntentConfirmBooking {
			return rejected(session, model.ReasonWrongState)
		}
		if !collectedComplete(&session.Collected) {
			return rejected(session, model.ReasonMissingData)
		}
		// The reservation transaction performs the full re-validation; the
		// dialog driver invokes it and settles the session afterwards.
		session.State = model.StateBooked
		session.UpdatedAt = time.Now().UTC()
		return accepted(session, model.OpNone)

	case model.StateBooked:
		// Terminal; the auto-reset to IDLE happens when the result is
		// surfaced, so any intent arriving here is out of turn.
		return rejected(session, model.ReasonWrongState)

	default:
		return rejected(session, model.ReasonWrongState)
	}
}

func collectedComplete(c *model.CollectedData) bool {
	return len(c.ServiceIDs) > 0 &&
		c.ProfessionalID != "" &&
		c.SlotStart != nil &&
		c.SlotDurationMin > 0 &&
		c.CustomerName != ""
}

func accepted(session *model.BookingSession, nextOp string) model.TransitionOutcome {
	return model.TransitionOutcome{
		Accepted:                true,
		NewState:                session.State,
		PrescribedNextOperation: nextOp,
	}
}

func rejected(session *model.BookingSession, reason string) model.TransitionOutcome {
	return model.TransitionOutcome{
		Accepted:                false,
		Reason:                  reason,
		NewState:                session.State,
		PrescribedNextOperation: model.OpNone,
	}
}
