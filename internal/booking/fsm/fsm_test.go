package fsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"turnera/pkg/model"
)

type mockChecks struct {
	servicesSameCategoryFunc func(ctx context.Context, serviceIDs []string) (string, int, error)
	professionalOffersFunc   func(ctx context.Context, professionalID, category string) error
	slotOpenFunc             func(ctx context.Context, professionalID string, start time.Time, durationMin int) error
}

func (m *mockChecks) ServicesSameCategory(ctx context.Context, serviceIDs []string) (string, int, error) {
	if m.servicesSameCategoryFunc != nil {
		return m.servicesSameCategoryFunc(ctx, serviceIDs)
	}
	return "hair", 70, nil
}

func (m *mockChecks) ProfessionalOffers(ctx context.Context, professionalID, category string) error {
	if m.professionalOffersFunc != nil {
		return m.professionalOffersFunc(ctx, professionalID, category)
	}
	return nil
}

func (m *mockChecks) SlotOpen(ctx context.Context, professionalID string, start time.Time, durationMin int) error {
	if m.slotOpenFunc != nil {
		return m.slotOpenFunc(ctx, professionalID, start, durationMin)
	}
	return nil
}

func slotStart() *time.Time {
	t := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	return &t
}

func TestApply_HappyPath(t *testing.T) {
	machine := New(&mockChecks{})
	session := model.NewBookingSession("conv-1")
	ctx := context.Background()

	steps := []struct {
		intent    string
		fields    IntentFields
		wantState string
		wantOp    string
	}{
		{model.IntentStartBooking, IntentFields{}, model.StateServiceSelection, model.OpListServices},
		{model.IntentConfirmServices, IntentFields{ServiceIDs: []string{"svc-a", "svc-b"}}, model.StateProfessionalSelection, model.OpListProfessionals},
		{model.IntentSelectProfessional, IntentFields{ProfessionalID: "prof-1"}, model.StateSlotSelection, model.OpListAvailableSlots},
		{model.IntentSelectSlot, IntentFields{SlotStart: slotStart()}, model.StateCustomerData, model.OpCollectCustomer},
		{model.IntentProvideCustomerData, IntentFields{CustomerName: "Ana Gomez"}, model.StateConfirmation, model.OpConfirmSummary},
		{model.IntentConfirmBooking, IntentFields{}, model.StateBooked, model.OpNone},
	}

	for _, step := range steps {
		outcome := machine.Apply(ctx, session, step.intent, step.fields)
		if !outcome.Accepted {
			t.Fatalf("intent %s: expected acceptance, got rejection %s", step.intent, outcome.Reason)
		}
		if outcome.NewState != step.wantState {
			t.Errorf("intent %s: expected state %s, got %s", step.intent, step.wantState, outcome.NewState)
		}
		if outcome.PrescribedNextOperation != step.wantOp {
			t.Errorf("intent %s: expected next operation %s, got %s", step.intent, step.wantOp, outcome.PrescribedNextOperation)
		}
	}

	if session.Collected.SlotDurationMin != 70 {
		t.Errorf("expected summed duration 70, got %d", session.Collected.SlotDurationMin)
	}
	if session.Collected.CustomerName != "Ana Gomez" {
		t.Errorf("expected collected customer name, got %q", session.Collected.CustomerName)
	}
}

func TestApply_WrongStateLeavesSessionUntouched(t *testing.T) {
	machine := New(&mockChecks{})
	session := model.NewBookingSession("conv-1")
	ctx := context.Background()

	outOfTurn := []string{
		model.IntentConfirmServices,
		model.IntentSelectProfessional,
		model.IntentSelectSlot,
		model.IntentProvideCustomerData,
		model.IntentConfirmBooking,
	}

	for _, intent := range outOfTurn {
		before := *session
		outcome := machine.Apply(ctx, session, intent, IntentFields{
			ServiceIDs:     []string{"svc-a"},
			ProfessionalID: "prof-1",
			SlotStart:      slotStart(),
			CustomerName:   "Ana Gomez",
		})
		if outcome.Accepted {
			t.Fatalf("intent %s from IDLE: expected rejection", intent)
		}
		if outcome.Reason != model.ReasonWrongState {
			t.Errorf("intent %s: expected reason %s, got %s", intent, model.ReasonWrongState, outcome.Reason)
		}
		if session.State != before.State {
			t.Errorf("intent %s: rejection mutated state to %s", intent, session.State)
		}
		if session.Collected.ProfessionalID != "" || len(session.Collected.ServiceIDs) != 0 {
			t.Errorf("intent %s: rejection mutated collected data", intent)
		}
	}
}

func TestApply_MissingData(t *testing.T) {
	machine := New(&mockChecks{})
	ctx := context.Background()

	session := model.NewBookingSession("conv-1")
	machine.Apply(ctx, session, model.IntentStartBooking, IntentFields{})

	outcome := machine.Apply(ctx, session, model.IntentConfirmServices, IntentFields{})
	if outcome.Accepted || outcome.Reason != model.ReasonMissingData {
		t.Fatalf("expected missing_data rejection, got %+v", outcome)
	}
	if session.State != model.StateServiceSelection {
		t.Errorf("rejection changed state to %s", session.State)
	}
}

func TestApply_SemanticCheckFailure(t *testing.T) {
	machine := New(&mockChecks{
		servicesSameCategoryFunc: func(ctx context.Context, serviceIDs []string) (string, int, error) {
			return "", 0, errors.New("mixed categories")
		},
	})
	ctx := context.Background()

	session := model.NewBookingSession("conv-1")
	machine.Apply(ctx, session, model.IntentStartBooking, IntentFields{})

	outcome := machine.Apply(ctx, session, model.IntentConfirmServices, IntentFields{ServiceIDs: []string{"svc-a", "svc-b"}})
	if outcome.Accepted || outcome.Reason != model.ReasonValidationFailed {
		t.Fatalf("expected validation_failed rejection, got %+v", outcome)
	}
	if len(session.Collected.ServiceIDs) != 0 {
		t.Errorf("rejection stored service IDs")
	}
}

func TestApply_SlotNotOpen(t *testing.T) {
	machine := New(&mockChecks{
		slotOpenFunc: func(ctx context.Context, professionalID string, start time.Time, durationMin int) error {
			return errors.New("slot not open")
		},
	})
	ctx := context.Background()

	session := model.NewBookingSession("conv-1")
	machine.Apply(ctx, session, model.IntentStartBooking, IntentFields{})
	machine.Apply(ctx, session, model.IntentConfirmServices, IntentFields{ServiceIDs: []string{"svc-a"}})
	machine.Apply(ctx, session, model.IntentSelectProfessional, IntentFields{ProfessionalID: "prof-1"})

	outcome := machine.Apply(ctx, session, model.IntentSelectSlot, IntentFields{SlotStart: slotStart()})
	if outcome.Accepted || outcome.Reason != model.ReasonValidationFailed {
		t.Fatalf("expected validation_failed rejection, got %+v", outcome)
	}
	if session.Collected.SlotStart != nil {
		t.Errorf("rejection stored slot start")
	}
}

func TestApply_CancelFromAnyState(t *testing.T) {
	machine := New(&mockChecks{})
	ctx := context.Background()

	session := model.NewBookingSession("conv-1")
	machine.Apply(ctx, session, model.IntentStartBooking, IntentFields{})
	machine.Apply(ctx, session, model.IntentConfirmServices, IntentFields{ServiceIDs: []string{"svc-a"}})

	outcome := machine.Apply(ctx, session, model.IntentCancelBooking, IntentFields{})
	if !outcome.Accepted {
		t.Fatalf("cancel rejected: %+v", outcome)
	}
	if session.State != model.StateIdle {
		t.Errorf("expected IDLE after cancel, got %s", session.State)
	}
	if len(session.Collected.ServiceIDs) != 0 {
		t.Errorf("cancel did not clear collected data")
	}

	// Cancelling again from IDLE is an accepted no-op.
	again := machine.Apply(ctx, session, model.IntentCancelBooking, IntentFields{})
	if !again.Accepted || session.State != model.StateIdle {
		t.Errorf("repeated cancel not idempotent: %+v state=%s", again, session.State)
	}
}

func TestApply_BookedIsTerminal(t *testing.T) {
	machine := New(&mockChecks{})
	ctx := context.Background()

	session := model.NewBookingSession("conv-1")
	session.State = model.StateBooked

	for _, intent := range []string{model.IntentStartBooking, model.IntentConfirmBooking, model.IntentSelectSlot} {
		outcome := machine.Apply(ctx, session, intent, IntentFields{SlotStart: slotStart()})
		if outcome.Accepted || outcome.Reason != model.ReasonWrongState {
			t.Errorf("intent %s in BOOKED: expected wrong_state, got %+v", intent, outcome)
		}
	}
}

func TestApply_CustomerNameBounds(t *testing.T) {
	machine := New(&mockChecks{})
	ctx := context.Background()

	session := model.NewBookingSession("conv-1")
	machine.Apply(ctx, session, model.IntentStartBooking, IntentFields{})
	machine.Apply(ctx, session, model.IntentConfirmServices, IntentFields{ServiceIDs: []string{"svc-a"}})
	machine.Apply(ctx, session, model.IntentSelectProfessional, IntentFields{ProfessionalID: "prof-1"})
	machine.Apply(ctx, session, model.IntentSelectSlot, IntentFields{SlotStart: slotStart()})

	outcome := machine.Apply(ctx, session, model.IntentProvideCustomerData, IntentFields{CustomerName: "A"})
	if outcome.Accepted || outcome.Reason != model.ReasonValidationFailed {
		t.Fatalf("expected validation_failed for one-character name, got %+v", outcome)
	}

	outcome = machine.Apply(ctx, session, model.IntentProvideCustomerData, IntentFields{CustomerName: "Ana"})
	if !outcome.Accepted {
		t.Fatalf("expected acceptance for valid name, got %+v", outcome)
	}
}
