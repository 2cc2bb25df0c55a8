package service

import (
	"context"
	"testing"
	"time"

	bookingerrors "turnera/internal/booking/errors"
	"turnera/internal/booking/fsm"
	"turnera/pkg/config"
	apperrors "turnera/pkg/errors"
	"turnera/pkg/logger"
	"turnera/pkg/model"
)

// --- Mocks ---

type memoryStore struct {
	sessions map[string]*model.BookingSession
	saves    int
	deletes  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*model.BookingSession)}
}

func (m *memoryStore) Get(ctx context.Context, conversationID string) (*model.BookingSession, error) {
	stored, ok := m.sessions[conversationID]
	if !ok {
		return nil, bookingerrors.ErrSessionNotFound
	}
	found := *stored
	return &found, nil
}

func (m *memoryStore) Save(ctx context.Context, session *model.BookingSession) error {
	m.saves++
	stored := *session
	m.sessions[session.ConversationID] = &stored
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, conversationID string) error {
	m.deletes++
	delete(m.sessions, conversationID)
	return nil
}

type mockCatalog struct {
	resolveServicesFunc     func(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error)
	resolveProfessionalFunc func(ctx context.Context, professionalID, category string) (*model.Professional, error)
}

func (m *mockCatalog) ResolveServices(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error) {
	if m.resolveServicesFunc != nil {
		return m.resolveServicesFunc(ctx, serviceIDs)
	}
	return []*model.Service{{ID: "svc-a", Category: "hair", DurationMin: 70}}, "hair", 70, nil
}

func (m *mockCatalog) ResolveActiveProfessional(ctx context.Context, professionalID, category string) (*model.Professional, error) {
	if m.resolveProfessionalFunc != nil {
		return m.resolveProfessionalFunc(ctx, professionalID, category)
	}
	return &model.Professional{ID: professionalID, Name: "Laura", Categories: []string{"hair"}, Active: true}, nil
}

func (m *mockCatalog) ListServices(ctx context.Context) ([]*model.Service, error) {
	return nil, nil
}

func (m *mockCatalog) ListProfessionalsByCategory(ctx context.Context, category string) ([]*model.Professional, error) {
	return nil, nil
}

type mockAvailability struct {
	slotsFunc func(ctx context.Context, professionalID string, from, to time.Time, durationMin int) ([]time.Time, error)
}

func (m *mockAvailability) AvailableSlots(ctx context.Context, professionalID string, from, to time.Time, serviceDurationMin int) ([]time.Time, error) {
	if m.slotsFunc != nil {
		return m.slotsFunc(ctx, professionalID, from, to, serviceDurationMin)
	}
	return []time.Time{from}, nil
}

type mockReservations struct {
	reserveFunc func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error)
	lastRequest *model.ReserveRequest
	attempts    int
}

func (m *mockReservations) Reserve(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
	m.lastRequest = req
	m.attempts++
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, req)
	}
	return &model.Reservation{
		ID:             "res-1",
		CustomerRef:    req.CustomerRef,
		ProfessionalID: req.ProfessionalID,
		ServiceIDs:     req.ServiceIDs,
		StartTime:      req.StartTime,
		EndTime:        req.StartTime.Add(70 * time.Minute),
		DurationMin:    70,
		Status:         model.ReservationStatusConfirmed,
		CustomerName:   req.CustomerName,
	}, nil
}

func (m *mockReservations) Cancel(ctx context.Context, id string) error {
	return nil
}

func (m *mockReservations) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return nil, apperrors.NotFound("Reservation")
}

func (m *mockReservations) SearchByProfessional(ctx context.Context, professionalID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return nil, 0, nil
}

// --- Helpers ---

func dialogConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
	return &config.Config{Log: log}
}

func newTestDialog(store *memoryStore, reservations *mockReservations) DialogService {
	return NewDialogService(store, &mockCatalog{}, &mockAvailability{}, reservations, dialogConfig())
}

func submit(t *testing.T, svc DialogService, conv, intent string, fields fsm.IntentFields) *model.TransitionOutcome {
	t.Helper()
	outcome, err := svc.SubmitIntent(context.Background(), conv, intent, fields)
	if err != nil {
		t.Fatalf("intent %s: unexpected error: %v", intent, err)
	}
	return outcome
}

func walkToConfirmation(t *testing.T, svc DialogService, conv string, start time.Time) {
	t.Helper()
	steps := []struct {
		intent string
		fields fsm.IntentFields
	}{
		{model.IntentStartBooking, fsm.IntentFields{}},
		{model.IntentConfirmServices, fsm.IntentFields{ServiceIDs: []string{"svc-a"}}},
		{model.IntentSelectProfessional, fsm.IntentFields{ProfessionalID: "prof-1"}},
		{model.IntentSelectSlot, fsm.IntentFields{SlotStart: &start}},
		{model.IntentProvideCustomerData, fsm.IntentFields{CustomerName: "Ana Gomez"}},
	}
	for _, step := range steps {
		outcome := submit(t, svc, conv, step.intent, step.fields)
		if !outcome.Accepted {
			t.Fatalf("intent %s rejected during walk: %s", step.intent, outcome.Reason)
		}
	}
}

// --- Tests ---

func TestSubmitIntent_FullDialog(t *testing.T) {
	store := newMemoryStore()
	reservations := &mockReservations{}
	svc := newTestDialog(store, reservations)

	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	walkToConfirmation(t, svc, "conv-1", start)

	outcome := submit(t, svc, "conv-1", model.IntentConfirmBooking, fsm.IntentFields{})
	if !outcome.Accepted {
		t.Fatalf("confirmation rejected: %s", outcome.Reason)
	}
	if outcome.NewState != model.StateBooked {
		t.Errorf("expected BOOKED, got %s", outcome.NewState)
	}
	if outcome.ReservationID != "res-1" {
		t.Errorf("expected reservation ID in outcome, got %q", outcome.ReservationID)
	}

	if reservations.lastRequest == nil {
		t.Fatal("reservation engine was never invoked")
	}
	if reservations.lastRequest.CustomerRef != "conv-1" {
		t.Errorf("expected customer ref conv-1, got %s", reservations.lastRequest.CustomerRef)
	}
	if !reservations.lastRequest.StartTime.Equal(start) {
		t.Errorf("expected start %v, got %v", start, reservations.lastRequest.StartTime)
	}

	// BOOKED auto-resets: the stored session is gone and a new booking
	// can start immediately.
	if _, ok := store.sessions["conv-1"]; ok {
		t.Error("session not reset after confirmation")
	}
	restart := submit(t, svc, "conv-1", model.IntentStartBooking, fsm.IntentFields{})
	if !restart.Accepted || restart.NewState != model.StateServiceSelection {
		t.Errorf("expected fresh dialog after booking, got %+v", restart)
	}
}

func TestSubmitIntent_RejectionPersistsNothing(t *testing.T) {
	store := newMemoryStore()
	svc := newTestDialog(store, &mockReservations{})

	outcome := submit(t, svc, "conv-1", model.IntentConfirmBooking, fsm.IntentFields{})
	if outcome.Accepted {
		t.Fatal("expected wrong_state rejection from IDLE")
	}
	if outcome.Reason != model.ReasonWrongState {
		t.Errorf("expected %s, got %s", model.ReasonWrongState, outcome.Reason)
	}
	if store.saves != 0 {
		t.Errorf("rejected turn persisted the session %d times", store.saves)
	}
	if outcome.NewState != model.StateIdle {
		t.Errorf("expected state to remain IDLE, got %s", outcome.NewState)
	}
}

func TestSubmitIntent_BusinessRejectionKeepsSession(t *testing.T) {
	store := newMemoryStore()
	reservations := &mockReservations{
		reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
			return nil, apperrors.Rejection(model.ReasonSlotTaken, "slot gone")
		},
	}
	svc := newTestDialog(store, reservations)

	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	walkToConfirmation(t, svc, "conv-1", start)

	outcome := submit(t, svc, "conv-1", model.IntentConfirmBooking, fsm.IntentFields{})
	if outcome.Accepted {
		t.Fatal("expected business rejection")
	}
	if outcome.Reason != model.ReasonSlotTaken {
		t.Errorf("expected %s, got %s", model.ReasonSlotTaken, outcome.Reason)
	}
	if outcome.NewState != model.StateConfirmation {
		t.Errorf("expected session to stay in CONFIRMATION, got %s", outcome.NewState)
	}
	if outcome.PrescribedNextOperation != model.OpListAvailableSlots {
		t.Errorf("expected recovery operation %s, got %s", model.OpListAvailableSlots, outcome.PrescribedNextOperation)
	}

	// The stored session is untouched; picking another slot must work.
	stored, ok := store.sessions["conv-1"]
	if !ok || stored.State != model.StateConfirmation {
		t.Fatalf("stored session lost or mutated: %+v", stored)
	}
}

func TestSubmitIntent_RecoveryOperations(t *testing.T) {
	cases := []struct {
		reason string
		wantOp string
	}{
		{model.ReasonSlotTaken, model.OpListAvailableSlots},
		{model.ReasonTooSoon, model.OpListAvailableSlots},
		{model.ReasonCategoryMismatch, model.OpListServices},
		{model.ReasonProfessionalNotFound, model.OpListProfessionals},
		{model.ReasonRetryLater, model.OpConfirmSummary},
	}

	for _, tc := range cases {
		store := newMemoryStore()
		reservations := &mockReservations{
			reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
				return nil, apperrors.Rejection(tc.reason, "rejected")
			},
		}
		svc := newTestDialog(store, reservations)

		start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
		walkToConfirmation(t, svc, "conv-1", start)

		outcome := submit(t, svc, "conv-1", model.IntentConfirmBooking, fsm.IntentFields{})
		if outcome.Accepted {
			t.Fatalf("reason %s: expected rejection", tc.reason)
		}
		if outcome.PrescribedNextOperation != tc.wantOp {
			t.Errorf("reason %s: expected recovery %s, got %s", tc.reason, tc.wantOp, outcome.PrescribedNextOperation)
		}
	}
}

func TestSubmitIntent_StoreFailureRetriedThenRetryLater(t *testing.T) {
	store := newMemoryStore()
	reservations := &mockReservations{
		reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
			return nil, apperrors.Internal("Failed to commit reservation", context.DeadlineExceeded)
		},
	}
	svc := newTestDialog(store, reservations)

	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	walkToConfirmation(t, svc, "conv-1", start)

	outcome := submit(t, svc, "conv-1", model.IntentConfirmBooking, fsm.IntentFields{})
	if outcome.Accepted {
		t.Fatal("expected a rejected outcome when the store keeps failing")
	}
	if outcome.Reason != model.ReasonRetryLater {
		t.Errorf("expected %s, got %s", model.ReasonRetryLater, outcome.Reason)
	}
	if outcome.PrescribedNextOperation != model.OpConfirmSummary {
		t.Errorf("expected recovery %s, got %s", model.OpConfirmSummary, outcome.PrescribedNextOperation)
	}
	if reservations.attempts != 3 {
		t.Errorf("expected 3 reservation attempts, got %d", reservations.attempts)
	}

	// The session survives so the user can confirm again once the store
	// recovers.
	stored, ok := store.sessions["conv-1"]
	if !ok || stored.State != model.StateConfirmation {
		t.Fatalf("stored session lost or mutated: %+v", stored)
	}
}

func TestSubmitIntent_RejectionsAndCallerErrorsNotRetried(t *testing.T) {
	rejections := &mockReservations{
		reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
			return nil, apperrors.Rejection(model.ReasonSlotTaken, "slot gone")
		},
	}
	svc := newTestDialog(newMemoryStore(), rejections)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	walkToConfirmation(t, svc, "conv-1", start)
	submit(t, svc, "conv-1", model.IntentConfirmBooking, fsm.IntentFields{})
	if rejections.attempts != 1 {
		t.Errorf("business rejection retried: %d attempts", rejections.attempts)
	}

	invalid := &mockReservations{
		reserveFunc: func(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
			return nil, apperrors.Validation("bad request", nil)
		},
	}
	svc = newTestDialog(newMemoryStore(), invalid)
	walkToConfirmation(t, svc, "conv-1", start)
	if _, err := svc.SubmitIntent(context.Background(), "conv-1", model.IntentConfirmBooking, fsm.IntentFields{}); err == nil {
		t.Error("expected the validation error to surface")
	}
	if invalid.attempts != 1 {
		t.Errorf("caller error retried: %d attempts", invalid.attempts)
	}
}

func TestSubmitIntent_CancelIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc := newTestDialog(store, &mockReservations{})

	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	walkToConfirmation(t, svc, "conv-1", start)

	first := submit(t, svc, "conv-1", model.IntentCancelBooking, fsm.IntentFields{})
	if !first.Accepted || first.NewState != model.StateIdle {
		t.Fatalf("cancel rejected: %+v", first)
	}
	if _, ok := store.sessions["conv-1"]; ok {
		t.Error("session survived cancellation")
	}

	second := submit(t, svc, "conv-1", model.IntentCancelBooking, fsm.IntentFields{})
	if !second.Accepted || second.NewState != model.StateIdle {
		t.Errorf("repeated cancel not idempotent: %+v", second)
	}
}

func TestSubmitIntent_InvalidArguments(t *testing.T) {
	svc := newTestDialog(newMemoryStore(), &mockReservations{})

	if _, err := svc.SubmitIntent(context.Background(), "", model.IntentStartBooking, fsm.IntentFields{}); err == nil {
		t.Error("expected error for empty conversation ID")
	}
	if _, err := svc.SubmitIntent(context.Background(), "conv-1", "order_pizza", fsm.IntentFields{}); err == nil {
		t.Error("expected error for unknown intent")
	}
}

func TestSubmitIntent_SlotMustBeOpen(t *testing.T) {
	store := newMemoryStore()
	availability := &mockAvailability{
		slotsFunc: func(ctx context.Context, professionalID string, from, to time.Time, durationMin int) ([]time.Time, error) {
			return nil, nil
		},
	}
	svc := NewDialogService(store, &mockCatalog{}, availability, &mockReservations{}, dialogConfig())

	submit(t, svc, "conv-1", model.IntentStartBooking, fsm.IntentFields{})
	submit(t, svc, "conv-1", model.IntentConfirmServices, fsm.IntentFields{ServiceIDs: []string{"svc-a"}})
	submit(t, svc, "conv-1", model.IntentSelectProfessional, fsm.IntentFields{ProfessionalID: "prof-1"})

	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	outcome := submit(t, svc, "conv-1", model.IntentSelectSlot, fsm.IntentFields{SlotStart: &start})
	if outcome.Accepted {
		t.Fatal("expected rejection for a slot the index does not offer")
	}
	if outcome.Reason != model.ReasonValidationFailed {
		t.Errorf("expected %s, got %s", model.ReasonValidationFailed, outcome.Reason)
	}
}
