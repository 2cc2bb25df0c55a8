package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	reservationserrors "turnera/internal/reservations/errors"
	"turnera/pkg/contracts"
	"turnera/pkg/kafka"
	"turnera/pkg/logger"
)

type mockEventsAPI struct {
	createFunc func(ctx context.Context, cmd contracts.MirrorCommand) (string, error)
	deleteFunc func(ctx context.Context, professionalID, eventID string) error
	deleted    []string
}

func (m *mockEventsAPI) CreateEvent(ctx context.Context, cmd contracts.MirrorCommand) (string, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, cmd)
	}
	return "evt-1", nil
}

func (m *mockEventsAPI) DeleteEvent(ctx context.Context, professionalID, eventID string) error {
	m.deleted = append(m.deleted, eventID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, professionalID, eventID)
	}
	return nil
}

type mockReservationStore struct {
	setFunc func(ctx context.Context, id, calendarEventID string) error
	set     map[string]string
}

func (m *mockReservationStore) SetCalendarEventID(ctx context.Context, id string, calendarEventID string) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, id, calendarEventID)
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[id] = calendarEventID
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
}

func mirrorMessage(t *testing.T, cmd contracts.MirrorCommand) kafka.Message {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("failed to marshal command: %v", err)
	}
	return kafka.Message{Key: cmd.ProfessionalID, Value: data, Headers: map[string]string{}}
}

func createCommand() contracts.MirrorCommand {
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	return contracts.MirrorCommand{
		Action:         contracts.MirrorActionCreate,
		ReservationID:  "res-1",
		ProfessionalID: "prof-1",
		StartTime:      start,
		EndTime:        start.Add(80 * time.Minute),
		Summary:        "Ana Gomez",
	}
}

func TestHandle_CreateMirrorsAndPersistsEventID(t *testing.T) {
	events := &mockEventsAPI{}
	store := &mockReservationStore{}
	mirror := NewMirror(events, store, testLogger())

	if err := mirror.Handle(context.Background(), mirrorMessage(t, createCommand())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.set["res-1"] != "evt-1" {
		t.Errorf("expected event ID persisted on the reservation, got %q", store.set["res-1"])
	}
}

func TestHandle_CreateFailureIsTransient(t *testing.T) {
	events := &mockEventsAPI{
		createFunc: func(ctx context.Context, cmd contracts.MirrorCommand) (string, error) {
			return "", errors.New("provider down")
		},
	}
	mirror := NewMirror(events, &mockReservationStore{}, testLogger())

	err := mirror.Handle(context.Background(), mirrorMessage(t, createCommand()))
	if err == nil {
		t.Fatal("expected error so the consumer retries")
	}
	var kErr *kafka.KafkaError
	if !errors.As(err, &kErr) || !kErr.IsTransient() {
		t.Errorf("expected transient error, got: %v", err)
	}
}

func TestHandle_CreateForCancelledReservationRemovesOrphan(t *testing.T) {
	events := &mockEventsAPI{}
	store := &mockReservationStore{
		setFunc: func(ctx context.Context, id, calendarEventID string) error {
			return reservationserrors.ErrNotFound
		},
	}
	mirror := NewMirror(events, store, testLogger())

	if err := mirror.Handle(context.Background(), mirrorMessage(t, createCommand())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.deleted) != 1 || events.deleted[0] != "evt-1" {
		t.Errorf("expected orphaned event removed, deletions: %v", events.deleted)
	}
}

func TestHandle_Delete(t *testing.T) {
	events := &mockEventsAPI{}
	mirror := NewMirror(events, &mockReservationStore{}, testLogger())

	cmd := createCommand()
	cmd.Action = contracts.MirrorActionDelete
	cmd.CalendarEventID = "evt-9"

	if err := mirror.Handle(context.Background(), mirrorMessage(t, cmd)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.deleted) != 1 || events.deleted[0] != "evt-9" {
		t.Errorf("expected delete of evt-9, got: %v", events.deleted)
	}
}

func TestHandle_DeleteWithoutEventIDSkips(t *testing.T) {
	events := &mockEventsAPI{}
	mirror := NewMirror(events, &mockReservationStore{}, testLogger())

	cmd := createCommand()
	cmd.Action = contracts.MirrorActionDelete
	cmd.CalendarEventID = ""

	if err := mirror.Handle(context.Background(), mirrorMessage(t, cmd)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.deleted) != 0 {
		t.Errorf("expected no provider call, got deletions: %v", events.deleted)
	}
}

func TestHandle_UnknownActionIsPermanent(t *testing.T) {
	mirror := NewMirror(&mockEventsAPI{}, &mockReservationStore{}, testLogger())

	cmd := createCommand()
	cmd.Action = "upsert"

	err := mirror.Handle(context.Background(), mirrorMessage(t, cmd))
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	var kErr *kafka.KafkaError
	if !errors.As(err, &kErr) || !kErr.IsPermanent() {
		t.Errorf("expected permanent error, got: %v", err)
	}
}
