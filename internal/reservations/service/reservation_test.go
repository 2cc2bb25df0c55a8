package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	catalogerrors "turnera/internal/catalog/errors"
	reservationserrors "turnera/internal/reservations/errors"
	"turnera/internal/reservations/validator"
	"turnera/pkg/config"
	mongotx "turnera/pkg/db/mongo"
	apperrors "turnera/pkg/errors"
	"turnera/pkg/kafka"
	"turnera/pkg/logger"
	"turnera/pkg/model"
)

const (
	testProfessionalID = "507f1f77bcf86cd799439011"
	testServiceA       = "507f1f77bcf86cd799439021"
	testServiceB       = "507f1f77bcf86cd799439022"
)

// --- Mocks ---

type mockCatalog struct {
	resolveServicesFunc     func(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error)
	resolveProfessionalFunc func(ctx context.Context, professionalID, category string) (*model.Professional, error)
}

func (m *mockCatalog) ResolveServices(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error) {
	if m.resolveServicesFunc != nil {
		return m.resolveServicesFunc(ctx, serviceIDs)
	}
	services := []*model.Service{
		{ID: testServiceA, Name: "Cut", Category: "hair", DurationMin: 40},
		{ID: testServiceB, Name: "Color", Category: "hair", DurationMin: 30},
	}
	return services, "hair", 70, nil
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

// memoryReservationRepo is an in-memory repository with the same filter
// semantics as the Mongo one. Transactions degrade to a plain callback;
// mutual exclusion comes from the slot lock, which is what the tests
// exercise.
type memoryReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	nextID       int
}

func newMemoryReservationRepo() *memoryReservationRepo {
	return &memoryReservationRepo{reservations: make(map[string]*model.Reservation)}
}

func (m *memoryReservationRepo) Create(ctx context.Context, reservation *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	reservation.ID = fmt.Sprintf("%024d", m.nextID)
	stored := *reservation
	m.reservations[reservation.ID] = &stored
	return nil
}

func (m *memoryReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	found := *stored
	return &found, nil
}

func (m *memoryReservationRepo) FindConfirmedBetween(ctx context.Context, professionalID string, from, to time.Time) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.reservations {
		if r.ProfessionalID != professionalID || r.Status != model.ReservationStatusConfirmed {
			continue
		}
		if r.StartTime.Before(to) && r.EndTime.After(from) {
			found := *r
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *memoryReservationRepo) FindByProfessionalAndRange(ctx context.Context, professionalID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *memoryReservationRepo) CountByProfessionalAndRange(ctx context.Context, professionalID string, from, to *time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryReservationRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reservations[id]
	if !ok {
		return reservationserrors.ErrNotFound
	}
	stored.Status = status
	return nil
}

func (m *memoryReservationRepo) SetCalendarEventID(ctx context.Context, id string, calendarEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reservations[id]
	if !ok || stored.Status != model.ReservationStatusConfirmed {
		return reservationserrors.ErrNotFound
	}
	stored.CalendarEventID = calendarEventID
	return nil
}

func (m *memoryReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// memorySlotLock implements the advisory lock with the same contract as
// the Mongo repository: acquisition fails with ErrLockHeld while held.
type memorySlotLock struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemorySlotLock() *memorySlotLock {
	return &memorySlotLock{held: make(map[string]string)}
}

func (m *memorySlotLock) TryAcquire(ctx context.Context, professionalID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.held[professionalID]; taken {
		return reservationserrors.ErrLockHeld
	}
	m.held[professionalID] = owner
	return nil
}

func (m *memorySlotLock) Release(ctx context.Context, professionalID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[professionalID] == owner {
		delete(m.held, professionalID)
	}
	return nil
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
	calls       atomic.Int64
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.calls.Add(1)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return nil
}

// --- Helpers ---

func newTestConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
	return &config.Config{
		Log:               log,
		MinLeadTimeDays:   1,
		SlotBufferMin:     10,
		BusinessTimeZone:  "UTC",
		LockWaitTimeout:   5 * time.Second,
		LockRetryInterval: 2 * time.Millisecond,
	}
}

func newTestService(cfg *config.Config, repo *memoryReservationRepo, lock *memorySlotLock, catalog *mockCatalog, mirror, events Publisher) ReservationService {
	return NewReservationService(
		repo,
		lock,
		catalog,
		validator.NewReservationValidator(cfg.Log),
		mirror,
		events,
		cfg,
	)
}

// alignedFuture returns a minute-aligned start comfortably past the
// minimum lead time.
func alignedFuture(days int, hour, minute int) time.Time {
	base := time.Now().UTC().AddDate(0, 0, days)
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
}

func validRequest(start time.Time) *model.ReserveRequest {
	return &model.ReserveRequest{
		CustomerRef:    "conv-12345",
		ProfessionalID: testProfessionalID,
		ServiceIDs:     []string{testServiceA, testServiceB},
		StartTime:      start,
		CustomerName:   "Ana Gomez",
	}
}

func rejectionReason(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected a rejection, got nil error")
	}
	reason, ok := apperrors.RejectionReason(err)
	if !ok {
		t.Fatalf("expected a rejection, got: %v", err)
	}
	return reason
}

// --- Tests ---

func TestReserve_Confirmed(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	svc := newTestService(cfg, repo, newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

	start := alignedFuture(7, 10, 0)
	reservation, err := svc.Reserve(context.Background(), validRequest(start))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reservation.ID == "" {
		t.Error("expected an assigned reservation ID")
	}
	if reservation.Status != model.ReservationStatusConfirmed {
		t.Errorf("expected status confirmed, got %s", reservation.Status)
	}
	if reservation.DurationMin != 70 {
		t.Errorf("expected summed duration 70, got %d", reservation.DurationMin)
	}
	// Stored end excludes the buffer; the buffer only widens conflict windows.
	wantEnd := start.Add(70 * time.Minute)
	if !reservation.EndTime.Equal(wantEnd) {
		t.Errorf("expected end time %v, got %v", wantEnd, reservation.EndTime)
	}
}

func TestReserve_LeadTimeBoundary(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	svc := newTestService(cfg, repo, newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

	fixedNow := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	svc.(*reservationService).now = func() time.Time { return fixedNow }

	minimum := fixedNow.Add(24 * time.Hour)

	_, err := svc.Reserve(context.Background(), validRequest(minimum.Add(-time.Minute)))
	if reason := rejectionReason(t, err); reason != model.ReasonTooSoon {
		t.Errorf("expected reason %s one minute before the minimum, got %s", model.ReasonTooSoon, reason)
	}

	if _, err := svc.Reserve(context.Background(), validRequest(minimum)); err != nil {
		t.Errorf("expected acceptance exactly at the minimum lead time, got: %v", err)
	}
}

func TestReserve_CategoryMismatch(t *testing.T) {
	cfg := newTestConfig()
	catalog := &mockCatalog{
		resolveServicesFunc: func(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error) {
			return nil, "", 0, catalogerrors.ErrCategoryMismatch
		},
	}
	svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), catalog, &mockPublisher{}, &mockPublisher{})

	_, err := svc.Reserve(context.Background(), validRequest(alignedFuture(7, 10, 0)))
	if reason := rejectionReason(t, err); reason != model.ReasonCategoryMismatch {
		t.Errorf("expected reason %s, got %s", model.ReasonCategoryMismatch, reason)
	}
}

func TestReserve_ProfessionalNotFound(t *testing.T) {
	cfg := newTestConfig()
	catalog := &mockCatalog{
		resolveProfessionalFunc: func(ctx context.Context, professionalID, category string) (*model.Professional, error) {
			return nil, catalogerrors.ErrProfessionalNotFound
		},
	}
	svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), catalog, &mockPublisher{}, &mockPublisher{})

	_, err := svc.Reserve(context.Background(), validRequest(alignedFuture(7, 10, 0)))
	if reason := rejectionReason(t, err); reason != model.ReasonProfessionalNotFound {
		t.Errorf("expected reason %s, got %s", model.ReasonProfessionalNotFound, reason)
	}
}

func TestReserve_InactiveProfessionalRejected(t *testing.T) {
	cfg := newTestConfig()
	catalog := &mockCatalog{
		resolveProfessionalFunc: func(ctx context.Context, professionalID, category string) (*model.Professional, error) {
			return nil, catalogerrors.ErrProfessionalInactive
		},
	}
	svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), catalog, &mockPublisher{}, &mockPublisher{})

	_, err := svc.Reserve(context.Background(), validRequest(alignedFuture(7, 10, 0)))
	if reason := rejectionReason(t, err); reason != model.ReasonProfessionalNotFound {
		t.Errorf("expected reason %s, got %s", model.ReasonProfessionalNotFound, reason)
	}
}

func TestReserve_RetryLaterOnLockTimeout(t *testing.T) {
	cfg := newTestConfig()
	cfg.LockWaitTimeout = 20 * time.Millisecond

	lock := newMemorySlotLock()
	if err := lock.TryAcquire(context.Background(), testProfessionalID, "other-writer"); err != nil {
		t.Fatalf("failed to pre-acquire lock: %v", err)
	}

	svc := newTestService(cfg, newMemoryReservationRepo(), lock, &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

	_, err := svc.Reserve(context.Background(), validRequest(alignedFuture(7, 10, 0)))
	if reason := rejectionReason(t, err); reason != model.ReasonRetryLater {
		t.Errorf("expected reason %s, got %s", model.ReasonRetryLater, reason)
	}
}

func TestReserve_UnalignedStartRejected(t *testing.T) {
	cfg := newTestConfig()
	svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

	req := validRequest(alignedFuture(7, 10, 0).Add(30 * time.Second))
	_, err := svc.Reserve(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error for sub-minute start")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected %s, got: %v", apperrors.CodeValidation, err)
	}
}

// The reference scenario: services A (40min) and B (30min), 10-minute
// buffer. Once 10:00-11:10 is confirmed, a 10:30 request must lose, and
// 11:20 (exactly one buffer after the end) must win.
func TestReserve_BufferedOverlap(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	svc := newTestService(cfg, repo, newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})
	ctx := context.Background()

	first, err := svc.Reserve(ctx, validRequest(alignedFuture(7, 10, 0)))
	if err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}
	if got := first.EndTime.Sub(first.StartTime); got != 70*time.Minute {
		t.Fatalf("expected 70 minute span, got %v", got)
	}

	_, err = svc.Reserve(ctx, validRequest(alignedFuture(7, 10, 30)))
	if reason := rejectionReason(t, err); reason != model.ReasonSlotTaken {
		t.Errorf("expected reason %s, got %s", model.ReasonSlotTaken, reason)
	}

	// 11:10 end + 10 minute buffer: 11:20 is the first admissible start.
	if _, err := svc.Reserve(ctx, validRequest(alignedFuture(7, 11, 20))); err != nil {
		t.Errorf("expected back-to-back reservation after the buffer, got: %v", err)
	}

	_, err = svc.Reserve(ctx, validRequest(alignedFuture(7, 11, 15)))
	if reason := rejectionReason(t, err); reason != model.ReasonSlotTaken {
		t.Errorf("expected reason %s inside the trailing buffer, got %s", model.ReasonSlotTaken, reason)
	}
}

func TestReserve_MutualExclusion(t *testing.T) {
	const (
		trials  = 100
		writers = 8
	)
	start := alignedFuture(7, 10, 0)

	for trial := 0; trial < trials; trial++ {
		cfg := newTestConfig()
		svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

		var wg sync.WaitGroup
		var confirmed, slotTaken atomic.Int64
		errs := make(chan error, writers)

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Reserve(context.Background(), validRequest(start))
				if err == nil {
					confirmed.Add(1)
					return
				}
				if reason, ok := apperrors.RejectionReason(err); ok && reason == model.ReasonSlotTaken {
					slotTaken.Add(1)
					return
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		if confirmed.Load() != 1 {
			t.Fatalf("trial %d: expected exactly 1 confirmed reservation, got %d", trial, confirmed.Load())
		}
		if slotTaken.Load() != writers-1 {
			t.Fatalf("trial %d: expected %d slot_taken rejections, got %d", trial, writers-1, slotTaken.Load())
		}
	}
}

func TestReserve_PublishFailureDoesNotAffectResult(t *testing.T) {
	cfg := newTestConfig()
	published := make(chan struct{}, 2)
	failing := &mockPublisher{
		publishFunc: func(ctx context.Context, msg kafka.Message) error {
			published <- struct{}{}
			return fmt.Errorf("broker unreachable")
		},
	}
	svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), &mockCatalog{}, failing, failing)

	reservation, err := svc.Reserve(context.Background(), validRequest(alignedFuture(7, 10, 0)))
	if err != nil {
		t.Fatalf("publish failure leaked into the reservation result: %v", err)
	}
	if reservation.Status != model.ReservationStatusConfirmed {
		t.Errorf("expected confirmed, got %s", reservation.Status)
	}

	// Both the mirror command and the domain event are still attempted.
	for i := 0; i < 2; i++ {
		select {
		case <-published:
		case <-time.After(2 * time.Second):
			t.Fatal("detached publish was never attempted")
		}
	}
}

func TestCancel_Idempotent(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	mirror := &mockPublisher{}
	svc := newTestService(cfg, repo, newMemorySlotLock(), &mockCatalog{}, mirror, &mockPublisher{})
	ctx := context.Background()

	reservation, err := svc.Reserve(ctx, validRequest(alignedFuture(7, 10, 0)))
	if err != nil {
		t.Fatalf("reservation failed: %v", err)
	}

	if err := svc.Cancel(ctx, reservation.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	stored, err := repo.FindByID(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("failed to reload reservation: %v", err)
	}
	if stored.Status != model.ReservationStatusCancelled {
		t.Errorf("expected cancelled, got %s", stored.Status)
	}

	// Wait for the detached confirm + cancel publishes to settle.
	deadline := time.Now().Add(2 * time.Second)
	for mirror.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	callsAfterFirst := mirror.calls.Load()

	if err := svc.Cancel(ctx, reservation.ID); err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := mirror.calls.Load(); got != callsAfterFirst {
		t.Errorf("idempotent cancel re-published a mirror delete: %d -> %d", callsAfterFirst, got)
	}
}

func TestCancel_NotFound(t *testing.T) {
	cfg := newTestConfig()
	svc := newTestService(cfg, newMemoryReservationRepo(), newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

	err := svc.Cancel(context.Background(), "000000000000000000000000")
	if err == nil {
		t.Fatal("expected not-found error")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected %s, got: %v", apperrors.CodeNotFound, err)
	}
}

// A cancel racing the calendar mirror: once the reservation is cancelled,
// persisting the provider event ID must fail with ErrNotFound so the
// mirror removes the just-created external event.
func TestCancel_BlocksLateCalendarEventAttach(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	svc := newTestService(cfg, repo, newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})
	ctx := context.Background()

	reservation, err := svc.Reserve(ctx, validRequest(alignedFuture(7, 10, 0)))
	if err != nil {
		t.Fatalf("reservation failed: %v", err)
	}
	if err := svc.Cancel(ctx, reservation.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	err = repo.SetCalendarEventID(ctx, reservation.ID, "evt-late")
	if !errors.Is(err, reservationserrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a cancelled reservation, got: %v", err)
	}

	stored, err := repo.FindByID(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("failed to reload reservation: %v", err)
	}
	if stored.CalendarEventID != "" {
		t.Errorf("calendar event id attached to a cancelled reservation: %q", stored.CalendarEventID)
	}
}

func TestReserve_LockReleasedAfterRejection(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	lock := newMemorySlotLock()
	svc := newTestService(cfg, repo, lock, &mockCatalog{}, &mockPublisher{}, &mockPublisher{})
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, validRequest(alignedFuture(7, 10, 0))); err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}
	if _, err := svc.Reserve(ctx, validRequest(alignedFuture(7, 10, 0))); err == nil {
		t.Fatal("expected slot_taken")
	}

	lock.mu.Lock()
	held := len(lock.held)
	lock.mu.Unlock()
	if held != 0 {
		t.Errorf("expected all locks released, %d still held", held)
	}
}

func TestReserve_NameSanitized(t *testing.T) {
	cfg := newTestConfig()
	repo := newMemoryReservationRepo()
	svc := newTestService(cfg, repo, newMemorySlotLock(), &mockCatalog{}, &mockPublisher{}, &mockPublisher{})

	req := validRequest(alignedFuture(7, 10, 0))
	req.CustomerName = "  Ana   Gomez  "
	reservation, err := svc.Reserve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(reservation.CustomerName, "  ") || reservation.CustomerName != "Ana Gomez" {
		t.Errorf("expected normalized name, got %q", reservation.CustomerName)
	}
}
