package service

import (
	"context"
	"errors"
	"time"

	catalogerrors "turnera/internal/catalog/errors"
	catalogservice "turnera/internal/catalog/service"
	reservationserrors "turnera/internal/reservations/errors"
	"turnera/internal/reservations/repository"
	"turnera/internal/reservations/validator"
	"turnera/pkg/config"
	"turnera/pkg/contracts"
	apperrors "turnera/pkg/errors"
	"turnera/pkg/kafka"
	"turnera/pkg/model"
	"turnera/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const publishTimeout = 10 * time.Second

// Publisher is the slice of the Kafka producer the service needs; the
// detached post-commit publishes go through it.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type ReservationService interface {
	// Reserve commits a confirmed reservation or returns a typed
	// rejection. The calendar mirror and the domain event are dispatched
	// after commit and never affect the returned result.
	Reserve(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error)

	// Cancel flips the reservation to cancelled. Cancelling an already
	// cancelled reservation is a no-op success.
	Cancel(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	SearchByProfessional(ctx context.Context, professionalID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.SlotLockRepository
	catalog   catalogservice.CatalogService
	validator *validator.ReservationValidator
	mirror    Publisher
	events    Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.SlotLockRepository,
	catalog catalogservice.CatalogService,
	reservationValidator *validator.ReservationValidator,
	mirror Publisher,
	events Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		catalog:   catalog,
		validator: reservationValidator,
		mirror:    mirror,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *reservationService) Reserve(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
	s.sanitize(req)
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Reservation request validation failed", "error", err)
		return nil, apperrors.Validation("Reservation request validation failed", map[string]any{"error": err.Error()})
	}

	// Fail-fast prechecks: no lock contention for requests that can never
	// commit.
	if err := s.checkLeadTime(req.StartTime); err != nil {
		return nil, err
	}

	_, category, totalMin, err := s.resolveServices(ctx, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	blockedEnd := req.StartTime.Add(time.Duration(totalMin+s.cfg.SlotBufferMin) * time.Minute)

	owner := uuid.New().String()
	if err := s.acquireSlotLock(ctx, req.ProfessionalID, owner); err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(context.WithoutCancel(ctx), req.ProfessionalID, owner); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "professional_id", req.ProfessionalID, "error", releaseErr)
		}
	}()

	reservation := &model.Reservation{
		CustomerRef:    req.CustomerRef,
		ProfessionalID: req.ProfessionalID,
		ServiceIDs:     req.ServiceIDs,
		StartTime:      req.StartTime,
		EndTime:        req.StartTime.Add(time.Duration(totalMin) * time.Minute),
		DurationMin:    totalMin,
		Status:         model.ReservationStatusConfirmed,
		CustomerName:   req.CustomerName,
		Notes:          req.Notes,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.resolveProfessional(sessCtx, req.ProfessionalID, category); err != nil {
			return err
		}

		// Locked overlap re-check. The advisory availability read can be
		// stale; this check under the lock is the sole double-booking
		// guard. The window is expanded by the buffer on both sides so
		// each appointment keeps its trailing buffer.
		overlapping, err := s.repo.FindConfirmedBetween(
			sessCtx,
			req.ProfessionalID,
			req.StartTime.Add(-time.Duration(s.cfg.SlotBufferMin)*time.Minute),
			blockedEnd,
		)
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		if len(overlapping) > 0 {
			return apperrors.Rejection(model.ReasonSlotTaken, "The requested slot is no longer available")
		}

		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		if reason, ok := apperrors.RejectionReason(err); ok {
			s.cfg.Log.Warn("Reservation rejected",
				"reason", reason,
				"professional_id", req.ProfessionalID,
				"start_time", req.StartTime,
			)
			return nil, err
		}
		s.cfg.Log.Error("Failed to commit reservation", "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation confirmed",
		"id", reservation.ID,
		"professional_id", reservation.ProfessionalID,
		"start_time", reservation.StartTime,
		"duration_min", reservation.DurationMin,
	)

	// Detached post-commit side effects. The internal store is already
	// authoritative; failures here are logged and retried by the mirror
	// pipeline, never surfaced to the caller.
	go s.publishConfirmed(reservation, blockedEnd)

	return reservation, nil
}

func (s *reservationService) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	var reservation *model.Reservation
	var flipped bool
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		found, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			if errors.Is(err, reservationserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid reservation ID format")
			}
			return apperrors.Internal("Failed to retrieve reservation", err)
		}
		reservation = found

		if reservation.Status == model.ReservationStatusCancelled {
			return nil
		}

		if err := s.repo.UpdateStatus(sessCtx, id, model.ReservationStatusCancelled); err != nil {
			return apperrors.Internal("Failed to cancel reservation", err)
		}
		reservation.Status = model.ReservationStatusCancelled
		flipped = true
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel reservation", "id", id, "error", err)
		return err
	}

	if !flipped {
		s.cfg.Log.Info("Reservation already cancelled", "id", id)
		return nil
	}

	s.cfg.Log.Info("Reservation cancelled", "id", id)

	go s.publishCancelled(reservation)

	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) SearchByProfessional(ctx context.Context, professionalID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if professionalID == "" {
		return nil, 0, apperrors.InvalidInput("Professional ID cannot be empty")
	}

	reservations, err := s.repo.FindByProfessionalAndRange(ctx, professionalID, from, to, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to search reservations", "professional_id", professionalID, "error", err)
		return nil, 0, apperrors.Internal("Failed to search reservations", err)
	}

	count, err := s.repo.CountByProfessionalAndRange(ctx, professionalID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to count reservations", "professional_id", professionalID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count reservations", err)
	}

	return reservations, count, nil
}

// --- Helpers ---

func (s *reservationService) sanitize(req *model.ReserveRequest) {
	req.CustomerName = sanitizer.NormalizeName(req.CustomerName)
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
}

// checkLeadTime enforces the minimum lead time in the business's local
// timezone: the start must be at least N full days ahead of now.
func (s *reservationService) checkLeadTime(start time.Time) error {
	loc, err := time.LoadLocation(s.cfg.BusinessTimeZone)
	if err != nil {
		return apperrors.Internal("Invalid business timezone configuration", err)
	}

	minStart := s.now().In(loc).Add(time.Duration(s.cfg.MinLeadTimeDays) * 24 * time.Hour)
	if start.In(loc).Before(minStart) {
		return apperrors.Rejection(model.ReasonTooSoon, "Reservations require more advance notice")
	}
	return nil
}

func (s *reservationService) resolveServices(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error) {
	services, category, totalMin, err := s.catalog.ResolveServices(ctx, serviceIDs)
	if err != nil {
		switch {
		case errors.Is(err, catalogerrors.ErrCategoryMismatch):
			return nil, "", 0, apperrors.Rejection(model.ReasonCategoryMismatch, "All services must belong to the same category")
		case errors.Is(err, catalogerrors.ErrServiceNotFound):
			return nil, "", 0, apperrors.NotFound("Service")
		case errors.Is(err, catalogerrors.ErrNoServices):
			return nil, "", 0, apperrors.InvalidInput("At least one service is required")
		case errors.Is(err, catalogerrors.ErrDuplicateService):
			return nil, "", 0, apperrors.InvalidInput("Duplicate service IDs in request")
		case errors.Is(err, catalogerrors.ErrInvalidID):
			return nil, "", 0, apperrors.InvalidInput("Invalid service ID format")
		default:
			return nil, "", 0, apperrors.Internal("Failed to resolve services", err)
		}
	}
	return services, category, totalMin, nil
}

func (s *reservationService) resolveProfessional(ctx context.Context, professionalID, category string) (*model.Professional, error) {
	professional, err := s.catalog.ResolveActiveProfessional(ctx, professionalID, category)
	if err != nil {
		switch {
		case errors.Is(err, catalogerrors.ErrProfessionalNotFound),
			errors.Is(err, catalogerrors.ErrProfessionalInactive):
			return nil, apperrors.Rejection(model.ReasonProfessionalNotFound, "Professional is not available")
		case errors.Is(err, catalogerrors.ErrCategoryNotOffered):
			return nil, apperrors.Rejection(model.ReasonCategoryMismatch, "Professional does not offer this category")
		case errors.Is(err, catalogerrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid professional ID format")
		default:
			return nil, apperrors.Internal("Failed to resolve professional", err)
		}
	}
	return professional, nil
}

// acquireSlotLock waits a bounded time for the per-professional advisory
// lock. Contention past the deadline surfaces as retry_later rather than
// blocking the caller indefinitely.
func (s *reservationService) acquireSlotLock(ctx context.Context, professionalID, owner string) error {
	deadline := time.Now().Add(s.cfg.LockWaitTimeout)

	for {
		err := s.lockRepo.TryAcquire(ctx, professionalID, owner)
		if err == nil {
			return nil
		}
		if !errors.Is(err, reservationserrors.ErrLockHeld) {
			return apperrors.Internal("Failed to acquire slot lock", err)
		}
		if time.Now().After(deadline) {
			return apperrors.Rejection(model.ReasonRetryLater, "The professional's calendar is busy, please retry shortly")
		}

		select {
		case <-ctx.Done():
			return apperrors.Timeout("Request cancelled while waiting for slot lock")
		case <-time.After(s.cfg.LockRetryInterval):
		}
	}
}

func (s *reservationService) publishConfirmed(reservation *model.Reservation, blockedEnd time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	mirrorMsg := kafka.NewMessage().
		WithKey(reservation.ProfessionalID).
		WithEventType(kafka.EventMirrorCreate).
		WithSource("turnera").
		WithValue(contracts.MirrorCommand{
			Action:         contracts.MirrorActionCreate,
			ReservationID:  reservation.ID,
			ProfessionalID: reservation.ProfessionalID,
			StartTime:      reservation.StartTime,
			EndTime:        blockedEnd,
			Summary:        reservation.CustomerName,
			Notes:          reservation.Notes,
		}).
		Build()
	if err := s.mirror.Publish(ctx, mirrorMsg); err != nil {
		s.cfg.Log.Error("Failed to publish calendar mirror command",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}

	eventMsg := kafka.NewMessage().
		WithKey(reservation.ProfessionalID).
		WithEventType(kafka.EventReservationConfirmed).
		WithSource("turnera").
		WithValue(contracts.ReservationEvent{
			EventType:      kafka.EventReservationConfirmed,
			ReservationID:  reservation.ID,
			CustomerRef:    reservation.CustomerRef,
			ProfessionalID: reservation.ProfessionalID,
			StartTime:      reservation.StartTime,
			EndTime:        reservation.EndTime,
			CustomerName:   reservation.CustomerName,
		}).
		Build()
	if err := s.events.Publish(ctx, eventMsg); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}

func (s *reservationService) publishCancelled(reservation *model.Reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	mirrorMsg := kafka.NewMessage().
		WithKey(reservation.ProfessionalID).
		WithEventType(kafka.EventMirrorDelete).
		WithSource("turnera").
		WithValue(contracts.MirrorCommand{
			Action:          contracts.MirrorActionDelete,
			ReservationID:   reservation.ID,
			ProfessionalID:  reservation.ProfessionalID,
			StartTime:       reservation.StartTime,
			EndTime:         reservation.BlockedEnd(s.cfg.SlotBufferMin),
			CalendarEventID: reservation.CalendarEventID,
		}).
		Build()
	if err := s.mirror.Publish(ctx, mirrorMsg); err != nil {
		s.cfg.Log.Error("Failed to publish calendar mirror delete",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}

	eventMsg := kafka.NewMessage().
		WithKey(reservation.ProfessionalID).
		WithEventType(kafka.EventReservationCancelled).
		WithSource("turnera").
		WithValue(contracts.ReservationEvent{
			EventType:      kafka.EventReservationCancelled,
			ReservationID:  reservation.ID,
			CustomerRef:    reservation.CustomerRef,
			ProfessionalID: reservation.ProfessionalID,
			StartTime:      reservation.StartTime,
			EndTime:        reservation.EndTime,
			CustomerName:   reservation.CustomerName,
		}).
		Build()
	if err := s.events.Publish(ctx, eventMsg); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}
