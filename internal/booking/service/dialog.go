package service

import (
	"context"
	"errors"
	"time"

	availabilityservice "turnera/internal/availability/service"
	bookingerrors "turnera/internal/booking/errors"
	"turnera/internal/booking/fsm"
	"turnera/internal/booking/session"
	catalogservice "turnera/internal/catalog/service"
	reservationsservice "turnera/internal/reservations/service"
	"turnera/pkg/config"
	apperrors "turnera/pkg/errors"
	"turnera/pkg/model"
)

type DialogService interface {
	// SubmitIntent applies one conversational turn: it loads the session,
	// attempts the transition, performs the reservation on confirmation
	// and persists the resulting session exactly once.
	SubmitIntent(ctx context.Context, conversationID, intent string, fields fsm.IntentFields) (*model.TransitionOutcome, error)
}

type dialogService struct {
	store        session.Store
	machine      *fsm.Machine
	reservations reservationsservice.ReservationService
	cfg          *config.Config
}

func NewDialogService(
	store session.Store,
	catalog catalogservice.CatalogService,
	availability availabilityservice.AvailabilityService,
	reservations reservationsservice.ReservationService,
	cfg *config.Config,
) DialogService {
	checks := &semanticChecks{
		catalog:      catalog,
		availability: availability,
	}
	return &dialogService{
		store:        store,
		machine:      fsm.New(checks),
		reservations: reservations,
		cfg:          cfg,
	}
}

// Infrastructure faults during confirmation get a bounded retry before
// the turn degrades to a retry_later rejection.
const (
	reserveAttempts   = 3
	reserveRetryDelay = 200 * time.Millisecond
)

var knownIntents = map[string]bool{
	model.IntentStartBooking:        true,
	model.IntentConfirmServices:     true,
	model.IntentSelectProfessional:  true,
	model.IntentSelectSlot:          true,
	model.IntentProvideCustomerData: true,
	model.IntentConfirmBooking:      true,
	model.IntentCancelBooking:       true,
}

func (s *dialogService) SubmitIntent(ctx context.Context, conversationID, intent string, fields fsm.IntentFields) (*model.TransitionOutcome, error) {
	if conversationID == "" {
		return nil, apperrors.InvalidInput("Conversation ID cannot be empty")
	}
	if !knownIntents[intent] {
		return nil, apperrors.InvalidInput("Unknown intent: " + intent)
	}

	current, err := s.loadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	// The machine mutates a working copy; a rejected turn persists nothing.
	work := *current
	outcome := s.machine.Apply(ctx, &work, intent, fields)
	if !outcome.Accepted {
		s.cfg.Log.Warn("Intent rejected",
			"conversation_id", conversationID,
			"intent", intent,
			"state", current.State,
			"reason", outcome.Reason,
		)
		return &outcome, nil
	}

	switch intent {
	case model.IntentCancelBooking:
		// Dropping the key is equivalent to storing a fresh IDLE session
		// and keeps cancellation idempotent.
		if err := s.store.Delete(ctx, conversationID); err != nil {
			return nil, apperrors.Internal("Failed to reset booking session", err)
		}

	case model.IntentConfirmBooking:
		return s.confirm(ctx, conversationID, current, &work, outcome)

	default:
		if err := s.store.Save(ctx, &work); err != nil {
			return nil, apperrors.Internal("Failed to persist booking session", err)
		}
	}

	s.cfg.Log.Info("Intent accepted",
		"conversation_id", conversationID,
		"intent", intent,
		"new_state", outcome.NewState,
		"next_operation", outcome.PrescribedNextOperation,
	)
	return &outcome, nil
}

func (s *dialogService) loadSession(ctx context.Context, conversationID string) (*model.BookingSession, error) {
	current, err := s.store.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrSessionNotFound) {
			return model.NewBookingSession(conversationID), nil
		}
		return nil, apperrors.Internal("Failed to load booking session", err)
	}
	return current, nil
}

// confirm runs the reservation transaction for a structurally-complete
// session. Business rejections flow back as rejected outcomes with the
// session unchanged; a committed reservation surfaces BOOKED and resets
// the stored session to IDLE.
func (s *dialogService) confirm(ctx context.Context, conversationID string, current, work *model.BookingSession, outcome model.TransitionOutcome) (*model.TransitionOutcome, error) {
	req := &model.ReserveRequest{
		CustomerRef:    conversationID,
		ProfessionalID: work.Collected.ProfessionalID,
		ServiceIDs:     work.Collected.ServiceIDs,
		StartTime:      *work.Collected.SlotStart,
		CustomerName:   work.Collected.CustomerName,
		Notes:          work.Collected.Notes,
	}

	reservation, err := s.reserveWithRetry(ctx, req)
	if err != nil {
		if reason, ok := apperrors.RejectionReason(err); ok {
			s.cfg.Log.Warn("Booking confirmation rejected",
				"conversation_id", conversationID,
				"reason", reason,
			)
			rejected := model.TransitionOutcome{
				Accepted:                false,
				Reason:                  reason,
				NewState:                current.State,
				PrescribedNextOperation: recoveryOperation(reason),
			}
			return &rejected, nil
		}
		return nil, err
	}

	outcome.ReservationID = reservation.ID

	// BOOKED is terminal: the result is being surfaced right now, so the
	// stored session auto-resets to IDLE.
	if err := s.store.Delete(ctx, conversationID); err != nil {
		s.cfg.Log.Error("Failed to reset booking session after confirmation",
			"conversation_id", conversationID,
			"error", err,
		)
	}

	s.cfg.Log.Info("Booking confirmed",
		"conversation_id", conversationID,
		"reservation_id", reservation.ID,
		"start_time", reservation.StartTime,
	)
	return &outcome, nil
}

// reserveWithRetry drives the reservation attempt. Typed rejections and
// caller errors surface immediately; store or broker faults are retried a
// bounded number of times and then mapped to retry_later so the session
// stays in CONFIRMATION and the user can simply confirm again.
func (s *dialogService) reserveWithRetry(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
	var lastErr error
	for attempt := 1; attempt <= reserveAttempts; attempt++ {
		reservation, err := s.reservations.Reserve(ctx, req)
		if err == nil {
			return reservation, nil
		}
		if !isInfrastructureFailure(err) {
			return nil, err
		}

		lastErr = err
		s.cfg.Log.Warn("Reservation attempt failed",
			"customer_ref", req.CustomerRef,
			"attempt", attempt,
			"error", err,
		)
		if attempt == reserveAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.Timeout("Request cancelled while retrying reservation")
		case <-time.After(reserveRetryDelay):
		}
	}

	s.cfg.Log.Error("Reservation attempts exhausted",
		"customer_ref", req.CustomerRef,
		"attempts", reserveAttempts,
		"error", lastErr,
	)
	return nil, apperrors.Rejection(model.ReasonRetryLater, "The reservation could not be committed, please retry shortly")
}

// isInfrastructureFailure reports whether the error is a store or broker
// fault rather than a typed rejection or a caller error.
func isInfrastructureFailure(err error) bool {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		return true
	}
	switch appErr.Code {
	case apperrors.CodeInternal, apperrors.CodeTimeout, apperrors.CodeUnavailable:
		return true
	}
	return false
}

// recoveryOperation prescribes the read the dialog driver should perform
// so the user can recover from a business rejection.
func recoveryOperation(reason string) string {
	switch reason {
	case model.ReasonSlotTaken, model.ReasonTooSoon:
		return model.OpListAvailableSlots
	case model.ReasonCategoryMismatch:
		return model.OpListServices
	case model.ReasonProfessionalNotFound:
		return model.OpListProfessionals
	case model.ReasonRetryLater:
		return model.OpConfirmSummary
	default:
		return model.OpNone
	}
}

// semanticChecks adapts the catalog and availability services to the
// machine's validation contract.
type semanticChecks struct {
	catalog      catalogservice.CatalogService
	availability availabilityservice.AvailabilityService
}

func (c *semanticChecks) ServicesSameCategory(ctx context.Context, serviceIDs []string) (string, int, error) {
	_, category, totalMin, err := c.catalog.ResolveServices(ctx, serviceIDs)
	if err != nil {
		return "", 0, err
	}
	return category, totalMin, nil
}

func (c *semanticChecks) ProfessionalOffers(ctx context.Context, professionalID, category string) error {
	_, err := c.catalog.ResolveActiveProfessional(ctx, professionalID, category)
	return err
}

func (c *semanticChecks) SlotOpen(ctx context.Context, professionalID string, start time.Time, durationMin int) error {
	slots, err := c.availability.AvailableSlots(ctx, professionalID, start, start.Add(time.Minute), durationMin)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.Equal(start) {
			return nil
		}
	}
	return bookingerrors.ErrSlotNotOpen
}
