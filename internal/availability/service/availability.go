package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnera/pkg/config"
	apperrors "turnera/pkg/errors"
	"turnera/pkg/model"
)

// CatalogReader is the read-only slice of the catalog repository the
// availability index needs.
type CatalogReader interface {
	FindBlockingIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]*model.BlockingInterval, error)
	FindHolidays(ctx context.Context, from, to time.Time) ([]*model.Holiday, error)
	FindBusinessHours(ctx context.Context) ([]*model.BusinessHours, error)
}

// ReservationReader is satisfied by the reservation repository.
type ReservationReader interface {
	FindConfirmedBetween(ctx context.Context, professionalID string, from, to time.Time) ([]*model.Reservation, error)
}

type AvailabilityService interface {
	// AvailableSlots computes open slot start times for a professional in
	// [from, to]. The result is advisory: the authoritative check is the
	// locked re-validation inside the reservation transaction, so a
	// returned slot can be stale by the time it is reserved.
	AvailableSlots(ctx context.Context, professionalID string, from, to time.Time, serviceDurationMin int) ([]time.Time, error)
}

type availabilityService struct {
	catalog      CatalogReader
	reservations ReservationReader
	cfg          *config.Config
}

func NewAvailabilityService(catalog CatalogReader, reservations ReservationReader, cfg *config.Config) AvailabilityService {
	return &availabilityService{
		catalog:      catalog,
		reservations: reservations,
		cfg:          cfg,
	}
}

func (s *availabilityService) AvailableSlots(ctx context.Context, professionalID string, from, to time.Time, serviceDurationMin int) ([]time.Time, error) {
	if professionalID == "" {
		return nil, apperrors.InvalidInput("Professional ID cannot be empty")
	}
	if serviceDurationMin <= 0 {
		return nil, apperrors.InvalidInput("Service duration must be positive")
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInput("Range end must be after range start")
	}

	loc, err := time.LoadLocation(s.cfg.BusinessTimeZone)
	if err != nil {
		return nil, apperrors.Internal("Invalid business timezone configuration", err)
	}

	duration := time.Duration(serviceDurationMin) * time.Minute
	buffer := time.Duration(s.cfg.SlotBufferMin) * time.Minute
	step := time.Duration(s.cfg.SlotStepMin) * time.Minute

	hoursByWeekday, err := s.loadBusinessHours(ctx)
	if err != nil {
		return nil, err
	}

	holidays, err := s.loadHolidays(ctx, loc, from, to)
	if err != nil {
		return nil, err
	}

	blocks, err := s.catalog.FindBlockingIntervals(ctx, professionalID, from, to.Add(duration))
	if err != nil {
		return nil, apperrors.Internal("Failed to load blocking intervals", err)
	}

	// Pull every reservation whose buffered window can reach a candidate
	// in range; the same buffer arithmetic is used by the locked re-check.
	reservations, err := s.reservations.FindConfirmedBetween(
		ctx,
		professionalID,
		from.Add(-buffer),
		to.Add(duration+buffer),
	)
	if err != nil {
		return nil, apperrors.Internal("Failed to load reservations", err)
	}

	// Slots the reserve operation would reject as too_soon are not offered.
	minStart := time.Now().In(loc).Add(time.Duration(s.cfg.MinLeadTimeDays) * 24 * time.Hour)

	var slots []time.Time

	for day := startOfDay(from.In(loc)); day.Before(to); day = day.AddDate(0, 0, 1) {
		if holidays[dateKey(day)] {
			continue
		}

		hours, ok := hoursByWeekday[int(day.Weekday())]
		if !ok {
			continue
		}

		open, err := clockOn(day, hours.Open, loc)
		if err != nil {
			return nil, apperrors.Internal("Invalid business hours configuration", err)
		}
		closing, err := clockOn(day, hours.Close, loc)
		if err != nil {
			return nil, apperrors.Internal("Invalid business hours configuration", err)
		}

		for start := open; !start.Add(duration).After(closing); start = start.Add(step) {
			if start.Before(from) || start.After(to) {
				continue
			}
			if start.Before(minStart) {
				continue
			}
			if s.conflictsBlock(start, duration, blocks) {
				continue
			}
			if s.conflictsReservation(start, duration, buffer, reservations) {
				continue
			}
			slots = append(slots, start)
		}
	}

	return slots, nil
}

func (s *availabilityService) loadBusinessHours(ctx context.Context) (map[int]*model.BusinessHours, error) {
	hours, err := s.catalog.FindBusinessHours(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to load business hours", err)
	}

	byWeekday := make(map[int]*model.BusinessHours, len(hours))
	for _, h := range hours {
		byWeekday[h.Weekday] = h
	}
	return byWeekday, nil
}

func (s *availabilityService) loadHolidays(ctx context.Context, loc *time.Location, from, to time.Time) (map[string]bool, error) {
	holidays, err := s.catalog.FindHolidays(ctx, startOfDay(from.In(loc)), to)
	if err != nil {
		return nil, apperrors.Internal("Failed to load holidays", err)
	}

	closed := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		closed[dateKey(h.Date.In(loc))] = true
	}
	return closed, nil
}

// conflictsBlock checks the service window against blocking intervals.
// Blocks are hard closures and are not expanded by the buffer.
func (s *availabilityService) conflictsBlock(start time.Time, duration time.Duration, blocks []*model.BlockingInterval) bool {
	end := start.Add(duration)
	for _, b := range blocks {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

// conflictsReservation checks the buffered candidate window against each
// reservation's buffered window, mirroring the locked re-check.
func (s *availabilityService) conflictsReservation(start time.Time, duration, buffer time.Duration, reservations []*model.Reservation) bool {
	candidateEnd := start.Add(duration + buffer)
	for _, r := range reservations {
		blockedEnd := r.EndTime.Add(buffer)
		if start.Before(blockedEnd) && r.StartTime.Before(candidateEnd) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// clockOn parses an HH:MM wall-clock string onto the given day.
func clockOn(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid clock value: %s", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid clock value: %s", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid clock value: %s", clock)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}
