package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

// BookService schedules one billable occurrence of an on-demand service.
// At most one booking per (lease, service, date).
func (s *Service) BookService(ctx context.Context, actor domain.Actor, leaseID, serviceID int64, date time.Time, timeSlot string) (*domain.ServiceBooking, error) {
	lease, err := s.loadLease(ctx, actor, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.Status != domain.LeaseActive {
		return nil, apperr.InvalidState("lease %d is not active", leaseID)
	}

	def, err := s.store.Services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("service %d not found", serviceID)
		}
		return nil, apperr.System(err, "lookup service %d", serviceID)
	}
	if def.Category != domain.ServiceOnDemand {
		return nil, apperr.Validation("service %q cannot be booked per occurrence", def.Name)
	}

	day := truncateToDay(date)
	exists, err := s.store.Bookings.ExistsFor(ctx, leaseID, serviceID, day)
	if err != nil {
		return nil, apperr.System(err, "check existing booking")
	}
	if exists {
		return nil, apperr.Conflict("%s is already booked for %s", def.Name, day.Format("2006-01-02"))
	}

	b := &domain.ServiceBooking{
		LeaseID:     leaseID,
		ServiceID:   serviceID,
		BookingDate: day,
		TimeSlot:    timeSlot,
		Status:      domain.BookingBooked,
	}
	if err := s.store.Bookings.Create(ctx, b); err != nil {
		// the partial unique index catches the race the exists-check misses
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflict("%s is already booked for %s", def.Name, day.Format("2006-01-02"))
		}
		return nil, apperr.System(err, "create booking")
	}
	b.Service = def
	return b, nil
}

func (s *Service) CompleteBooking(ctx context.Context, actor domain.Actor, bookingID int64) error {
	if !actor.IsStaff() {
		return apperr.AccessDenied("only staff complete bookings")
	}
	b, err := s.loadBooking(ctx, actor, bookingID)
	if err != nil {
		return err
	}
	if b.Status != domain.BookingBooked {
		return apperr.InvalidState("booking %d is %s", bookingID, b.Status)
	}
	if err := s.store.Bookings.UpdateStatus(ctx, bookingID, domain.BookingCompleted, nil); err != nil {
		return apperr.System(err, "complete booking %d", bookingID)
	}
	return nil
}

func (s *Service) CancelBooking(ctx context.Context, actor domain.Actor, bookingID int64, reason string) error {
	b, err := s.loadBooking(ctx, actor, bookingID)
	if err != nil {
		return err
	}
	if b.Status != domain.BookingBooked {
		return apperr.InvalidState("booking %d is %s", bookingID, b.Status)
	}
	now := time.Now()
	err = s.store.Bookings.UpdateStatus(ctx, bookingID, domain.BookingCanceled, map[string]interface{}{
		"canceled_at":   now,
		"cancel_reason": reason,
	})
	if err != nil {
		return apperr.System(err, "cancel booking %d", bookingID)
	}
	return nil
}

func (s *Service) ListBookings(ctx context.Context, actor domain.Actor, leaseID int64) ([]domain.ServiceBooking, error) {
	if _, err := s.loadLease(ctx, actor, leaseID); err != nil {
		return nil, err
	}
	bookings, err := s.store.Bookings.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, apperr.System(err, "list bookings for lease %d", leaseID)
	}
	return bookings, nil
}

func (s *Service) loadBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.ServiceBooking, error) {
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("booking %d not found", bookingID)
		}
		return nil, apperr.System(err, "lookup booking %d", bookingID)
	}
	if _, err := s.loadLease(ctx, actor, b.LeaseID); err != nil {
		return nil, err
	}
	return b, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
