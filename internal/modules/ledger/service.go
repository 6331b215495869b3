package ledger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

// Metering failures surfaced by the billing engine.
var (
	ErrMissingMeterReading = apperr.Validation("metered service has no reading for the billing period")
	ErrInvalidMeterReading = apperr.Validation("current meter reading is below the previous reading")
)

// Names of the subscriptions every lease gets at deposit confirmation.
// Electricity and water are metered; security is a fixed monthly fee.
var defaultServices = []string{"Electricity", "Water", "Security"}

type Service struct {
	store *repository.Store
	log   *zap.SugaredLogger
}

func NewService(store *repository.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log}
}

// EnsureSubscription provisions a subscription for the lease if one with the
// same service name (case-insensitive) does not already exist. Safe to call
// repeatedly.
func (s *Service) EnsureSubscription(ctx context.Context, tx *repository.Store, leaseID int64, serviceName string, start time.Time) error {
	_, err := tx.Subscriptions.FindByLeaseAndServiceName(ctx, leaseID, serviceName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.System(err, "lookup subscription %q for lease %d", serviceName, leaseID)
	}

	def, err := tx.Services.GetByName(ctx, serviceName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("service %q is not defined", serviceName)
		}
		return apperr.System(err, "lookup service %q", serviceName)
	}

	sub := &domain.ServiceSubscription{
		LeaseID:   leaseID,
		ServiceID: def.ID,
		Quantity:  1,
		StartDate: start,
	}
	if err := tx.Subscriptions.Create(ctx, sub); err != nil {
		return apperr.System(err, "provision subscription %q for lease %d", serviceName, leaseID)
	}
	return nil
}

// ProvisionDefaults idempotently creates the system-managed subscriptions for
// a lease. Called from deposit confirmation inside its transaction.
func (s *Service) ProvisionDefaults(ctx context.Context, tx *repository.Store, leaseID int64, start time.Time) error {
	for _, name := range defaultServices {
		if err := s.EnsureSubscription(ctx, tx, leaseID, name, start); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe adds a service to a lease. Tenants may only subscribe to their
// own lease and never to protected services.
func (s *Service) Subscribe(ctx context.Context, actor domain.Actor, leaseID, serviceID int64, quantity int) (*domain.ServiceSubscription, error) {
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

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
	if def.Protected && !actor.IsStaff() {
		return nil, apperr.Validation("service %q is managed by the building and cannot be self-subscribed", def.Name)
	}

	if _, err := s.store.Subscriptions.FindByLeaseAndServiceName(ctx, leaseID, def.Name); err == nil {
		return nil, apperr.Conflict("lease %d already subscribes to %q", leaseID, def.Name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.System(err, "lookup subscription")
	}

	sub := &domain.ServiceSubscription{
		LeaseID:   leaseID,
		ServiceID: serviceID,
		Quantity:  quantity,
		StartDate: time.Now(),
	}
	if err := s.store.Subscriptions.Create(ctx, sub); err != nil {
		return nil, apperr.System(err, "create subscription")
	}
	sub.Service = def
	return sub, nil
}

// Cancel ends a subscription at the last day of the current month. No
// mid-cycle proration.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, subscriptionID int64) error {
	sub, err := s.store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("subscription %d not found", subscriptionID)
		}
		return apperr.System(err, "lookup subscription %d", subscriptionID)
	}
	if _, err := s.loadLease(ctx, actor, sub.LeaseID); err != nil {
		return err
	}
	if sub.Service != nil && sub.Service.Protected && !actor.IsStaff() {
		return apperr.Validation("service %q is managed by the building and cannot be cancelled", sub.Service.Name)
	}
	if sub.EndDate != nil {
		return apperr.InvalidState("subscription %d is already ending on %s", subscriptionID, sub.EndDate.Format("2006-01-02"))
	}

	end := endOfMonth(time.Now())
	if err := s.store.Subscriptions.SetEndDate(ctx, subscriptionID, end); err != nil {
		return apperr.System(err, "cancel subscription %d", subscriptionID)
	}
	return nil
}

// RecordReading captures a new current meter reading. Monotonic: the new
// value may not fall below the previous reading.
func (s *Service) RecordReading(ctx context.Context, actor domain.Actor, subscriptionID int64, reading int64) (*domain.ServiceSubscription, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("only staff record meter readings")
	}

	sub, err := s.store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription %d not found", subscriptionID)
		}
		return nil, apperr.System(err, "lookup subscription %d", subscriptionID)
	}
	if sub.Service == nil || sub.Service.Category != domain.ServiceMetered {
		return nil, apperr.Validation("subscription %d is not metered", subscriptionID)
	}
	if _, err := s.loadLease(ctx, actor, sub.LeaseID); err != nil {
		return nil, err
	}
	if sub.PreviousReading != nil && reading < *sub.PreviousReading {
		return nil, ErrInvalidMeterReading
	}

	prev := sub.PreviousReading
	if prev == nil {
		// first reading seeds the baseline; consumption starts counting
		// from the next one
		prev = &reading
	}
	if err := s.store.Subscriptions.SetReadings(ctx, subscriptionID, prev, &reading); err != nil {
		return nil, apperr.System(err, "record reading for subscription %d", subscriptionID)
	}
	sub.PreviousReading = prev
	sub.CurrentReading = &reading
	return sub, nil
}

func (s *Service) ListByLease(ctx context.Context, actor domain.Actor, leaseID int64) ([]domain.ServiceSubscription, error) {
	if _, err := s.loadLease(ctx, actor, leaseID); err != nil {
		return nil, err
	}
	subs, err := s.store.Subscriptions.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, apperr.System(err, "list subscriptions for lease %d", leaseID)
	}
	return subs, nil
}

// MeterQuantity applies the billing-time metering rule and returns the billable
// consumption for one metered subscription.
func MeterQuantity(sub domain.ServiceSubscription) (int64, error) {
	if sub.PreviousReading == nil || sub.CurrentReading == nil {
		return 0, ErrMissingMeterReading
	}
	qty := *sub.CurrentReading - *sub.PreviousReading
	if qty < 0 {
		return 0, ErrInvalidMeterReading
	}
	return qty, nil
}

// loadLease fetches the lease and enforces ownership/branch scoping.
func (s *Service) loadLease(ctx context.Context, actor domain.Actor, leaseID int64) (*domain.Lease, error) {
	lease, err := s.store.Leases.GetByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("lease %d not found", leaseID)
		}
		return nil, apperr.System(err, "lookup lease %d", leaseID)
	}
	if err := authorizeLease(actor, lease); err != nil {
		return nil, err
	}
	return lease, nil
}

func authorizeLease(actor domain.Actor, lease *domain.Lease) error {
	if actor.IsStaff() {
		if !actor.CanAccessBranch(lease.BranchCode) {
			return apperr.AccessDenied("lease %d belongs to another branch", lease.ID)
		}
		return nil
	}
	if lease.TenantID != actor.ID {
		return apperr.AccessDenied("lease %d does not belong to you", lease.ID)
	}
	return nil
}

func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}
