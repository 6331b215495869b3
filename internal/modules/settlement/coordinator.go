package settlement

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

// The settlement completion cascade used to live scattered across the code
// paths that touched it. Here it is one finite-state machine: transitions are
// keyed by (entity, event), each handler mutates exactly one entity and may
// emit follow-up events, and the whole cascade commits in one transaction.

type Entity string

type EventName string

const (
	EntityDamageReport    Entity = "damage_report"
	EntityCheckoutRequest Entity = "checkout_request"
	EntityLease           Entity = "lease"
)

const (
	EventSettlementInvoicePaid EventName = "settlement_invoice_paid"
	EventCheckoutComplete      EventName = "checkout_complete"
	EventLeaseEnd              EventName = "lease_end"
)

type Event struct {
	Entity   Entity
	Name     EventName
	EntityID int64
}

type transitionKey struct {
	Entity Entity
	Event  EventName
}

type transitionFunc func(ctx context.Context, tx *repository.Store, id int64) ([]Event, error)

// LeaseFinalizer ends the lease and frees its room inside the caller's
// transaction. Implemented by the lease service.
type LeaseFinalizer interface {
	FinalizeCheckout(ctx context.Context, tx *repository.Store, leaseID int64) error
}

// Coordinator drives the settlement completion cascade:
// settlement invoice paid -> checkout request completed -> lease ended ->
// room available.
type Coordinator struct {
	store       *repository.Store
	leases      LeaseFinalizer
	log         *zap.SugaredLogger
	transitions map[transitionKey]transitionFunc
}

func NewCoordinator(store *repository.Store, leases LeaseFinalizer, log *zap.SugaredLogger) *Coordinator {
	c := &Coordinator{store: store, leases: leases, log: log}
	c.transitions = map[transitionKey]transitionFunc{
		{EntityDamageReport, EventSettlementInvoicePaid}: c.onSettlementInvoicePaid,
		{EntityCheckoutRequest, EventCheckoutComplete}:   c.onCheckoutComplete,
		{EntityLease, EventLeaseEnd}:                     c.onLeaseEnd,
	}
	return c
}

// OnSettlementInvoicePaid runs the full cascade for the damage report owning
// the given invoice. The cascade is atomic: either every entity advances or
// none do. Re-running it for an already-completed cascade is a no-op.
func (c *Coordinator) OnSettlementInvoicePaid(ctx context.Context, invoiceID int64) error {
	return c.store.Atomic(ctx, func(tx *repository.Store) error {
		queue := []Event{{Entity: EntityDamageReport, Name: EventSettlementInvoicePaid, EntityID: invoiceID}}
		for len(queue) > 0 {
			ev := queue[0]
			queue = queue[1:]

			handler, ok := c.transitions[transitionKey{ev.Entity, ev.Name}]
			if !ok {
				return apperr.System(nil, "no transition for %s/%s", ev.Entity, ev.Name)
			}
			next, err := handler(ctx, tx, ev.EntityID)
			if err != nil {
				return err
			}
			queue = append(queue, next...)
		}
		return nil
	})
}

// onSettlementInvoicePaid resolves the damage report owning the invoice and
// fans out to its checkout request and lease.
func (c *Coordinator) onSettlementInvoicePaid(ctx context.Context, tx *repository.Store, invoiceID int64) ([]Event, error) {
	dr, err := tx.Damages.GetBySettlementInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no damage report owns invoice %d", invoiceID)
		}
		return nil, apperr.System(err, "lookup damage report for invoice %d", invoiceID)
	}

	var next []Event
	if dr.CheckoutRequestID != nil {
		next = append(next, Event{Entity: EntityCheckoutRequest, Name: EventCheckoutComplete, EntityID: *dr.CheckoutRequestID})
	}
	next = append(next, Event{Entity: EntityLease, Name: EventLeaseEnd, EntityID: dr.LeaseID})
	return next, nil
}

func (c *Coordinator) onCheckoutComplete(ctx context.Context, tx *repository.Store, requestID int64) ([]Event, error) {
	cr, err := tx.Checkouts.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperr.System(err, "lookup checkout request %d", requestID)
	}
	if cr.Status == domain.CheckoutCompleted {
		return nil, nil
	}
	if cr.Status != domain.CheckoutApproved {
		return nil, apperr.InvalidState("checkout request %d is %s, cannot complete", requestID, cr.Status)
	}

	changed, err := tx.Checkouts.UpdateStatusIf(ctx, requestID, domain.CheckoutApproved, domain.CheckoutCompleted)
	if err != nil {
		return nil, apperr.System(err, "complete checkout request %d", requestID)
	}
	if !changed {
		return nil, apperr.InvalidState("checkout request %d changed state concurrently", requestID)
	}
	return nil, nil
}

func (c *Coordinator) onLeaseEnd(ctx context.Context, tx *repository.Store, leaseID int64) ([]Event, error) {
	lease, err := tx.Leases.GetByID(ctx, leaseID)
	if err != nil {
		return nil, apperr.System(err, "lookup lease %d", leaseID)
	}
	if lease.Status == domain.LeaseEnded {
		return nil, nil
	}
	if err := c.leases.FinalizeCheckout(ctx, tx, leaseID); err != nil {
		return nil, err
	}
	return nil, nil
}
