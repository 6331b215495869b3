package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

// LeasePreview is the computed-but-not-persisted invoice for one lease, or
// the reason computation failed for it.
type LeasePreview struct {
	LeaseID    int64                `json:"lease_id"`
	RoomNumber string               `json:"room_number"`
	Lines      []domain.InvoiceLine `json:"lines,omitempty"`
	Amount     string               `json:"amount"`
	Error      string               `json:"error,omitempty"`
}

type BulkResult struct {
	Created []int64          `json:"created"`
	Skipped int              `json:"skipped"`
	Failed  map[int64]string `json:"failed,omitempty"`
}

// activeLeases returns the active, not-yet-ended leases visible to the actor.
func (s *Service) activeLeases(ctx context.Context, actor domain.Actor) ([]domain.Lease, error) {
	leases, err := s.store.Leases.ListActive(ctx)
	if err != nil {
		return nil, apperr.System(err, "list active leases")
	}
	if !actor.BranchScoped() {
		return leases, nil
	}
	scoped := leases[:0]
	for _, l := range leases {
		if actor.CanAccessBranch(l.BranchCode) {
			scoped = append(scoped, l)
		}
	}
	return scoped, nil
}

// PreviewMonthly computes the upcoming invoices for every active lease
// without persisting anything or advancing meters. A failure for one lease is
// reported inline and never aborts the rest.
func (s *Service) PreviewMonthly(ctx context.Context, actor domain.Actor, year, month int) ([]LeasePreview, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("only staff preview invoices")
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}

	leases, err := s.activeLeases(ctx, actor)
	if err != nil {
		return nil, err
	}

	previews := make([]LeasePreview, 0, len(leases))
	for i := range leases {
		l := leases[i]
		p := LeasePreview{LeaseID: l.ID, RoomNumber: l.RoomNumber}
		lines, _, err := s.computeLines(ctx, s.store, &l, year, month)
		if err != nil {
			p.Error = err.Error()
		} else {
			p.Lines = lines
			p.Amount = sumLines(lines).StringFixed(2)
		}
		previews = append(previews, p)
	}
	return previews, nil
}

// GenerateMonthlyBulk creates the period invoice for every active lease that
// does not have one yet. Each lease commits in its own transaction, and a
// failing lease is recorded, not fatal, mirroring preview semantics.
func (s *Service) GenerateMonthlyBulk(ctx context.Context, actor domain.Actor, year, month int, dueDate *time.Time) (*BulkResult, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("only staff generate invoices")
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}

	due := time.Date(year, time.Month(month), s.dueDay, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if dueDate != nil {
		due = *dueDate
	}

	leases, err := s.activeLeases(ctx, actor)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Failed: map[int64]string{}}
	for i := range leases {
		l := leases[i]

		exists, err := s.store.Invoices.ExistsForPeriod(ctx, l.ID, year, month)
		if err != nil {
			result.Failed[l.ID] = err.Error()
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		var inv *domain.Invoice
		err = s.store.Atomic(ctx, func(tx *repository.Store) error {
			created, err := s.createInTx(ctx, tx, &l, year, month, due)
			if err != nil {
				return err
			}
			inv = created
			return nil
		})
		if err != nil {
			if apperr.IsKind(err, apperr.KindConflict) {
				// raced with a concurrent generation for the same period
				result.Skipped++
			} else {
				result.Failed[l.ID] = err.Error()
			}
			continue
		}

		result.Created = append(result.Created, inv.ID)
		s.notifier.InvoiceIssued(ctx, l.TenantID, l.RoomNumber, year, month, inv.Amount)
	}

	s.audit.Record(ctx, actor, "invoice.generate_bulk", "invoice", 0,
		fmt.Sprintf("period %04d-%02d created=%d skipped=%d failed=%d",
			year, month, len(result.Created), result.Skipped, len(result.Failed)))
	return result, nil
}

// MarkPaid confirms payment of an invoice. Idempotent: confirming an
// already-paid invoice changes nothing and succeeds. Tenants cannot
// self-confirm direct payments. When the invoice settles a damage report, the
// settlement completion cascade runs best-effort after the payment commit.
func (s *Service) MarkPaid(ctx context.Context, actor domain.Actor, invoiceID int64, direct bool) error {
	if direct && !actor.IsStaff() {
		return apperr.AccessDenied("direct payments are confirmed by staff")
	}

	var tenantID int64
	amount := decimal.Zero
	var alreadyPaid bool
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		inv, err := tx.Invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("invoice %d not found", invoiceID)
			}
			return apperr.System(err, "lookup invoice %d", invoiceID)
		}

		l, err := tx.Leases.GetByID(ctx, inv.LeaseID)
		if err != nil {
			return apperr.System(err, "lookup lease %d", inv.LeaseID)
		}
		if actor.IsStaff() {
			if !actor.CanAccessBranch(l.BranchCode) {
				return apperr.AccessDenied("invoice %d belongs to another branch", invoiceID)
			}
		} else if l.TenantID != actor.ID {
			return apperr.AccessDenied("invoice %d does not belong to you", invoiceID)
		}

		if inv.Status == domain.InvoicePaid {
			alreadyPaid = true
			return nil
		}

		if _, err := tx.Invoices.MarkPaid(ctx, invoiceID, direct, time.Now()); err != nil {
			return apperr.System(err, "mark invoice %d paid", invoiceID)
		}
		tenantID = l.TenantID
		amount = inv.Amount
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyPaid {
		return nil
	}

	s.notifier.InvoicePaid(ctx, tenantID, invoiceID, amount)
	s.audit.Record(ctx, actor, "invoice.mark_paid", "invoice", invoiceID, fmt.Sprintf("direct=%t", direct))

	// settlement completion cascade: best-effort, never rolls back the
	// payment confirmation above
	if s.settlementHook != nil {
		if _, err := s.store.Damages.GetBySettlementInvoice(ctx, invoiceID); err == nil {
			if err := s.settlementHook.OnSettlementInvoicePaid(ctx, invoiceID); err != nil {
				s.log.Errorw("settlement completion cascade failed",
					"invoice_id", invoiceID, "err", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Errorw("settlement lookup failed", "invoice_id", invoiceID, "err", err)
		}
	}
	return nil
}

// Get returns one invoice with lines, role-scoped.
func (s *Service) Get(ctx context.Context, actor domain.Actor, invoiceID int64) (*domain.Invoice, error) {
	inv, err := s.store.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice %d not found", invoiceID)
		}
		return nil, apperr.System(err, "lookup invoice %d", invoiceID)
	}

	l := inv.Lease
	if l == nil {
		loaded, err := s.store.Leases.GetByID(ctx, inv.LeaseID)
		if err != nil {
			return nil, apperr.System(err, "lookup lease %d", inv.LeaseID)
		}
		l = loaded
	}
	if actor.IsStaff() {
		if !actor.CanAccessBranch(l.BranchCode) {
			return nil, apperr.AccessDenied("invoice %d belongs to another branch", invoiceID)
		}
	} else if l.TenantID != actor.ID {
		return nil, apperr.AccessDenied("invoice %d does not belong to you", invoiceID)
	}
	return inv, nil
}

// List applies role scoping: tenants see invoices of their own leases, branch
// staff their branch, admins everything.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.Invoice, error) {
	switch {
	case !actor.IsStaff():
		leases, err := s.store.Leases.ListByTenant(ctx, actor.ID)
		if err != nil {
			return nil, apperr.System(err, "list leases")
		}
		var invoices []domain.Invoice
		for _, l := range leases {
			batch, err := s.store.Invoices.ListByLease(ctx, l.ID)
			if err != nil {
				return nil, apperr.System(err, "list invoices for lease %d", l.ID)
			}
			invoices = append(invoices, batch...)
		}
		return invoices, nil
	case actor.BranchScoped():
		invoices, err := s.store.Invoices.ListByBranch(ctx, actor.Branch)
		if err != nil {
			return nil, apperr.System(err, "list branch invoices")
		}
		return invoices, nil
	default:
		invoices, err := s.store.Invoices.List(ctx)
		if err != nil {
			return nil, apperr.System(err, "list invoices")
		}
		return invoices, nil
	}
}

// SweepOverdue flips unpaid invoices past their due date to overdue.
func (s *Service) SweepOverdue(ctx context.Context, actor domain.Actor) (int64, error) {
	if !actor.IsStaff() {
		return 0, apperr.AccessDenied("only staff run the overdue sweep")
	}
	n, err := s.store.Invoices.MarkOverdue(ctx, time.Now())
	if err != nil {
		return 0, apperr.System(err, "overdue sweep")
	}
	return n, nil
}
