package billing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/modules/ledger"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

const roomRentDescription = "RoomRent"

// Notifier delivers tenant-facing messages fire-and-forget.
type Notifier interface {
	InvoiceIssued(ctx context.Context, tenantID int64, roomNumber string, year, month int, amount decimal.Decimal)
	InvoicePaid(ctx context.Context, tenantID, invoiceID int64, amount decimal.Decimal)
}

// Auditor records state-changing actions best-effort.
type Auditor interface {
	Record(ctx context.Context, actor domain.Actor, action, entity string, entityID int64, detail string)
}

// SettlementHook is invoked after a settlement invoice is confirmed paid.
// The settlement coordinator implements it; failures are logged, never
// propagated, so the payment confirmation itself cannot be rolled back by the
// cascade.
type SettlementHook interface {
	OnSettlementInvoicePaid(ctx context.Context, invoiceID int64) error
}

type Service struct {
	store    *repository.Store
	notifier Notifier
	audit    Auditor
	dueDay   int
	log      *zap.SugaredLogger

	settlementHook SettlementHook
}

// NewService builds the billing engine. dueDay is the day of the following
// month bulk-generated invoices fall due on when the caller passes none.
func NewService(store *repository.Store, notifier Notifier, audit Auditor, dueDay int, log *zap.SugaredLogger) *Service {
	if dueDay < 1 || dueDay > 28 {
		dueDay = 10
	}
	return &Service{store: store, notifier: notifier, audit: audit, dueDay: dueDay, log: log}
}

// SetSettlementHook breaks the construction cycle between billing and the
// settlement coordinator; main wires it after both exist.
func (s *Service) SetSettlementHook(hook SettlementHook) { s.settlementHook = hook }

// meterAdvance is a pending previous := current rollover, applied only when
// an invoice is actually persisted.
type meterAdvance struct {
	subscriptionID int64
	newPrevious    int64
}

func periodBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

func validatePeriod(year, month int) error {
	if month < 1 || month > 12 {
		return apperr.Validation("month %d out of range", month)
	}
	if year < 2000 || year > 2100 {
		return apperr.Validation("year %d out of range", year)
	}
	return nil
}

func validateLine(line domain.InvoiceLine) error {
	if line.Amount.IsNegative() {
		return apperr.Validation("line %q has negative amount", line.Description)
	}
	if line.Amount.GreaterThan(domain.MaxLineAmount) {
		return apperr.Validation("line %q exceeds the maximum amount", line.Description)
	}
	return nil
}

// computeLines produces the invoice lines for one lease and period: room
// rent, active subscriptions (metered by consumption, fixed by quantity) and
// billable service bookings grouped per service. It never writes; rollovers
// are returned for the caller to apply on commit.
func (s *Service) computeLines(ctx context.Context, tx *repository.Store, l *domain.Lease, year, month int) ([]domain.InvoiceLine, []meterAdvance, error) {
	periodStart, periodEnd := periodBounds(year, month)
	var lines []domain.InvoiceLine
	var advances []meterAdvance

	room := l.Room
	if room == nil {
		r, err := tx.Rooms.GetByID(ctx, l.RoomID)
		if err != nil {
			return nil, nil, apperr.System(err, "lookup room %d", l.RoomID)
		}
		room = r
	}
	if room.Price.IsPositive() {
		lines = append(lines, domain.InvoiceLine{
			Description: roomRentDescription,
			UnitPrice:   room.Price,
			Quantity:    decimal.NewFromInt(1),
			Amount:      room.Price,
		})
	}

	subs, err := tx.Subscriptions.ListByLease(ctx, l.ID)
	if err != nil {
		return nil, nil, apperr.System(err, "list subscriptions for lease %d", l.ID)
	}
	for _, sub := range subs {
		if !sub.ActiveIn(periodStart, periodEnd) {
			continue
		}
		if sub.Service == nil {
			return nil, nil, apperr.System(nil, "subscription %d has no service definition", sub.ID)
		}

		var qty decimal.Decimal
		switch sub.Service.Category {
		case domain.ServiceMetered:
			consumed, err := ledger.MeterQuantity(sub)
			if err != nil {
				return nil, nil, apperr.Wrap(err, apperr.KindOf(err), "%s for lease %d", sub.Service.Name, l.ID)
			}
			qty = decimal.NewFromInt(consumed)
			advances = append(advances, meterAdvance{
				subscriptionID: sub.ID,
				newPrevious:    *sub.CurrentReading,
			})
		default:
			qty = decimal.NewFromInt(int64(sub.Quantity))
		}

		line := domain.InvoiceLine{
			Description: sub.Service.Name,
			UnitPrice:   sub.Service.UnitPrice,
			Quantity:    qty,
			Amount:      sub.Service.UnitPrice.Mul(qty),
		}
		if err := validateLine(line); err != nil {
			return nil, nil, err
		}
		lines = append(lines, line)
	}

	bookings, err := tx.Bookings.ListBillable(ctx, l.ID, periodStart, periodEnd)
	if err != nil {
		return nil, nil, apperr.System(err, "list bookings for lease %d", l.ID)
	}
	grouped := lo.GroupBy(bookings, func(b domain.ServiceBooking) int64 { return b.ServiceID })
	serviceIDs := lo.Keys(grouped)
	slices.Sort(serviceIDs) // map iteration order is random; invoice lines should not be
	for _, serviceID := range serviceIDs {
		group := grouped[serviceID]
		svc := group[0].Service
		if svc == nil {
			return nil, nil, apperr.System(nil, "booking service %d has no definition", serviceID)
		}
		qty := decimal.NewFromInt(int64(len(group)))
		line := domain.InvoiceLine{
			Description: svc.Name,
			UnitPrice:   svc.UnitPrice,
			Quantity:    qty,
			Amount:      svc.UnitPrice.Mul(qty),
		}
		if err := validateLine(line); err != nil {
			return nil, nil, err
		}
		lines = append(lines, line)
	}

	return lines, advances, nil
}

func sumLines(lines []domain.InvoiceLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

// Create computes and persists the invoice for one lease and period. Exactly
// one invoice may exist per (lease, year, month): the existence check runs in
// the same transaction as the insert, and the storage-level unique index
// closes the remaining race.
func (s *Service) Create(ctx context.Context, actor domain.Actor, leaseID int64, year, month int, dueDate time.Time) (*domain.Invoice, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("only staff create invoices")
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}

	var inv *domain.Invoice
	var tenantID int64
	var roomNumber string
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		l, err := tx.Leases.GetByID(ctx, leaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("lease %d not found", leaseID)
			}
			return apperr.System(err, "lookup lease %d", leaseID)
		}
		if !actor.CanAccessBranch(l.BranchCode) {
			return apperr.AccessDenied("lease %d belongs to another branch", leaseID)
		}

		created, err := s.createInTx(ctx, tx, l, year, month, dueDate)
		if err != nil {
			return err
		}
		inv = created
		tenantID = l.TenantID
		roomNumber = l.RoomNumber
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.InvoiceIssued(ctx, tenantID, roomNumber, year, month, inv.Amount)
	s.audit.Record(ctx, actor, "invoice.create", "invoice", inv.ID,
		fmt.Sprintf("lease %d period %04d-%02d", leaseID, year, month))
	return inv, nil
}

// createInTx is the shared create path for single and bulk generation. Meter
// rollover happens here, inside the same transaction as the insert.
func (s *Service) createInTx(ctx context.Context, tx *repository.Store, l *domain.Lease, year, month int, dueDate time.Time) (*domain.Invoice, error) {
	exists, err := tx.Invoices.ExistsForPeriod(ctx, l.ID, year, month)
	if err != nil {
		return nil, apperr.System(err, "check invoice existence")
	}
	if exists {
		return nil, apperr.Conflict("invoice for lease %d period %04d-%02d already exists", l.ID, year, month)
	}

	lines, advances, err := s.computeLines(ctx, tx, l, year, month)
	if err != nil {
		return nil, err
	}

	inv := &domain.Invoice{
		LeaseID:      l.ID,
		BillingYear:  &year,
		BillingMonth: &month,
		DueDate:      &dueDate,
		Status:       domain.InvoiceUnpaid,
		Amount:       sumLines(lines),
		Lines:        lines,
	}
	if err := tx.Invoices.Create(ctx, inv); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflict("invoice for lease %d period %04d-%02d already exists", l.ID, year, month)
		}
		return nil, apperr.System(err, "persist invoice")
	}

	for _, adv := range advances {
		if err := tx.Subscriptions.AdvanceMeter(ctx, adv.subscriptionID, adv.newPrevious); err != nil {
			return nil, apperr.System(err, "advance meter for subscription %d", adv.subscriptionID)
		}
	}
	return inv, nil
}

// CreateAdHoc persists a non-periodic invoice (no billing year/month) inside
// the caller's transaction. The settlement pipeline uses this for settlement
// invoices.
func (s *Service) CreateAdHoc(ctx context.Context, tx *repository.Store, leaseID int64, dueDate time.Time, lines []domain.InvoiceLine) (*domain.Invoice, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("invoice needs at least one line")
	}
	for _, line := range lines {
		if err := validateLine(line); err != nil {
			return nil, err
		}
	}

	inv := &domain.Invoice{
		LeaseID: leaseID,
		DueDate: &dueDate,
		Status:  domain.InvoiceUnpaid,
		Amount:  sumLines(lines),
		Lines:   lines,
	}
	if err := tx.Invoices.Create(ctx, inv); err != nil {
		return nil, apperr.System(err, "persist ad-hoc invoice")
	}
	return inv, nil
}
