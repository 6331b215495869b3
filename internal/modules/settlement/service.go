package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

// InvoiceIssuer creates the settlement invoice inside the caller's
// transaction. Implemented by the billing service.
type InvoiceIssuer interface {
	CreateAdHoc(ctx context.Context, tx *repository.Store, leaseID int64, dueDate time.Time, lines []domain.InvoiceLine) (*domain.Invoice, error)
}

// Notifier delivers tenant-facing messages fire-and-forget.
type Notifier interface {
	SettlementIssued(ctx context.Context, tenantID, invoiceID int64, amount decimal.Decimal)
}

// Auditor records state-changing actions best-effort.
type Auditor interface {
	Record(ctx context.Context, actor domain.Actor, action, entity string, entityID int64, detail string)
}

type Service struct {
	store    *repository.Store
	invoices InvoiceIssuer
	notifier Notifier
	audit    Auditor
	log      *zap.SugaredLogger
}

func NewService(store *repository.Store, invoices InvoiceIssuer, notifier Notifier, audit Auditor, log *zap.SugaredLogger) *Service {
	return &Service{
		store:    store,
		invoices: invoices,
		notifier: notifier,
		audit:    audit,
		log:      log,
	}
}

// SubmitCheckoutRequest opens a checkout request for the tenant's own active
// lease. One open request per lease.
func (s *Service) SubmitCheckoutRequest(ctx context.Context, actor domain.Actor, leaseID int64, reason string) (*domain.CheckoutRequest, error) {
	lease, err := s.store.Leases.GetByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("lease %d not found", leaseID)
		}
		return nil, apperr.System(err, "lookup lease %d", leaseID)
	}
	if !actor.IsStaff() && lease.TenantID != actor.ID {
		return nil, apperr.AccessDenied("lease %d does not belong to you", leaseID)
	}
	if lease.Status != domain.LeaseActive {
		return nil, apperr.InvalidState("lease %d is %s, checkout needs an active lease", leaseID, lease.Status)
	}

	if _, err := s.store.Checkouts.GetOpenByLease(ctx, leaseID); err == nil {
		return nil, apperr.Conflict("lease %d already has an open checkout request", leaseID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.System(err, "check open checkout requests")
	}

	cr := &domain.CheckoutRequest{
		LeaseID:  leaseID,
		TenantID: lease.TenantID,
		Status:   domain.CheckoutPending,
		Reason:   reason,
	}
	if err := s.store.Checkouts.Create(ctx, cr); err != nil {
		return nil, apperr.System(err, "create checkout request")
	}

	s.audit.Record(ctx, actor, "checkout.submit", "checkout_request", cr.ID, "")
	return cr, nil
}

// ApproveCheckoutRequest is a manager action, scoped to the branch of the
// lease's room.
func (s *Service) ApproveCheckoutRequest(ctx context.Context, actor domain.Actor, requestID int64) error {
	cr, err := s.loadRequestForManager(ctx, actor, requestID)
	if err != nil {
		return err
	}
	if cr.Status != domain.CheckoutPending {
		return apperr.InvalidState("checkout request %d is %s", requestID, cr.Status)
	}

	changed, err := s.store.Checkouts.UpdateStatusIf(ctx, requestID, domain.CheckoutPending, domain.CheckoutApproved)
	if err != nil {
		return apperr.System(err, "approve checkout request %d", requestID)
	}
	if !changed {
		return apperr.InvalidState("checkout request %d changed state concurrently", requestID)
	}

	s.audit.Record(ctx, actor, "checkout.approve", "checkout_request", requestID, "")
	return nil
}

// GetOrCreateDamageReport lazily creates the draft report for a checkout
// request the first time an inspector opens it. Only approved requests can
// be inspected.
func (s *Service) GetOrCreateDamageReport(ctx context.Context, actor domain.Actor, requestID int64) (*domain.DamageReport, error) {
	cr, err := s.loadRequestForManager(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	dr, err := s.store.Damages.GetByCheckoutRequest(ctx, requestID)
	if err == nil {
		return dr, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.System(err, "lookup damage report for request %d", requestID)
	}

	if cr.Status != domain.CheckoutApproved {
		return nil, apperr.InvalidState("checkout request %d is %s, inspection needs an approved request", requestID, cr.Status)
	}

	dr = &domain.DamageReport{
		LeaseID:           cr.LeaseID,
		CheckoutRequestID: &cr.ID,
		InspectorID:       actor.ID,
		Status:            domain.DamageDraft,
		TotalCost:         decimal.Zero,
	}
	if err := s.store.Damages.Create(ctx, dr); err != nil {
		return nil, apperr.System(err, "create damage report")
	}

	s.audit.Record(ctx, actor, "damage.create", "damage_report", dr.ID, "")
	return dr, nil
}

// CostItem is one typed damage cost entry supplied by the inspector.
type CostItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// UpdateDraft replaces the description and cost items of a draft report.
// Reports stop being editable the moment they are submitted.
func (s *Service) UpdateDraft(ctx context.Context, actor domain.Actor, reportID int64, description string, items []CostItem) (*domain.DamageReport, error) {
	dr, err := s.loadReportForManager(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	if dr.Status != domain.DamageDraft {
		return nil, apperr.InvalidState("damage report %d is %s, only drafts are editable", reportID, dr.Status)
	}

	total := decimal.Zero
	domainItems := make([]domain.DamageItem, 0, len(items))
	for _, item := range items {
		if item.Label == "" {
			return nil, apperr.Validation("cost item needs a label")
		}
		if item.Amount.IsNegative() || item.Amount.GreaterThan(domain.MaxLineAmount) {
			return nil, apperr.Validation("cost item %q amount out of range", item.Label)
		}
		total = total.Add(item.Amount)
		domainItems = append(domainItems, domain.DamageItem{Label: item.Label, Amount: item.Amount})
	}

	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		if err := tx.Damages.ReplaceItems(ctx, reportID, domainItems); err != nil {
			return apperr.System(err, "replace cost items")
		}
		dr.Description = description
		dr.TotalCost = total
		if err := tx.Damages.Save(ctx, dr); err != nil {
			return apperr.System(err, "save damage report %d", reportID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.store.Damages.GetByID(ctx, reportID)
}

// AttachImage records the externally stored image URL on a draft report.
func (s *Service) AttachImage(ctx context.Context, actor domain.Actor, reportID int64, url string) error {
	if url == "" {
		return apperr.Validation("attachment url is required")
	}
	dr, err := s.loadReportForManager(ctx, actor, reportID)
	if err != nil {
		return err
	}
	if dr.Status != domain.DamageDraft {
		return apperr.InvalidState("damage report %d is %s, only drafts are editable", reportID, dr.Status)
	}
	if err := s.store.Damages.AddAttachment(ctx, reportID, url); err != nil {
		return apperr.System(err, "attach image to report %d", reportID)
	}
	return nil
}

func (s *Service) SubmitDamageReport(ctx context.Context, actor domain.Actor, reportID int64) error {
	dr, err := s.loadReportForManager(ctx, actor, reportID)
	if err != nil {
		return err
	}
	if dr.Status != domain.DamageDraft {
		return apperr.InvalidState("damage report %d is %s", reportID, dr.Status)
	}

	changed, err := s.store.Damages.UpdateStatusIf(ctx, reportID, domain.DamageDraft, domain.DamageSubmitted, nil)
	if err != nil {
		return apperr.System(err, "submit damage report %d", reportID)
	}
	if !changed {
		return apperr.InvalidState("damage report %d changed state concurrently", reportID)
	}

	s.audit.Record(ctx, actor, "damage.submit", "damage_report", reportID, "")
	return nil
}

// ReviewDamageReport approves or rejects a submitted report.
func (s *Service) ReviewDamageReport(ctx context.Context, actor domain.Actor, reportID int64, approve bool, note string) error {
	dr, err := s.loadReportForManager(ctx, actor, reportID)
	if err != nil {
		return err
	}
	if dr.Status != domain.DamageSubmitted {
		return apperr.InvalidState("damage report %d is %s, expected submitted", reportID, dr.Status)
	}

	to := domain.DamageRejected
	action := "damage.reject"
	if approve {
		to = domain.DamageApproved
		action = "damage.approve"
	}
	changed, err := s.store.Damages.UpdateStatusIf(ctx, reportID, domain.DamageSubmitted, to, map[string]interface{}{
		"approver_id":   actor.ID,
		"approver_note": note,
	})
	if err != nil {
		return apperr.System(err, "review damage report %d", reportID)
	}
	if !changed {
		return apperr.InvalidState("damage report %d changed state concurrently", reportID)
	}

	s.audit.Record(ctx, actor, action, "damage_report", reportID, note)
	return nil
}

// CreateSettlementInvoice converts the approved report's cost items into an
// ad-hoc invoice. Idempotent per report: once linked, the same invoice is
// returned forever. Non-positive items are dropped; an empty result fails.
func (s *Service) CreateSettlementInvoice(ctx context.Context, actor domain.Actor, reportID int64, dueDate time.Time) (*domain.Invoice, error) {
	dr, err := s.loadReportForManager(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}

	if dr.SettlementInvoiceID != nil {
		inv, err := s.store.Invoices.GetByID(ctx, *dr.SettlementInvoiceID)
		if err != nil {
			return nil, apperr.System(err, "lookup settlement invoice %d", *dr.SettlementInvoiceID)
		}
		return inv, nil
	}

	if dr.Status != domain.DamageApproved {
		return nil, apperr.InvalidState("damage report %d is %s, settlement needs an approved report", reportID, dr.Status)
	}

	var lines []domain.InvoiceLine
	for _, item := range dr.Items {
		if !item.Amount.IsPositive() {
			continue
		}
		lines = append(lines, domain.InvoiceLine{
			Description: item.Label,
			UnitPrice:   item.Amount,
			Quantity:    decimal.NewFromInt(1),
			Amount:      item.Amount,
		})
	}
	if len(lines) == 0 {
		return nil, apperr.Validation("damage report %d has no billable cost items", reportID)
	}

	var inv *domain.Invoice
	err = s.store.Atomic(ctx, func(tx *repository.Store) error {
		created, err := s.invoices.CreateAdHoc(ctx, tx, dr.LeaseID, dueDate, lines)
		if err != nil {
			return err
		}
		linked, err := tx.Damages.SetSettlementInvoiceIDIfNull(ctx, reportID, created.ID)
		if err != nil {
			return apperr.System(err, "link settlement invoice")
		}
		if !linked {
			// raced with a concurrent creation; roll this one back and
			// let the caller re-read the winner
			return apperr.Conflict("damage report %d already has a settlement invoice", reportID)
		}
		inv = created
		return nil
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			if fresh, ferr := s.store.Damages.GetByID(ctx, reportID); ferr == nil && fresh.SettlementInvoiceID != nil {
				return s.store.Invoices.GetByID(ctx, *fresh.SettlementInvoiceID)
			}
		}
		return nil, err
	}

	lease, err := s.store.Leases.GetByID(ctx, dr.LeaseID)
	if err == nil {
		s.notifier.SettlementIssued(ctx, lease.TenantID, inv.ID, inv.Amount)
	}
	s.audit.Record(ctx, actor, "settlement.invoice", "damage_report", reportID, "")
	return inv, nil
}

func (s *Service) ListCheckoutRequests(ctx context.Context, actor domain.Actor) ([]domain.CheckoutRequest, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("only staff list checkout requests")
	}
	branch := actor.Branch
	reqs, err := s.store.Checkouts.ListByBranch(ctx, branch)
	if err != nil {
		return nil, apperr.System(err, "list checkout requests")
	}
	return reqs, nil
}

// loadRequestForManager enforces the branch rule: the acting staff member's
// branch must match the lease's room branch.
func (s *Service) loadRequestForManager(ctx context.Context, actor domain.Actor, requestID int64) (*domain.CheckoutRequest, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("checkout management is a staff operation")
	}
	cr, err := s.store.Checkouts.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("checkout request %d not found", requestID)
		}
		return nil, apperr.System(err, "lookup checkout request %d", requestID)
	}
	if err := s.authorizeLeaseBranch(ctx, actor, cr.LeaseID); err != nil {
		return nil, err
	}
	return cr, nil
}

func (s *Service) loadReportForManager(ctx context.Context, actor domain.Actor, reportID int64) (*domain.DamageReport, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("damage reports are a staff operation")
	}
	dr, err := s.store.Damages.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("damage report %d not found", reportID)
		}
		return nil, apperr.System(err, "lookup damage report %d", reportID)
	}
	if err := s.authorizeLeaseBranch(ctx, actor, dr.LeaseID); err != nil {
		return nil, err
	}
	return dr, nil
}

func (s *Service) authorizeLeaseBranch(ctx context.Context, actor domain.Actor, leaseID int64) error {
	lease, err := s.store.Leases.GetByID(ctx, leaseID)
	if err != nil {
		return apperr.System(err, "lookup lease %d", leaseID)
	}
	if !actor.CanAccessBranch(lease.BranchCode) {
		return apperr.AccessDenied("lease %d belongs to another branch", leaseID)
	}
	return nil
}
