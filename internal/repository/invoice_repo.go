package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"rentora/internal/domain"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create persists the invoice together with its lines. The storage-level
// unique index on (lease_id, billing_year, billing_month) backs up the
// application-level existence check; callers translate a uniqueness failure
// into a Conflict.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lease").
		First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := forUpdate(r.db.WithContext(ctx)).
		First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) ExistsForPeriod(ctx context.Context, leaseID int64, year, month int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("lease_id = ? AND billing_year = ? AND billing_month = ?", leaseID, year, month).
		Count(&count).Error
	return count > 0, err
}

func (r *InvoiceRepository) ListByLease(ctx context.Context, leaseID int64) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("lease_id = ?", leaseID).
		Order("id DESC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) ListByBranch(ctx context.Context, branchCode string) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Joins("JOIN leases ON leases.id = invoices.lease_id").
		Where("leases.branch_code = ?", branchCode).
		Order("invoices.id DESC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) List(ctx context.Context) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).Preload("Lines").Order("id DESC").Find(&invoices).Error
	return invoices, err
}

// MarkPaid flips the invoice to paid and reports whether this call changed
// anything. Already-paid invoices are a no-op, not an error.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id int64, direct bool, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND status <> ?", id, domain.InvoicePaid).
		Updates(map[string]interface{}{
			"status":      domain.InvoicePaid,
			"paid_at":     paidAt,
			"paid_direct": direct,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkOverdue flips unpaid invoices past their due date. Run from a periodic
// sweep, not from the request path.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", domain.InvoiceUnpaid, asOf).
		Update("status", domain.InvoiceOverdue)
	return res.RowsAffected, res.Error
}
