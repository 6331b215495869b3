package repository

import (
	"context"

	"gorm.io/gorm"

	"rentora/internal/domain"
)

type CheckoutRepository struct {
	db *gorm.DB
}

func NewCheckoutRepository(db *gorm.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

func (r *CheckoutRepository) Create(ctx context.Context, cr *domain.CheckoutRequest) error {
	return r.db.WithContext(ctx).Create(cr).Error
}

func (r *CheckoutRepository) GetByID(ctx context.Context, id int64) (*domain.CheckoutRequest, error) {
	var cr domain.CheckoutRequest
	if err := r.db.WithContext(ctx).First(&cr, id).Error; err != nil {
		return nil, err
	}
	return &cr, nil
}

// GetOpenByLease returns a pending or approved request for the lease, if any.
func (r *CheckoutRepository) GetOpenByLease(ctx context.Context, leaseID int64) (*domain.CheckoutRequest, error) {
	var cr domain.CheckoutRequest
	err := r.db.WithContext(ctx).
		Where("lease_id = ? AND status IN ?", leaseID, []domain.CheckoutStatus{
			domain.CheckoutPending, domain.CheckoutApproved,
		}).
		First(&cr).Error
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (r *CheckoutRepository) ListByBranch(ctx context.Context, branchCode string) ([]domain.CheckoutRequest, error) {
	var reqs []domain.CheckoutRequest
	err := r.db.WithContext(ctx).
		Joins("JOIN leases ON leases.id = checkout_requests.lease_id").
		Where("leases.branch_code = ?", branchCode).
		Order("checkout_requests.id DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *CheckoutRepository) UpdateStatusIf(ctx context.Context, id int64, from, to domain.CheckoutStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.CheckoutRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type DamageReportRepository struct {
	db *gorm.DB
}

func NewDamageReportRepository(db *gorm.DB) *DamageReportRepository {
	return &DamageReportRepository{db: db}
}

func (r *DamageReportRepository) Create(ctx context.Context, dr *domain.DamageReport) error {
	return r.db.WithContext(ctx).Create(dr).Error
}

func (r *DamageReportRepository) GetByID(ctx context.Context, id int64) (*domain.DamageReport, error) {
	var dr domain.DamageReport
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Attachments").
		First(&dr, id).Error; err != nil {
		return nil, err
	}
	return &dr, nil
}

func (r *DamageReportRepository) GetForUpdate(ctx context.Context, id int64) (*domain.DamageReport, error) {
	var dr domain.DamageReport
	if err := forUpdate(r.db.WithContext(ctx)).
		First(&dr, id).Error; err != nil {
		return nil, err
	}
	return &dr, nil
}

func (r *DamageReportRepository) GetByCheckoutRequest(ctx context.Context, checkoutRequestID int64) (*domain.DamageReport, error) {
	var dr domain.DamageReport
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Attachments").
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&dr).Error
	if err != nil {
		return nil, err
	}
	return &dr, nil
}

// GetBySettlementInvoice finds the report owning a settlement invoice: the
// payment-confirmation cascade enters the pipeline through this lookup.
func (r *DamageReportRepository) GetBySettlementInvoice(ctx context.Context, invoiceID int64) (*domain.DamageReport, error) {
	var dr domain.DamageReport
	err := r.db.WithContext(ctx).
		Where("settlement_invoice_id = ?", invoiceID).
		First(&dr).Error
	if err != nil {
		return nil, err
	}
	return &dr, nil
}

func (r *DamageReportRepository) Save(ctx context.Context, dr *domain.DamageReport) error {
	return r.db.WithContext(ctx).Save(dr).Error
}

// ReplaceItems swaps the typed cost lines of a draft report.
func (r *DamageReportRepository) ReplaceItems(ctx context.Context, reportID int64, items []domain.DamageItem) error {
	if err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Delete(&domain.DamageItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ReportID = reportID
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *DamageReportRepository) AddAttachment(ctx context.Context, reportID int64, url string) error {
	return r.db.WithContext(ctx).Create(&domain.DamageAttachment{ReportID: reportID, URL: url}).Error
}

// SetSettlementInvoiceIDIfNull links the settlement invoice at most once.
func (r *DamageReportRepository) SetSettlementInvoiceIDIfNull(ctx context.Context, reportID, invoiceID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.DamageReport{}).
		Where("id = ? AND settlement_invoice_id IS NULL", reportID).
		Update("settlement_invoice_id", invoiceID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *DamageReportRepository) UpdateStatusIf(ctx context.Context, id int64, from, to domain.DamageReportStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	res := r.db.WithContext(ctx).
		Model(&domain.DamageReport{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
