package repository

import (
	"context"

	"gorm.io/gorm"

	"rentora/internal/domain"
)

type LeaseRepository struct {
	db *gorm.DB
}

func NewLeaseRepository(db *gorm.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

func (r *LeaseRepository) Create(ctx context.Context, l *domain.Lease) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LeaseRepository) GetByID(ctx context.Context, id int64) (*domain.Lease, error) {
	var l domain.Lease
	if err := r.db.WithContext(ctx).Preload("Room").First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetForUpdate locks the lease row for the duration of the surrounding
// transaction. Status check-and-set paths must read through this.
func (r *LeaseRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Lease, error) {
	var l domain.Lease
	if err := forUpdate(r.db.WithContext(ctx)).
		First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeaseRepository) Save(ctx context.Context, l *domain.Lease) error {
	return r.db.WithContext(ctx).Save(l).Error
}

// UpdateStatusIf transitions the lease from one status to another and reports
// whether a row actually changed. Idempotency against duplicate callbacks
// rides on the `status = from` predicate.
func (r *LeaseRepository) UpdateStatusIf(ctx context.Context, id int64, from, to domain.LeaseStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	res := r.db.WithContext(ctx).
		Model(&domain.Lease{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LeaseRepository) HasActiveForRoom(ctx context.Context, roomID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Lease{}).
		Where("room_id = ? AND status IN ?", roomID, []domain.LeaseStatus{
			domain.LeasePending, domain.LeaseSignedPendingDeposit, domain.LeaseActive,
		}).
		Count(&count).Error
	return count > 0, err
}

// ListActive returns leases that are active and whose end date has not passed
// before the given period start. Used by bulk invoice generation and preview.
func (r *LeaseRepository) ListActive(ctx context.Context) ([]domain.Lease, error) {
	var leases []domain.Lease
	err := r.db.WithContext(ctx).
		Preload("Room").
		Where("status = ?", domain.LeaseActive).
		Order("id").
		Find(&leases).Error
	return leases, err
}

func (r *LeaseRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.Lease, error) {
	var leases []domain.Lease
	err := r.db.WithContext(ctx).
		Preload("Room").
		Where("tenant_id = ?", tenantID).
		Order("id DESC").
		Find(&leases).Error
	return leases, err
}

func (r *LeaseRepository) ListByBranch(ctx context.Context, branchCode string) ([]domain.Lease, error) {
	var leases []domain.Lease
	err := r.db.WithContext(ctx).
		Preload("Room").
		Where("branch_code = ?", branchCode).
		Order("id DESC").
		Find(&leases).Error
	return leases, err
}

func (r *LeaseRepository) List(ctx context.Context) ([]domain.Lease, error) {
	var leases []domain.Lease
	err := r.db.WithContext(ctx).Preload("Room").Order("id DESC").Find(&leases).Error
	return leases, err
}

// Delete removes a lease row. Only the service calls this, and only for
// leases still pending.
func (r *LeaseRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Lease{}, id).Error
}
