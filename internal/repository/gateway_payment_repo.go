package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"rentora/internal/domain"
)

type GatewayPaymentRepository struct {
	db *gorm.DB
}

func NewGatewayPaymentRepository(db *gorm.DB) *GatewayPaymentRepository {
	return &GatewayPaymentRepository{db: db}
}

func (r *GatewayPaymentRepository) Create(ctx context.Context, p *domain.GatewayPayment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GatewayPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.GatewayPayment, error) {
	var p domain.GatewayPayment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPaidIdempotent records a successful callback exactly once. A repeat for
// an already-paid order reports changed=false so the caller can skip the
// business mutation.
func (r *GatewayPaymentRepository) MarkPaidIdempotent(ctx context.Context, orderID, transID, rawBody string, paidAt time.Time) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.GatewayPayment
		if err := forUpdate(tx).
			Where("order_id = ?", orderID).
			First(&p).Error; err != nil {
			return err
		}
		if p.Status == domain.GatewayPaymentPaid {
			changed = false
			return nil
		}
		res := tx.Model(&domain.GatewayPayment{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{
				"status":       domain.GatewayPaymentPaid,
				"trans_id":     transID,
				"raw_callback": rawBody,
				"paid_at":      paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("payment row not updated")
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *GatewayPaymentRepository) MarkFailed(ctx context.Context, orderID, rawBody, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.GatewayPayment{}).
		Where("order_id = ? AND status <> ?", orderID, domain.GatewayPaymentPaid).
		Updates(map[string]interface{}{
			"status":       domain.GatewayPaymentFailed,
			"raw_callback": rawBody,
			"fail_reason":  reason,
		}).Error
}

func (r *GatewayPaymentRepository) MarkIgnored(ctx context.Context, orderID, rawBody, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.GatewayPayment{}).
		Where("order_id = ? AND status <> ?", orderID, domain.GatewayPaymentPaid).
		Updates(map[string]interface{}{
			"status":       domain.GatewayPaymentIgnored,
			"raw_callback": rawBody,
			"fail_reason":  reason,
		}).Error
}
