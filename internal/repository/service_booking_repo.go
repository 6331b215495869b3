package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"rentora/internal/domain"
)

type ServiceBookingRepository struct {
	db *gorm.DB
}

func NewServiceBookingRepository(db *gorm.DB) *ServiceBookingRepository {
	return &ServiceBookingRepository{db: db}
}

func (r *ServiceBookingRepository) Create(ctx context.Context, b *domain.ServiceBooking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *ServiceBookingRepository) GetByID(ctx context.Context, id int64) (*domain.ServiceBooking, error) {
	var b domain.ServiceBooking
	if err := r.db.WithContext(ctx).Preload("Service").First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *ServiceBookingRepository) ListByLease(ctx context.Context, leaseID int64) ([]domain.ServiceBooking, error) {
	var bookings []domain.ServiceBooking
	err := r.db.WithContext(ctx).
		Preload("Service").
		Where("lease_id = ?", leaseID).
		Order("booking_date DESC").
		Find(&bookings).Error
	return bookings, err
}

// ListBillable returns booked and completed occurrences inside the period.
// Canceled bookings never bill.
func (r *ServiceBookingRepository) ListBillable(ctx context.Context, leaseID int64, periodStart, periodEnd time.Time) ([]domain.ServiceBooking, error) {
	var bookings []domain.ServiceBooking
	err := r.db.WithContext(ctx).
		Preload("Service").
		Where("lease_id = ? AND status IN ? AND booking_date >= ? AND booking_date <= ?",
			leaseID,
			[]domain.ServiceBookingStatus{domain.BookingBooked, domain.BookingCompleted},
			periodStart, periodEnd).
		Order("booking_date").
		Find(&bookings).Error
	return bookings, err
}

func (r *ServiceBookingRepository) ExistsFor(ctx context.Context, leaseID, serviceID int64, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ServiceBooking{}).
		Where("lease_id = ? AND service_id = ? AND booking_date = ? AND status <> ?",
			leaseID, serviceID, date, domain.BookingCanceled).
		Count(&count).Error
	return count > 0, err
}

func (r *ServiceBookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.ServiceBookingStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.WithContext(ctx).
		Model(&domain.ServiceBooking{}).
		Where("id = ?", id).
		Updates(updates).Error
}
