package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"rentora/internal/domain"
)

type ServiceDefinitionRepository struct {
	db *gorm.DB
}

func NewServiceDefinitionRepository(db *gorm.DB) *ServiceDefinitionRepository {
	return &ServiceDefinitionRepository{db: db}
}

func (r *ServiceDefinitionRepository) Create(ctx context.Context, def *domain.ServiceDefinition) error {
	return r.db.WithContext(ctx).Create(def).Error
}

func (r *ServiceDefinitionRepository) GetByID(ctx context.Context, id int64) (*domain.ServiceDefinition, error) {
	var def domain.ServiceDefinition
	if err := r.db.WithContext(ctx).First(&def, id).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *ServiceDefinitionRepository) GetByName(ctx context.Context, name string) (*domain.ServiceDefinition, error) {
	var def domain.ServiceDefinition
	if err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *ServiceDefinitionRepository) List(ctx context.Context) ([]domain.ServiceDefinition, error) {
	var defs []domain.ServiceDefinition
	err := r.db.WithContext(ctx).Order("id").Find(&defs).Error
	return defs, err
}

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.ServiceSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id int64) (*domain.ServiceSubscription, error) {
	var sub domain.ServiceSubscription
	if err := r.db.WithContext(ctx).Preload("Service").First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetForUpdate(ctx context.Context, id int64) (*domain.ServiceSubscription, error) {
	var sub domain.ServiceSubscription
	if err := forUpdate(r.db.WithContext(ctx)).
		First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Save(ctx context.Context, sub *domain.ServiceSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *SubscriptionRepository) ListByLease(ctx context.Context, leaseID int64) ([]domain.ServiceSubscription, error) {
	var subs []domain.ServiceSubscription
	err := r.db.WithContext(ctx).
		Preload("Service").
		Where("lease_id = ?", leaseID).
		Order("id").
		Find(&subs).Error
	return subs, err
}

// FindByLeaseAndServiceName matches by service name case-insensitively; the
// idempotent provisioning path keys on this.
func (r *SubscriptionRepository) FindByLeaseAndServiceName(ctx context.Context, leaseID int64, name string) (*domain.ServiceSubscription, error) {
	var sub domain.ServiceSubscription
	err := r.db.WithContext(ctx).
		Joins("JOIN service_definitions ON service_definitions.id = service_subscriptions.service_id").
		Where("service_subscriptions.lease_id = ? AND LOWER(service_definitions.name) = LOWER(?)", leaseID, name).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// AdvanceMeter rolls previous_reading forward to the given value. Called only
// on committed invoice creation.
func (r *SubscriptionRepository) AdvanceMeter(ctx context.Context, id int64, newPrevious int64) error {
	return r.db.WithContext(ctx).
		Model(&domain.ServiceSubscription{}).
		Where("id = ?", id).
		Update("previous_reading", newPrevious).Error
}

func (r *SubscriptionRepository) SetReadings(ctx context.Context, id int64, previous, current *int64) error {
	return r.db.WithContext(ctx).
		Model(&domain.ServiceSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"previous_reading": previous,
			"current_reading":  current,
		}).Error
}

func (r *SubscriptionRepository) SetEndDate(ctx context.Context, id int64, end time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.ServiceSubscription{}).
		Where("id = ?", id).
		Update("end_date", end).Error
}
