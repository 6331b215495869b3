package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServiceCategory string

const (
	// Metered services are billed by consumption between two meter readings.
	ServiceMetered ServiceCategory = "metered"
	// Fixed services are billed by subscription quantity every period.
	ServiceFixed ServiceCategory = "fixed"
	// OnDemand services are billed per booked occurrence.
	ServiceOnDemand ServiceCategory = "on_demand"
)

type ServiceDefinition struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name" gorm:"uniqueIndex" validate:"required"`
	Category  ServiceCategory `json:"category"`
	Unit      string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2)"`
	// Protected services (utilities, security) are provisioned by the system
	// and cannot be added or cancelled by tenants.
	Protected bool      `json:"protected"`
	CreatedAt time.Time `json:"created_at"`
}

type ServiceSubscription struct {
	ID        int64      `json:"id"`
	LeaseID   int64      `json:"lease_id"`
	ServiceID int64      `json:"service_id"`
	Quantity  int        `json:"quantity"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"` // nil = open-ended

	// Meter readings, set only for metered services.
	PreviousReading *int64 `json:"previous_reading,omitempty"`
	CurrentReading  *int64 `json:"current_reading,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Service *ServiceDefinition `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
}

// ActiveIn reports whether the subscription overlaps the given period.
func (s ServiceSubscription) ActiveIn(periodStart, periodEnd time.Time) bool {
	if s.StartDate.After(periodEnd) {
		return false
	}
	return s.EndDate == nil || !s.EndDate.Before(periodStart)
}
