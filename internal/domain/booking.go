package domain

import "time"

type ServiceBookingStatus string

const (
	BookingBooked    ServiceBookingStatus = "booked"
	BookingCompleted ServiceBookingStatus = "completed"
	BookingCanceled  ServiceBookingStatus = "canceled"
)

// ServiceBooking is one scheduled, billable occurrence of an on-demand
// service, e.g. a cleaning visit on a given date.
type ServiceBooking struct {
	ID          int64                `json:"id"`
	LeaseID     int64                `json:"lease_id" validate:"required"`
	ServiceID   int64                `json:"service_id" validate:"required"`
	BookingDate time.Time            `json:"booking_date" validate:"required"`
	TimeSlot    string               `json:"time_slot,omitempty"` // e.g. "09:00-11:00"
	Status      ServiceBookingStatus `json:"status"`

	CanceledAt   *time.Time `json:"canceled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Service *ServiceDefinition `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
}
