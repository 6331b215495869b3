package ledger

import "time"

type SubscribeRequest struct {
	LeaseID   int64 `json:"lease_id" binding:"required"`
	ServiceID int64 `json:"service_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type RecordReadingRequest struct {
	Reading int64 `json:"reading" binding:"required"`
}

type BookServiceRequest struct {
	LeaseID   int64     `json:"lease_id" binding:"required"`
	ServiceID int64     `json:"service_id" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
	TimeSlot  string    `json:"time_slot"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}
