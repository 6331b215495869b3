package billing

import "time"

type CreateInvoiceRequest struct {
	LeaseID int64     `json:"lease_id" binding:"required"`
	Year    int       `json:"year" binding:"required"`
	Month   int       `json:"month" binding:"required"`
	DueDate time.Time `json:"due_date" binding:"required"`
}

type GenerateBulkRequest struct {
	Year    int        `json:"year" binding:"required"`
	Month   int        `json:"month" binding:"required"`
	DueDate *time.Time `json:"due_date"`
}

type MarkPaidRequest struct {
	Direct bool `json:"direct"`
}
