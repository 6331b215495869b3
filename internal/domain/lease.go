package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaseStatus string

const (
	LeasePending              LeaseStatus = "pending"
	LeaseSignedPendingDeposit LeaseStatus = "signed_pending_deposit"
	LeaseActive               LeaseStatus = "active"
	LeaseEnded                LeaseStatus = "ended"
)

type Lease struct {
	ID         int64       `json:"id"`
	TenantID   int64       `json:"tenant_id" validate:"required"`
	RoomID     int64       `json:"room_id" validate:"required"`
	BranchCode string      `json:"branch_code"`
	RoomNumber string      `json:"room_number"`
	StartDate  time.Time   `json:"start_date" validate:"required"`
	EndDate    time.Time   `json:"end_date" validate:"required"`
	Status     LeaseStatus `json:"status"`

	DepositAmount    decimal.Decimal `json:"deposit_amount" gorm:"type:decimal(14,2)"`
	DepositMethod    string          `json:"deposit_method,omitempty"`
	DepositPaidAt    *time.Time      `json:"deposit_paid_at,omitempty"`
	DepositReference string          `json:"deposit_reference,omitempty"`

	SignedDocumentURL string `json:"signed_document_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Room *Room `json:"room,omitempty" gorm:"foreignKey:RoomID"`
}
