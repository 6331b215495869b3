package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoicePaid    InvoiceStatus = "paid"
)

// MaxLineAmount is the upper bound any single monetary amount may take
// before it is rejected by validation.
var MaxLineAmount = decimal.RequireFromString("9999999999.99")

type Invoice struct {
	ID      int64 `json:"id"`
	LeaseID int64 `json:"lease_id"`

	// Billing period; nil for ad-hoc invoices such as settlement invoices.
	BillingYear  *int `json:"billing_year,omitempty"`
	BillingMonth *int `json:"billing_month,omitempty"`

	DueDate    *time.Time      `json:"due_date,omitempty"`
	Status     InvoiceStatus   `json:"status"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(14,2)"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	PaidDirect bool            `json:"paid_direct"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []InvoiceLine `json:"lines,omitempty" gorm:"foreignKey:InvoiceID"`
	Lease *Lease        `json:"lease,omitempty" gorm:"foreignKey:LeaseID"`
}

type InvoiceLine struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2)"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(14,3)"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(14,2)"`
}
