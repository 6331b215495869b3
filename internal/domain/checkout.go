package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutApproved  CheckoutStatus = "approved"
	CheckoutCompleted CheckoutStatus = "completed"
)

// CheckoutRequest is a tenant's notice of intent to vacate.
type CheckoutRequest struct {
	ID       int64          `json:"id"`
	LeaseID  int64          `json:"lease_id" validate:"required"`
	TenantID int64          `json:"tenant_id"`
	Status   CheckoutStatus `json:"status"`
	Reason   string         `json:"reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DamageReportStatus string

const (
	DamageDraft     DamageReportStatus = "draft"
	DamageSubmitted DamageReportStatus = "submitted"
	DamageApproved  DamageReportStatus = "approved"
	DamageRejected  DamageReportStatus = "rejected"
)

type DamageReport struct {
	ID                int64              `json:"id"`
	LeaseID           int64              `json:"lease_id"`
	CheckoutRequestID *int64             `json:"checkout_request_id,omitempty"`
	InspectorID       int64              `json:"inspector_id"`
	Description       string             `json:"description,omitempty" gorm:"type:text"`
	TotalCost         decimal.Decimal    `json:"total_cost" gorm:"type:decimal(14,2)"`
	Status            DamageReportStatus `json:"status"`

	// Set at most once, when the settlement invoice is created.
	SettlementInvoiceID *int64 `json:"settlement_invoice_id,omitempty"`

	ApproverID   *int64 `json:"approver_id,omitempty"`
	ApproverNote string `json:"approver_note,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items       []DamageItem       `json:"items,omitempty" gorm:"foreignKey:ReportID"`
	Attachments []DamageAttachment `json:"attachments,omitempty" gorm:"foreignKey:ReportID"`
}

// DamageItem is one typed (label, amount) cost entry, validated at the
// boundary instead of being carried as a JSON blob.
type DamageItem struct {
	ID       int64           `json:"id"`
	ReportID int64           `json:"report_id"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount" gorm:"type:decimal(14,2)"`
}

// DamageAttachment stores only the URL of an externally stored image.
type DamageAttachment struct {
	ID       int64  `json:"id"`
	ReportID int64  `json:"report_id"`
	URL      string `json:"url"`
}
