package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type GatewayPaymentStatus string

const (
	GatewayPaymentCreated GatewayPaymentStatus = "created"
	GatewayPaymentPaid    GatewayPaymentStatus = "paid"
	GatewayPaymentFailed  GatewayPaymentStatus = "failed"
	GatewayPaymentIgnored GatewayPaymentStatus = "ignored"
)

type PaymentPurpose string

const (
	PurposeLeaseDeposit   PaymentPurpose = "lease_deposit"
	PurposeInvoice        PaymentPurpose = "invoice"
	PurposePartnerListing PaymentPurpose = "partner_listing"
)

// GatewayPayment is one outbound checkout request or inbound callback
// observed from the payment provider.
type GatewayPayment struct {
	ID        int64                `json:"id"`
	OrderID   string               `json:"order_id" gorm:"uniqueIndex"`
	RequestID string               `json:"request_id"`
	Amount    decimal.Decimal      `json:"amount" gorm:"type:decimal(14,2)"`
	Purpose   PaymentPurpose       `json:"purpose"`
	LeaseID   *int64               `json:"lease_id,omitempty"`
	InvoiceID *int64               `json:"invoice_id,omitempty"`
	Status    GatewayPaymentStatus `json:"status"`

	CheckoutURL string `json:"checkout_url,omitempty" gorm:"type:text"`
	TransID     string `json:"trans_id,omitempty"`
	ResultCode  string `json:"result_code,omitempty"`
	RawCallback string `json:"-" gorm:"type:text"`
	FailReason  string `json:"fail_reason,omitempty"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
