package notification

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecipientLookup resolves a tenant id to a deliverable address. Tenant
// records live outside this core.
type RecipientLookup func(ctx context.Context, tenantID int64) (string, error)

// TenantNotifier sends tenant-facing emails fire-and-forget: every failure is
// logged and swallowed so notification can never abort a business operation.
type TenantNotifier struct {
	Sender Sender
	Lookup RecipientLookup
	Log    *zap.SugaredLogger
}

func (n *TenantNotifier) send(ctx context.Context, tenantID int64, subject, body string) {
	recipient, err := n.Lookup(ctx, tenantID)
	if err != nil {
		n.Log.Errorw("notification recipient lookup failed", "tenant_id", tenantID, "err", err)
		return
	}
	if err := n.Sender.Send(ctx, recipient, subject, body); err != nil {
		n.Log.Errorw("notification send failed", "tenant_id", tenantID, "subject", subject, "err", err)
	}
}

func (n *TenantNotifier) InvoiceIssued(ctx context.Context, tenantID int64, roomNumber string, year, month int, amount decimal.Decimal) {
	subject, body := InvoiceIssued(roomNumber, year, month, amount)
	n.send(ctx, tenantID, subject, body)
}

func (n *TenantNotifier) InvoicePaid(ctx context.Context, tenantID, invoiceID int64, amount decimal.Decimal) {
	subject, body := InvoicePaid(invoiceID, amount)
	n.send(ctx, tenantID, subject, body)
}

func (n *TenantNotifier) DepositConfirmed(ctx context.Context, tenantID int64, roomNumber string, amount decimal.Decimal) {
	subject, body := DepositConfirmed(roomNumber, amount)
	n.send(ctx, tenantID, subject, body)
}

func (n *TenantNotifier) SettlementIssued(ctx context.Context, tenantID, invoiceID int64, amount decimal.Decimal) {
	subject, body := SettlementIssued(invoiceID, amount)
	n.send(ctx, tenantID, subject, body)
}
