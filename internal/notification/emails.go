package notification

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Small canned HTML bodies; composition stays here so services only hand over
// domain values.

func InvoiceIssued(roomNumber string, year, month int, amount decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Invoice for room %s, %04d-%02d", roomNumber, year, month)
	body = fmt.Sprintf(
		"<p>Your invoice for room <b>%s</b>, period %04d-%02d, has been issued.</p><p>Amount due: <b>%s</b></p>",
		roomNumber, year, month, amount.StringFixed(2),
	)
	return subject, body
}

func InvoicePaid(invoiceID int64, amount decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Payment received for invoice #%d", invoiceID)
	body = fmt.Sprintf(
		"<p>We received your payment of <b>%s</b> for invoice <b>#%d</b>. Thank you.</p>",
		amount.StringFixed(2), invoiceID,
	)
	return subject, body
}

func DepositConfirmed(roomNumber string, amount decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Deposit confirmed for room %s", roomNumber)
	body = fmt.Sprintf(
		"<p>Your deposit of <b>%s</b> for room <b>%s</b> has been confirmed. Your lease is now active.</p>",
		amount.StringFixed(2), roomNumber,
	)
	return subject, body
}

func SettlementIssued(invoiceID int64, amount decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Move-out settlement invoice #%d", invoiceID)
	body = fmt.Sprintf(
		"<p>Your move-out settlement invoice <b>#%d</b> has been issued.</p><p>Amount due: <b>%s</b></p>",
		invoiceID, amount.StringFixed(2),
	)
	return subject, body
}
