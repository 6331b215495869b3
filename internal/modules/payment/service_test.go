package payment

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentora/internal/config"
	"rentora/internal/database"
	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

type mockDepositConfirmer struct {
	calls   int
	leaseID int64
	amount  decimal.Decimal
	actor   domain.Actor
}

func (m *mockDepositConfirmer) ConfirmDeposit(ctx context.Context, actor domain.Actor, leaseID int64, method string, amount decimal.Decimal, reference string) error {
	m.calls++
	m.leaseID = leaseID
	m.amount = amount
	m.actor = actor
	return nil
}

type mockInvoicePayer struct {
	calls     int
	invoiceID int64
	direct    bool
}

func (m *mockInvoicePayer) MarkPaid(ctx context.Context, actor domain.Actor, invoiceID int64, direct bool) error {
	m.calls++
	m.invoiceID = invoiceID
	m.direct = direct
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		GatewayPartnerCode: "RENTORA",
		GatewayAccessKey:   "test-access",
		GatewaySecretKey:   "test-secret",
		GatewayEndpoint:    "https://pay.example/gateway",
		GatewayRedirectURL: "https://app.example/return",
		GatewayNotifyURL:   "https://app.example/api/v1/payments/callback",
	}
}

func newTestService(t *testing.T) (*Service, *repository.Store, *mockDepositConfirmer, *mockInvoicePayer) {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	store := repository.NewStore(db)
	deposits := &mockDepositConfirmer{}
	invoices := &mockInvoicePayer{}
	svc := NewService(store, deposits, invoices, testConfig(), zap.NewNop().Sugar())
	return svc, store, deposits, invoices
}

func seedLease(t *testing.T, store *repository.Store, status domain.LeaseStatus) *domain.Lease {
	t.Helper()
	lease := &domain.Lease{
		TenantID:      10,
		RoomID:        1,
		BranchCode:    "P",
		RoomNumber:    "101",
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		DepositAmount: decimal.NewFromInt(1000000),
		Status:        status,
	}
	if err := store.Leases.Create(context.Background(), lease); err != nil {
		t.Fatal(err)
	}
	return lease
}

// signCallback fills in the signature a genuine provider would send.
func signCallback(cfg *config.Config, cb *CallbackRequest) {
	cb.Signature = rawSignature(cfg.GatewaySecretKey, [][2]string{
		{"accessKey", cfg.GatewayAccessKey},
		{"amount", formatInt(cb.Amount)},
		{"extraData", cb.ExtraData},
		{"message", cb.Message},
		{"orderId", cb.OrderID},
		{"orderInfo", cb.OrderInfo},
		{"orderType", cb.OrderType},
		{"partnerCode", cb.PartnerCode},
		{"payType", cb.PayType},
		{"requestId", cb.RequestID},
		{"responseTime", formatInt(cb.ResponseTime)},
		{"resultCode", formatInt(int64(cb.ResultCode))},
		{"transId", formatInt(cb.TransID)},
	})
}

func callbackFor(cfg *config.Config, p *domain.GatewayPayment, resultCode int) CallbackRequest {
	cb := CallbackRequest{
		PartnerCode:  cfg.GatewayPartnerCode,
		OrderID:      p.OrderID,
		RequestID:    p.RequestID,
		Amount:       p.Amount.IntPart(),
		TransID:      900100,
		ResultCode:   resultCode,
		ResponseTime: 1772400000000,
	}
	signCallback(cfg, &cb)
	return cb
}

func TestBuildCheckoutDeposit(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseSignedPendingDeposit)

	// the request names an amount but the lease's deposit is what gets charged
	out, err := svc.BuildCheckout(context.Background(), domain.System(), CheckoutRequest{
		Purpose: "lease_deposit",
		LeaseID: lease.ID,
		Amount:  1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.PayURL == "" {
		t.Fatal("expected a checkout url")
	}

	row, err := store.Payments.GetByOrderID(context.Background(), out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != domain.GatewayPaymentCreated {
		t.Fatalf("expected created, got %s", row.Status)
	}
	if row.Purpose != domain.PurposeLeaseDeposit || row.LeaseID == nil || *row.LeaseID != lease.ID {
		t.Fatalf("payment row not linked to lease: %+v", row)
	}
	if !row.Amount.Equal(decimal.NewFromInt(1000000)) {
		t.Fatalf("deposit must charge the lease's deposit amount, got %s", row.Amount)
	}
}

func TestBuildCheckoutDepositNeedsAwaitingLease(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseActive)

	_, err := svc.BuildCheckout(context.Background(), domain.System(), CheckoutRequest{
		Purpose: "lease_deposit",
		LeaseID: lease.ID,
		Amount:  1000000,
	})
	if !apperr.IsKind(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid_state, got %v", err)
	}
}

func TestCallbackTamperedSignature(t *testing.T) {
	svc, store, deposits, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseSignedPendingDeposit)

	ctx := context.Background()
	out, err := svc.BuildCheckout(ctx, domain.System(), CheckoutRequest{Purpose: "lease_deposit", LeaseID: lease.ID, Amount: 1000000})
	if err != nil {
		t.Fatal(err)
	}
	row, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}

	cb := callbackFor(testConfig(), row, 0)
	cb.Amount = 5 // tampered after signing

	err = svc.HandleCallback(ctx, cb, "raw")
	if !apperr.IsKind(err, apperr.KindAuthenticity) {
		t.Fatalf("expected authenticity_failure, got %v", err)
	}
	if deposits.calls != 0 {
		t.Fatal("no business mutation may run on a tampered callback")
	}

	fresh, err := store.Leases.GetByID(ctx, lease.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != domain.LeaseSignedPendingDeposit {
		t.Fatalf("lease must be untouched, got %s", fresh.Status)
	}
	freshRow, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if freshRow.Status != domain.GatewayPaymentCreated {
		t.Fatalf("payment row must be untouched, got %s", freshRow.Status)
	}
}

func TestCallbackDepositRouting(t *testing.T) {
	svc, store, deposits, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseSignedPendingDeposit)

	ctx := context.Background()
	out, err := svc.BuildCheckout(ctx, domain.System(), CheckoutRequest{Purpose: "lease_deposit", LeaseID: lease.ID, Amount: 1000000})
	if err != nil {
		t.Fatal(err)
	}
	row, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}

	// the provider echoes the extraData marker back
	cb := callbackFor(testConfig(), row, 0)
	cb.ExtraData = depositExtraData(t, lease.ID)
	signCallback(testConfig(), &cb)

	if err := svc.HandleCallback(ctx, cb, "raw"); err != nil {
		t.Fatal(err)
	}
	if deposits.calls != 1 {
		t.Fatalf("expected one deposit confirmation, got %d", deposits.calls)
	}
	if deposits.leaseID != lease.ID {
		t.Fatalf("routed to lease %d, want %d", deposits.leaseID, lease.ID)
	}
	if !deposits.actor.IsStaff() {
		t.Fatal("internal flows confirm with the system actor")
	}
	if !deposits.amount.Equal(decimal.NewFromInt(1000000)) {
		t.Fatalf("confirmed amount %s, want the charged deposit", deposits.amount)
	}

	freshRow, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if freshRow.Status != domain.GatewayPaymentPaid {
		t.Fatalf("expected paid, got %s", freshRow.Status)
	}

	// a provider retry is acknowledged without re-running the confirmation
	if err := svc.HandleCallback(ctx, cb, "raw"); err != nil {
		t.Fatal(err)
	}
	if deposits.calls != 1 {
		t.Fatalf("duplicate callback must not confirm again, got %d calls", deposits.calls)
	}
}

func TestCallbackDepositIgnoredForActiveLease(t *testing.T) {
	svc, store, deposits, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseSignedPendingDeposit)

	ctx := context.Background()
	out, err := svc.BuildCheckout(ctx, domain.System(), CheckoutRequest{Purpose: "lease_deposit", LeaseID: lease.ID, Amount: 1000000})
	if err != nil {
		t.Fatal(err)
	}
	row, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}

	// staff confirmed the deposit out of band before the callback arrived
	if _, err := store.Leases.UpdateStatusIf(ctx, lease.ID, domain.LeaseSignedPendingDeposit, domain.LeaseActive, nil); err != nil {
		t.Fatal(err)
	}

	cb := callbackFor(testConfig(), row, 0)
	cb.ExtraData = depositExtraData(t, lease.ID)
	signCallback(testConfig(), &cb)

	if err := svc.HandleCallback(ctx, cb, "raw"); err != nil {
		t.Fatal(err)
	}
	if deposits.calls != 0 {
		t.Fatal("an already-active lease must not be confirmed again")
	}
}

func TestCallbackInvoiceRouting(t *testing.T) {
	svc, store, _, invoices := newTestService(t)

	ctx := context.Background()
	row := &domain.GatewayPayment{
		OrderID:   "INV-42-1700000000",
		RequestID: "INV-42-1700000000-r",
		Amount:    decimal.NewFromInt(350000),
		Purpose:   domain.PurposeInvoice,
		Status:    domain.GatewayPaymentCreated,
	}
	if err := store.Payments.Create(ctx, row); err != nil {
		t.Fatal(err)
	}

	cb := callbackFor(testConfig(), row, 0)
	if err := svc.HandleCallback(ctx, cb, "raw"); err != nil {
		t.Fatal(err)
	}
	if invoices.calls != 1 || invoices.invoiceID != 42 {
		t.Fatalf("expected invoice 42 marked paid, got calls=%d id=%d", invoices.calls, invoices.invoiceID)
	}
	if invoices.direct {
		t.Fatal("gateway payments are not direct payments")
	}
}

func seedInvoice(t *testing.T, store *repository.Store, leaseID int64, amount int64, status domain.InvoiceStatus) *domain.Invoice {
	t.Helper()
	inv := &domain.Invoice{
		LeaseID: leaseID,
		Status:  status,
		Amount:  decimal.NewFromInt(amount),
	}
	if err := store.Invoices.Create(context.Background(), inv); err != nil {
		t.Fatal(err)
	}
	return inv
}

func TestBuildCheckoutInvoiceDerivesAmount(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseActive)
	inv := seedInvoice(t, store, lease.ID, 350000, domain.InvoiceUnpaid)

	// tenant 10 owns the lease; the request lowballs the amount
	out, err := svc.BuildCheckout(context.Background(), domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}, CheckoutRequest{
		Purpose:   "invoice",
		InvoiceID: inv.ID,
		Amount:    1,
	})
	if err != nil {
		t.Fatal(err)
	}

	row, err := store.Payments.GetByOrderID(context.Background(), out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if !row.Amount.Equal(decimal.NewFromInt(350000)) {
		t.Fatalf("invoice checkout must charge the invoice total, got %s", row.Amount)
	}
	if row.InvoiceID == nil || *row.InvoiceID != inv.ID {
		t.Fatalf("payment row not linked to invoice: %+v", row)
	}
}

func TestBuildCheckoutInvoiceRejections(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	lease := seedLease(t, store, domain.LeaseActive)
	ctx := context.Background()

	_, err := svc.BuildCheckout(ctx, domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}, CheckoutRequest{
		Purpose: "invoice", InvoiceID: 9999,
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found for a missing invoice, got %v", err)
	}

	paid := seedInvoice(t, store, lease.ID, 350000, domain.InvoicePaid)
	_, err = svc.BuildCheckout(ctx, domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}, CheckoutRequest{
		Purpose: "invoice", InvoiceID: paid.ID,
	})
	if !apperr.IsKind(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid_state for a paid invoice, got %v", err)
	}

	open := seedInvoice(t, store, lease.ID, 350000, domain.InvoiceUnpaid)
	_, err = svc.BuildCheckout(ctx, domain.Actor{ID: 99, Roles: []domain.Role{domain.RoleTenant}}, CheckoutRequest{
		Purpose: "invoice", InvoiceID: open.ID,
	})
	if !apperr.IsKind(err, apperr.KindAccessDenied) {
		t.Fatalf("expected access_denied for a foreign tenant, got %v", err)
	}
}

func TestCallbackAmountMismatchIgnored(t *testing.T) {
	svc, store, _, invoices := newTestService(t)
	lease := seedLease(t, store, domain.LeaseActive)
	inv := seedInvoice(t, store, lease.ID, 350000, domain.InvoiceUnpaid)

	ctx := context.Background()
	out, err := svc.BuildCheckout(ctx, domain.System(), CheckoutRequest{Purpose: "invoice", InvoiceID: inv.ID})
	if err != nil {
		t.Fatal(err)
	}
	row, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}

	// correctly signed, but for a fraction of the registered amount
	cb := callbackFor(testConfig(), row, 0)
	cb.Amount = 1
	signCallback(testConfig(), &cb)

	if err := svc.HandleCallback(ctx, cb, "raw"); err != nil {
		t.Fatal(err)
	}
	if invoices.calls != 0 {
		t.Fatal("a short payment must not settle the invoice")
	}

	fresh, err := store.Payments.GetByOrderID(ctx, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != domain.GatewayPaymentIgnored {
		t.Fatalf("expected ignored, got %s", fresh.Status)
	}
}

func TestCallbackDeclined(t *testing.T) {
	svc, store, deposits, invoices := newTestService(t)

	ctx := context.Background()
	row := &domain.GatewayPayment{
		OrderID: "INV-7-1", Amount: decimal.NewFromInt(1000),
		Purpose: domain.PurposeInvoice, Status: domain.GatewayPaymentCreated,
	}
	if err := store.Payments.Create(ctx, row); err != nil {
		t.Fatal(err)
	}

	cb := callbackFor(testConfig(), row, 1006)
	cb.Message = "user cancelled"
	signCallback(testConfig(), &cb)

	if err := svc.HandleCallback(ctx, cb, "raw"); err != nil {
		t.Fatal(err)
	}
	if deposits.calls != 0 || invoices.calls != 0 {
		t.Fatal("declined payments must not mutate anything")
	}

	fresh, err := store.Payments.GetByOrderID(ctx, row.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != domain.GatewayPaymentFailed {
		t.Fatalf("expected failed, got %s", fresh.Status)
	}
}

func TestParseInvoiceOrderID(t *testing.T) {
	cases := []struct {
		orderID string
		id      int64
		ok      bool
	}{
		{"INV-42-1700000000", 42, true},
		{"INV-7", 7, true},
		{"DEP-42-1700000000", 0, false},
		{"INV-abc-1", 0, false},
		{"INV--1", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		id, ok := parseInvoiceOrderID(tc.orderID)
		if id != tc.id || ok != tc.ok {
			t.Errorf("parseInvoiceOrderID(%q) = (%d, %v), want (%d, %v)", tc.orderID, id, ok, tc.id, tc.ok)
		}
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func depositExtraData(t *testing.T, leaseID int64) string {
	t.Helper()
	marker, err := encodeDepositMarker(leaseID)
	if err != nil {
		t.Fatal(err)
	}
	return marker
}
