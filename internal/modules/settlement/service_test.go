package settlement

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rentora/internal/database"
	"rentora/internal/domain"
	"rentora/internal/modules/billing"
	"rentora/internal/modules/lease"
	"rentora/internal/modules/ledger"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

type nopNotifier struct{}

func (nopNotifier) SettlementIssued(context.Context, int64, int64, decimal.Decimal) {}

type nopBillingNotifier struct{}

func (nopBillingNotifier) InvoiceIssued(context.Context, int64, string, int, int, decimal.Decimal) {}
func (nopBillingNotifier) InvoicePaid(context.Context, int64, int64, decimal.Decimal)              {}

type nopLeaseNotifier struct{}

func (nopLeaseNotifier) DepositConfirmed(context.Context, int64, string, decimal.Decimal) {}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, domain.Actor, string, string, int64, string) {}

// fixture wires the full pipeline: ledger, lease, billing, settlement and the
// completion coordinator, exactly as main does.
type fixture struct {
	store       *repository.Store
	settlement  *Service
	billing     *billing.Service
	lease       *lease.Service
	coordinator *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	store := repository.NewStore(db)
	nop := zap.NewNop().Sugar()

	ledgerSvc := ledger.NewService(store, nop)
	leaseSvc := lease.NewService(store, ledgerSvc, nopLeaseNotifier{}, nopAuditor{}, nop)
	billingSvc := billing.NewService(store, nopBillingNotifier{}, nopAuditor{}, 10, nop)
	settlementSvc := NewService(store, billingSvc, nopNotifier{}, nopAuditor{}, nop)
	coordinator := NewCoordinator(store, leaseSvc, nop)
	billingSvc.SetSettlementHook(coordinator)

	ctx := context.Background()
	for _, def := range []domain.ServiceDefinition{
		{Name: "Electricity", Category: domain.ServiceMetered, UnitPrice: decimal.NewFromInt(3500), Protected: true},
		{Name: "Water", Category: domain.ServiceMetered, UnitPrice: decimal.NewFromInt(1200), Protected: true},
		{Name: "Security", Category: domain.ServiceFixed, UnitPrice: decimal.NewFromInt(50000), Protected: true},
	} {
		d := def
		require.NoError(t, store.Services.Create(ctx, &d))
	}

	return &fixture{
		store:       store,
		settlement:  settlementSvc,
		billing:     billingSvc,
		lease:       leaseSvc,
		coordinator: coordinator,
	}
}

func admin() domain.Actor {
	return domain.Actor{ID: 1, Roles: []domain.Role{domain.RoleAdmin}}
}

func tenantActor(id int64) domain.Actor {
	return domain.Actor{ID: id, Roles: []domain.Role{domain.RoleTenant}}
}

// activeLease creates a room and walks a lease to active.
func (f *fixture) activeLease(t *testing.T, tenantID int64) (*domain.Lease, *domain.Room) {
	t.Helper()
	ctx := context.Background()
	room := &domain.Room{Code: "S-301", BranchCode: "S", Number: "301", Price: decimal.NewFromInt(1000000), Status: domain.RoomAvailable}
	require.NoError(t, f.store.Rooms.Create(ctx, room))

	l, err := f.lease.Create(ctx, admin(), lease.CreateParams{
		TenantID:      tenantID,
		RoomID:        room.ID,
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		DepositAmount: decimal.NewFromInt(1000000),
	})
	require.NoError(t, err)
	require.NoError(t, f.lease.UploadSignedDocument(ctx, admin(), l.ID, "https://docs.example/lease.pdf"))
	require.NoError(t, f.lease.ConfirmDeposit(ctx, admin(), l.ID, "cash", decimal.NewFromInt(1000000), ""))
	return l, room
}

// approvedReport walks checkout submission and damage inspection through to
// an approved report with the given cost items.
func (f *fixture) approvedReport(t *testing.T, leaseID int64, tenantID int64, items []CostItem) *domain.DamageReport {
	t.Helper()
	ctx := context.Background()

	cr, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(tenantID), leaseID, "moving out")
	require.NoError(t, err)
	require.NoError(t, f.settlement.ApproveCheckoutRequest(ctx, admin(), cr.ID))

	dr, err := f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.NoError(t, err)
	_, err = f.settlement.UpdateDraft(ctx, admin(), dr.ID, "move-out inspection", items)
	require.NoError(t, err)
	require.NoError(t, f.settlement.SubmitDamageReport(ctx, admin(), dr.ID))
	require.NoError(t, f.settlement.ReviewDamageReport(ctx, admin(), dr.ID, true, "ok"))

	fresh, err := f.store.Damages.GetByID(ctx, dr.ID)
	require.NoError(t, err)
	return fresh
}

func TestCheckoutRequestRules(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	ctx := context.Background()

	// a stranger cannot open checkout on someone else's lease
	_, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(99), l.ID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindAccessDenied))

	cr, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(10), l.ID, "moving out")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutPending, cr.Status)

	// one open request per lease
	_, err = f.settlement.SubmitCheckoutRequest(ctx, tenantActor(10), l.ID, "again")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestDamageReportNeedsApprovedRequest(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	ctx := context.Background()

	cr, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(10), l.ID, "moving out")
	require.NoError(t, err)

	// a pending request cannot be inspected
	_, err = f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	require.NoError(t, f.settlement.ApproveCheckoutRequest(ctx, admin(), cr.ID))
	dr, err := f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DamageDraft, dr.Status)
}

func TestDraftEditingStopsAtSubmit(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	ctx := context.Background()

	cr, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(10), l.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.settlement.ApproveCheckoutRequest(ctx, admin(), cr.ID))

	dr, err := f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.NoError(t, err)

	// opening the report twice returns the same draft
	again, err := f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.NoError(t, err)
	assert.Equal(t, dr.ID, again.ID)

	updated, err := f.settlement.UpdateDraft(ctx, admin(), dr.ID, "scratched floor", []CostItem{
		{Label: "Floor repair", Amount: decimal.NewFromInt(300000)},
	})
	require.NoError(t, err)
	assert.True(t, updated.TotalCost.Equal(decimal.NewFromInt(300000)))

	require.NoError(t, f.settlement.SubmitDamageReport(ctx, admin(), dr.ID))

	_, err = f.settlement.UpdateDraft(ctx, admin(), dr.ID, "late edit", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	err = f.settlement.AttachImage(ctx, admin(), dr.ID, "https://img.example/1.jpg")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestUpdateDraftValidatesItems(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	ctx := context.Background()

	cr, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(10), l.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.settlement.ApproveCheckoutRequest(ctx, admin(), cr.ID))
	dr, err := f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.NoError(t, err)

	_, err = f.settlement.UpdateDraft(ctx, admin(), dr.ID, "", []CostItem{{Label: "", Amount: decimal.NewFromInt(10)}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.settlement.UpdateDraft(ctx, admin(), dr.ID, "", []CostItem{{Label: "X", Amount: decimal.NewFromInt(-5)}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateSettlementInvoiceDropsZeroItems(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	dr := f.approvedReport(t, l.ID, 10, []CostItem{
		{Label: "Broken window", Amount: decimal.NewFromInt(500000)},
		{Label: "Inspection", Amount: decimal.Zero},
	})

	due := time.Now().AddDate(0, 0, 14)
	inv, err := f.settlement.CreateSettlementInvoice(context.Background(), admin(), dr.ID, due)
	require.NoError(t, err)

	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "Broken window", inv.Lines[0].Description)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(500000)))
	assert.Nil(t, inv.BillingYear, "settlement invoices carry no billing period")
}

func TestCreateSettlementInvoiceIdempotent(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	dr := f.approvedReport(t, l.ID, 10, []CostItem{{Label: "Repairs", Amount: decimal.NewFromInt(120000)}})

	ctx := context.Background()
	due := time.Now().AddDate(0, 0, 14)
	first, err := f.settlement.CreateSettlementInvoice(ctx, admin(), dr.ID, due)
	require.NoError(t, err)

	second, err := f.settlement.CreateSettlementInvoice(ctx, admin(), dr.ID, due)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "a report settles into exactly one invoice")

	invoices, err := f.store.Invoices.ListByLease(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestCreateSettlementInvoiceNeedsBillableItems(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	dr := f.approvedReport(t, l.ID, 10, []CostItem{{Label: "Inspection", Amount: decimal.Zero}})

	_, err := f.settlement.CreateSettlementInvoice(context.Background(), admin(), dr.ID, time.Now())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateSettlementInvoiceNeedsApproval(t *testing.T) {
	f := newFixture(t)
	l, _ := f.activeLease(t, 10)
	ctx := context.Background()

	cr, err := f.settlement.SubmitCheckoutRequest(ctx, tenantActor(10), l.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.settlement.ApproveCheckoutRequest(ctx, admin(), cr.ID))
	dr, err := f.settlement.GetOrCreateDamageReport(ctx, admin(), cr.ID)
	require.NoError(t, err)

	_, err = f.settlement.CreateSettlementInvoice(ctx, admin(), dr.ID, time.Now())
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

// Paying the settlement invoice completes the checkout request, ends the
// lease and frees the room, all in one cascade.
func TestSettlementCompletionCascade(t *testing.T) {
	f := newFixture(t)
	l, room := f.activeLease(t, 10)
	dr := f.approvedReport(t, l.ID, 10, []CostItem{{Label: "Repairs", Amount: decimal.NewFromInt(250000)}})

	ctx := context.Background()
	inv, err := f.settlement.CreateSettlementInvoice(ctx, admin(), dr.ID, time.Now().AddDate(0, 0, 14))
	require.NoError(t, err)

	require.NoError(t, f.billing.MarkPaid(ctx, admin(), inv.ID, true))

	freshCR, err := f.store.Checkouts.GetByID(ctx, *dr.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutCompleted, freshCR.Status)

	freshLease, err := f.store.Leases.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseEnded, freshLease.Status)

	freshRoom, err := f.store.Rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomAvailable, freshRoom.Status)

	// re-running the cascade is harmless
	require.NoError(t, f.coordinator.OnSettlementInvoicePaid(ctx, inv.ID))
}

// Paying an ordinary period invoice must not trigger the cascade.
func TestRegularInvoiceDoesNotCascade(t *testing.T) {
	f := newFixture(t)
	l, room := f.activeLease(t, 10)
	ctx := context.Background()

	// readings so the metered subscriptions can bill
	subs, err := f.store.Subscriptions.ListByLease(ctx, l.ID)
	require.NoError(t, err)
	for _, sub := range subs {
		if sub.Service != nil && sub.Service.Category == domain.ServiceMetered {
			base := int64(100)
			require.NoError(t, f.store.Subscriptions.SetReadings(ctx, sub.ID, &base, &base))
		}
	}

	inv, err := f.billing.Create(ctx, admin(), l.ID, 2026, 3, time.Now().AddDate(0, 0, 14))
	require.NoError(t, err)
	require.NoError(t, f.billing.MarkPaid(ctx, admin(), inv.ID, true))

	freshLease, err := f.store.Leases.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseActive, freshLease.Status)

	freshRoom, err := f.store.Rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomOccupied, freshRoom.Status)
}
