package ledger

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
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	store := repository.NewStore(db)
	return NewService(store, zap.NewNop().Sugar()), store
}

func admin() domain.Actor {
	return domain.Actor{ID: 1, Roles: []domain.Role{domain.RoleAdmin}}
}

func seedActiveLease(t *testing.T, store *repository.Store, tenantID int64) *domain.Lease {
	t.Helper()
	ctx := context.Background()
	room := &domain.Room{Code: "L-101", BranchCode: "L", Number: "101", Price: decimal.NewFromInt(800000), Status: domain.RoomOccupied}
	require.NoError(t, store.Rooms.Create(ctx, room))
	lease := &domain.Lease{
		TenantID:   tenantID,
		RoomID:     room.ID,
		BranchCode: room.BranchCode,
		RoomNumber: room.Number,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:     domain.LeaseActive,
	}
	require.NoError(t, store.Leases.Create(ctx, lease))
	return lease
}

func seedService(t *testing.T, store *repository.Store, name string, category domain.ServiceCategory, protected bool) *domain.ServiceDefinition {
	t.Helper()
	def := &domain.ServiceDefinition{
		Name:      name,
		Category:  category,
		UnitPrice: decimal.NewFromInt(1000),
		Protected: protected,
	}
	require.NoError(t, store.Services.Create(context.Background(), def))
	return def
}

func TestRecordReadingMonotonic(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	def := seedService(t, store, "Electricity", domain.ServiceMetered, true)

	ctx := context.Background()
	sub := &domain.ServiceSubscription{LeaseID: lease.ID, ServiceID: def.ID, Quantity: 1, StartDate: lease.StartDate}
	require.NoError(t, store.Subscriptions.Create(ctx, sub))

	// first reading seeds the baseline
	got, err := svc.RecordReading(ctx, admin(), sub.ID, 100)
	require.NoError(t, err)
	require.NotNil(t, got.PreviousReading)
	assert.Equal(t, int64(100), *got.PreviousReading)
	assert.Equal(t, int64(100), *got.CurrentReading)

	// moving forward keeps the baseline until billing advances it
	got, err = svc.RecordReading(ctx, admin(), sub.ID, 142)
	require.NoError(t, err)
	assert.Equal(t, int64(100), *got.PreviousReading)
	assert.Equal(t, int64(142), *got.CurrentReading)

	// going backwards is rejected
	_, err = svc.RecordReading(ctx, admin(), sub.ID, 90)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRecordReadingStaffOnly(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	def := seedService(t, store, "Electricity", domain.ServiceMetered, true)

	ctx := context.Background()
	sub := &domain.ServiceSubscription{LeaseID: lease.ID, ServiceID: def.ID, Quantity: 1, StartDate: lease.StartDate}
	require.NoError(t, store.Subscriptions.Create(ctx, sub))

	me := domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}
	_, err := svc.RecordReading(ctx, me, sub.ID, 50)
	assert.True(t, apperr.IsKind(err, apperr.KindAccessDenied))
}

func TestSubscribeProtectedDeniedForTenant(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	def := seedService(t, store, "Security", domain.ServiceFixed, true)

	me := domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}
	_, err := svc.Subscribe(context.Background(), me, lease.ID, def.ID, 1)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// staff may still manage it
	sub, err := svc.Subscribe(context.Background(), admin(), lease.ID, def.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, def.ID, sub.ServiceID)
}

func TestSubscribeDuplicateConflict(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	def := seedService(t, store, "Parking", domain.ServiceFixed, false)

	me := domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}
	_, err := svc.Subscribe(context.Background(), me, lease.ID, def.ID, 1)
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), me, lease.ID, def.ID, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestCancelEndsAtMonthEnd(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	def := seedService(t, store, "Parking", domain.ServiceFixed, false)

	me := domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}
	sub, err := svc.Subscribe(context.Background(), me, lease.ID, def.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), me, sub.ID))

	fresh, err := store.Subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.EndDate)
	next := fresh.EndDate.AddDate(0, 0, 1)
	assert.Equal(t, 1, next.Day(), "subscription ends on the last day of the month")

	// cancelling twice is an invalid state
	err = svc.Cancel(context.Background(), me, sub.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestProvisionDefaultsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	seedService(t, store, "Electricity", domain.ServiceMetered, true)
	seedService(t, store, "Water", domain.ServiceMetered, true)
	seedService(t, store, "Security", domain.ServiceFixed, true)

	ctx := context.Background()
	require.NoError(t, svc.ProvisionDefaults(ctx, store, lease.ID, lease.StartDate))
	require.NoError(t, svc.ProvisionDefaults(ctx, store, lease.ID, lease.StartDate))

	subs, err := store.Subscriptions.ListByLease(ctx, lease.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestMeterQuantity(t *testing.T) {
	prev, cur := int64(100), int64(142)

	_, err := MeterQuantity(domain.ServiceSubscription{})
	assert.ErrorIs(t, err, ErrMissingMeterReading)

	_, err = MeterQuantity(domain.ServiceSubscription{PreviousReading: &cur, CurrentReading: &prev})
	assert.ErrorIs(t, err, ErrInvalidMeterReading)

	qty, err := MeterQuantity(domain.ServiceSubscription{PreviousReading: &prev, CurrentReading: &cur})
	require.NoError(t, err)
	assert.Equal(t, int64(42), qty)
}

func TestBookServiceRules(t *testing.T) {
	svc, store := newTestService(t)
	lease := seedActiveLease(t, store, 10)
	cleaning := seedService(t, store, "Cleaning", domain.ServiceOnDemand, false)
	security := seedService(t, store, "Security", domain.ServiceFixed, true)

	ctx := context.Background()
	me := domain.Actor{ID: 10, Roles: []domain.Role{domain.RoleTenant}}
	date := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

	b, err := svc.BookService(ctx, me, lease.ID, cleaning.ID, date, "09:00-11:00")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingBooked, b.Status)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), b.BookingDate)

	// same service, same day: rejected
	_, err = svc.BookService(ctx, me, lease.ID, cleaning.ID, date, "14:00-16:00")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// only on-demand services can be booked per occurrence
	_, err = svc.BookService(ctx, me, lease.ID, security.ID, date, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// cancelling frees the slot for a new booking
	require.NoError(t, svc.CancelBooking(ctx, me, b.ID, "changed plans"))
	_, err = svc.BookService(ctx, me, lease.ID, cleaning.ID, date, "14:00-16:00")
	require.NoError(t, err)
}
