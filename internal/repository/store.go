package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store bundles all repositories over one gorm handle so services can run
// multi-entity invariants (status check-and-set, exists-check-and-insert,
// meter rollover) inside a single transaction via Atomic.
type Store struct {
	db *gorm.DB

	Leases        *LeaseRepository
	Rooms         *RoomRepository
	Services      *ServiceDefinitionRepository
	Subscriptions *SubscriptionRepository
	Bookings      *ServiceBookingRepository
	Invoices      *InvoiceRepository
	Checkouts     *CheckoutRepository
	Damages       *DamageReportRepository
	Payments      *GatewayPaymentRepository
	Audit         *AuditRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Leases:        &LeaseRepository{db: db},
		Rooms:         &RoomRepository{db: db},
		Services:      &ServiceDefinitionRepository{db: db},
		Subscriptions: &SubscriptionRepository{db: db},
		Bookings:      &ServiceBookingRepository{db: db},
		Invoices:      &InvoiceRepository{db: db},
		Checkouts:     &CheckoutRepository{db: db},
		Damages:       &DamageReportRepository{db: db},
		Payments:      &GatewayPaymentRepository{db: db},
		Audit:         &AuditRepository{db: db},
	}
}

// Atomic runs fn with a Store bound to one database transaction. Reads and
// writes inside fn see and mutate consistent state; any error rolls back.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// forUpdate adds a row lock on backends that support it. SQLite serializes
// writers anyway, and rejects the FOR UPDATE syntax.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// IsUniqueViolation reports whether err is a storage-level uniqueness
// constraint failure, for either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
