package database

import (
	"gorm.io/gorm"

	"rentora/internal/domain"
)

// Migrate creates the schema plus the storage-level uniqueness guards that
// the application-level existence checks alone cannot provide.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Branch{},
		&domain.Room{},
		&domain.Lease{},
		&domain.ServiceDefinition{},
		&domain.ServiceSubscription{},
		&domain.ServiceBooking{},
		&domain.Invoice{},
		&domain.InvoiceLine{},
		&domain.CheckoutRequest{},
		&domain.DamageReport{},
		&domain.DamageItem{},
		&domain.DamageAttachment{},
		&domain.GatewayPayment{},
		&domain.AuditEntry{},
	); err != nil {
		return err
	}

	// One invoice per (lease, period). Partial: ad-hoc invoices carry NULL
	// period columns and stay out of the index.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_lease_period
		 ON invoices (lease_id, billing_year, billing_month)
		 WHERE billing_year IS NOT NULL AND billing_month IS NOT NULL`,
	).Error; err != nil {
		return err
	}

	// One booking per (lease, service, date).
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_booking_lease_service_date
		 ON service_bookings (lease_id, service_id, booking_date)
		 WHERE status <> 'canceled'`,
	).Error; err != nil {
		return err
	}

	return nil
}
