package lease

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

// Provisioner creates the system-managed service subscriptions for a lease.
// Implemented by the ledger service.
type Provisioner interface {
	ProvisionDefaults(ctx context.Context, tx *repository.Store, leaseID int64, start time.Time) error
}

// Notifier delivers tenant-facing messages fire-and-forget.
type Notifier interface {
	DepositConfirmed(ctx context.Context, tenantID int64, roomNumber string, amount decimal.Decimal)
}

// Auditor records state-changing actions best-effort.
type Auditor interface {
	Record(ctx context.Context, actor domain.Actor, action, entity string, entityID int64, detail string)
}

type Service struct {
	store       *repository.Store
	provisioner Provisioner
	notifier    Notifier
	audit       Auditor
	log         *zap.SugaredLogger
}

func NewService(store *repository.Store, provisioner Provisioner, notifier Notifier, audit Auditor, log *zap.SugaredLogger) *Service {
	return &Service{
		store:       store,
		provisioner: provisioner,
		notifier:    notifier,
		audit:       audit,
		log:         log,
	}
}

type CreateParams struct {
	TenantID      int64
	RoomID        int64
	StartDate     time.Time
	EndDate       time.Time
	DepositAmount decimal.Decimal
}

// Create opens a lease in pending state and holds the room as reserved until
// the deposit is confirmed.
func (s *Service) Create(ctx context.Context, actor domain.Actor, p CreateParams) (*domain.Lease, error) {
	if !actor.IsStaff() {
		return nil, apperr.AccessDenied("only staff create leases")
	}
	if !p.EndDate.After(p.StartDate) {
		return nil, apperr.Validation("lease end date must be after start date")
	}
	if p.DepositAmount.IsNegative() || p.DepositAmount.GreaterThan(domain.MaxLineAmount) {
		return nil, apperr.Validation("deposit amount out of range")
	}

	var lease *domain.Lease
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, p.RoomID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("room %d not found", p.RoomID)
			}
			return apperr.System(err, "lookup room %d", p.RoomID)
		}
		if !actor.CanAccessBranch(room.BranchCode) {
			return apperr.AccessDenied("room %d belongs to another branch", p.RoomID)
		}
		if room.Status == domain.RoomMaintenance {
			return apperr.InvalidState("room %d is under maintenance", p.RoomID)
		}

		taken, err := tx.Leases.HasActiveForRoom(ctx, p.RoomID)
		if err != nil {
			return apperr.System(err, "check leases for room %d", p.RoomID)
		}
		if taken {
			return apperr.Conflict("room %d already has an open lease", p.RoomID)
		}

		lease = &domain.Lease{
			TenantID:      p.TenantID,
			RoomID:        p.RoomID,
			BranchCode:    room.BranchCode,
			RoomNumber:    room.Number,
			StartDate:     p.StartDate,
			EndDate:       p.EndDate,
			DepositAmount: p.DepositAmount,
			Status:        domain.LeasePending,
		}
		if err := tx.Leases.Create(ctx, lease); err != nil {
			return apperr.System(err, "create lease")
		}
		if err := tx.Rooms.UpdateStatus(ctx, p.RoomID, domain.RoomReserved); err != nil {
			return apperr.System(err, "reserve room %d", p.RoomID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, "lease.create", "lease", lease.ID, "room "+lease.RoomNumber)
	return lease, nil
}

// UploadSignedDocument attaches the signed agreement and moves the lease to
// signed, awaiting deposit.
func (s *Service) UploadSignedDocument(ctx context.Context, actor domain.Actor, leaseID int64, documentURL string) error {
	if documentURL == "" {
		return apperr.Validation("document url is required")
	}
	lease, err := s.load(ctx, actor, leaseID)
	if err != nil {
		return err
	}
	if lease.Status != domain.LeasePending {
		return apperr.InvalidState("lease %d is %s, expected pending", leaseID, lease.Status)
	}

	changed, err := s.store.Leases.UpdateStatusIf(ctx, leaseID,
		domain.LeasePending, domain.LeaseSignedPendingDeposit,
		map[string]interface{}{"signed_document_url": documentURL})
	if err != nil {
		return apperr.System(err, "update lease %d", leaseID)
	}
	if !changed {
		return apperr.InvalidState("lease %d changed state concurrently", leaseID)
	}

	s.audit.Record(ctx, actor, "lease.sign", "lease", leaseID, "")
	return nil
}

// ConfirmDeposit moves a signed lease to active: records the deposit
// metadata, provisions the protected subscriptions and occupies the room.
// Reached from a staff action or from the payment confirmation adapter; the
// status predicate inside the transaction makes duplicates harmless.
func (s *Service) ConfirmDeposit(ctx context.Context, actor domain.Actor, leaseID int64, method string, amount decimal.Decimal, reference string) error {
	if !actor.IsStaff() {
		return apperr.AccessDenied("only staff confirm deposits")
	}
	if method == "" {
		return apperr.Validation("payment method is required")
	}
	if amount.IsNegative() || amount.GreaterThan(domain.MaxLineAmount) {
		return apperr.Validation("deposit amount out of range")
	}

	var tenantID int64
	var roomNumber string
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		lease, err := tx.Leases.GetForUpdate(ctx, leaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("lease %d not found", leaseID)
			}
			return apperr.System(err, "lookup lease %d", leaseID)
		}
		if !actor.CanAccessBranch(lease.BranchCode) {
			return apperr.AccessDenied("lease %d belongs to another branch", leaseID)
		}
		if lease.Status != domain.LeaseSignedPendingDeposit {
			return apperr.InvalidState("lease %d is %s, deposit cannot be confirmed", leaseID, lease.Status)
		}

		now := time.Now()
		changed, err := tx.Leases.UpdateStatusIf(ctx, leaseID,
			domain.LeaseSignedPendingDeposit, domain.LeaseActive,
			map[string]interface{}{
				"deposit_method":    method,
				"deposit_paid_at":   now,
				"deposit_reference": reference,
			})
		if err != nil {
			return apperr.System(err, "activate lease %d", leaseID)
		}
		if !changed {
			return apperr.InvalidState("lease %d changed state concurrently", leaseID)
		}

		if err := s.provisioner.ProvisionDefaults(ctx, tx, leaseID, lease.StartDate); err != nil {
			return err
		}

		if _, err := tx.Rooms.GetForUpdate(ctx, lease.RoomID); err != nil {
			return apperr.System(err, "lock room %d", lease.RoomID)
		}
		if err := tx.Rooms.UpdateStatus(ctx, lease.RoomID, domain.RoomOccupied); err != nil {
			return apperr.System(err, "occupy room %d", lease.RoomID)
		}

		tenantID = lease.TenantID
		roomNumber = lease.RoomNumber
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.DepositConfirmed(ctx, tenantID, roomNumber, amount)
	s.audit.Record(ctx, actor, "lease.confirm_deposit", "lease", leaseID, "method "+method)
	return nil
}

// DeletePending removes a lease that never got signed and releases the room.
func (s *Service) DeletePending(ctx context.Context, actor domain.Actor, leaseID int64) error {
	if !actor.IsStaff() {
		return apperr.AccessDenied("only staff delete leases")
	}

	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		lease, err := tx.Leases.GetForUpdate(ctx, leaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("lease %d not found", leaseID)
			}
			return apperr.System(err, "lookup lease %d", leaseID)
		}
		if !actor.CanAccessBranch(lease.BranchCode) {
			return apperr.AccessDenied("lease %d belongs to another branch", leaseID)
		}
		if lease.Status != domain.LeasePending {
			return apperr.InvalidState("only pending leases can be deleted, lease %d is %s", leaseID, lease.Status)
		}

		if err := tx.Leases.Delete(ctx, leaseID); err != nil {
			return apperr.System(err, "delete lease %d", leaseID)
		}
		if _, err := tx.Rooms.GetForUpdate(ctx, lease.RoomID); err != nil {
			return apperr.System(err, "lock room %d", lease.RoomID)
		}
		if err := tx.Rooms.UpdateStatus(ctx, lease.RoomID, domain.RoomAvailable); err != nil {
			return apperr.System(err, "release room %d", lease.RoomID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, actor, "lease.delete", "lease", leaseID, "")
	return nil
}

// FinalizeCheckout ends an active lease and frees the room. Runs inside the
// caller's transaction; the settlement coordinator drives it when the
// settlement invoice is paid.
func (s *Service) FinalizeCheckout(ctx context.Context, tx *repository.Store, leaseID int64) error {
	lease, err := tx.Leases.GetForUpdate(ctx, leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("lease %d not found", leaseID)
		}
		return apperr.System(err, "lookup lease %d", leaseID)
	}
	if lease.Status != domain.LeaseActive {
		return apperr.InvalidState("lease %d is %s, cannot finalize checkout", leaseID, lease.Status)
	}

	changed, err := tx.Leases.UpdateStatusIf(ctx, leaseID, domain.LeaseActive, domain.LeaseEnded, nil)
	if err != nil {
		return apperr.System(err, "end lease %d", leaseID)
	}
	if !changed {
		return apperr.InvalidState("lease %d changed state concurrently", leaseID)
	}

	if _, err := tx.Rooms.GetForUpdate(ctx, lease.RoomID); err != nil {
		return apperr.System(err, "lock room %d", lease.RoomID)
	}
	if err := tx.Rooms.UpdateStatus(ctx, lease.RoomID, domain.RoomAvailable); err != nil {
		return apperr.System(err, "release room %d", lease.RoomID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, leaseID int64) (*domain.Lease, error) {
	return s.load(ctx, actor, leaseID)
}

// List applies role scoping: tenants see their own leases, branch staff their
// branch, admins everything.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.Lease, error) {
	var (
		leases []domain.Lease
		err    error
	)
	switch {
	case !actor.IsStaff():
		leases, err = s.store.Leases.ListByTenant(ctx, actor.ID)
	case actor.BranchScoped():
		leases, err = s.store.Leases.ListByBranch(ctx, actor.Branch)
	default:
		leases, err = s.store.Leases.List(ctx)
	}
	if err != nil {
		return nil, apperr.System(err, "list leases")
	}
	return leases, nil
}

func (s *Service) load(ctx context.Context, actor domain.Actor, leaseID int64) (*domain.Lease, error) {
	lease, err := s.store.Leases.GetByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("lease %d not found", leaseID)
		}
		return nil, apperr.System(err, "lookup lease %d", leaseID)
	}
	if actor.IsStaff() {
		if !actor.CanAccessBranch(lease.BranchCode) {
			return nil, apperr.AccessDenied("lease %d belongs to another branch", leaseID)
		}
	} else if lease.TenantID != actor.ID {
		return nil, apperr.AccessDenied("lease %d does not belong to you", leaseID)
	}
	return lease, nil
}
