package shared

import (
	"context"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra/db"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// WithinReadOnly: Read-only transaction for multi-table consistent reads
	WithinReadOnly(ctx context.Context, fn func(ctx context.Context, db db.DBTX) error) error
}

type Tx interface {
	Entitlements() EntitlementRepository
	Orders() OrderRepository
	PackageInstances() PackageInstanceRepository
	Redemptions() RedemptionRepository
	Reads() CommandReads
	DB() db.DBTX
}

type EntitlementRepository interface {
	Create(ctx context.Context, ent *entitlement.Entitlement) error
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entitlement.Entitlement, error)
	// FindSiblingsForUpdate locks the transfer scope: every entitlement of
	// the same package instance, or just the one row when it has none.
	FindSiblingsForUpdate(ctx context.Context, id uuid.UUID) ([]*entitlement.Entitlement, error)
	// ConsumeUse performs the guarded decrement. Zero rows affected
	// surfaces as KindConflict.
	ConsumeUse(ctx context.Context, id uuid.UUID) (remaining int, status entitlement.Status, err error)
	// SetActivatorIfEmpty records the first redeeming operator; a later
	// call is a silent no-op.
	SetActivatorIfEmpty(ctx context.Context, id, operatorID uuid.UUID) error
	// UpdateStatus transitions from -> to; zero rows affected surfaces as
	// KindConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entitlement.Status) error
}

type OrderRepository interface {
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*OrderSnapshot, error)
	FindByOutTradeNoForUpdate(ctx context.Context, outTradeNo string) (*OrderSnapshot, error)
	// MarkPaid is idempotent: an already-paid order keeps its original
	// paid_at.
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
}

type PackageInstanceRepository interface {
	Create(ctx context.Context, inst PackageInstance) error
}

type RedemptionRepository interface {
	Create(ctx context.Context, rec *entitlement.RedemptionRecord) error
}

type CommandReads interface {
	PackageByID(ctx context.Context, id uuid.UUID) (*PackageSnapshot, error)
	VenueByID(ctx context.Context, id uuid.UUID) (*VenueSnapshot, error)
	HasEntitlementsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	SuccessfulRedemptionCount(ctx context.Context, entitlementIDs []uuid.UUID) (int, error)
}
