package writerepo

import (
	"context"
	"errors"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EntitlementRepository struct {
	db db.DBTX
}

func NewEntitlementRepository(dbtx db.DBTX) *EntitlementRepository {
	return &EntitlementRepository{db: dbtx}
}

const entitlementColumns = `
	id, entitlement_type, service_type, status, total_count, remaining_count,
	voucher_code, qr_payload, owner_id, order_id, package_instance_id,
	activator_id, scope_venue_ids, scope_regions, valid_from, valid_until,
	created_at, updated_at`

func (r *EntitlementRepository) Create(ctx context.Context, ent *entitlement.Entitlement) error {
	const q = `
INSERT INTO entitlements (
	id, entitlement_type, service_type, status, total_count, remaining_count,
	voucher_code, qr_payload, owner_id, order_id, package_instance_id,
	scope_venue_ids, scope_regions, valid_from, valid_until, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())`

	scope := ent.Scope()
	_, err := r.db.Exec(ctx, q,
		ent.ID(), ent.Type().String(), ent.ServiceType(), ent.Status().String(),
		ent.TotalCount(), ent.RemainingCount(),
		ent.VoucherCode(), ent.QRPayload(), ent.OwnerID(), ent.OrderID(),
		ent.PackageInstanceID(),
		uuidsToStrings(scope.VenueIDs), scope.Regions,
		ent.ValidFrom(), ent.ValidUntil(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("entitlement already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create entitlement", err)
	}
	return nil
}

func (r *EntitlementRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entitlement.Entitlement, error) {
	q := `SELECT` + entitlementColumns + ` FROM entitlements WHERE id = $1 FOR UPDATE`

	ent, err := scanEntitlement(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("entitlement not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find entitlement", err)
	}
	return ent, nil
}

func (r *EntitlementRepository) FindSiblingsForUpdate(ctx context.Context, id uuid.UUID) ([]*entitlement.Entitlement, error) {
	// Locks the whole package instance when the entitlement belongs to one,
	// otherwise just the single row.
	q := `SELECT` + entitlementColumns + `
FROM entitlements
WHERE id = $1
   OR package_instance_id = (
		SELECT package_instance_id FROM entitlements WHERE id = $1
   )
ORDER BY created_at, id
FOR UPDATE`

	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to lock entitlement set", err)
	}
	defer rows.Close()

	var out []*entitlement.Entitlement
	for rows.Next() {
		ent, err := scanEntitlement(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan entitlement", err)
		}
		out = append(out, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read entitlement set", err)
	}
	if len(out) == 0 {
		return nil, infra.WrapRepoErr("entitlement not found", pgx.ErrNoRows, infra.KindNotFound)
	}
	return out, nil
}

// ConsumeUse is the guarded decrement: a VOUCHER is zeroed, a
// SERVICE_PACKAGE decrements by one, and the row flips to USED when the
// count reaches zero. The WHERE clause is the concurrency guard; zero rows
// affected means the row was not redeemable anymore.
func (r *EntitlementRepository) ConsumeUse(ctx context.Context, id uuid.UUID) (int, entitlement.Status, error) {
	const q = `
UPDATE entitlements
SET remaining_count = CASE WHEN entitlement_type = 'VOUCHER' THEN 0 ELSE remaining_count - 1 END,
    status = CASE WHEN entitlement_type = 'VOUCHER' OR remaining_count - 1 = 0 THEN 'USED' ELSE status END,
    updated_at = now()
WHERE id = $1 AND status = 'ACTIVE' AND remaining_count > 0
RETURNING remaining_count, status`

	var remaining int
	var status string
	err := r.db.QueryRow(ctx, q, id).Scan(&remaining, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", infra.WrapRepoErr("entitlement no longer redeemable", err, infra.KindConflict)
		}
		return 0, "", infra.WrapRepoErr("failed to consume entitlement use", err)
	}
	return remaining, entitlement.Status(status), nil
}

// SetActivatorIfEmpty records the first redeeming operator; the conditional
// WHERE makes the column write-once regardless of call-site discipline.
func (r *EntitlementRepository) SetActivatorIfEmpty(ctx context.Context, id, operatorID uuid.UUID) error {
	const q = `
UPDATE entitlements
SET activator_id = $2, updated_at = now()
WHERE id = $1 AND activator_id IS NULL`

	if _, err := r.db.Exec(ctx, q, id, operatorID); err != nil {
		return infra.WrapRepoErr("failed to set activator", err)
	}
	return nil
}

func (r *EntitlementRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entitlement.Status) error {
	const q = `
UPDATE entitlements
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, q, id, from.String(), to.String())
	if err != nil {
		return infra.WrapRepoErr("failed to update entitlement status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("entitlement status changed concurrently", nil, infra.KindConflict)
	}
	return nil
}

func scanEntitlement(row pgx.Row) (*entitlement.Entitlement, error) {
	var (
		id, ownerID, orderID           uuid.UUID
		packageInstanceID, activatorID *uuid.UUID
		entType, serviceType, status   string
		totalCount, remainingCount     int
		voucherCode, qrPayload         string
		venueIDs, regions              []string
		validFrom, validUntil          time.Time
		createdAt, updatedAt           time.Time
	)
	err := row.Scan(
		&id, &entType, &serviceType, &status, &totalCount, &remainingCount,
		&voucherCode, &qrPayload, &ownerID, &orderID, &packageInstanceID,
		&activatorID, &venueIDs, &regions, &validFrom, &validUntil,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	scopeVenues, err := stringsToUUIDs(venueIDs)
	if err != nil {
		return nil, err
	}

	return entitlement.ReconstructEntitlement(
		id,
		entitlement.Type(entType),
		serviceType,
		entitlement.Status(status),
		totalCount, remainingCount,
		voucherCode, qrPayload,
		ownerID, orderID,
		packageInstanceID, activatorID,
		entitlement.ServiceScope{VenueIDs: scopeVenues, Regions: regions},
		validFrom, validUntil,
		createdAt, updatedAt,
	), nil
}
