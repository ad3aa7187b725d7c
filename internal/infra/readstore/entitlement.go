package readstore

import (
	"context"
	"errors"

	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EntitlementReadStore struct {
	db db.DBTX
}

func NewEntitlementReadStore(dbtx db.DBTX) *EntitlementReadStore {
	return &EntitlementReadStore{db: dbtx}
}

func (r *EntitlementReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.EntitlementView, error) {
	const q = `
SELECT id, entitlement_type, service_type, status, total_count, remaining_count,
       voucher_code, qr_payload, owner_id, order_id, package_instance_id,
       activator_id, valid_from, valid_until, created_at, updated_at
FROM entitlements
WHERE id = $1`

	var v queries.EntitlementView
	err := r.db.QueryRow(ctx, q, id).Scan(
		&v.ID, &v.EntitlementType, &v.ServiceType, &v.Status,
		&v.TotalCount, &v.RemainingCount,
		&v.VoucherCode, &v.QRPayload, &v.OwnerID, &v.OrderID,
		&v.PackageInstanceID, &v.ActivatorID,
		&v.ValidFrom, &v.ValidUntil, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("entitlement not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find entitlement view", err)
	}
	return &v, nil
}

func (r *EntitlementReadStore) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*queries.EntitlementListItem, error) {
	const q = `
SELECT id, entitlement_type, service_type, status, total_count, remaining_count,
       valid_until, created_at
FROM entitlements
WHERE owner_id = $1
ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, q, ownerID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list entitlements", err)
	}
	defer rows.Close()

	var out []*queries.EntitlementListItem
	for rows.Next() {
		var item queries.EntitlementListItem
		if err := rows.Scan(
			&item.ID, &item.EntitlementType, &item.ServiceType, &item.Status,
			&item.TotalCount, &item.RemainingCount, &item.ValidUntil, &item.CreatedAt,
		); err != nil {
			return nil, infra.WrapRepoErr("failed to scan entitlement list item", err)
		}
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read entitlement list", err)
	}
	return out, nil
}

func (r *EntitlementReadStore) FindRecordsByEntitlementID(ctx context.Context, entitlementID uuid.UUID) ([]*queries.RedemptionRecordView, error) {
	const q = `
SELECT id, entitlement_id, venue_id, operator_id, method, status, failure_reason, redeemed_at
FROM redemption_records
WHERE entitlement_id = $1
ORDER BY redeemed_at DESC, id`

	rows, err := r.db.Query(ctx, q, entitlementID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list redemption records", err)
	}
	defer rows.Close()

	var out []*queries.RedemptionRecordView
	for rows.Next() {
		var rec queries.RedemptionRecordView
		if err := rows.Scan(
			&rec.ID, &rec.EntitlementID, &rec.VenueID, &rec.OperatorID,
			&rec.Method, &rec.Status, &rec.FailureReason, &rec.RedeemedAt,
		); err != nil {
			return nil, infra.WrapRepoErr("failed to scan redemption record", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read redemption records", err)
	}
	return out, nil
}

// HasForOrder backs the exactly-once generation check; it must run under
// the order row lock to be reliable.
func (r *EntitlementReadStore) HasForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM entitlements WHERE order_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, q, orderID).Scan(&exists); err != nil {
		return false, infra.WrapRepoErr("failed to check entitlement existence", err)
	}
	return exists, nil
}

func (r *EntitlementReadStore) SuccessfulRedemptionCount(ctx context.Context, entitlementIDs []uuid.UUID) (int, error) {
	const q = `
SELECT count(*)
FROM redemption_records
WHERE status = 'SUCCESS' AND entitlement_id = ANY($1)`

	ids := make([]string, len(entitlementIDs))
	for i, id := range entitlementIDs {
		ids[i] = id.String()
	}

	var n int
	if err := r.db.QueryRow(ctx, q, ids).Scan(&n); err != nil {
		return 0, infra.WrapRepoErr("failed to count successful redemptions", err)
	}
	return n, nil
}
