package writerepo

import (
	"context"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"
)

// RedemptionRepository appends audit rows; records are never updated or
// deleted.
type RedemptionRepository struct {
	db db.DBTX
}

func NewRedemptionRepository(dbtx db.DBTX) *RedemptionRepository {
	return &RedemptionRepository{db: dbtx}
}

func (r *RedemptionRepository) Create(ctx context.Context, rec *entitlement.RedemptionRecord) error {
	const q = `
INSERT INTO redemption_records (
	id, entitlement_id, venue_id, operator_id, method, status, failure_reason, redeemed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := r.db.Exec(ctx, q,
		rec.ID(), rec.EntitlementID(), rec.VenueID(), rec.OperatorID(),
		rec.Method().String(), rec.Status().String(), rec.FailureReason(), rec.RedeemedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("redemption record already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create redemption record", err)
	}
	return nil
}
