package writerepo

import (
	"context"

	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/usecase/shared"
)

type PackageInstanceRepository struct {
	db db.DBTX
}

func NewPackageInstanceRepository(dbtx db.DBTX) *PackageInstanceRepository {
	return &PackageInstanceRepository{db: dbtx}
}

func (r *PackageInstanceRepository) Create(ctx context.Context, inst shared.PackageInstance) error {
	const q = `
INSERT INTO package_instances (id, order_id, package_id, owner_id, created_at)
VALUES ($1, $2, $3, $4, now())`

	_, err := r.db.Exec(ctx, q, inst.ID, inst.OrderID, inst.PackageID, inst.OwnerID)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("package instance already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create package instance", err)
	}
	return nil
}
