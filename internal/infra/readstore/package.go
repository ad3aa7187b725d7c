package readstore

import (
	"context"
	"errors"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PackageReadStore struct {
	db db.DBTX
}

func NewPackageReadStore(dbtx db.DBTX) *PackageReadStore {
	return &PackageReadStore{db: dbtx}
}

func (r *PackageReadStore) FindByID(ctx context.Context, id uuid.UUID) (*shared.PackageSnapshot, error) {
	const q = `
SELECT id, name, scope_venue_ids, scope_regions
FROM packages
WHERE id = $1`

	var snap shared.PackageSnapshot
	var venueIDs []string
	err := r.db.QueryRow(ctx, q, id).Scan(&snap.ID, &snap.Name, &venueIDs, &snap.Regions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("package not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find package", err)
	}

	for _, v := range venueIDs {
		vid, err := uuid.Parse(v)
		if err != nil {
			return nil, infra.WrapRepoErr("invalid venue id in package scope", err)
		}
		snap.VenueIDs = append(snap.VenueIDs, vid)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.Items = items
	return &snap, nil
}

func (r *PackageReadStore) loadItems(ctx context.Context, packageID uuid.UUID) ([]shared.PackageItemSnapshot, error) {
	const q = `
SELECT entitlement_type, service_type, total_count
FROM package_items
WHERE package_id = $1
ORDER BY service_type`

	rows, err := r.db.Query(ctx, q, packageID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load package items", err)
	}
	defer rows.Close()

	var items []shared.PackageItemSnapshot
	for rows.Next() {
		var entType string
		var item shared.PackageItemSnapshot
		if err := rows.Scan(&entType, &item.ServiceType, &item.TotalCount); err != nil {
			return nil, infra.WrapRepoErr("failed to scan package item", err)
		}
		item.EntitlementType = entitlement.Type(entType)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read package items", err)
	}
	return items, nil
}
