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

type VenueReadStore struct {
	db db.DBTX
}

func NewVenueReadStore(dbtx db.DBTX) *VenueReadStore {
	return &VenueReadStore{db: dbtx}
}

func (r *VenueReadStore) FindByID(ctx context.Context, id uuid.UUID) (*shared.VenueSnapshot, error) {
	const q = `
SELECT id, name, country_code, province_code, city_code, services, redemption_method
FROM venues
WHERE id = $1`

	var snap shared.VenueSnapshot
	var method string
	err := r.db.QueryRow(ctx, q, id).Scan(
		&snap.ID, &snap.Name, &snap.CountryCode, &snap.ProvinceCode, &snap.CityCode,
		&snap.Services, &method,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("venue not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find venue", err)
	}
	snap.RedemptionMethod = entitlement.RedemptionMethod(method)
	return &snap, nil
}
