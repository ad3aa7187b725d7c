package entitlement

import (
	"strings"

	"github.com/google/uuid"
)

const (
	regionLevelCountry  = "COUNTRY:"
	regionLevelProvince = "PROVINCE:"
	regionLevelCity     = "CITY:"
)

// VenueLocation carries the region codes a venue sits in, one per level.
type VenueLocation struct {
	VenueID      uuid.UUID
	CountryCode  string
	ProvinceCode string
	CityCode     string
}

// IsEligibleAt decides whether the entitlement may be redeemed at the given
// venue. A non-empty venue allow-list is a necessary filter, not a grant:
// a venue outside the list is ineligible, and a listed venue must still pass
// the type rules. A VOUCHER is then universal, while a SERVICE_PACKAGE needs
// a same-level region match; an empty region list or an unrecognized
// entitlement type is ineligible.
func (e *Entitlement) IsEligibleAt(loc VenueLocation) bool {
	if len(e.scope.VenueIDs) > 0 && !containsVenue(e.scope.VenueIDs, loc.VenueID) {
		return false
	}

	switch e.entitlementType {
	case TypeVoucher:
		return true
	case TypeServicePackage:
		return matchesAnyRegion(e.scope.Regions, loc)
	default:
		return false
	}
}

func containsVenue(ids []uuid.UUID, venueID uuid.UUID) bool {
	for _, id := range ids {
		if id == venueID {
			return true
		}
	}
	return false
}

func matchesAnyRegion(regions []string, loc VenueLocation) bool {
	for _, region := range regions {
		if matchesRegion(region, loc) {
			return true
		}
	}
	return false
}

// matchesRegion compares a level-prefixed region code against the venue's
// code at the same level. Codes without a known prefix never match.
func matchesRegion(region string, loc VenueLocation) bool {
	switch {
	case strings.HasPrefix(region, regionLevelCountry):
		code := strings.TrimPrefix(region, regionLevelCountry)
		return code != "" && code == loc.CountryCode
	case strings.HasPrefix(region, regionLevelProvince):
		code := strings.TrimPrefix(region, regionLevelProvince)
		return code != "" && code == loc.ProvinceCode
	case strings.HasPrefix(region, regionLevelCity):
		code := strings.TrimPrefix(region, regionLevelCity)
		return code != "" && code == loc.CityCode
	default:
		return false
	}
}
