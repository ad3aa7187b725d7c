package entitlement

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotActive        = errors.New("entitlement is not active")
	ErrNoRemainingUses  = errors.New("entitlement has no remaining uses")
	ErrOutsideValidity  = errors.New("entitlement is outside its validity window")
	ErrAlreadyActivated = errors.New("entitlement is already activated")
	ErrInvalidStatus    = errors.New("invalid entitlement status")
	ErrInvalidCount     = errors.New("invalid entitlement counts")
)

// ServiceScope restricts where an entitlement can be redeemed. An empty
// venue allow-list means any venue; region codes are level-prefixed
// (COUNTRY:, PROVINCE:, CITY:).
type ServiceScope struct {
	VenueIDs []uuid.UUID
	Regions  []string
}

type Entitlement struct {
	id                uuid.UUID
	entitlementType   Type
	serviceType       string
	status            Status
	totalCount        int
	remainingCount    int
	voucherCode       string
	qrPayload         string
	ownerID           uuid.UUID
	orderID           uuid.UUID
	packageInstanceID *uuid.UUID
	activatorID       *uuid.UUID
	scope             ServiceScope
	validFrom         time.Time
	validUntil        time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

func NewEntitlement(
	id uuid.UUID,
	entitlementType Type,
	serviceType string,
	totalCount int,
	voucherCode string,
	qrPayload string,
	ownerID, orderID uuid.UUID,
	packageInstanceID *uuid.UUID,
	scope ServiceScope,
	validFrom, validUntil time.Time,
) (*Entitlement, error) {
	if !entitlementType.IsValid() {
		return nil, ErrInvalidStatus
	}
	if totalCount <= 0 {
		return nil, ErrInvalidCount
	}

	return &Entitlement{
		id:                id,
		entitlementType:   entitlementType,
		serviceType:       serviceType,
		status:            StatusActive,
		totalCount:        totalCount,
		remainingCount:    totalCount,
		voucherCode:       voucherCode,
		qrPayload:         qrPayload,
		ownerID:           ownerID,
		orderID:           orderID,
		packageInstanceID: packageInstanceID,
		scope:             scope,
		validFrom:         validFrom,
		validUntil:        validUntil,
	}, nil
}

func ReconstructEntitlement(
	id uuid.UUID,
	entitlementType Type,
	serviceType string,
	status Status,
	totalCount, remainingCount int,
	voucherCode, qrPayload string,
	ownerID, orderID uuid.UUID,
	packageInstanceID, activatorID *uuid.UUID,
	scope ServiceScope,
	validFrom, validUntil time.Time,
	createdAt, updatedAt time.Time,
) *Entitlement {
	return &Entitlement{
		id:                id,
		entitlementType:   entitlementType,
		serviceType:       serviceType,
		status:            status,
		totalCount:        totalCount,
		remainingCount:    remainingCount,
		voucherCode:       voucherCode,
		qrPayload:         qrPayload,
		ownerID:           ownerID,
		orderID:           orderID,
		packageInstanceID: packageInstanceID,
		activatorID:       activatorID,
		scope:             scope,
		validFrom:         validFrom,
		validUntil:        validUntil,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// NewVoucherCode returns the short redeemable code: the first 16 hex
// characters of a fresh UUID, uppercased.
func NewVoucherCode() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:8]))
}

func (e *Entitlement) IsWithinValidity(now time.Time) bool {
	return !now.Before(e.validFrom) && now.Before(e.validUntil)
}

// RedeemOutcome is the state an entitlement reaches after one successful
// redemption.
type RedeemOutcome struct {
	RemainingCount int
	Status         Status
}

// ApplyRedeem computes the outcome of one redemption without mutating the
// entity. A VOUCHER is consumed whole; a SERVICE_PACKAGE decrements by one
// and becomes USED when the count reaches zero. Any failure leaves the
// entitlement untouched.
func (e *Entitlement) ApplyRedeem(now time.Time) (RedeemOutcome, error) {
	if e.status != StatusActive {
		return RedeemOutcome{}, ErrNotActive
	}
	if !e.IsWithinValidity(now) {
		return RedeemOutcome{}, ErrOutsideValidity
	}
	if e.remainingCount <= 0 {
		return RedeemOutcome{}, ErrNoRemainingUses
	}

	switch e.entitlementType {
	case TypeVoucher:
		return RedeemOutcome{RemainingCount: 0, Status: StatusUsed}, nil
	case TypeServicePackage:
		remaining := e.remainingCount - 1
		status := StatusActive
		if remaining == 0 {
			status = StatusUsed
		}
		return RedeemOutcome{RemainingCount: remaining, Status: status}, nil
	default:
		return RedeemOutcome{}, ErrInvalidStatus
	}
}

// Activate records the first redeeming operator. The activator is
// write-once; storage enforces the same rule with a conditional update.
func (e *Entitlement) Activate(operatorID uuid.UUID) error {
	if e.activatorID != nil {
		return ErrAlreadyActivated
	}
	id := operatorID
	e.activatorID = &id
	return nil
}

func (e *Entitlement) ID() uuid.UUID                 { return e.id }
func (e *Entitlement) Type() Type                    { return e.entitlementType }
func (e *Entitlement) ServiceType() string           { return e.serviceType }
func (e *Entitlement) Status() Status                { return e.status }
func (e *Entitlement) TotalCount() int               { return e.totalCount }
func (e *Entitlement) RemainingCount() int           { return e.remainingCount }
func (e *Entitlement) VoucherCode() string           { return e.voucherCode }
func (e *Entitlement) QRPayload() string             { return e.qrPayload }
func (e *Entitlement) OwnerID() uuid.UUID            { return e.ownerID }
func (e *Entitlement) OrderID() uuid.UUID            { return e.orderID }
func (e *Entitlement) PackageInstanceID() *uuid.UUID { return e.packageInstanceID }
func (e *Entitlement) ActivatorID() *uuid.UUID       { return e.activatorID }
func (e *Entitlement) Scope() ServiceScope           { return e.scope }
func (e *Entitlement) ValidFrom() time.Time          { return e.validFrom }
func (e *Entitlement) ValidUntil() time.Time         { return e.validUntil }
func (e *Entitlement) CreatedAt() time.Time          { return e.createdAt }
func (e *Entitlement) UpdatedAt() time.Time          { return e.updatedAt }
