package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/pkg/clock"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/errs"
	"health-entitlement-engine/internal/pkg/signcode"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrEntitlementNotFound  = errs.New("entitlement not found")
	ErrEntitlementNotActive = errs.New("entitlement is not redeemable")
	ErrVenueNotFound        = errs.New("venue not found")
	ErrServiceNotOffered    = errs.New("venue does not offer this service")
	ErrMethodNotAccepted    = errs.New("redemption method not accepted by venue")
	ErrVoucherCodeMismatch  = errs.New("voucher code does not match")
	ErrQRSignInvalid        = errs.New("qr payload signature invalid")
	ErrQRSignExpired        = errs.New("qr payload signature expired")
	ErrNotEligibleAtVenue   = errs.New("entitlement not eligible at this venue")
	ErrMissingCredential    = errs.New("redemption credential missing")
)

type RedeemInput struct {
	EntitlementID uuid.UUID
	VenueID       uuid.UUID
	OperatorID    uuid.UUID
	Method        entitlement.RedemptionMethod
	VoucherCode   string
	QRPayload     string
}

type RedeemResult struct {
	RedemptionRecordID uuid.UUID
	EntitlementID      uuid.UUID
	Status             entitlement.RecordStatus
	RemainingCount     int
	EntitlementStatus  entitlement.Status
}

type RedemptionCommands interface {
	Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error)
}

type redemptionUseCaseImpl struct {
	uow     shared.UnitOfWork
	clock   clock.Clock
	signing config.SigningConfig
}

func NewRedemptionUseCase(uow shared.UnitOfWork, clk clock.Clock, signing config.SigningConfig) RedemptionCommands {
	return &redemptionUseCaseImpl{
		uow:     uow,
		clock:   clk,
		signing: signing,
	}
}

// Redeem consumes one use of an entitlement at a venue. All preconditions
// are checked under the entitlement row lock; a precondition failure leaves
// the entitlement untouched and is audited with a FAILED record written
// outside the rolled-back transaction.
func (r *redemptionUseCaseImpl) Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error) {
	var result *RedeemResult

	err := r.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		ent, err := tx.Entitlements().FindByIDForUpdate(ctx, in.EntitlementID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrEntitlementNotFound
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if err := r.checkPreconditions(ctx, tx, ent, in); err != nil {
			return err
		}

		remaining, status, err := tx.Entitlements().ConsumeUse(ctx, in.EntitlementID)
		if err != nil {
			if infra.IsKind(err, infra.KindConflict) {
				return ErrEntitlementNotActive
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if err := tx.Entitlements().SetActivatorIfEmpty(ctx, in.EntitlementID, in.OperatorID); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		record := entitlement.NewRedemptionRecord(
			in.EntitlementID, in.VenueID, in.OperatorID,
			in.Method, entitlement.RecordSuccess, "", r.clock.Now(),
		)
		if err := tx.Redemptions().Create(ctx, record); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		result = &RedeemResult{
			RedemptionRecordID: record.ID(),
			EntitlementID:      in.EntitlementID,
			Status:             entitlement.RecordSuccess,
			RemainingCount:     remaining,
			EntitlementStatus:  status,
		}
		return nil
	})
	if err != nil {
		r.recordFailure(ctx, in, err)
		return nil, err
	}
	return result, nil
}

func (r *redemptionUseCaseImpl) checkPreconditions(
	ctx context.Context,
	tx shared.Tx,
	ent *entitlement.Entitlement,
	in RedeemInput,
) error {
	now := r.clock.Now()

	if _, err := ent.ApplyRedeem(now); err != nil {
		return errs.Mark(err, ErrEntitlementNotActive)
	}

	ven, err := tx.Reads().VenueByID(ctx, in.VenueID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return ErrVenueNotFound
		}
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}

	if !venueOffers(ven, ent.ServiceType()) {
		return ErrServiceNotOffered
	}
	if !ven.RedemptionMethod.Admits(in.Method) {
		return ErrMethodNotAccepted
	}

	if err := r.checkCredential(ent, in, now); err != nil {
		return err
	}

	if !ent.IsEligibleAt(entitlement.VenueLocation{
		VenueID:      ven.ID,
		CountryCode:  ven.CountryCode,
		ProvinceCode: ven.ProvinceCode,
		CityCode:     ven.CityCode,
	}) {
		return ErrNotEligibleAtVenue
	}

	return nil
}

// checkCredential verifies the presented proof. A BOTH request is resolved
// to whichever credential was supplied, preferring the QR payload.
func (r *redemptionUseCaseImpl) checkCredential(ent *entitlement.Entitlement, in RedeemInput, now time.Time) error {
	method := in.Method
	if method == entitlement.MethodBoth {
		if in.QRPayload != "" {
			method = entitlement.MethodQRCode
		} else {
			method = entitlement.MethodVoucherCode
		}
	}

	switch method {
	case entitlement.MethodQRCode:
		if in.QRPayload == "" {
			return ErrMissingCredential
		}
		claims, err := signcode.VerifyQRPayload(
			r.signing.QRSecret, in.QRPayload, now.Unix(), int64(r.signing.MaxClockSkew.Seconds()),
		)
		if err != nil {
			if errors.Is(err, signcode.ErrSignExpired) {
				return errs.Mark(err, ErrQRSignExpired)
			}
			return errs.Mark(err, ErrQRSignInvalid)
		}
		if claims.EntitlementID != ent.ID().String() || claims.VoucherCode != ent.VoucherCode() {
			return ErrQRSignInvalid
		}
	case entitlement.MethodVoucherCode:
		if in.VoucherCode == "" {
			return ErrMissingCredential
		}
		if in.VoucherCode != ent.VoucherCode() {
			return ErrVoucherCodeMismatch
		}
	default:
		return ErrMethodNotAccepted
	}
	return nil
}

// recordFailure appends a FAILED audit record in its own transaction after
// the primary one rolled back. A NOT_FOUND entitlement has no row to
// reference and is skipped; an audit write error is logged, never surfaced.
func (r *redemptionUseCaseImpl) recordFailure(ctx context.Context, in RedeemInput, cause error) {
	if errors.Is(cause, ErrEntitlementNotFound) || errors.Is(cause, ErrDatabaseOperationFailed) {
		return
	}

	record := entitlement.NewRedemptionRecord(
		in.EntitlementID, in.VenueID, in.OperatorID,
		in.Method, entitlement.RecordFailed, failureReason(cause), r.clock.Now(),
	)

	err := r.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		return tx.Redemptions().Create(ctx, record)
	})
	if err != nil {
		slog.Warn("failed to record redemption failure",
			"entitlement_id", in.EntitlementID,
			"reason", failureReason(cause),
			"error", err.Error())
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEntitlementNotActive):
		return "NOT_REDEEMABLE"
	case errors.Is(err, ErrVenueNotFound):
		return "VENUE_NOT_FOUND"
	case errors.Is(err, ErrServiceNotOffered):
		return "SERVICE_NOT_OFFERED"
	case errors.Is(err, ErrMethodNotAccepted):
		return "METHOD_NOT_ACCEPTED"
	case errors.Is(err, ErrVoucherCodeMismatch):
		return "VOUCHER_CODE_MISMATCH"
	case errors.Is(err, ErrQRSignExpired):
		return "QR_SIGN_EXPIRED"
	case errors.Is(err, ErrQRSignInvalid):
		return "QR_SIGN_INVALID"
	case errors.Is(err, ErrMissingCredential):
		return "CREDENTIAL_MISSING"
	case errors.Is(err, ErrNotEligibleAtVenue):
		return "NOT_ELIGIBLE_AT_VENUE"
	default:
		return "UNKNOWN"
	}
}

func venueOffers(ven *shared.VenueSnapshot, serviceType string) bool {
	for _, s := range ven.Services {
		if s == serviceType {
			return true
		}
	}
	return false
}
