//go:build unit

package commands

import (
	"context"
	"testing"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/pkg/clock"
	"health-entitlement-engine/internal/pkg/signcode"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	redeemNow  = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	validFrom  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	validUntil = validFrom.Add(365 * 24 * time.Hour)

	// nationwideScope admits any venue in the country; packages without a
	// region scope are not redeemable anywhere.
	nationwideScope = entitlement.ServiceScope{Regions: []string{"COUNTRY:CN"}}
)

type redeemFixture struct {
	uow      *fakeUoW
	uc       RedemptionCommands
	venue    *shared.VenueSnapshot
	operator uuid.UUID
}

func newRedeemFixture() *redeemFixture {
	uow := newFakeUoW()
	ven := &shared.VenueSnapshot{
		ID:               uuid.New(),
		Name:             "Harbor Wellness Club",
		CountryCode:      "CN",
		ProvinceCode:     "110000",
		CityCode:         "110100",
		Services:         []string{"MASSAGE", "SPA"},
		RedemptionMethod: entitlement.MethodBoth,
	}
	uow.tx.reads.venues[ven.ID] = ven
	return &redeemFixture{
		uow:      uow,
		uc:       NewRedemptionUseCase(uow, clock.NewMockClock(redeemNow), testSigning),
		venue:    ven,
		operator: uuid.New(),
	}
}

func (f *redeemFixture) seedEntitlement(entType entitlement.Type, serviceType string, total, remaining int, scope entitlement.ServiceScope) *entitlement.Entitlement {
	id := uuid.New()
	code := entitlement.NewVoucherCode()
	payload := signcode.BuildQRPayload(testSigning.QRSecret, id.String(), code, redeemNow.Unix(), uuid.NewString())

	ent := entitlement.ReconstructEntitlement(
		id, entType, serviceType, entitlement.StatusActive,
		total, remaining, code, payload,
		uuid.New(), uuid.New(), nil, nil,
		scope, validFrom, validUntil, validFrom, validFrom,
	)
	f.uow.tx.ents.seed(ent)
	return ent
}

func (f *redeemFixture) redeemQR(ent *entitlement.Entitlement) (*RedeemResult, error) {
	return f.uc.Redeem(context.Background(), RedeemInput{
		EntitlementID: ent.ID(),
		VenueID:       f.venue.ID,
		OperatorID:    f.operator,
		Method:        entitlement.MethodQRCode,
		QRPayload:     ent.QRPayload(),
	})
}

func (f *redeemFixture) lastRecord(t *testing.T) *entitlement.RedemptionRecord {
	t.Helper()
	records := f.uow.tx.reds.records
	require.NotEmpty(t, records)
	return records[len(records)-1]
}

func TestRedeem_Success(t *testing.T) {
	t.Run("package decrements and stays active", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		result, err := f.redeemQR(ent)

		require.NoError(t, err)
		assert.Equal(t, 9, result.RemainingCount)
		assert.Equal(t, entitlement.StatusActive, result.EntitlementStatus)
		assert.Equal(t, entitlement.RecordSuccess, result.Status)

		rec := f.lastRecord(t)
		assert.True(t, rec.IsSuccess())
		assert.Equal(t, result.RedemptionRecordID, rec.ID())

		row := f.uow.tx.ents.current(ent.ID())
		require.NotNil(t, row.ActivatorID())
		assert.Equal(t, f.operator, *row.ActivatorID())
	})

	t.Run("package last use flips to used", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "SPA", 10, 1, nationwideScope)

		result, err := f.redeemQR(ent)

		require.NoError(t, err)
		assert.Equal(t, 0, result.RemainingCount)
		assert.Equal(t, entitlement.StatusUsed, result.EntitlementStatus)
	})

	t.Run("voucher consumed whole via code", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeVoucher, "SPA", 1, 1, entitlement.ServiceScope{})

		result, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodVoucherCode,
			VoucherCode:   ent.VoucherCode(),
		})

		require.NoError(t, err)
		assert.Equal(t, 0, result.RemainingCount)
		assert.Equal(t, entitlement.StatusUsed, result.EntitlementStatus)
	})

	t.Run("BOTH falls back to the supplied credential", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 5, 5, nationwideScope)

		result, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodBoth,
			VoucherCode:   ent.VoucherCode(),
		})

		require.NoError(t, err)
		assert.Equal(t, 4, result.RemainingCount)
	})

	t.Run("activator is write-once across redemptions", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 5, 5, nationwideScope)

		_, err := f.redeemQR(ent)
		require.NoError(t, err)

		firstOperator := f.operator
		f.operator = uuid.New()
		_, err = f.redeemQR(ent)
		require.NoError(t, err)

		row := f.uow.tx.ents.current(ent.ID())
		require.NotNil(t, row.ActivatorID())
		assert.Equal(t, firstOperator, *row.ActivatorID())
	})
}

func TestRedeem_Failures(t *testing.T) {
	t.Run("unknown entitlement leaves no audit row", func(t *testing.T) {
		f := newRedeemFixture()

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: uuid.New(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodQRCode,
			QRPayload:     "anything",
		})

		assert.ErrorIs(t, err, ErrEntitlementNotFound)
		assert.Empty(t, f.uow.tx.reds.records)
	})

	t.Run("venue without the service", func(t *testing.T) {
		f := newRedeemFixture()
		f.venue.Services = []string{"SPA"}
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.redeemQR(ent)

		assert.ErrorIs(t, err, ErrServiceNotOffered)
		rec := f.lastRecord(t)
		assert.False(t, rec.IsSuccess())
		assert.Equal(t, "SERVICE_NOT_OFFERED", rec.FailureReason())
		assert.Equal(t, 10, f.uow.tx.ents.current(ent.ID()).RemainingCount())
	})

	t.Run("venue method does not admit the presented one", func(t *testing.T) {
		f := newRedeemFixture()
		f.venue.RedemptionMethod = entitlement.MethodVoucherCode
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.redeemQR(ent)

		assert.ErrorIs(t, err, ErrMethodNotAccepted)
		assert.Equal(t, "METHOD_NOT_ACCEPTED", f.lastRecord(t).FailureReason())
	})

	t.Run("presented BOTH at a single-method venue", func(t *testing.T) {
		f := newRedeemFixture()
		f.venue.RedemptionMethod = entitlement.MethodQRCode
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodBoth,
			VoucherCode:   ent.VoucherCode(),
		})

		assert.ErrorIs(t, err, ErrMethodNotAccepted)
		assert.Equal(t, "METHOD_NOT_ACCEPTED", f.lastRecord(t).FailureReason())
	})

	t.Run("wrong voucher code", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodVoucherCode,
			VoucherCode:   "FFFFFFFFFFFFFFFF",
		})

		assert.ErrorIs(t, err, ErrVoucherCodeMismatch)
		assert.Equal(t, 10, f.uow.tx.ents.current(ent.ID()).RemainingCount())
	})

	t.Run("tampered qr payload", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodQRCode,
			QRPayload:     ent.QRPayload() + "0",
		})

		assert.ErrorIs(t, err, ErrQRSignInvalid)
		assert.Equal(t, "QR_SIGN_INVALID", f.lastRecord(t).FailureReason())
	})

	t.Run("expired qr payload", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		stale := signcode.BuildQRPayload(
			testSigning.QRSecret, ent.ID().String(), ent.VoucherCode(),
			redeemNow.Add(-time.Hour).Unix(), uuid.NewString(),
		)
		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodQRCode,
			QRPayload:     stale,
		})

		assert.ErrorIs(t, err, ErrQRSignExpired)
		assert.Equal(t, "QR_SIGN_EXPIRED", f.lastRecord(t).FailureReason())
	})

	t.Run("qr payload of another entitlement", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)
		other := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodQRCode,
			QRPayload:     other.QRPayload(),
		})

		assert.ErrorIs(t, err, ErrQRSignInvalid)
	})

	t.Run("region scope excludes the venue", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10,
			entitlement.ServiceScope{Regions: []string{"CITY:310100"}})

		_, err := f.redeemQR(ent)

		assert.ErrorIs(t, err, ErrNotEligibleAtVenue)
		assert.Equal(t, "NOT_ELIGIBLE_AT_VENUE", f.lastRecord(t).FailureReason())
	})

	t.Run("allow-listed venue still fails the region match", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10,
			entitlement.ServiceScope{
				VenueIDs: []uuid.UUID{f.venue.ID},
				Regions:  []string{"CITY:310100"},
			})

		_, err := f.redeemQR(ent)

		assert.ErrorIs(t, err, ErrNotEligibleAtVenue)
		assert.Equal(t, 10, f.uow.tx.ents.current(ent.ID()).RemainingCount())
	})

	t.Run("allow-listed package without regions is ineligible", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10,
			entitlement.ServiceScope{VenueIDs: []uuid.UUID{f.venue.ID}})

		_, err := f.redeemQR(ent)

		assert.ErrorIs(t, err, ErrNotEligibleAtVenue)
	})

	t.Run("city scope admits a venue in that city", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10,
			entitlement.ServiceScope{Regions: []string{"CITY:110100"}})

		_, err := f.redeemQR(ent)

		require.NoError(t, err)
	})

	t.Run("already used entitlement", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)
		f.uow.tx.ents.rows[ent.ID()].status = entitlement.StatusUsed
		f.uow.tx.ents.rows[ent.ID()].remaining = 0

		_, err := f.redeemQR(ent)

		assert.ErrorIs(t, err, ErrEntitlementNotActive)
		assert.Equal(t, "NOT_REDEEMABLE", f.lastRecord(t).FailureReason())
	})

	t.Run("unknown venue", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       uuid.New(),
			OperatorID:    f.operator,
			Method:        entitlement.MethodQRCode,
			QRPayload:     ent.QRPayload(),
		})

		assert.ErrorIs(t, err, ErrVenueNotFound)
	})

	t.Run("missing credential", func(t *testing.T) {
		f := newRedeemFixture()
		ent := f.seedEntitlement(entitlement.TypeServicePackage, "MASSAGE", 10, 10, nationwideScope)

		_, err := f.uc.Redeem(context.Background(), RedeemInput{
			EntitlementID: ent.ID(),
			VenueID:       f.venue.ID,
			OperatorID:    f.operator,
			Method:        entitlement.MethodQRCode,
		})

		assert.ErrorIs(t, err, ErrMissingCredential)
	})
}
