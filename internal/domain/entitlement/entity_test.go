//go:build unit

package entitlement_test

import (
	"strings"
	"testing"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entitlementBuilder struct {
	entitlementType entitlement.Type
	status          entitlement.Status
	totalCount      int
	remainingCount  int
	scope           entitlement.ServiceScope
	validFrom       time.Time
	validUntil      time.Time
}

func newEntitlementBuilder() *entitlementBuilder {
	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &entitlementBuilder{
		entitlementType: entitlement.TypeServicePackage,
		status:          entitlement.StatusActive,
		totalCount:      10,
		remainingCount:  10,
		validFrom:       paidAt,
		validUntil:      paidAt.Add(365 * 24 * time.Hour),
	}
}

func (b *entitlementBuilder) build() *entitlement.Entitlement {
	return entitlement.ReconstructEntitlement(
		uuid.New(),
		b.entitlementType,
		"MASSAGE",
		b.status,
		b.totalCount, b.remainingCount,
		"ABCD1234EF567890", "qr-payload",
		uuid.New(), uuid.New(),
		nil, nil,
		b.scope,
		b.validFrom, b.validUntil,
		b.validFrom, b.validFrom,
	)
}

func TestApplyRedeem(t *testing.T) {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	t.Run("voucher is consumed whole", func(t *testing.T) {
		b := newEntitlementBuilder()
		b.entitlementType = entitlement.TypeVoucher
		b.totalCount = 1
		b.remainingCount = 1

		outcome, err := b.build().ApplyRedeem(now)

		require.NoError(t, err)
		assert.Equal(t, 0, outcome.RemainingCount)
		assert.Equal(t, entitlement.StatusUsed, outcome.Status)
	})

	t.Run("package decrements by one and stays active", func(t *testing.T) {
		b := newEntitlementBuilder()
		b.totalCount = 10
		b.remainingCount = 10

		outcome, err := b.build().ApplyRedeem(now)

		require.NoError(t, err)
		assert.Equal(t, 9, outcome.RemainingCount)
		assert.Equal(t, entitlement.StatusActive, outcome.Status)
	})

	t.Run("package becomes used on last decrement", func(t *testing.T) {
		b := newEntitlementBuilder()
		b.totalCount = 10
		b.remainingCount = 1

		outcome, err := b.build().ApplyRedeem(now)

		require.NoError(t, err)
		assert.Equal(t, 0, outcome.RemainingCount)
		assert.Equal(t, entitlement.StatusUsed, outcome.Status)
	})

	t.Run("failures", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*entitlementBuilder)
			now    time.Time
			errIs  error
		}{
			{
				name:   "not active",
				mutate: func(b *entitlementBuilder) { b.status = entitlement.StatusUsed },
				now:    now,
				errIs:  entitlement.ErrNotActive,
			},
			{
				name:   "refunded",
				mutate: func(b *entitlementBuilder) { b.status = entitlement.StatusRefunded },
				now:    now,
				errIs:  entitlement.ErrNotActive,
			},
			{
				name:   "no remaining uses",
				mutate: func(b *entitlementBuilder) { b.remainingCount = 0 },
				now:    now,
				errIs:  entitlement.ErrNoRemainingUses,
			},
			{
				name:   "before validity window",
				mutate: func(b *entitlementBuilder) {},
				now:    time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
				errIs:  entitlement.ErrOutsideValidity,
			},
			{
				name:   "after validity window",
				mutate: func(b *entitlementBuilder) {},
				now:    time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
				errIs:  entitlement.ErrOutsideValidity,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := newEntitlementBuilder()
				tt.mutate(b)
				ent := b.build()

				_, err := ent.ApplyRedeem(tt.now)

				assert.ErrorIs(t, err, tt.errIs)
				assert.Equal(t, b.remainingCount, ent.RemainingCount())
			})
		}
	})
}

func TestStatusTransitions(t *testing.T) {
	terminals := []entitlement.Status{
		entitlement.StatusUsed,
		entitlement.StatusExpired,
		entitlement.StatusRefunded,
		entitlement.StatusTransferred,
	}

	t.Run("active reaches every terminal", func(t *testing.T) {
		for _, target := range terminals {
			assert.True(t, entitlement.StatusActive.CanTransitionTo(target), target.String())
		}
	})

	t.Run("terminals admit nothing", func(t *testing.T) {
		all := append([]entitlement.Status{entitlement.StatusActive}, terminals...)
		for _, from := range terminals {
			assert.True(t, from.IsTerminal())
			for _, to := range all {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("active is not terminal and cannot self-transition", func(t *testing.T) {
		assert.False(t, entitlement.StatusActive.IsTerminal())
		assert.False(t, entitlement.StatusActive.CanTransitionTo(entitlement.StatusActive))
	})
}

func TestActivate(t *testing.T) {
	ent := newEntitlementBuilder().build()
	operatorID := uuid.New()

	require.Nil(t, ent.ActivatorID())
	require.NoError(t, ent.Activate(operatorID))
	require.NotNil(t, ent.ActivatorID())
	assert.Equal(t, operatorID, *ent.ActivatorID())

	err := ent.Activate(uuid.New())

	assert.ErrorIs(t, err, entitlement.ErrAlreadyActivated)
	assert.Equal(t, operatorID, *ent.ActivatorID())
}

func TestNewEntitlement(t *testing.T) {
	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("starts active with full count", func(t *testing.T) {
		ent, err := entitlement.NewEntitlement(
			uuid.New(), entitlement.TypeServicePackage, "SPA", 5,
			"CODE", "payload", uuid.New(), uuid.New(), nil,
			entitlement.ServiceScope{}, paidAt, paidAt.Add(365*24*time.Hour),
		)

		require.NoError(t, err)
		assert.Equal(t, entitlement.StatusActive, ent.Status())
		assert.Equal(t, 5, ent.TotalCount())
		assert.Equal(t, 5, ent.RemainingCount())
	})

	t.Run("rejects non-positive count", func(t *testing.T) {
		_, err := entitlement.NewEntitlement(
			uuid.New(), entitlement.TypeVoucher, "SPA", 0,
			"CODE", "payload", uuid.New(), uuid.New(), nil,
			entitlement.ServiceScope{}, paidAt, paidAt.Add(time.Hour),
		)

		assert.ErrorIs(t, err, entitlement.ErrInvalidCount)
	})
}

func TestNewVoucherCode(t *testing.T) {
	code := entitlement.NewVoucherCode()

	assert.Len(t, code, 16)
	assert.Equal(t, strings.ToUpper(code), code)
	assert.NotEqual(t, code, entitlement.NewVoucherCode())
}

func TestRedemptionMethodAdmits(t *testing.T) {
	tests := []struct {
		configured entitlement.RedemptionMethod
		presented  entitlement.RedemptionMethod
		want       bool
	}{
		{entitlement.MethodBoth, entitlement.MethodQRCode, true},
		{entitlement.MethodBoth, entitlement.MethodVoucherCode, true},
		{entitlement.MethodBoth, entitlement.MethodBoth, true},
		{entitlement.MethodQRCode, entitlement.MethodQRCode, true},
		{entitlement.MethodQRCode, entitlement.MethodVoucherCode, false},
		{entitlement.MethodVoucherCode, entitlement.MethodQRCode, false},
		// A single-method venue does not accept a presented BOTH.
		{entitlement.MethodVoucherCode, entitlement.MethodBoth, false},
		{entitlement.MethodQRCode, entitlement.MethodBoth, false},
		{entitlement.MethodQRCode, entitlement.RedemptionMethod("CASH"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.configured.Admits(tt.presented), "%s admits %s", tt.configured, tt.presented)
	}
}
