//go:build unit

package entitlement_test

import (
	"testing"

	"health-entitlement-engine/internal/domain/entitlement"

	"github.com/stretchr/testify/assert"
)

func TestCanTransferOrRefund(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		pairs     []entitlement.UsagePair
		want      bool
	}{
		{
			name:      "fully unconsumed set is transferable",
			successes: 0,
			pairs: []entitlement.UsagePair{
				{RemainingCount: 10, TotalCount: 10},
				{RemainingCount: 1, TotalCount: 1},
			},
			want: true,
		},
		{
			name:      "any successful redemption blocks",
			successes: 1,
			pairs: []entitlement.UsagePair{
				{RemainingCount: 10, TotalCount: 10},
			},
			want: false,
		},
		{
			name:      "partially consumed pair blocks",
			successes: 0,
			pairs: []entitlement.UsagePair{
				{RemainingCount: 10, TotalCount: 10},
				{RemainingCount: 9, TotalCount: 10},
			},
			want: false,
		},
		{
			name:      "empty set is not transferable",
			successes: 0,
			pairs:     nil,
			want:      false,
		},
		{
			name:      "single untouched voucher",
			successes: 0,
			pairs: []entitlement.UsagePair{
				{RemainingCount: 1, TotalCount: 1},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entitlement.CanTransferOrRefund(tt.successes, tt.pairs))
		})
	}
}
