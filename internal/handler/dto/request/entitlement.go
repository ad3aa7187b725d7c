package request

import (
	"strings"

	"github.com/google/uuid"
)

type RedeemRequest struct {
	// VenueID is optional; when present it must match the venue bound to
	// the operator's token.
	VenueID     *uuid.UUID `json:"venue_id,omitempty"`
	Method      string     `json:"redemption_method" binding:"required"`
	VoucherCode string     `json:"voucher_code,omitempty"`
	QRPayload   string     `json:"qr_payload,omitempty"`
}

func (r RedeemRequest) NormalizedVoucherCode() string {
	return strings.ToUpper(strings.TrimSpace(r.VoucherCode))
}

type TransferRequest struct {
	TargetOwnerID uuid.UUID `json:"target_owner_id" binding:"required"`
}
