package response

import (
	"time"

	"health-entitlement-engine/internal/usecase/commands"
	"health-entitlement-engine/internal/usecase/queries"

	"github.com/google/uuid"
)

type EntitlementResponse struct {
	ID                uuid.UUID  `json:"id"`
	EntitlementType   string     `json:"entitlementType"`
	ServiceType       string     `json:"serviceType"`
	Status            string     `json:"status"`
	TotalCount        int        `json:"totalCount"`
	RemainingCount    int        `json:"remainingCount"`
	VoucherCode       string     `json:"voucherCode,omitempty"`
	QRPayload         string     `json:"qrPayload,omitempty"`
	OwnerID           uuid.UUID  `json:"ownerId"`
	OrderID           uuid.UUID  `json:"orderId"`
	PackageInstanceID *uuid.UUID `json:"packageInstanceId,omitempty"`
	ActivatorID       *uuid.UUID `json:"activatorId,omitempty"`
	ValidFrom         time.Time  `json:"validFrom"`
	ValidUntil        time.Time  `json:"validUntil"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type EntitlementListResponse struct {
	ID              uuid.UUID `json:"id"`
	EntitlementType string    `json:"entitlementType"`
	ServiceType     string    `json:"serviceType"`
	Status          string    `json:"status"`
	TotalCount      int       `json:"totalCount"`
	RemainingCount  int       `json:"remainingCount"`
	ValidUntil      time.Time `json:"validUntil"`
	CreatedAt       time.Time `json:"createdAt"`
}

type RedemptionRecordResponse struct {
	ID            uuid.UUID `json:"id"`
	EntitlementID uuid.UUID `json:"entitlementId"`
	VenueID       uuid.UUID `json:"venueId"`
	OperatorID    uuid.UUID `json:"operatorId"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	RedeemedAt    time.Time `json:"redeemedAt"`
}

type RedeemResponse struct {
	RedemptionRecordID uuid.UUID `json:"redemptionRecordId"`
	EntitlementID      uuid.UUID `json:"entitlementId"`
	Status             string    `json:"status"`
	RemainingCount     int       `json:"remainingCount"`
	EntitlementStatus  string    `json:"entitlementStatus"`
}

type TransferResponse struct {
	TransferredIDs []uuid.UUID `json:"transferredIds"`
	IssuedIDs      []uuid.UUID `json:"issuedIds"`
	NewOwnerID     uuid.UUID   `json:"newOwnerId"`
}

// FromEntitlementView exposes the full view, credentials included. Only
// the owner may receive this shape.
func FromEntitlementView(rm *queries.EntitlementView) *EntitlementResponse {
	return &EntitlementResponse{
		ID:                rm.ID,
		EntitlementType:   rm.EntitlementType,
		ServiceType:       rm.ServiceType,
		Status:            rm.Status,
		TotalCount:        rm.TotalCount,
		RemainingCount:    rm.RemainingCount,
		VoucherCode:       rm.VoucherCode,
		QRPayload:         rm.QRPayload,
		OwnerID:           rm.OwnerID,
		OrderID:           rm.OrderID,
		PackageInstanceID: rm.PackageInstanceID,
		ActivatorID:       rm.ActivatorID,
		ValidFrom:         rm.ValidFrom,
		ValidUntil:        rm.ValidUntil,
		CreatedAt:         rm.CreatedAt,
		UpdatedAt:         rm.UpdatedAt,
	}
}

// FromEntitlementViewRedacted strips the redeemable credentials for
// non-owner readers.
func FromEntitlementViewRedacted(rm *queries.EntitlementView) *EntitlementResponse {
	resp := FromEntitlementView(rm)
	resp.VoucherCode = ""
	resp.QRPayload = ""
	return resp
}

func FromEntitlementListItem(rm *queries.EntitlementListItem) *EntitlementListResponse {
	return &EntitlementListResponse{
		ID:              rm.ID,
		EntitlementType: rm.EntitlementType,
		ServiceType:     rm.ServiceType,
		Status:          rm.Status,
		TotalCount:      rm.TotalCount,
		RemainingCount:  rm.RemainingCount,
		ValidUntil:      rm.ValidUntil,
		CreatedAt:       rm.CreatedAt,
	}
}

func FromRedemptionRecordView(rm *queries.RedemptionRecordView) *RedemptionRecordResponse {
	return &RedemptionRecordResponse{
		ID:            rm.ID,
		EntitlementID: rm.EntitlementID,
		VenueID:       rm.VenueID,
		OperatorID:    rm.OperatorID,
		Method:        rm.Method,
		Status:        rm.Status,
		FailureReason: rm.FailureReason,
		RedeemedAt:    rm.RedeemedAt,
	}
}

func FromRedeemResult(res *commands.RedeemResult) *RedeemResponse {
	return &RedeemResponse{
		RedemptionRecordID: res.RedemptionRecordID,
		EntitlementID:      res.EntitlementID,
		Status:             res.Status.String(),
		RemainingCount:     res.RemainingCount,
		EntitlementStatus:  res.EntitlementStatus.String(),
	}
}

func FromTransferResult(res *commands.TransferResult) *TransferResponse {
	return &TransferResponse{
		TransferredIDs: res.TransferredIDs,
		IssuedIDs:      res.IssuedIDs,
		NewOwnerID:     res.NewOwnerID,
	}
}
