package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// RedemptionRecord is the append-only audit row written for every redemption
// attempt against a known entitlement, successful or not.
type RedemptionRecord struct {
	id            uuid.UUID
	entitlementID uuid.UUID
	venueID       uuid.UUID
	operatorID    uuid.UUID
	method        RedemptionMethod
	status        RecordStatus
	failureReason string
	redeemedAt    time.Time
}

func NewRedemptionRecord(
	entitlementID, venueID, operatorID uuid.UUID,
	method RedemptionMethod,
	status RecordStatus,
	failureReason string,
	redeemedAt time.Time,
) *RedemptionRecord {
	return &RedemptionRecord{
		id:            uuid.New(),
		entitlementID: entitlementID,
		venueID:       venueID,
		operatorID:    operatorID,
		method:        method,
		status:        status,
		failureReason: failureReason,
		redeemedAt:    redeemedAt,
	}
}

func ReconstructRedemptionRecord(
	id, entitlementID, venueID, operatorID uuid.UUID,
	method RedemptionMethod,
	status RecordStatus,
	failureReason string,
	redeemedAt time.Time,
) *RedemptionRecord {
	return &RedemptionRecord{
		id:            id,
		entitlementID: entitlementID,
		venueID:       venueID,
		operatorID:    operatorID,
		method:        method,
		status:        status,
		failureReason: failureReason,
		redeemedAt:    redeemedAt,
	}
}

func (r *RedemptionRecord) IsSuccess() bool {
	return r.status == RecordSuccess
}

func (r *RedemptionRecord) ID() uuid.UUID            { return r.id }
func (r *RedemptionRecord) EntitlementID() uuid.UUID { return r.entitlementID }
func (r *RedemptionRecord) VenueID() uuid.UUID       { return r.venueID }
func (r *RedemptionRecord) OperatorID() uuid.UUID    { return r.operatorID }
func (r *RedemptionRecord) Method() RedemptionMethod { return r.method }
func (r *RedemptionRecord) Status() RecordStatus     { return r.status }
func (r *RedemptionRecord) FailureReason() string    { return r.failureReason }
func (r *RedemptionRecord) RedeemedAt() time.Time    { return r.redeemedAt }
