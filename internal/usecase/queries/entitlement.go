package queries

import (
	"context"
	"time"

	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

// Read models (DTO for read side)
type EntitlementView struct {
	ID                uuid.UUID  `json:"id"`
	EntitlementType   string     `json:"entitlement_type"`
	ServiceType       string     `json:"service_type"`
	Status            string     `json:"status"`
	TotalCount        int        `json:"total_count"`
	RemainingCount    int        `json:"remaining_count"`
	VoucherCode       string     `json:"voucher_code,omitempty"`
	QRPayload         string     `json:"qr_payload,omitempty"`
	OwnerID           uuid.UUID  `json:"owner_id"`
	OrderID           uuid.UUID  `json:"order_id"`
	PackageInstanceID *uuid.UUID `json:"package_instance_id,omitempty"`
	ActivatorID       *uuid.UUID `json:"activator_id,omitempty"`
	ValidFrom         time.Time  `json:"valid_from"`
	ValidUntil        time.Time  `json:"valid_until"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type EntitlementListItem struct {
	ID              uuid.UUID `json:"id"`
	EntitlementType string    `json:"entitlement_type"`
	ServiceType     string    `json:"service_type"`
	Status          string    `json:"status"`
	TotalCount      int       `json:"total_count"`
	RemainingCount  int       `json:"remaining_count"`
	ValidUntil      time.Time `json:"valid_until"`
	CreatedAt       time.Time `json:"created_at"`
}

type RedemptionRecordView struct {
	ID            uuid.UUID `json:"id"`
	EntitlementID uuid.UUID `json:"entitlement_id"`
	VenueID       uuid.UUID `json:"venue_id"`
	OperatorID    uuid.UUID `json:"operator_id"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	RedeemedAt    time.Time `json:"redeemed_at"`
}

type EntitlementQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*EntitlementView, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*EntitlementListItem, error)
	ListRecords(ctx context.Context, entitlementID uuid.UUID) ([]*RedemptionRecordView, error)
}

type EntitlementViewRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*EntitlementView, error)
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*EntitlementListItem, error)
	FindRecordsByEntitlementID(ctx context.Context, entitlementID uuid.UUID) ([]*RedemptionRecordView, error)
}

// EntitlementViewRepoFactory binds a view repo to the read-only transaction
// each query runs in.
type EntitlementViewRepoFactory func(d db.DBTX) EntitlementViewRepo

type entitlementQueriesImpl struct {
	uow     shared.UnitOfWork
	repoFor EntitlementViewRepoFactory
}

func NewEntitlementQueries(uow shared.UnitOfWork, repoFor EntitlementViewRepoFactory) EntitlementQueries {
	return &entitlementQueriesImpl{uow: uow, repoFor: repoFor}
}

func (q *entitlementQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*EntitlementView, error) {
	var view *EntitlementView
	err := q.uow.WithinReadOnly(ctx, func(ctx context.Context, d db.DBTX) error {
		var err error
		view, err = q.repoFor(d).FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (q *entitlementQueriesImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*EntitlementListItem, error) {
	var items []*EntitlementListItem
	err := q.uow.WithinReadOnly(ctx, func(ctx context.Context, d db.DBTX) error {
		var err error
		items, err = q.repoFor(d).FindByOwnerID(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (q *entitlementQueriesImpl) ListRecords(ctx context.Context, entitlementID uuid.UUID) ([]*RedemptionRecordView, error) {
	var records []*RedemptionRecordView
	err := q.uow.WithinReadOnly(ctx, func(ctx context.Context, d db.DBTX) error {
		var err error
		records, err = q.repoFor(d).FindRecordsByEntitlementID(ctx, entitlementID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
