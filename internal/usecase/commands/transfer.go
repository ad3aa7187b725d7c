package commands

import (
	"context"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/pkg/clock"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/errs"
	"health-entitlement-engine/internal/pkg/signcode"
	"health-entitlement-engine/internal/pkg/token"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrNotOwner        = errs.New("actor does not own this entitlement")
	ErrSelfTransfer    = errs.New("cannot transfer to the current owner")
	ErrNotTransferable = errs.New("entitlement set is no longer transferable")
)

type TransferInput struct {
	EntitlementID uuid.UUID
	ActorID       uuid.UUID
	ActorRole     string
	TargetOwnerID uuid.UUID
}

type TransferResult struct {
	TransferredIDs []uuid.UUID
	IssuedIDs      []uuid.UUID
	NewOwnerID     uuid.UUID
}

type TransferCommands interface {
	Transfer(ctx context.Context, in TransferInput) (*TransferResult, error)
	Refund(ctx context.Context, entitlementID uuid.UUID) error
}

type transferUseCaseImpl struct {
	uow     shared.UnitOfWork
	clock   clock.Clock
	signing config.SigningConfig
}

func NewTransferUseCase(uow shared.UnitOfWork, clk clock.Clock, signing config.SigningConfig) TransferCommands {
	return &transferUseCaseImpl{
		uow:     uow,
		clock:   clk,
		signing: signing,
	}
}

// Transfer moves a fully unconsumed entitlement set to a new owner. The
// scope is the whole package instance when the entitlement belongs to one;
// old rows become TRANSFERRED and fresh rows with new codes are issued.
func (t *transferUseCaseImpl) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	var result *TransferResult

	err := t.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		ents, err := t.lockTransferSet(ctx, tx, in.EntitlementID)
		if err != nil {
			return err
		}

		owner := ents[0].OwnerID()
		if in.ActorRole != token.RoleAdmin && in.ActorID != owner {
			return ErrNotOwner
		}
		if in.TargetOwnerID == owner {
			return ErrSelfTransfer
		}

		if err := t.checkTransferable(ctx, tx, ents); err != nil {
			return err
		}

		now := t.clock.Now()
		transferred := make([]uuid.UUID, 0, len(ents))
		issued := make([]uuid.UUID, 0, len(ents))

		for _, ent := range ents {
			if err := tx.Entitlements().UpdateStatus(ctx, ent.ID(), entitlement.StatusActive, entitlement.StatusTransferred); err != nil {
				if infra.IsKind(err, infra.KindConflict) {
					return ErrNotTransferable
				}
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
			transferred = append(transferred, ent.ID())

			fresh, err := t.reissueFor(ent, in.TargetOwnerID, now)
			if err != nil {
				return err
			}
			if err := tx.Entitlements().Create(ctx, fresh); err != nil {
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
			issued = append(issued, fresh.ID())
		}

		result = &TransferResult{
			TransferredIDs: transferred,
			IssuedIDs:      issued,
			NewOwnerID:     in.TargetOwnerID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refund flips a fully unconsumed set to REFUNDED under the same predicate
// as Transfer. The money movement itself belongs to the after-sales flow.
func (t *transferUseCaseImpl) Refund(ctx context.Context, entitlementID uuid.UUID) error {
	return t.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		ents, err := t.lockTransferSet(ctx, tx, entitlementID)
		if err != nil {
			return err
		}

		if err := t.checkTransferable(ctx, tx, ents); err != nil {
			return err
		}

		for _, ent := range ents {
			if err := tx.Entitlements().UpdateStatus(ctx, ent.ID(), entitlement.StatusActive, entitlement.StatusRefunded); err != nil {
				if infra.IsKind(err, infra.KindConflict) {
					return ErrNotTransferable
				}
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
		}
		return nil
	})
}

func (t *transferUseCaseImpl) lockTransferSet(ctx context.Context, tx shared.Tx, id uuid.UUID) ([]*entitlement.Entitlement, error) {
	ents, err := tx.Entitlements().FindSiblingsForUpdate(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrEntitlementNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if len(ents) == 0 {
		return nil, ErrEntitlementNotFound
	}
	return ents, nil
}

func (t *transferUseCaseImpl) checkTransferable(ctx context.Context, tx shared.Tx, ents []*entitlement.Entitlement) error {
	ids := make([]uuid.UUID, len(ents))
	pairs := make([]entitlement.UsagePair, len(ents))
	for i, ent := range ents {
		ids[i] = ent.ID()
		pairs[i] = entitlement.UsagePair{
			RemainingCount: ent.RemainingCount(),
			TotalCount:     ent.TotalCount(),
		}
	}

	successes, err := tx.Reads().SuccessfulRedemptionCount(ctx, ids)
	if err != nil {
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}

	if !entitlement.CanTransferOrRefund(successes, pairs) {
		return ErrNotTransferable
	}
	return nil
}

func (t *transferUseCaseImpl) reissueFor(src *entitlement.Entitlement, newOwner uuid.UUID, now time.Time) (*entitlement.Entitlement, error) {
	id := uuid.New()
	code := entitlement.NewVoucherCode()
	payload := signcode.BuildQRPayload(t.signing.QRSecret, id.String(), code, now.Unix(), uuid.NewString())

	fresh, err := entitlement.NewEntitlement(
		id,
		src.Type(),
		src.ServiceType(),
		src.TotalCount(),
		code,
		payload,
		newOwner,
		src.OrderID(),
		src.PackageInstanceID(),
		src.Scope(),
		src.ValidFrom(),
		src.ValidUntil(),
	)
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return fresh, nil
}
