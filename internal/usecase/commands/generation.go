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
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound           = errs.New("order not found")
	ErrOrderNotPaid            = errs.New("order is not paid")
	ErrPackageNotFound         = errs.New("package not found")
	ErrEmptyPackage            = errs.New("package has no entitlement items")
	ErrInvalidPackageItem      = errs.New("invalid package item")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

// EntitlementValidityWindow is the fixed lifetime of every generated
// entitlement, anchored at the order's payment time.
const EntitlementValidityWindow = 365 * 24 * time.Hour

type GenerationResult struct {
	OrderID        uuid.UUID
	CreatedCount   int
	AlreadyExisted bool
}

type GenerationCommands interface {
	GenerateForOrder(ctx context.Context, orderID uuid.UUID) (*GenerationResult, error)
}

type generationUseCaseImpl struct {
	uow     shared.UnitOfWork
	clock   clock.Clock
	signing config.SigningConfig
}

func NewGenerationUseCase(uow shared.UnitOfWork, clk clock.Clock, signing config.SigningConfig) GenerationCommands {
	return &generationUseCaseImpl{
		uow:     uow,
		clock:   clk,
		signing: signing,
	}
}

func (g *generationUseCaseImpl) GenerateForOrder(ctx context.Context, orderID uuid.UUID) (*GenerationResult, error) {
	var result *GenerationResult

	err := g.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		order, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrOrderNotFound
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		created, existed, err := generateEntitlements(ctx, tx, order, g.clock.Now(), g.signing)
		if err != nil {
			return err
		}
		result = &GenerationResult{
			OrderID:        orderID,
			CreatedCount:   created,
			AlreadyExisted: existed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// generateEntitlements fans an order out into package instances and their
// entitlements. The caller must hold the order row lock; the existence check
// under that lock makes generation exactly-once per order. Any missing or
// empty package template aborts the whole batch.
func generateEntitlements(
	ctx context.Context,
	tx shared.Tx,
	order *shared.OrderSnapshot,
	now time.Time,
	signing config.SigningConfig,
) (created int, existed bool, err error) {
	if order.PaidAt == nil {
		return 0, false, ErrOrderNotPaid
	}

	exists, err := tx.Reads().HasEntitlementsForOrder(ctx, order.ID)
	if err != nil {
		return 0, false, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if exists {
		return 0, true, nil
	}

	validFrom := *order.PaidAt
	validUntil := validFrom.Add(EntitlementValidityWindow)

	for _, item := range order.Items {
		pkg, err := tx.Reads().PackageByID(ctx, item.PackageID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return 0, false, ErrPackageNotFound
			}
			return 0, false, errs.Mark(err, ErrDatabaseOperationFailed)
		}
		if len(pkg.Items) == 0 {
			return 0, false, ErrEmptyPackage
		}

		scope := entitlement.ServiceScope{
			VenueIDs: pkg.VenueIDs,
			Regions:  pkg.Regions,
		}

		for q := 0; q < item.Quantity; q++ {
			instance := shared.PackageInstance{
				ID:        uuid.New(),
				OrderID:   order.ID,
				PackageID: pkg.ID,
				OwnerID:   order.BuyerID,
			}
			if err := tx.PackageInstances().Create(ctx, instance); err != nil {
				return 0, false, errs.Mark(err, ErrDatabaseOperationFailed)
			}

			for _, pkgItem := range pkg.Items {
				ent, err := buildEntitlement(pkgItem, order, instance.ID, scope, validFrom, validUntil, now, signing)
				if err != nil {
					return 0, false, err
				}
				if err := tx.Entitlements().Create(ctx, ent); err != nil {
					return 0, false, errs.Mark(err, ErrDatabaseOperationFailed)
				}
				created++
			}
		}
	}

	return created, false, nil
}

func buildEntitlement(
	item shared.PackageItemSnapshot,
	order *shared.OrderSnapshot,
	instanceID uuid.UUID,
	scope entitlement.ServiceScope,
	validFrom, validUntil time.Time,
	now time.Time,
	signing config.SigningConfig,
) (*entitlement.Entitlement, error) {
	id := uuid.New()
	code := entitlement.NewVoucherCode()
	payload := signcode.BuildQRPayload(signing.QRSecret, id.String(), code, now.Unix(), uuid.NewString())

	instID := instanceID
	ent, err := entitlement.NewEntitlement(
		id,
		item.EntitlementType,
		item.ServiceType,
		item.TotalCount,
		code,
		payload,
		order.BuyerID,
		order.ID,
		&instID,
		scope,
		validFrom,
		validUntil,
	)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidPackageItem)
	}
	return ent, nil
}
