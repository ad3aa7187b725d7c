package components

import (
	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/infra/idemcache"
	"health-entitlement-engine/internal/infra/payment"
	"health-entitlement-engine/internal/infra/readstore"
	"health-entitlement-engine/internal/infra/uow"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/usecase/queries"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,
		uow.NewPostgresUoW,
		NewEntitlementViewRepoFactory,
		fx.Annotate(
			idemcache.NewOutcomeCache,
			fx.As(new(shared.OutcomeCache)),
		),
		fx.Annotate(
			NewPaymentVerifier,
			fx.As(new(shared.PaymentVerifier)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) db.DBTX {
	return pool
}

func NewEntitlementViewRepoFactory() queries.EntitlementViewRepoFactory {
	return func(d db.DBTX) queries.EntitlementViewRepo {
		return readstore.NewEntitlementReadStore(d)
	}
}

func NewPaymentVerifier(cfg config.Config) (*payment.WechatVerifier, error) {
	return payment.NewWechatVerifier(cfg.WechatPay)
}
