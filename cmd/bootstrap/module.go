package bootstrap

import (
	"health-entitlement-engine/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	DBModule,
	RedisModule,
	TokenModule,
	components.PersistenceModule,
	components.UseCaseModule,
	components.HandlerModule,
)
