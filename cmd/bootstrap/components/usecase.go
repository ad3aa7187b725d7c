package components

import (
	"health-entitlement-engine/internal/pkg/clock"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/usecase/commands"
	"health-entitlement-engine/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	func(cfg config.Config) config.SigningConfig {
		return cfg.Signing
	},
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewGenerationUseCase,
		commands.NewRedemptionUseCase,
		commands.NewTransferUseCase,
		commands.NewPaymentUseCase,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewEntitlementQueries,
	),
)
