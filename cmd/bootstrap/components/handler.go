package components

import (
	"health-entitlement-engine/internal/handler"
	"health-entitlement-engine/internal/handler/api"
	"health-entitlement-engine/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewEntitlementHandler,
		api.NewPaymentHandler,
		api.NewGenerationHandler,
		api.NewDealerLinkHandler,
		middleware.NewAuthMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)
