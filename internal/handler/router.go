package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"health-entitlement-engine/internal/handler/api"
	"health-entitlement-engine/internal/handler/middleware"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/token"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	entitlementHandler *api.EntitlementHandler,
	paymentHandler *api.PaymentHandler,
	generationHandler *api.GenerationHandler,
	dealerLinkHandler *api.DealerLinkHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, entitlementHandler, paymentHandler, generationHandler, dealerLinkHandler, authMiddleware)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	entitlementHandler *api.EntitlementHandler,
	paymentHandler *api.PaymentHandler,
	generationHandler *api.GenerationHandler,
	dealerLinkHandler *api.DealerLinkHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	engine.GET("/health", healthCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := engine.Group("/api")
	{
		payments := apiGroup.Group("/payments")
		{
			addRoutes(payments, []route{
				{
					Method:  http.MethodPost,
					Path:    "/wechat/notify",
					Handler: paymentHandler.WechatNotify,
					Mw:      []gin.HandlerFunc{middleware.RateLimit(50, 100)},
				},
			})
		}

		entitlements := apiGroup.Group("/entitlements")
		entitlements.Use(authMiddleware.RequireAuth())
		{
			addRoutes(entitlements, []route{
				{Method: http.MethodGet, Path: "", Handler: entitlementHandler.ListEntitlements},
				{Method: http.MethodGet, Path: "/:id", Handler: entitlementHandler.GetEntitlement},
				{Method: http.MethodGet, Path: "/:id/records", Handler: entitlementHandler.ListRecords},
				{Method: http.MethodPost, Path: "/:id/transfer", Handler: entitlementHandler.Transfer},
				{
					Method:  http.MethodPost,
					Path:    "/:id/redeem",
					Handler: entitlementHandler.Redeem,
					Mw:      []gin.HandlerFunc{authMiddleware.RequireRoleAtLeast(token.RoleOperator)},
				},
				{
					Method:  http.MethodPost,
					Path:    "/:id/refund",
					Handler: entitlementHandler.Refund,
					Mw:      []gin.HandlerFunc{authMiddleware.RequireRoleAtLeast(token.RoleAdmin)},
				},
			})
		}

		orders := apiGroup.Group("/orders")
		orders.Use(authMiddleware.RequireAuth())
		orders.Use(authMiddleware.RequireRoleAtLeast(token.RoleAdmin))
		{
			addRoutes(orders, []route{
				{Method: http.MethodPost, Path: "/:id/entitlements", Handler: generationHandler.GenerateForOrder},
			})
		}

		dealerLinks := apiGroup.Group("/dealer-links")
		{
			addRoutes(dealerLinks, []route{
				{Method: http.MethodPost, Path: "/verify", Handler: dealerLinkHandler.Verify},
			})

			signRequired := dealerLinks.Group("")
			signRequired.Use(authMiddleware.RequireAuth())
			signRequired.Use(authMiddleware.RequireRoleAtLeast(token.RoleAdmin))
			addRoutes(signRequired, []route{
				{Method: http.MethodPost, Path: "", Handler: dealerLinkHandler.Sign},
			})
		}
	}
}

// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
