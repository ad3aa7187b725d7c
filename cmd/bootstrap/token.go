package bootstrap

import (
	"time"

	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/token"

	"go.uber.org/fx"
)

var TokenModule = fx.Module("token",
	fx.Provide(
		NewTokenService,
	),
)

func NewTokenService(cfg config.Config) *token.Service {
	duration, err := time.ParseDuration(cfg.Token.Duration)
	if err != nil {
		panic("invalid TOKEN_DURATION: " + err.Error())
	}

	return token.NewService(cfg.Token.Secret, duration)
}
