// Command api-server serves the storefront REST API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	store "github.com/xenking/pickle-storefront/internal/app"
)

func main() {
	sdkapp.Run(func(ctx context.Context, lg *zap.Logger, t *sdkapp.Telemetry) error {
		cfg, err := store.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		lg.Info("Configuration loaded",
			zap.Int("coupons", len(cfg.CouponRules())),
			zap.Bool("strict_transitions", cfg.Orders.StrictTransitions),
			zap.Int("rate_limit", cfg.RateLimit.Max),
		)
		return store.Run(ctx, lg, t, cfg)
	})
}
