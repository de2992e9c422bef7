package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/coupon"
	"github.com/xenking/pickle-storefront/internal/domain/order"
	"github.com/xenking/pickle-storefront/internal/domain/pricing"
	"github.com/xenking/pickle-storefront/internal/domain/product"
	"github.com/xenking/pickle-storefront/internal/domain/support"
	"github.com/xenking/pickle-storefront/internal/domain/wishlist"
	"github.com/xenking/pickle-storefront/internal/handler"
	"github.com/xenking/pickle-storefront/internal/storage/postgres"
	"github.com/xenking/pickle-storefront/pkg/health"
	"github.com/xenking/pickle-storefront/pkg/httpmiddleware"
)

const serviceName = "store-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	root, err := newHandler(ctx, pool, healthSvc, m, cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           root,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHandler wires repositories, services and the API router behind the
// shared middleware chain. Health endpoints are served next to the API.
func newHandler(
	ctx context.Context,
	pool *pgxpool.Pool,
	healthSvc *health.Health,
	t httpmiddleware.TelemetryProvider,
	cfg *Config,
) (http.Handler, error) {
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	coupons, err := coupon.LoadTable(ctx, cfg.CouponRules(), postgres.NewCouponRepository(pool))
	if err != nil {
		return nil, errors.Wrap(err, "load coupons")
	}
	zctx.From(ctx).Info("Coupons loaded", zap.Int("count", coupons.Len()))

	orderService, err := order.NewService(
		cartRepo,
		coupons,
		pricing.NewCalculator(cfg.PricingParams()),
		orderRepo,
		order.Config{StrictTransitions: cfg.Orders.StrictTransitions},
		order.Options{
			MeterProvider:  t.MeterProvider(),
			TracerProvider: t.TracerProvider(),
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	h := handler.New(handler.Services{
		Products:  product.NewService(productRepo),
		Carts:     cart.NewService(cartRepo, productRepo),
		Wishlists: wishlist.NewService(postgres.NewWishlistRepository(pool), productRepo),
		Orders:    orderService,
		Support:   support.NewService(postgres.NewSupportRepository(pool), orderRepo),
	}, handler.NewAuthenticator([]byte(cfg.JWTSecret)))

	api := handler.NewServer(h, handler.Config{
		CORSOrigins:      cfg.CORS.Origins,
		AllowCredentials: cfg.CORS.AllowCredentials,
		BodyLimit:        cfg.BodyLimit,
		RateLimit:        cfg.RateLimit.Max,
		RateWindow:       cfg.RateLimit.Window,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	healthPaths := []string{"/livez", "/readyz"}
	return httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument(serviceName, t, healthPaths...),
		httpmiddleware.LogRequests(healthPaths...),
	), nil
}
