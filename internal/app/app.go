package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/domain/checkout"
	"github.com/xenking/bookstore/internal/handler"
	"github.com/xenking/bookstore/internal/repository"
	"github.com/xenking/bookstore/internal/session"
	"github.com/xenking/bookstore/pkg/health"
	"github.com/xenking/bookstore/pkg/httpmiddleware"
)

// Telemetry supplies the OpenTelemetry providers. The go-faster/sdk
// *app.Telemetry satisfies it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for sessions and rate limits.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	books := repository.NewBookRepository(pool)
	profiles := repository.NewProfileRepository(pool)
	orders := repository.NewOrderRepository(pool)
	tx := repository.NewTransactor(pool)
	sessions := session.NewRedisStore(rdb, cfg.Session.TTL)

	// Domain services.
	carts := cart.NewService(books, profiles)
	pipeline, err := checkout.NewPipeline(carts, orders, profiles, tx, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create checkout pipeline")
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.Config{
			CookieName:   cfg.Session.CookieName,
			CookieTTL:    cfg.Session.TTL,
			SecureCookie: cfg.Session.Secure,
		},
		books,
		carts,
		pipeline,
		sessions,
		handler.NewIdentity(handler.IdentityConfig{
			UserHeader:      cfg.Auth.UserHeader,
			SignatureHeader: cfg.Auth.SignatureHeader,
			Secret:          []byte(cfg.Auth.Secret),
		}),
	)

	// Router: health endpoints + API routes on one server.
	router := h.Router(httpmiddleware.RateLimit(rdb, httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Checkout,
		Window: cfg.RateLimit.Window,
		Prefix: "ratelimit:checkout:",
	}))
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		// Detached from ctx so in-flight requests survive the shutdown
		// signal, but carrying the logger for Recovery.
		BaseContext: func(net.Listener) context.Context {
			return zctx.Base(context.Background(), lg)
		},
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(router,
				httpmiddleware.Recovery(),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.LogRequests(),
			),
			"bookstore-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
