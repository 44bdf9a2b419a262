package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookline/scheduling/internal/availability"
	"github.com/bookline/scheduling/internal/booking"
	"github.com/bookline/scheduling/internal/handlers"
	"github.com/bookline/scheduling/internal/outbox"
	"github.com/bookline/scheduling/internal/slots"
	"github.com/bookline/scheduling/internal/storage"
	"github.com/bookline/scheduling/libs/config"
	"github.com/bookline/scheduling/libs/db"
	"github.com/bookline/scheduling/libs/httpx"
	"github.com/bookline/scheduling/libs/kafkax"
	otelx "github.com/bookline/scheduling/libs/otel"
	"github.com/bookline/scheduling/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	bookingStore := storage.NewBookingStore(pool, outboxRepo)
	ruleRepo := storage.NewRuleRepository(pool)
	catalog := storage.NewCatalogRepository(pool)

	resolver := availability.NewResolver(ruleRepo)
	grid := slots.NewGenerator(resolver, bookingStore, catalog)
	guard := booking.NewGuard(bookingStore, resolver, catalog, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	handlers.NewAvailabilityHandler(grid, ruleRepo, logger).Routes(mux)
	handlers.NewBookingHandler(guard, bookingStore, logger).Routes(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 30*time.Second)),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Authorization", handlers.TenantHeader},
			MaxAge:         10 * time.Minute,
		}))
	}
	rateLimit := config.Int("RATE_LIMIT", 120)
	rateWindow := config.Duration("RATE_LIMIT_WINDOW", time.Minute)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, rateWindow, service)
		middlewares = append(middlewares, limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(rateLimit, rateWindow).Middleware())
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
