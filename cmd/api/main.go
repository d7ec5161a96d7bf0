package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"shopfront-backend/config"
	"shopfront-backend/internal/delivery/http/middleware"
	v1 "shopfront-backend/internal/delivery/http/v1"
	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/infrastructure/cache"
	"shopfront-backend/internal/infrastructure/events"
	"shopfront-backend/internal/infrastructure/stripe"
	"shopfront-backend/internal/payment"
	"shopfront-backend/internal/repository/postgres"
	"shopfront-backend/internal/usecase"
	"shopfront-backend/pkg/logger"
	"shopfront-backend/pkg/utils"
)

const (
	serviceName    = "shopfront-api"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetSecret(cfg.JWTSecret)

	// Initialize Logger
	logger.Init(serviceName, cfg.Env, cfg.LogLevel)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	pool, err := postgres.NewPgxPool(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("Successfully connected to PostgreSQL via pgx")

	if cfg.DBRunMigrations {
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Database schema applied")
	}

	// Initialize Repositories
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	intentRepo := postgres.NewPaymentIntentRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	// Initialize Cache (In-Memory)
	// Default expiration 5m, cleanup every 10m
	memCache := cache.NewMemoryCache(5*time.Minute, 10*time.Minute)

	// Payment strategies. Cash on delivery is always available; cards need a processor.
	strategies := []payment.Strategy{payment.NewDeferredStrategy(intentRepo)}
	var provider *stripe.Client
	if cfg.StripeSecretKey != "" {
		provider = stripe.NewClient(stripe.Config{
			APIURL:          cfg.StripeAPIURL,
			SecretKey:       cfg.StripeSecretKey,
			WebhookSecret:   cfg.StripeWebhookSecret,
			Timeout:         cfg.PaymentTimeout,
			BreakerFailures: cfg.PaymentBreakerFailure,
			BreakerTimeout:  cfg.PaymentBreakerTimeout,
		})
		strategies = append(strategies, payment.NewCardStrategy(provider, intentRepo, cfg.FrontendURL))
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, card payments and the webhook endpoint are disabled")
	}
	registry := payment.NewRegistry(strategies...)

	// Webhook de-duplication
	var dedup domain.EventDeduplicator
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable at startup, webhook dedup will fail open")
		}
		dedup = cache.NewRedisDeduplicator(rdb, cfg.WebhookDedupTTL)
	} else {
		dedup = cache.NewMemoryDeduplicator(cfg.WebhookDedupTTL)
	}

	// --- Modules Initialization ---
	couponUC := usecase.NewCouponUsecase(couponRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo, couponRepo, couponUC, usecase.CartLimits{
		MaxQuantity: cfg.MaxCartQuantity,
		MaxItems:    cfg.MaxCartItems,
	})
	checkoutUC := usecase.NewCheckoutUsecase(cartRepo, productRepo, couponRepo, orderRepo, outboxRepo, couponUC, registry, txManager, cfg.Currency)
	finalizer := usecase.NewPaymentFinalizer(orderRepo, productRepo, couponRepo, cartRepo, outboxRepo, txManager)
	orderUC := usecase.NewOrderUsecase(orderRepo, productRepo, intentRepo, outboxRepo, txManager, memCache, cfg.CacheStatsTTL)
	paymentUC := usecase.NewPaymentUsecase(orderRepo, intentRepo, productRepo, outboxRepo, registry, finalizer, txManager, memCache, cfg.Currency)
	productUC := usecase.NewProductUsecase(productRepo)

	handlers := v1.Handlers{
		Cart:       v1.NewCartHandler(cartUC),
		Coupon:     v1.NewCouponHandler(couponUC),
		Checkout:   v1.NewCheckoutHandler(checkoutUC),
		Order:      v1.NewOrderHandler(orderUC),
		AdminOrder: v1.NewAdminOrderHandler(orderUC),
		Payment:    v1.NewPaymentHandler(paymentUC),
		Product:    v1.NewProductHandler(productUC),
		Health:     v1.NewHealthHandler(pool),
	}
	if provider != nil {
		webhookUC := usecase.NewWebhookUsecase(provider, intentRepo, orderRepo, outboxRepo, finalizer, dedup, txManager)
		handlers.Webhook = v1.NewWebhookHandler(webhookUC)
	}

	// --- Background workers ---
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, order events are written to the log")
	}
	poller := events.NewOutboxPoller(outboxRepo, txManager, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	sweeper := usecase.NewOrderSweeper(orderUC, orderRepo, cfg.OrderPaymentTTL, cfg.OrderSweepInterval)

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		poller.Run(ctx)
	}()
	if provider != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Run(ctx)
		}()
	}

	// Set up Router
	mux := http.NewServeMux()
	v1.RegisterRoutes(mux, handlers)

	rateLimiter := middleware.NewRateLimiter(
		ctx,
		rate.Limit(cfg.RateLimitRPS),
		cfg.RateLimitBurst,
		time.Minute,   // cleanup period
		3*time.Minute, // client TTL
		"/api/v1/webhooks/", "/health", "/api/v1/health", "/metrics",
	)

	// Metrics sits next to the mux so it sees the matched route pattern
	var handler http.Handler = middleware.Metrics(mux)
	handler = rateLimiter.Middleware()(handler)
	handler = middleware.RequestLogger(handler)
	handler = middleware.NewCORSMiddleware(cfg.AllowedOrigin)(handler)
	handler = gziphandler.GzipHandler(handler)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()
	logger.ServiceStart(serviceVersion, cfg.Port)

	<-ctx.Done()
	log.Info().Msg("Server shutting down...")

	rateLimiter.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	workers.Wait()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close event publisher")
	}
	logger.ServiceStop()
}
