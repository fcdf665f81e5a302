package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/incident"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool, migrating first when enabled
	pool, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Cart snapshots live in Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Carts keep working in memory for the request; persistence failures
		// are logged by the cart store.
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
	}

	m := metrics.New()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	reviewRepo := repository.NewReviewRepository(pool, logger)
	outboxRepo := repository.NewOutboxRepository(pool, logger)

	incidents := newIncidentRecorder(ctx, cfg, logger)

	// Payment gateway behind a circuit breaker
	stripeGateway := gateway.NewStripeGateway(cfg.Gateway.SecretKey, cfg.Gateway.WebhookSecret, logger)
	gw := gateway.WithBreaker(stripeGateway, gateway.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.Gateway.BreakerFailures),
		OpenTimeout:         time.Duration(cfg.Gateway.BreakerTimeout) * time.Second,
	}, logger)

	builder := checkout.NewBuilder(productRepo, checkout.Config{
		Currency:          cfg.Gateway.Currency,
		PublicBaseURL:     cfg.Gateway.PublicBaseURL,
		ShippingCountries: cfg.Gateway.ShippingCountries,
	}, logger)

	cartBackend := cart.NewRedisBackend(redisClient, cfg.Redis.CartExpiry())

	// Initialize services
	productService := service.NewProductService(productRepo, logger)
	cartService := service.NewCartService(cartBackend, productService, logger)
	orderService := service.NewOrderService(orderRepo, outboxRepo, incidents, m, logger)
	checkoutService := service.NewCheckoutService(builder, gw, stripeGateway, orderService, cartBackend, m, logger)
	reviewService := service.NewReviewService(reviewRepo, outboxRepo, orderService, m, logger)

	// Initialize HTTP handlers
	handlers := router.Handlers{
		Product:  handler.NewProductHandler(productService, logger),
		Cart:     handler.NewCartHandler(cartService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
		Review:   handler.NewReviewHandler(reviewService, logger),
		Webhook:  handler.NewWebhookHandler(checkoutService, logger),
	}

	// Initialize router
	mux := router.New(handlers, router.Keys{
		APIKey:      cfg.Auth.APIKey,
		AdminAPIKey: cfg.Auth.AdminAPIKey,
	}, m, logger)

	// Outbox relay to Kafka, when brokers are configured
	var wg sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()

		relay := events.NewRelay(outboxRepo, publisher, events.Topics{
			Reviews: cfg.Kafka.ReviewsTopic,
			Orders:  cfg.Kafka.OrdersTopic,
		}, time.Duration(cfg.Kafka.PollInterval)*time.Second, m, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	} else {
		logger.Info().Msg("kafka brokers not configured, events stay in the outbox")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	cancel()
	wg.Wait()

	return nil
}

// newIncidentRecorder archives reconciliation incidents in S3 when enabled,
// falling back to the local directory.
func newIncidentRecorder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) incident.Recorder {
	fileRecorder := incident.NewFileRecorder(cfg.Incident.Dir, logger)

	if !cfg.S3.Enabled {
		logger.Info().Str("dir", cfg.Incident.Dir).Msg("using local file system for incidents (S3 disabled)")
		return fileRecorder
	}

	s3Recorder, err := incident.NewS3Recorder(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 recorder, falling back to local file system only")
		return fileRecorder
	}

	return incident.NewFallbackRecorder(s3Recorder, fileRecorder, logger)
}
