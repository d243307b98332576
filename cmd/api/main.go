package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/threadcart/api/internal/handlers"
	"github.com/threadcart/api/internal/jobs"
	"github.com/threadcart/api/internal/platform/config"
	pfirestore "github.com/threadcart/api/internal/platform/firestore"
	"github.com/threadcart/api/internal/platform/observability"
	firestoreRepo "github.com/threadcart/api/internal/repositories/firestore"
	"github.com/threadcart/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", verr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orders, err := firestoreRepo.NewOrderRepository(firestoreProvider, firestoreRepo.WithCollection(cfg.Collections.Orders))
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	reviews, err := firestoreRepo.NewReviewRepository(firestoreProvider, firestoreRepo.WithCollection(cfg.Collections.Reviews))
	if err != nil {
		logger.Fatal("failed to initialise review repository", zap.Error(err))
	}
	carts, err := firestoreRepo.NewCartRepository(firestoreProvider, firestoreRepo.WithCollection(cfg.Collections.Carts))
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	catalog, err := firestoreRepo.NewCatalogRepository(firestoreProvider, firestoreRepo.WithCollection(cfg.Collections.Products))
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	identity, err := firestoreRepo.NewIdentityRepository(firestoreProvider, firestoreRepo.WithCollection(cfg.Collections.Users))
	if err != nil {
		logger.Fatal("failed to initialise identity repository", zap.Error(err))
	}

	var (
		orderEvents  services.OrderEventPublisher
		reviewEvents services.ReviewEventPublisher
		pubsubClient *pubsub.Client
		ordersTopic  *pubsub.Topic
	)
	if cfg.Features.EnableEvents && cfg.PubSub.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		ordersTopic = pubsubClient.Topic(cfg.PubSub.OrdersTopic)
		reviewsTopic := pubsubClient.Topic(cfg.PubSub.ReviewsTopic)

		orderEvents, err = jobs.NewPubSubOrderPublisher(ordersTopic)
		if err != nil {
			logger.Fatal("failed to initialise order publisher", zap.Error(err))
		}
		reviewEvents, err = jobs.NewPubSubReviewPublisher(reviewsTopic)
		if err != nil {
			logger.Fatal("failed to initialise review publisher", zap.Error(err))
		}
	}

	var metrics *observability.APIMetrics
	if cfg.Features.EnableMetrics {
		metrics, err = observability.NewAPIMetrics()
		if err != nil {
			logger.Fatal("failed to initialise metrics", zap.Error(err))
		}
	}

	policy := bluemonday.StrictPolicy()
	sanitize := func(value string) string {
		return strings.TrimSpace(policy.Sanitize(value))
	}
	serviceLogger := observability.ServiceLogger(logger.Named("services"))

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    orders,
		Catalog:   catalog,
		Identity:  identity,
		Sanitizer: sanitize,
		Events:    orderEvents,
		Logger:    serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	reviewService, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:   reviews,
		Orders:    orders,
		Catalog:   catalog,
		Identity:  identity,
		Sanitizer: sanitize,
		Events:    reviewEvents,
		Logger:    serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise review service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:  carts,
		Logger: serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderHandlers := handlers.NewOrderHandlers(orderService, metrics)
	reviewHandlers := handlers.NewReviewHandlers(reviewService, metrics)
	cartHandlers := handlers.NewCartHandlers(cartService, metrics)

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthBuildInfo(handlers.BuildInfo{
			Version:     envOrDefault("API_BUILD_VERSION", "dev"),
			CommitSHA:   envOrDefault("API_BUILD_COMMIT_SHA", "unknown"),
			Environment: envOrDefault("API_ENVIRONMENT", "local"),
			StartedAt:   startedAt,
		}),
		handlers.WithReadinessCheck("firestore", func(ctx context.Context) error {
			iter := firestoreClient.Collection(cfg.Collections.Orders).Limit(1).Documents(ctx)
			defer iter.Stop()
			_, err := iter.GetAll()
			return err
		}),
	}
	if ordersTopic != nil {
		topic := ordersTopic
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("pubsub", func(ctx context.Context) error {
			ok, err := topic.Exists(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("topic %s does not exist", topic.ID())
			}
			return nil
		}))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithProductRoutes(reviewHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("threadcart api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if ordersTopic != nil {
		ordersTopic.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
