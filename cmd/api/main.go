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
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/foodhub/api/internal/di"
	"github.com/foodhub/api/internal/handlers"
	"github.com/foodhub/api/internal/platform/auth"
	"github.com/foodhub/api/internal/platform/config"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/platform/idempotency"
	"github.com/foodhub/api/internal/platform/observability"
	"github.com/foodhub/api/internal/platform/push"
	"github.com/foodhub/api/internal/platform/ratelimit"
	"github.com/foodhub/api/internal/platform/realtime"
	"github.com/foodhub/api/internal/platform/secrets"
	"github.com/foodhub/api/internal/repositories"
	firestoreRepo "github.com/foodhub/api/internal/repositories/firestore"
	"github.com/foodhub/api/internal/services"
)

const meterName = "github.com/foodhub/api"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	level, _ := config.Lookup("LOG_LEVEL")
	baseLogger, err := observability.NewLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firebaseApp, err := auth.NewFirebaseApp(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase app", zap.Error(err))
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, firebaseApp)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, firestoreClientOptions(cfg)...)

	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	health, err := repositories.NewDependencyHealthRepository(healthChecks(firestoreProvider, redisClient))
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	registry, err := firestoreRepo.NewRegistry(firestoreProvider, health)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	rooms, closeRooms, err := newRoomPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise realtime transport", zap.Error(err))
	}
	defer closeRooms()

	deps := di.Deps{
		Rooms:  rooms,
		Logger: logger,
		Meter:  otel.Meter(meterName),
		Build:  buildInfoFromEnv(cfg, startedAt),
	}
	if cfg.Notifications.PushEnabled {
		sender, err := push.NewFCMSender(ctx, firebaseApp)
		if err != nil {
			logger.Warn("push notifications disabled", zap.Error(err))
		} else {
			deps.Push = sender
		}
	}

	container, err := di.NewContainer(ctx, cfg, registry, deps)
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}
	svc := container.Services

	limiter, store := orderGuards(cfg, redisClient)
	orderHandlers := handlers.NewOrderHandlers(svc.Orders,
		handlers.WithOrderRateLimit(handlers.RateLimit(limiter, "orders")),
		handlers.WithOrderIdempotency(idempotency.Middleware(store,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithMethods(http.MethodPost),
			idempotency.WithLogger(logger.Named("idempotency")),
		)),
	)
	meHandlers := handlers.NewMeHandlers(svc.Users, svc.Addresses)
	catalogHandlers := handlers.NewCatalogHandlers(svc.DeliveryAreas, svc.Rates, svc.Coupons)
	itemHandlers := handlers.NewItemHandlers(svc.Items)
	adminHandlers := handlers.NewAdminHandlers(svc.Coupons, svc.DeliveryAreas, svc.Notifications)

	healthOpts := []handlers.HealthOption{}
	if svc.System != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(svc.System))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(traceProjectID(cfg)),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithCORS(cfg.CORS.AllowedOrigins...),
		handlers.WithRedactedServerErrors(cfg.Production()),
		handlers.WithAuthenticator(authenticator),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithPublicRoutes(catalogHandlers.PublicRoutes),
		handlers.WithCustomerRoutes(orderHandlers.CustomerRoutes, meHandlers.Routes, catalogHandlers.CustomerRoutes),
		handlers.WithVendorRoutes(orderHandlers.VendorRoutes, itemHandlers.VendorRoutes),
		handlers.WithDeliveryRoutes(orderHandlers.DeliveryRoutes),
		handlers.WithAdminRoutes(orderHandlers.AdminRoutes, adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	container.Start(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("foodhub api listening", zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	// Pending notifications drain before the repositories close.
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, _ := config.Lookup(key)
		return strings.TrimSpace(value)
	}

	project := lookup("API_SECRETS_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallback := lookup("API_SECRETS_FALLBACK_FILE")
	if fallback == "" {
		fallback = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
		secrets.WithFallbackFile(fallback),
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func firestoreClientOptions(cfg config.Config) []pfirestore.ProviderOption {
	if cfg.Firebase.CredentialsFile == "" || cfg.Firestore.EmulatorHost != "" {
		return nil
	}
	return []pfirestore.ProviderOption{
		pfirestore.WithClientOptions(option.WithCredentialsFile(cfg.Firebase.CredentialsFile)),
	}
}

func healthChecks(provider *pfirestore.Provider, redisClient *redis.Client) []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{{
		Name:     "firestore",
		Critical: true,
		Check:    firestoreRepo.PingCheck(provider),
	}}
	if redisClient != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return checks
}

// orderGuards selects Redis backed throttling and replay protection when Redis is configured.
func orderGuards(cfg config.Config, redisClient *redis.Client) (ratelimit.Limiter, idempotency.Store) {
	if redisClient == nil {
		var limiter ratelimit.Limiter
		if l := ratelimit.NewMemoryLimiter(cfg.RateLimits.OrdersPerMinute, time.Minute, nil); l != nil {
			limiter = l
		}
		return limiter, idempotency.NewMemoryStore()
	}
	limiter := ratelimit.NewRedisLimiter(redisClient, cfg.RateLimits.OrdersPerMinute, time.Minute,
		ratelimit.WithKeyPrefix("foodhub:ratelimit"))
	return limiter, idempotency.NewRedisStore(redisClient, "foodhub:idempotency")
}

func newRoomPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (services.RoomPublisher, func(), error) {
	switch cfg.Realtime.Transport {
	case config.TransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.Firebase.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		publisher, err := realtime.NewPubSubRoomPublisher(client.Topic(cfg.Realtime.Topic))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return publisher, func() {
			publisher.Stop()
			if err := client.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}, nil
	case config.TransportKafka:
		publisher, err := realtime.NewKafkaRoomPublisher(realtime.NewKafkaWriter(cfg.Realtime.KafkaBrokers, cfg.Realtime.Topic))
		if err != nil {
			return nil, nil, err
		}
		return publisher, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka writer close error", zap.Error(err))
			}
		}, nil
	default:
		logger.Warn("realtime transport disabled; room events are discarded")
		return realtime.NewDiscardPublisher(observability.EventLogger(logger, "realtime")), func() {}, nil
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	lookup := func(key, fallback string) string {
		if value, _ := config.Lookup(key); strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}
	return services.BuildInfo{
		Version:     lookup("API_BUILD_VERSION", "dev"),
		CommitSHA:   lookup("API_BUILD_COMMIT_SHA", "unknown"),
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
