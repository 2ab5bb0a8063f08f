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
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ethanokamura/catmat/internal/handlers"
	"github.com/ethanokamura/catmat/internal/payments"
	"github.com/ethanokamura/catmat/internal/platform/auth"
	"github.com/ethanokamura/catmat/internal/platform/config"
	"github.com/ethanokamura/catmat/internal/platform/events"
	pfirestore "github.com/ethanokamura/catmat/internal/platform/firestore"
	"github.com/ethanokamura/catmat/internal/platform/idempotency"
	"github.com/ethanokamura/catmat/internal/platform/observability"
	"github.com/ethanokamura/catmat/internal/platform/secrets"
	platformstorage "github.com/ethanokamura/catmat/internal/platform/storage"
	"github.com/ethanokamura/catmat/internal/repositories"
	firestoreRepo "github.com/ethanokamura/catmat/internal/repositories/firestore"
	"github.com/ethanokamura/catmat/internal/services"
)

const jwksFetchTimeout = 5 * time.Second

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

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithClientOptions(firebaseClientOptions(cfg)...))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	adminRepo, err := firestoreRepo.NewAdminRepository(firestoreProvider, cfg.Security.AdminCollection)
	if err != nil {
		logger.Fatal("failed to initialise admin repository", zap.Error(err))
	}
	contactRepo, err := firestoreRepo.NewContactMessageRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise contact repository", zap.Error(err))
	}
	interestRepo, err := firestoreRepo.NewInterestCheckRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise interest check repository", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx, firebaseClientOptions(cfg)...)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	imageStore, err := platformstorage.NewImageStore(
		platformstorage.NewGCSBackend(storageClient),
		cfg.Storage.ImagesBucket,
		platformstorage.WithMaxBytes(cfg.Storage.ImageMaxBytes),
	)
	if err != nil {
		logger.Fatal("failed to initialise image store", zap.Error(err))
	}

	orderEvents, orderTopic, stopEvents := newOrderPublisher(ctx, logger.Named("events"), cfg)
	defer stopEvents()

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: productRepo,
		Images:   imageStore,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	orderDeps := services.OrderServiceDeps{
		Orders: orderRepo,
		Clock:  time.Now,
		Logger: observability.EventLogger(logger.Named("orders")),
	}
	if orderEvents != nil {
		orderDeps.Events = orderEvents
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	var checkoutService services.CheckoutService
	if strings.TrimSpace(cfg.PSP.StripeAPIKey) == "" {
		logger.Warn("stripe api key not configured; checkout disabled")
	} else {
		paymentsLogger := observability.EventLogger(logger.Named("payments"))
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:   cfg.PSP.StripeAPIKey,
			Currency: cfg.PSP.Currency,
			Logger:   payments.StripeLogger(paymentsLogger),
			Clock:    time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		checkoutService, err = services.NewCheckoutService(services.CheckoutServiceDeps{
			Payments:       stripeProvider,
			Currency:       cfg.PSP.Currency,
			PublicOrigin:   cfg.Server.PublicOrigin,
			AllowedOrigins: cfg.Security.AllowedOrigins,
			Logger:         observability.EventLogger(logger.Named("checkout")),
		})
		if err != nil {
			logger.Fatal("failed to initialise checkout service", zap.Error(err))
		}
	}

	var webhookService services.PaymentWebhookService
	if strings.TrimSpace(cfg.PSP.StripeWebhookSecret) == "" {
		logger.Warn("stripe webhook secret not configured; webhooks will fail")
	} else {
		verifier, err := payments.NewStripeWebhookVerifier(cfg.PSP.StripeWebhookSecret)
		if err != nil {
			logger.Fatal("failed to initialise webhook verifier", zap.Error(err))
		}
		webhookService, err = services.NewPaymentWebhookService(services.PaymentWebhookServiceDeps{
			Verifier: verifier,
			Orders:   orderService,
			Logger:   observability.EventLogger(logger.Named("webhooks")),
		})
		if err != nil {
			logger.Fatal("failed to initialise webhook service", zap.Error(err))
		}
	}

	adminService, err := services.NewAdminService(services.AdminServiceDeps{
		Admins: adminRepo,
		Logger: observability.EventLogger(logger.Named("admin")),
	})
	if err != nil {
		logger.Fatal("failed to initialise admin service", zap.Error(err))
	}

	contactService, err := services.NewContactService(services.ContactServiceDeps{
		Messages: contactRepo,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("contact")),
	})
	if err != nil {
		logger.Fatal("failed to initialise contact service", zap.Error(err))
	}
	interestService, err := services.NewInterestCheckService(services.InterestCheckServiceDeps{
		Checks: interestRepo,
		Clock:  time.Now,
		Logger: observability.EventLogger(logger.Named("interest")),
	})
	if err != nil {
		logger.Fatal("failed to initialise interest check service", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreProvider, idempotency.DefaultCollection)
	maintenanceService, err := services.NewMaintenanceService(services.MaintenanceServiceDeps{
		Idempotency:      idempotencyStore,
		CleanupBatchSize: cfg.Idempotency.CleanupBatchSize,
		Clock:            time.Now,
		Logger:           observability.EventLogger(logger.Named("maintenance")),
	})
	if err != nil {
		logger.Fatal("failed to initialise maintenance service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreProvider, orderTopic, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithAdminAuthorizer(adminService))

	jwks := auth.NewJWKSCache(cfg.Maintenance.JWKSURL,
		auth.WithJWKSLogger(logger.Named("auth")),
		auth.WithJWKSHTTPClient(&http.Client{Timeout: jwksFetchTimeout}),
	)
	oidcMiddleware := auth.NewOIDCValidator(jwks, logger.Named("auth")).RequireOIDC(cfg.Maintenance.Audience, cfg.Maintenance.Issuers)

	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	productHandlers := handlers.NewProductHandlers(catalogService)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService, orderService, handlers.WithCheckoutIdempotency(idempotencyMiddleware))
	webhookHandlers := handlers.NewWebhookHandlers(webhookService)
	formHandlers := handlers.NewFormHandlers(contactService, interestService)
	adminHandlers := handlers.NewAdminHandlers(authenticator, catalogService, orderService)
	internalHandlers := handlers.NewInternalHandlers(maintenanceService)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		handlers.CORSMiddleware(cfg.Security.AllowedOrigins),
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithRootWebhookRoutes(webhookHandlers.AliasRoutes),
		handlers.WithContactRoutes(formHandlers.ContactRoutes),
		handlers.WithInterestCheckRoutes(formHandlers.InterestCheckRoutes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
		handlers.WithInternalMiddlewares(oidcMiddleware),
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
		serverLogger.Info("catmat api listening",
			zap.String("version", buildInfo.Version),
			zap.String("environment", buildInfo.Environment),
		)
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
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Secrets.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// newOrderPublisher returns nil when no topic is configured or Pub/Sub is unreachable; order
// events are best-effort.
func newOrderPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (*events.PubSubOrderPublisher, *pubsub.Topic, func()) {
	noop := func() {}
	topicName := strings.TrimSpace(cfg.Events.OrderTopic)
	if topicName == "" || strings.TrimSpace(cfg.Events.ProjectID) == "" {
		logger.Info("order events disabled")
		return nil, nil, noop
	}
	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Warn("pubsub unavailable; order events disabled", zap.Error(err))
		return nil, nil, noop
	}
	topic := client.Topic(topicName)
	publisher, err := events.NewPubSubOrderPublisher(topic)
	if err != nil {
		_ = client.Close()
		logger.Warn("order publisher init failed", zap.Error(err))
		return nil, nil, noop
	}
	return publisher, topic, func() {
		publisher.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
}

func newSystemService(provider *pfirestore.Provider, topic *pubsub.Topic, build services.BuildInfo) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   provider.Ping,
		},
	}
	if topic != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "pubsub",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s not found", topic.ID())
				}
				return nil
			},
		})
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func firebaseClientOptions(cfg config.Config) []option.ClientOption {
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	project := strings.TrimSpace(env["CATMAT_SECRETS_PROJECT_ID"])
	if project == "" {
		project = strings.TrimSpace(env["CATMAT_FIREBASE_PROJECT_ID"])
	}
	return secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
		secrets.WithFallbackFile(env["CATMAT_SECRETS_FALLBACK_FILE"]),
	)
}

// requiredSecretNames enforces Stripe credentials outside local development.
func requiredSecretNames(env map[string]string) []string {
	switch strings.ToLower(strings.TrimSpace(env["CATMAT_SECRETS_ENVIRONMENT"])) {
	case "", "local", "dev", "test":
		return nil
	default:
		return []string{"PSP.StripeAPIKey", "PSP.StripeWebhookSecret"}
	}
}
