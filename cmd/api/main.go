package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spokeworks/api/internal/events"
	"github.com/spokeworks/api/internal/handlers"
	"github.com/spokeworks/api/internal/notifications"
	"github.com/spokeworks/api/internal/payments"
	"github.com/spokeworks/api/internal/platform/auth"
	"github.com/spokeworks/api/internal/platform/config"
	"github.com/spokeworks/api/internal/platform/observability"
	"github.com/spokeworks/api/internal/repositories/postgres"
	"github.com/spokeworks/api/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	registry := postgres.NewRegistry(db)
	defer func() {
		if err := registry.Close(context.Background()); err != nil {
			logger.Warn("database close failed", zap.Error(err))
		}
	}()

	tokenService, err := auth.NewTokenService(auth.TokenServiceConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}
	authenticator := auth.NewAuthenticator(tokenService)

	serviceLogger := observability.ServiceLogger(logger)

	gateway, err := buildPaymentGateway(cfg.Payments, serviceLogger)
	if err != nil {
		return fmt.Errorf("init payment providers: %w", err)
	}

	notifier, err := buildNotifier(cfg.Notifications, serviceLogger)
	if err != nil {
		return fmt.Errorf("init notifications: %w", err)
	}

	var publisher services.OrderEventPublisher
	if len(cfg.Events.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaPublisherConfig{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		})
		if err != nil {
			return fmt.Errorf("init event publisher: %w", err)
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("event publisher close failed", zap.Error(err))
			}
		}()
		publisher = kafkaPublisher
	} else {
		logger.Info("kafka brokers not configured, order events disabled")
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     registry.Orders(),
		UnitOfWork: registry,
		Events:     publisher,
		Logger:     serviceLogger,
	})
	if err != nil {
		return fmt.Errorf("init order service: %w", err)
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:             registry.Orders(),
		Users:              registry.Users(),
		Gateway:            gateway,
		Notifier:           notifier,
		UnitOfWork:         registry,
		Events:             publisher,
		Logger:             serviceLogger,
		SettlementCurrency: cfg.Payments.SettlementCurrency,
	})
	if err != nil {
		return fmt.Errorf("init payment service: %w", err)
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:  registry.Users(),
		Tokens: tokenService,
		Logger: serviceLogger,
	})
	if err != nil {
		return fmt.Errorf("init user service: %w", err)
	}

	bikeService, err := services.NewBikeService(services.BikeServiceDeps{
		Bikes:  registry.Bikes(),
		Logger: serviceLogger,
	})
	if err != nil {
		return fmt.Errorf("init bike service: %w", err)
	}

	authHandlers := handlers.NewAuthHandlers(userService,
		handlers.WithLoginRateLimit(10, time.Minute, time.Now),
	)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, paymentService)
	bikeHandlers := handlers.NewBikeHandlers(authenticator, bikeService)
	userHandlers := handlers.NewUserHandlers(authenticator, userService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthPing(registry.Health().Ping),
		)),
		handlers.WithMetricsHandler(observability.MetricsHandler()),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithBikeRoutes(bikeHandlers.Routes),
		handlers.WithUserRoutes(userHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func buildPaymentGateway(cfg config.PaymentsConfig, logger func(ctx context.Context, event string, fields map[string]any)) (*payments.Manager, error) {
	providers := make(map[string]payments.Provider)

	if cfg.OmiseSecretKey != "" {
		omise, err := payments.NewOmiseProvider(payments.OmiseProviderConfig{
			SecretKey: cfg.OmiseSecretKey,
			BaseURL:   cfg.OmiseBaseURL,
			Logger:    payments.OmiseLogger(logger),
		})
		if err != nil {
			return nil, err
		}
		providers["omise"] = omise
	}

	if cfg.StripeAPIKey != "" {
		stripe, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.StripeAPIKey,
			Logger: payments.StripeLogger(logger),
		})
		if err != nil {
			return nil, err
		}
		providers["stripe"] = stripe
	}

	return payments.NewManager(providers,
		payments.WithDefaultProvider(cfg.DefaultProvider),
		payments.WithCurrencyRoutes(cfg.CurrencyRoutes),
	)
}

func buildNotifier(cfg config.NotificationsConfig, logger func(ctx context.Context, event string, fields map[string]any)) (notifications.Gateway, error) {
	if cfg.LineChannelToken == "" {
		return notifications.NoopGateway{}, nil
	}
	return notifications.NewLineGateway(notifications.LineGatewayConfig{
		ChannelToken: cfg.LineChannelToken,
		PushURL:      cfg.LinePushURL,
		Logger:       notifications.LineLogger(logger),
	})
}
