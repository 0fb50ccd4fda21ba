package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/storefront/internal/apiclient"
	"github.com/tuanvumaihuynh/storefront/internal/auth"
	"github.com/tuanvumaihuynh/storefront/internal/config"
	"github.com/tuanvumaihuynh/storefront/internal/event"
	"github.com/tuanvumaihuynh/storefront/internal/http"
	"github.com/tuanvumaihuynh/storefront/internal/log"
	"github.com/tuanvumaihuynh/storefront/internal/relay"
	"github.com/tuanvumaihuynh/storefront/internal/repository"
	"github.com/tuanvumaihuynh/storefront/internal/service"
	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
	"github.com/tuanvumaihuynh/storefront/internal/storage/mq"
	"github.com/tuanvumaihuynh/storefront/internal/telemetry"
	"github.com/tuanvumaihuynh/storefront/internal/web"
	"github.com/tuanvumaihuynh/storefront/pkg/cmdutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running standalone application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.Local = time.UTC

	type Config struct {
		Log      config.Log
		Postgres config.Postgres
		HTTP     config.HTTP
		Auth     config.Auth
		Rating   config.Rating
		Web      config.Web
		Relay    config.Relay
		Kafka    config.Kafka
		Otel     config.Otel
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	pgxPool, err := db.NewPgxPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("error creating pgx pool: %w", err)
	}
	defer pgxPool.Close()

	dbClient := db.NewClient(pgxPool)

	kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
	if err != nil {
		return fmt.Errorf("error creating kafka producer: %w", err)
	}
	defer kafkaProducer.Close()

	kafkaConsumer, err := mq.NewKafkaConsumer(ctx, cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("error creating kafka consumer: %w", err)
	}
	defer kafkaConsumer.Close()

	productRepository := repository.NewProductRepository(dbClient)
	userRepository := repository.NewUserRepository(dbClient)
	outboxMsgRepository := repository.NewOutboxMsgRepository(dbClient)

	tokens := auth.NewTokens(cfg.Auth)

	productService := service.NewProductService(service.ProductServiceConfig{
		QueryTimeout: cfg.Postgres.QueryTimeout,
		Rating:       cfg.Rating,
	}, dbClient, productRepository, outboxMsgRepository)
	authService := service.NewAuthService(cfg.Postgres.QueryTimeout, userRepository, tokens)

	var extraRoutes []func(chi.Router)
	if cfg.HTTP.Web {
		routes, err := newWebRoutes(cfg.Web, logger)
		if err != nil {
			return fmt.Errorf("error creating web ui: %w", err)
		}
		extraRoutes = append(extraRoutes, routes)
	}

	httpService, err := http.New(cfg.HTTP, logger, productService, authService, tokens, dbClient, extraRoutes...)
	if err != nil {
		return fmt.Errorf("error creating http service: %w", err)
	}

	interruptChan := cmdutil.InterruptChan()
	var wg sync.WaitGroup

	wg.Go(func() {
		svc := event.New(logger, kafkaConsumer)
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running event service: %w", err))
		}
		logger.InfoContext(ctx, "event service started")

		<-interruptChan

		logger.InfoContext(ctx, "event service is shutting down")
		cleanup()

		logger.InfoContext(ctx, "event service is stopped")
	})

	wg.Go(func() {
		cleanup, err := httpService.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running http service: %w", err))
		}

		logger.InfoContext(ctx, "http service started",
			slog.String("address", fmt.Sprintf(":%d", cfg.HTTP.Port)),
			slog.Bool("web", cfg.HTTP.Web),
		)

		<-interruptChan

		logger.InfoContext(ctx, "http service is shutting down")
		if err := cleanup(ctx); err != nil {
			logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
		}

		logger.InfoContext(ctx, "http service is stopped")
	})

	wg.Go(func() {
		svc := relay.NewService(cfg.Relay, logger, dbClient, outboxMsgRepository, kafkaProducer)
		cleanup := svc.Run(ctx)
		logger.InfoContext(ctx, "relay service started")

		<-interruptChan

		logger.InfoContext(ctx, "relay service is shutting down")
		cleanup()

		logger.InfoContext(ctx, "relay service is stopped")
	})

	wg.Wait()

	return nil
}

// newWebRoutes wires the web UI against the public API at cfg.APIBaseURL.
func newWebRoutes(cfg config.Web, logger *slog.Logger) (func(chi.Router), error) {
	client := apiclient.New(cfg)
	events := web.NewEvents()

	catalog, err := web.NewCatalog(client, cfg.CatalogTTL, service.TopRatedLimit, events)
	if err != nil {
		return nil, fmt.Errorf("new catalog: %w", err)
	}

	if cfg.SessionKey == "" {
		logger.Warn("WEB_SESSION_KEY is not set, sessions will not survive a restart")
	}

	h, err := web.NewHandler(logger, client, web.NewSessionStore(cfg), events, catalog)
	if err != nil {
		return nil, fmt.Errorf("new web handler: %w", err)
	}

	return h.Register, nil
}
