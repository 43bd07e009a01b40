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

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/leadpilot/golang_services/internal/platform/cache"
	"github.com/leadpilot/golang_services/internal/platform/config"
	"github.com/leadpilot/golang_services/internal/platform/database"
	"github.com/leadpilot/golang_services/internal/platform/logger"
	"github.com/leadpilot/golang_services/internal/platform/messagebroker"

	"github.com/leadpilot/golang_services/internal/dispatch/app"
	"github.com/leadpilot/golang_services/internal/dispatch/dispatcher"
	"github.com/leadpilot/golang_services/internal/dispatch/domain"
	"github.com/leadpilot/golang_services/internal/dispatch/ratelimit"
	"github.com/leadpilot/golang_services/internal/dispatch/render"
	"github.com/leadpilot/golang_services/internal/dispatch/repository/postgres"
	"github.com/leadpilot/golang_services/internal/dispatch/schedule"
	transporthttp "github.com/leadpilot/golang_services/internal/dispatch/transport/http"
)

const (
	serviceName     = "dispatch-service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("Starting service...")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	redisClient, err := cache.NewRedisClient(mainCtx, cfg.RedisURL)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("Redis connection initialized")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	log.Info("NATS connection initialized")

	httpDispatcher, err := dispatcher.NewHTTPDispatcher(log, cfg.DispatchEndpoint,
		time.Duration(cfg.DispatchTimeoutSeconds)*time.Second, cfg.DispatchAllowInsecure, nil)
	if err != nil {
		log.Error("Invalid dispatch endpoint", "error", err)
		os.Exit(1)
	}

	campaignRepo := postgres.NewPgCampaignRepository(dbPool, log)
	queueRepo := postgres.NewPgQueueItemRepository(dbPool, log)
	contactRepo := postgres.NewPgContactRepository(dbPool, log)
	configRepo := postgres.NewPgSendingConfigRepository(dbPool)
	logRepo := postgres.NewPgDispatchLogRepository(dbPool)
	templateRepo := postgres.NewPgTemplateRepository(dbPool)

	scheduler := app.NewCampaignScheduler(app.SchedulerDeps{
		Campaigns:  campaignRepo,
		Queue:      queueRepo,
		Contacts:   contactRepo,
		Configs:    configRepo,
		Logs:       logRepo,
		Rates:      ratelimit.NewRedisTracker(redisClient, log),
		Dispatcher: httpDispatcher,
		Renderer:   render.NewTemplateRenderer(templateRepo),
		Publisher:  natsClient,
		Calculator: schedule.NewCalculator(),
		Logger:     log,
		DefaultConfig: domain.SendingConfig{
			BaseIntervalSeconds: cfg.DefaultIntervalSeconds,
			HourlyCap:           cfg.DefaultHourlyCap,
			DailyCap:            cfg.DefaultDailyCap,
			AllowedStart:        cfg.DefaultAllowedStart,
			AllowedEnd:          cfg.DefaultAllowedEnd,
			AllowedDays:         cfg.AllowedDayTokens(),
		},
		TestDestination: cfg.TestDestination,
		ClaimStaleAfter: time.Duration(cfg.ClaimStaleAfterSeconds) * time.Second,
	})

	poller := app.NewPoller(scheduler, campaignRepo, log, app.PollerConfig{
		PollingInterval: time.Duration(cfg.PollingIntervalSeconds) * time.Second,
		StepsPerTick:    cfg.StepsPerTick,
	})

	handler := transporthttp.NewCampaignHandler(scheduler, log, validator.New())
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: transporthttp.NewRouter(handler),
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("Starting dispatch poller worker...", "polling_interval", cfg.PollingIntervalSeconds)
		if err := poller.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("Starting HTTP server...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		log.Info("Initiating HTTP server graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	log.Info("Service components initialized and workers started. Service is ready.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service shutdown complete.")
}
