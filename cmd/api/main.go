package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/lxlibrary/lx-backend/api/controllers"
	"github.com/lxlibrary/lx-backend/api/routes"
	"github.com/lxlibrary/lx-backend/internal/registry"
	"github.com/lxlibrary/lx-backend/internal/slots"
	"github.com/lxlibrary/lx-backend/pkg/assistant"
	"github.com/lxlibrary/lx-backend/pkg/config"
	"github.com/lxlibrary/lx-backend/pkg/db"
	"github.com/lxlibrary/lx-backend/pkg/logger"
	"github.com/lxlibrary/lx-backend/pkg/metrics"
	"github.com/lxlibrary/lx-backend/pkg/migrate"
	"github.com/lxlibrary/lx-backend/pkg/redis"
	"github.com/lxlibrary/lx-backend/pkg/storage"
)

const (
	shutdownTimeout  = 15 * time.Second
	evictionInterval = time.Minute
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stateMetrics := metrics.NewStateMetrics(promReg)

	var (
		dbClient    *db.Client
		redisClient *redis.Client
		durable     registry.SlotFactory
		session     registry.SlotFactory
		deps        = map[string]controllers.Pinger{}
	)

	if cfg.Storage.InMemory() {
		logg.Warn(ctx, "memory storage mode: state is lost on restart")
		durable = storage.NewMemoryFactory().Scope
		session = storage.NewMemoryFactory().Scope
	} else {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run migrations", err)
			os.Exit(1)
		}

		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			_ = dbClient.Close()
			os.Exit(1)
		}

		durable = slots.NewRepository(dbClient.DB()).Scope
		session = func(id string) storage.Slots {
			return redisClient.SessionSlots(id, cfg.Redis.SessionTTL)
		}
		deps["database"] = dbClient
		deps["redis"] = redisClient
	}

	assistantClient := assistant.NewClient(cfg.Assistant.BaseURL, assistant.WithTimeout(cfg.Assistant.Timeout))

	states, err := registry.New(registry.Params{
		DurableSlots:     durable,
		SessionSlots:     session,
		Assistant:        assistantClient,
		AssistantBaseURL: assistantClient.BaseURL(),
		Logger:           logg,
		Metrics:          stateMetrics,
		Location:         cfg.Loans.Location(),
		LoanPeriodDays:   cfg.Loans.PeriodDays,
		CheckoutLatency:  cfg.Checkout.Latency,
	})
	if err != nil {
		logg.Error(ctx, "failed to build state registry", err)
		os.Exit(1)
	}
	go states.RunEviction(ctx, evictionInterval, cfg.Storage.SessionIdle)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"storage_mode":   cfg.Storage.Mode,
		"assistant_base": assistantClient.BaseURL(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, states, deps, promReg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case err := <-serverErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if dbClient != nil {
		closeErr = multierr.Append(closeErr, dbClient.Close())
	}
	if closeErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", closeErr)
		exitCode = 1
	}
	os.Exit(exitCode)
}
