package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/neurocare-backend/api/routes"
	"github.com/angelmondragon/neurocare-backend/internal/cron"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/internal/products"
	"github.com/angelmondragon/neurocare-backend/internal/sessions"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/env"
	"github.com/angelmondragon/neurocare-backend/pkg/instance"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/metrics"
)

const (
	serviceName       = "api"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := instance.GetID()
	port := env.Get("PORT", cfg.App.Port)
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instanceID,
	})

	b, err := openBackend(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			logg.Error(ctx, "error closing storage", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orderMetrics := metrics.NewOrderMetrics(promRegistry)
	cronMetrics := metrics.NewCronJobMetrics(promRegistry)

	sessionRegistry, err := sessions.NewRegistry(sessions.RegistryParams{
		Logger:   logg,
		Storage:  b.store,
		Orders:   cfg.Orders,
		Metrics:  orderMetrics,
		Notifier: notifications.NewLogNotifier(logg),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sessionRegistry.CloseAll(context.Background()); err != nil {
			logg.Error(ctx, "error closing sessions", err)
		}
	}()

	sweep, err := cron.NewDeliverySweepJob(cron.DeliverySweepJobParams{Logger: logg, Sessions: sessionRegistry})
	if err != nil {
		return err
	}
	lock, err := b.sweepLock(cfg, instanceID)
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(sweep)
	if err != nil {
		return err
	}
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		LockName: sweepLockKey,
		Metrics:  cronMetrics,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:   cfg,
			Logger:   logg,
			Sessions: sessionRegistry,
			Products: products.NewService(),
			Ready:    b.ready,
			Metrics:  promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),

			Idempotency: b.idempotencyStore(),
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := cronService.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
