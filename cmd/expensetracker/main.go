package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp, false)
	logger.Info("Starting expensetracker", "backend", cfg.DataBackend, "port", cfg.Port)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	cacheManager := cache.NewManager()
	catalog := cache.NewCategoryCatalog(res.Store, cfg.CategoryCacheTTL)
	catalog.Register(cacheManager)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	// A nil *amqp.Client must not reach the interfaces below.
	var publisher services.EventPublisher
	var broker apphttp.BrokerStatus
	if res.Events != nil {
		publisher = res.Events
		broker = res.Events
	} else {
		logger.Info("AMQP not configured, expense events disabled")
	}

	expenses := services.NewExpenseService(res.Store, catalog, publisher)
	users := services.NewUserService(res.Store, bcrypt.DefaultCost)

	srv := apphttp.NewServer(":"+cfg.Port, expenses, users, logger, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		CacheStats:         catalog.Stats,
		Broker:             broker,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server", "timeout", cfg.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
