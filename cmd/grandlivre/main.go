package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/grandlivre-erp/grandlivre/internal/app"
	"github.com/grandlivre-erp/grandlivre/internal/fiscal"
	"github.com/grandlivre-erp/grandlivre/internal/invoicing"
	"github.com/grandlivre-erp/grandlivre/internal/ledger"
	"github.com/grandlivre-erp/grandlivre/internal/masterdata/clients"
	"github.com/grandlivre-erp/grandlivre/internal/masterdata/organizations"
	"github.com/grandlivre-erp/grandlivre/internal/masterdata/suppliers"
	"github.com/grandlivre-erp/grandlivre/internal/platform/cache"
	"github.com/grandlivre-erp/grandlivre/internal/platform/db"
	"github.com/grandlivre-erp/grandlivre/internal/shared"
	"github.com/grandlivre-erp/grandlivre/internal/users"
	"github.com/grandlivre-erp/grandlivre/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGConnLifetime,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	locker := shared.NewPeriodLocker(redisClient, cfg.PeriodLockTTL)
	guard := fiscal.NewGuard(locker)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), guard)
	fiscalService := fiscal.NewService(fiscal.NewRepository(pool), locker)
	invoicingService := invoicing.NewService(invoicing.NewRepository(pool), cfg.DefaultVATRate)
	organizationsService := organizations.NewService(organizations.NewRepository(pool), cfg.DefaultCountry, cfg.DefaultCurrency)
	clientsService := clients.NewService(clients.NewRepository(pool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	usersService := users.NewService(users.NewRepository(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		LedgerHandler:        ledger.NewHandler(logger, ledgerService),
		FiscalHandler:        fiscal.NewHandler(logger, fiscalService),
		InvoicingHandler:     invoicing.NewHandler(logger, invoicingService),
		OrganizationsHandler: organizations.NewHandler(logger, organizationsService),
		ClientsHandler:       clients.NewHandler(logger, clientsService),
		SuppliersHandler:     suppliers.NewHandler(logger, suppliersService),
		UsersHandler:         users.NewHandler(logger, usersService),
		JobsHandler:          jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("serve", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
