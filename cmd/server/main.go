package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/config"
	"github.com/avionyx/farmhand/internal/repository/mongodb"
	"github.com/avionyx/farmhand/internal/scheduler"
	"github.com/avionyx/farmhand/internal/server/handlers"
	"github.com/avionyx/farmhand/internal/server/router"
	"github.com/avionyx/farmhand/internal/service/alerts"
	"github.com/avionyx/farmhand/internal/service/identity"
	"github.com/avionyx/farmhand/internal/service/ledger"
	"github.com/avionyx/farmhand/internal/service/workflow"
	"github.com/avionyx/farmhand/pkg/clients/notify"
	"github.com/avionyx/farmhand/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := mongodb.NewStore(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	ledgerEngine := ledger.NewEngine(baseLogger.Named("svc.ledger"))
	roles := identity.NewStoreProvider(store, cfg.Workflow.AdminIDs)
	sessions := workflow.NewSessionManager()
	workflowEngine := workflow.NewEngine(store, ledgerEngine, roles, sessions, baseLogger.Named("svc.workflow"))

	notifier := notify.NewWebhookClient(cfg.Notify)
	alertsSvc := alerts.NewService(store, notifier, baseLogger.Named("svc.alerts"))

	workflowHandler := handlers.NewWorkflowHandler(workflowEngine, baseLogger.Named("handlers.workflow"))
	queryHandler := handlers.NewQueryHandler(store, baseLogger.Named("handlers.query"))
	engine := router.New(workflowHandler, queryHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, alertsSvc, sessions, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
