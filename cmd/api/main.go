package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/azgovernor/azgovernor/internal/analyzer"
	"github.com/azgovernor/azgovernor/internal/api/handlers"
	"github.com/azgovernor/azgovernor/internal/api/router"
	"github.com/azgovernor/azgovernor/internal/config"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/pkg/validator"
	"github.com/azgovernor/azgovernor/internal/providers"
	"github.com/azgovernor/azgovernor/internal/repository/sqlite"
	"github.com/azgovernor/azgovernor/internal/services"
	"github.com/azgovernor/azgovernor/internal/worker"
	"github.com/azgovernor/azgovernor/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	}
	logger.Init(logCfg)
	log := logger.New(logCfg)

	log.WithFields(map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
	}).Info("Starting AzGovernor API server")

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.RunMigrations(db, migrations.GetFS()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	creds := providers.AzureCredentials{
		TenantID:     cfg.Azure.TenantID,
		ClientID:     cfg.Azure.ClientID,
		ClientSecret: cfg.Azure.ClientSecret,
	}
	inventoryProvider, err := providers.NewARMInventoryProvider(creds, cfg.Azure.CustomerID, log)
	if err != nil {
		log.Fatalf("Failed to create inventory provider: %v", err)
	}
	directoryProvider, err := providers.NewGraphDirectoryProvider(creds, cfg.Azure.SubscriptionIDs, cfg.Azure.DirectoryTTL, log)
	if err != nil {
		log.Fatalf("Failed to create directory provider: %v", err)
	}

	analyzerCfg, err := analyzer.LoadConfig(cfg.Engine.ScoringConfigPath)
	if err != nil {
		log.Fatalf("Failed to load scoring configuration: %v", err)
	}
	registry := analyzer.NewRegistry(directoryProvider, cfg.Engine.CategoryTimeout)

	repo := sqlite.NewAssessmentRepository(db)
	svc := services.NewAssessmentService(repo, inventoryProvider, registry, analyzerCfg, services.EngineConfig{
		MaxConcurrentAnalyzers: cfg.Engine.MaxConcurrentAnalyzers,
		CategoryTimeout:        cfg.Engine.CategoryTimeout,
	}, log)

	val := validator.New()
	h := &router.Handlers{
		Health:     handlers.NewHealthHandler(db, log),
		Assessment: handlers.NewAssessmentHandler(svc, repo, log, val),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewSweeper(svc, repo, cfg.Worker, cfg.Azure, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("Failed to start background worker: %v", err)
	}

	go func() {
		log.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	sweeper.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Graceful shutdown failed")
	}
	log.Info("Server stopped")
}
