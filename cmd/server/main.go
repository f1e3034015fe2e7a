package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/internal/infrastructure/config"
	"tcar-claims-service/internal/infrastructure/oauth"
	"tcar-claims-service/internal/infrastructure/persistence"
	"tcar-claims-service/internal/infrastructure/router"
	"tcar-claims-service/internal/interface/api"
	"tcar-claims-service/internal/interface/drive"
	"tcar-claims-service/internal/interface/gmail"
	repo "tcar-claims-service/internal/interface/repository"
	"tcar-claims-service/internal/usecase"
	"tcar-claims-service/pkg/logger"
	"tcar-claims-service/pkg/metrics"
	"tcar-claims-service/templates"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tcar-claims-service",
		Short: "TCAR claims tracking service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the notification worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the claims table on the postgres backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrate() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	ctx := context.Background()
	stores, err := persistence.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close(ctx, log)

	if err := stores.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("Claims table migrated")
	return nil
}

func serve() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting TCAR Claims Service", "version", cfg.AppVersion, "env", cfg.AppEnv)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics("tcar", registry)

	// Set up repositories
	stores, err := persistence.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background(), log)

	fileRepo, uploadsDir, err := newFileRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	mailRepo, err := newMailRepository(ctx, cfg, log)
	if err != nil {
		return err
	}

	location, err := time.LoadLocation(cfg.TcarTimezone)
	if err != nil {
		log.Warn("Unknown TCAR_TIMEZONE, using local time", "timezone", cfg.TcarTimezone, "error", err)
		location = time.Local
	}

	// Set up notification handlers
	eventRouter := router.NewEventRouter(log)
	eventRouter.Register(templates.NewClaimMailHandler(stores.Settings, mailRepo, cfg.MailFrom, cfg.NotifyOn, log))
	eventRouter.Register(templates.NewDriveFolderHandler(fileRepo, log))

	notifier := usecase.NewWorkflowNotifier(eventRouter, cfg.NotifierQueueSize, cfg.NotifierTimeout, appMetrics, log)
	notifierCtx, stopNotifier := context.WithCancel(ctx)
	notifier.Start(notifierCtx)

	allocator := usecase.NewTcarAllocator(stores.Claims, cfg.TcarMaxAttempts, location, appMetrics, log)
	claimService := usecase.NewClaimService(stores.Claims, fileRepo, allocator, notifier, appMetrics, log)

	handler := api.NewRouter(api.RouterOptions{
		ClaimService: claimService,
		SettingsRepo: stores.Settings,
		Version: api.VersionInfo{
			Name:    cfg.AppName,
			Version: cfg.AppVersion,
			Env:     cfg.AppEnv,
			Commit:  cfg.GitCommit,
		},
		UploadsDir: uploadsDir,
		Metrics:    appMetrics,
		Gatherer:   registry,
		Logger:     log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info("Received signal", "signal", sig)
	case err := <-serverErr:
		log.Error("HTTP server error", "error", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	// Let queued notifications go out before the stores close
	stopNotifier()
	notifier.Wait()

	log.Info("TCAR Claims Service stopped")
	return nil
}

// newFileRepository picks Google Drive when a service account is configured
// and local disk otherwise. The returned directory is served under /uploads.
func newFileRepository(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.FileRepository, string, error) {
	if cfg.DriveConfigured() {
		storage, err := drive.NewDriveStorage(ctx, drive.Options{
			ParentFolderID:  cfg.DriveParentFolderID,
			FolderPrefix:    cfg.DriveFolderPrefix,
			ShareWithAnyone: cfg.DriveShareAnyone,
			CredentialsJSON: []byte(cfg.GoogleServiceAccountJSON),
		}, log)
		if err != nil {
			return nil, "", err
		}
		log.Info("Uploads stored in Google Drive", "parentFolderId", cfg.DriveParentFolderID)
		return storage, "", nil
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create uploads directory: %w", err)
	}
	log.Warn("Google Drive not configured, storing uploads on disk", "dir", cfg.UploadsDir)
	return repo.NewLocalFileRepository(cfg.UploadsDir, "/uploads", cfg.DriveFolderPrefix), cfg.UploadsDir, nil
}

// newMailRepository sends through Gmail when OAuth credentials are present
func newMailRepository(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.MailRepository, error) {
	if !cfg.GmailConfigured() {
		log.Warn("Gmail not configured, notification mail is logged only")
		return repo.NewLogMailRepository(log), nil
	}

	gmailOAuth := oauth.NewGmailOAuth(
		cfg.GmailClientID,
		cfg.GmailClientSecret,
		cfg.GmailRefreshToken,
		"",
		log,
	)
	return gmail.NewGmailSender(ctx, gmailOAuth.GetTokenSource(ctx), log)
}
