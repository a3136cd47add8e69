// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skincheck-back/internal/accounts"
	"skincheck-back/internal/analysis"
	"skincheck-back/internal/auth"
	"skincheck-back/internal/config"
	"skincheck-back/internal/database"
	"skincheck-back/internal/insights"
	"skincheck-back/internal/jobs"
	"skincheck-back/internal/logger"
	"skincheck-back/internal/metrics"
	"skincheck-back/internal/notify"
	"skincheck-back/internal/server"
	"skincheck-back/internal/storage"
	"skincheck-back/internal/uploads"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	var configPath string

	rootCmd := &cobra.Command{
		Use:          "skincheck",
		Short:        "skin lesion upload and triage backend",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (optional)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			appLogger := logger.New(cfg.App.LogLevel, cfg.App.Env)
			db, err := openDB(cfg, appLogger)
			if err != nil {
				return err
			}
			appLogger.Info("database migrated")
			return closeDB(db)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	// bare invocation serves
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		slog.Error("startup error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func openDB(cfg *config.Config, appLogger *slog.Logger) (*gorm.DB, error) {
	db, err := database.InitDB(cfg.Database, appLogger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func serve(cfg *config.Config) error {
	appLogger := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeDB(db)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
	} else {
		appLogger.Warn("redis disabled: logout revocation and otp resend cooldown are off")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	var mediaDir string
	if local, ok := store.(*storage.LocalStore); ok {
		mediaDir = local.Dir()
	}

	if cfg.App.MetricsEnabled {
		metrics.Register()
	}

	issuer := auth.NewIssuer(cfg.App.JWTSecret, cfg.App.TokenTTL)
	revoker := auth.NewRevoker(rdb)
	notifier := notify.New(cfg.Email, int(cfg.OTP.TTL.Minutes()), appLogger)

	accountSvc := accounts.NewService(db, rdb, issuer, revoker, notifier, cfg.OTP, appLogger)
	uploadSvc := uploads.NewService(db, store, analysis.NewAnalyzer(nil), cfg.Upload.MaxBytes, appLogger)
	insightSvc := insights.NewService(db)

	scheduler := jobs.NewCronScheduler(appLogger)
	if err := scheduler.AddJob(jobs.NewOTPCleanupJob(accountSvc, cfg.OTP.Retention, appLogger), cfg.OTP.CleanupSchedule); err != nil {
		return fmt.Errorf("schedule otp cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Logger:   appLogger,
		DB:       db,
		Redis:    rdb,
		Issuer:   issuer,
		Revoker:  revoker,
		Accounts: accountSvc,
		Uploads:  uploadSvc,
		Insights: insightSvc,
		MediaDir: mediaDir,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server starting", slog.String("addr", cfg.App.HTTPAddr), slog.String("storage", cfg.Storage.Type))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	return nil
}
