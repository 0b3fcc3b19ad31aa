package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/CamDog38/formrelay/internal/core/api"
	"github.com/CamDog38/formrelay/internal/core/auth"
	"github.com/CamDog38/formrelay/internal/core/config"
	"github.com/CamDog38/formrelay/internal/core/db"
	"github.com/CamDog38/formrelay/internal/core/logging"
	"github.com/CamDog38/formrelay/internal/core/metrics"
	"github.com/CamDog38/formrelay/internal/core/server"
	"github.com/CamDog38/formrelay/internal/core/trigger"
	"github.com/CamDog38/formrelay/internal/delivery"
	"github.com/CamDog38/formrelay/internal/jobs"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP automation API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	logger, err := logging.NewLogger(logLevel, logFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	// Refuse to serve against an unmigrated database.
	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'`
	err = database.Get(&migrationID, database.Rebind(checkQuery))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("migration 001_initial_schema not applied - run 'formrelay migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	repo := db.NewRepo(queries)

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set FR_HMAC_SECRET environment variable)")
	}
	authenticator := auth.NewAuthenticator(secrets, queries, logger)

	metrics.Init()

	// Channel order is the fallback order: hosted API first, SMTP second.
	channels := []delivery.Channel{
		delivery.NewResendChannel(delivery.ResendConfig{
			APIKey:      config.ResendAPIKey(),
			SenderEmail: cfg.Resend.SenderEmail,
			SenderName:  cfg.Resend.SenderName,
		}),
		delivery.NewSMTPChannel(delivery.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    config.SMTPPassword(),
			SenderEmail: cfg.SMTP.SenderEmail,
			SenderName:  cfg.SMTP.SenderName,
		}),
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	dispatcher := delivery.NewDispatcher(channels, repo, limiter, cfg.DispatchTimeout, logger)

	tracker := jobs.NewTracker(logger)
	formOps := jobs.NewFormOps(database, logger)

	processURL := fmt.Sprintf("http://127.0.0.1:%d/api/automation/process", cfg.Port)
	trig := trigger.NewClient(processURL, os.Getenv("FR_TRIGGER_API_KEY"), logger)

	service, err := api.NewService(repo, dispatcher, tracker, formOps, trig, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting formrelay automation API",
		zap.String("version", Version),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(ctx, 35*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
