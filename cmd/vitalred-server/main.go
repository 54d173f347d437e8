package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vitalred/vitalred/internal/config"
	"github.com/vitalred/vitalred/internal/domain/audit"
	"github.com/vitalred/vitalred/internal/domain/metrics"
	"github.com/vitalred/vitalred/internal/domain/notification"
	"github.com/vitalred/vitalred/internal/domain/referral"
	"github.com/vitalred/vitalred/internal/domain/user"
	"github.com/vitalred/vitalred/internal/platform/ai"
	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
	"github.com/vitalred/vitalred/internal/platform/cache"
	"github.com/vitalred/vitalred/internal/platform/db"
	"github.com/vitalred/vitalred/internal/platform/mail"
	"github.com/vitalred/vitalred/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vitalred-server",
		Short: "Medical referral intake and evaluation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(aggregateCmd())
	rootCmd.AddCommand(dispatchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			_, pool, err := loadWithPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			_, pool, err := loadWithPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate [date]",
		Short: "Recompute the daily metrics rollup (default: yesterday)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, pool, err := loadWithPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			date := time.Now().UTC().AddDate(0, 0, -1)
			if len(args) == 1 {
				date, err = time.Parse("2006-01-02", args[0])
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
				}
			}

			c, err := cache.New(cfg.RedisURL, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			svc := metrics.NewService(metrics.NewRepoPG(pool), c,
				time.Duration(cfg.MetricsCacheTTLSec)*time.Second, logger)
			m, err := svc.AggregateDaily(context.Background(), date)
			if err != nil {
				return err
			}
			fmt.Printf("Aggregated %s: %d referrals received.\n", m.Date.Format("2006-01-02"), m.TotalReceived)
			return nil
		},
	}
	return cmd
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run the notification delivery and reminder worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, pool, err := loadWithPool()
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runWorkers(ctx, cfg, pool, logger)
			return nil
		},
	}
}

func loadWithPool() (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, pool, nil
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// runWorkers starts the notification delivery loop and the stale-referral
// reminder loop, returning when ctx is cancelled.
func runWorkers(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) {
	notifRepo := notification.NewRepoPG(pool)
	sender := mail.NewSMTPSender(mail.SMTPConfig{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom})
	worker := notification.NewWorker(notifRepo, sender, backoffFromConfig(cfg), logger)

	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
	userSvc := user.NewService(user.NewRepoPG(pool), logger)
	refSvc := buildReferralService(cfg, pool, logger,
		notification.NewDispatcher(notifRepo, logger), auditSvc, userSvc)

	go worker.Run(ctx, time.Duration(cfg.DispatchIntervalSec)*time.Second)

	reminderTicker := time.NewTicker(time.Hour)
	defer reminderTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-reminderTicker.C:
			if count, err := refSvc.SendReminders(ctx); err != nil {
				logger.Error().Err(err).Msg("reminder pass failed")
			} else if count > 0 {
				logger.Info().Int("count", count).Msg("evaluation reminders sent")
			}
		}
	}
}

func backoffFromConfig(cfg *config.Config) notification.BackoffConfig {
	return notification.BackoffConfig{
		MaxAttempts: cfg.NotificationMaxAttempts,
		BaseDelay:   time.Duration(cfg.NotificationBaseDelaySec) * time.Second,
		MaxDelay:    time.Duration(cfg.NotificationMaxDelaySec) * time.Second,
	}
}

func buildReferralService(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger,
	dispatcher *notification.Dispatcher, auditSvc *audit.Service, userSvc *user.Service) *referral.Service {
	classifier := ai.NewHTTPClassifier(ai.Config{
		BaseURL:             cfg.AIServiceURL,
		Timeout:             time.Duration(cfg.AITimeoutSeconds) * time.Second,
		ConfidenceThreshold: cfg.AIConfidenceThreshold,
	}, logger)

	runTx := func(ctx context.Context, fn func(context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	return referral.NewService(referral.NewRepoPG(pool), classifier, auditSvc, dispatcher, userSvc, runTx,
		referral.ServiceConfig{
			BlockedSenderDomains: cfg.BlockedSenderDomains,
			UrgentScoreThreshold: cfg.UrgentScoreThreshold,
			ReminderAfter:        time.Duration(cfg.ReminderAfterHours) * time.Hour,
		}, logger)
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	redisCache, err := cache.New(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisCache.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	// Domain wiring
	notifRepo := notification.NewRepoPG(pool)
	dispatcher := notification.NewDispatcher(notifRepo, logger)

	auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
	userSvc := user.NewService(user.NewRepoPG(pool), logger)
	refSvc := buildReferralService(cfg, pool, logger, dispatcher, auditSvc, userSvc)
	metricsSvc := metrics.NewService(metrics.NewRepoPG(pool), redisCache,
		time.Duration(cfg.MetricsCacheTTLSec)*time.Second, logger)

	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(cfg.JWTSecret))
	}
	referral.NewHandler(refSvc).RegisterRoutes(api)
	user.NewHandler(userSvc).RegisterRoutes(api)
	audit.NewHandler(auditSvc).RegisterRoutes(api)
	notification.NewHandler(notifRepo).RegisterRoutes(api)
	metrics.NewHandler(metricsSvc).RegisterRoutes(api)

	// Background workers share the server process by default; run the
	// dispatch subcommand instead to host them separately.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go runWorkers(workerCtx, cfg, pool, logger)

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down")
		stopWorkers()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
	if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
