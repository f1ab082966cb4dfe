package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/consultas/consultas/internal/config"
	"github.com/consultas/consultas/internal/domain/accounts"
	"github.com/consultas/consultas/internal/domain/appointments"
	"github.com/consultas/consultas/internal/domain/chat"
	"github.com/consultas/consultas/internal/platform/auth"
	"github.com/consultas/consultas/internal/platform/db"
	"github.com/consultas/consultas/internal/platform/media"
	"github.com/consultas/consultas/internal/platform/middleware"
	"github.com/consultas/consultas/internal/platform/privacy"
	"github.com/consultas/consultas/internal/platform/ws"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consultas-server",
		Short: "Appointment and messaging API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

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

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
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

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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

// contentCodec picks the message content codec from config. Production
// requires a real key; without one, content is stored as plaintext.
func contentCodec(cfg *config.Config, logger zerolog.Logger) (privacy.Codec, error) {
	if cfg.ContentKey == "" {
		logger.Warn().Msg("CONTENT_ENCRYPTION_KEY not set, storing message content unencrypted")
		return privacy.PlainCodec{}, nil
	}
	codec, err := privacy.NewAESCodecFromHex(cfg.ContentKey)
	if err != nil {
		return nil, err
	}
	return codec, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	codec, err := contentCodec(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid content encryption key")
	}

	files, err := media.NewDiskStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open media directory")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL())

	// Services
	accountRepo := accounts.NewRepoPG(pool)
	accountSvc := accounts.NewService(accountRepo)

	appointmentRepo := appointments.NewRepoPG(pool)
	appointmentSvc := appointments.NewService(appointmentRepo, files)

	roomRepo := chat.NewRoomRepoPG(pool)
	messageRepo := chat.NewMessageRepoPG(pool, codec)
	chatTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	chatSvc := chat.NewService(roomRepo, messageRepo, accountSvc, chatTx, logger)

	// REST API
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	public := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	accountHandler := accounts.NewHandler(accountSvc, tokens)
	accountHandler.RegisterPublicRoutes(public)

	authed := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg), auth.Middleware(tokens))
	accountHandler.RegisterRoutes(authed)
	appointments.NewHandler(appointmentSvc).RegisterRoutes(authed)
	chat.NewHandler(chatSvc).RegisterRoutes(authed)

	// Websocket chat
	hub := ws.NewHub()
	chat.NewConsumer(hub, tokens, accountSvc, chatSvc, logger).RegisterRoutes(e)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
