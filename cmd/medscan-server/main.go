package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
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

	"github.com/medscan/medscan/internal/config"
	"github.com/medscan/medscan/internal/domain/records"
	"github.com/medscan/medscan/internal/extract"
	"github.com/medscan/medscan/internal/platform/auth"
	"github.com/medscan/medscan/internal/platform/db"
	"github.com/medscan/medscan/internal/platform/fhir"
	"github.com/medscan/medscan/internal/platform/middleware"
	"github.com/medscan/medscan/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "medscan-server",
		Short: "Medical document extraction API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the extraction API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract structured data from OCR text (stdin when file is omitted or -)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pretty, _ := cmd.Flags().GetBool("pretty")
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runExtract(in, cmd.OutOrStdout(), pretty)
		},
	}
	cmd.Flags().Bool("pretty", false, "Indent the JSON output")
	return cmd
}

func runExtract(in io.Reader, out io.Writer, pretty bool) error {
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(extract.Extract(string(text)))
}

func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ConnectAttempts: cfg.DBConnectAttempts,
		RetryDelay:      cfg.DBRetryDelay,
	}, logger)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
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
			pool, err := openPool(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationFiles(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (embedded set when empty)")
	cmd.AddCommand(upCmd)

	// migrate status
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
			pool, err := openPool(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (embedded set when empty)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth mode: unauthenticated requests run as admin")
	}

	ctx := context.Background()

	// Record store
	var (
		repo   records.RecordRepository
		pinger db.Pinger
	)
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, records are kept in memory")
		repo = records.NewRecordRepoMemory()
	} else {
		pool, err := openPool(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Int("applied", count).Msg("migrations up to date")

		repo = records.NewRecordRepoPG(pool)
		pinger = pool
	}

	e := newServer(cfg, repo, pinger, logger)

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

// newServer assembles the middleware chain and routes. pinger is nil when
// records are kept in memory.
func newServer(cfg *config.Config, repo records.RecordRepository, pinger db.Pinger, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "If-None-Match", middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.BatchBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.Skipper,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	limiter := middleware.RateLimit(rateLimitCfg)
	apiV1.Use(limiter)
	fhirGroup.Use(limiter)

	audit := middleware.Audit(logger)
	apiV1.Use(audit)
	fhirGroup.Use(audit)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger))

	capability := fhir.NewCapabilityStatement("Medical document extraction server",
		fhir.ReadOnlyResource("DiagnosticReport",
			fhir.CSSearchParam{Name: "patient", Type: "reference"},
			fhir.CSSearchParam{Name: "category", Type: "token"},
		),
	)
	e.GET("/fhir/metadata", fhir.CapabilityHandler(capability))

	svc := records.NewService(repo, records.Options{
		MaxTextBytes: cfg.MaxTextBytes,
		Workers:      cfg.ExtractWorkers,
		MaxBatch:     cfg.MaxBatch,
	}, logger)
	records.NewHandler(svc).RegisterRoutes(apiV1, fhirGroup)

	return e
}
