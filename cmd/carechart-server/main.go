package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carechart/carechart/internal/config"
	"github.com/carechart/carechart/internal/domain/carechart"
	"github.com/carechart/carechart/internal/domain/questionnaire"
	"github.com/carechart/carechart/internal/platform/auth"
	"github.com/carechart/carechart/internal/platform/db"
	"github.com/carechart/carechart/internal/platform/fhir"
	"github.com/carechart/carechart/internal/platform/fhirclient"
	"github.com/carechart/carechart/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carechart-server",
		Short: "Skincare care chart API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(questionnaireCmd())
	rootCmd.AddCommand(chartCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newFHIRClient picks the client-credentials flow when a token URL is set and
// a static bearer token otherwise. ctx bounds token requests, not FHIR calls.
func newFHIRClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*fhirclient.Client, error) {
	opts := []fhirclient.Option{
		fhirclient.WithLogger(logger),
		fhirclient.WithHTTPClient(&http.Client{Timeout: cfg.FHIRTimeout}),
	}
	switch {
	case cfg.FHIRTokenURL != "":
		cc := fhirclient.ClientCredentials{
			TokenURL:     cfg.FHIRTokenURL,
			ClientID:     cfg.FHIRClientID,
			ClientSecret: cfg.FHIRClientSecret,
			Scope:        cfg.FHIRScope,
		}
		opts = append(opts, fhirclient.WithTokenSource(cc.TokenSource(ctx)))
	case cfg.FHIRStaticToken != "":
		opts = append(opts, fhirclient.WithTokenSource(fhirclient.StaticToken(cfg.FHIRStaticToken)))
	}
	return fhirclient.New(cfg.FHIRBaseURL, opts...)
}

func chartBounds(cfg *config.Config) carechart.Bounds {
	return carechart.Bounds{Initial: cfg.ChartInitial, Min: cfg.ChartMin, Max: cfg.ChartMax}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the care chart API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres submission store",
	}

	openMigrator := func(ctx context.Context, dir string) (*db.Migrator, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return db.NewMigrator(pool, dir), pool.Close, nil
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := context.Background()

			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := context.Background()

			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			return renderMigrationStatus(cmd.OutOrStdout(), statuses)
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func questionnaireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questionnaire",
		Short: "Manage published questionnaires on the FHIR server",
	}

	run := func(action func(ctx context.Context, svc *questionnaire.Service, title string) (string, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.FHIRBaseURL == "" {
				return fmt.Errorf("FHIR_BASE_URL is required")
			}
			title, _ := cmd.Flags().GetString("title")
			if title == "" {
				title = cfg.ActiveTitle
			}

			logger := newLogger(cfg.Env)
			client, err := newFHIRClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			svc := questionnaire.NewService(questionnaire.NewStoreFHIR(client), questionnaire.DefaultCatalog(), nil, cfg.ActiveTitle, logger)

			msg, err := action(cmd.Context(), svc, title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}
	}

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a catalog questionnaire unless it already exists",
		RunE: run(func(ctx context.Context, svc *questionnaire.Service, title string) (string, error) {
			created, err := svc.EnsurePublished(ctx, title)
			if err != nil {
				return "", err
			}
			if !created {
				return fmt.Sprintf("Questionnaire %q is already published.", title), nil
			}
			return fmt.Sprintf("Published questionnaire %q.", title), nil
		}),
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Retire a published questionnaire",
		RunE: run(func(ctx context.Context, svc *questionnaire.Service, title string) (string, error) {
			if err := svc.Deactivate(ctx, title); err != nil {
				return "", err
			}
			return fmt.Sprintf("Deactivated questionnaire %q.", title), nil
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a published questionnaire",
		RunE: run(func(ctx context.Context, svc *questionnaire.Service, title string) (string, error) {
			if err := svc.Delete(ctx, title); err != nil {
				return "", err
			}
			return fmt.Sprintf("Deleted questionnaire %q.", title), nil
		}),
	}

	for _, c := range []*cobra.Command{publishCmd, deactivateCmd, deleteCmd} {
		c.Flags().String("title", "", "Questionnaire title (defaults to ACTIVE_QUESTIONNAIRE_TITLE)")
		cmd.AddCommand(c)
	}
	return cmd
}

func chartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Build a care chart from a Bundle of QuestionnaireResponses",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			title, _ := cmd.Flags().GetString("title")
			format, _ := cmd.Flags().GetString("format")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if title == "" {
				title = cfg.ActiveTitle
			}
			bounds := chartBounds(cfg)
			if err := bounds.Validate(); err != nil {
				return err
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read bundle: %w", err)
			}
			chart, err := chartFromBundle(raw, title, questionnaire.DefaultCatalog(), bounds, cfg.MaxSubmissions, newLogger(cfg.Env))
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return renderChartJSON(cmd.OutOrStdout(), chart)
			case "table":
				return renderChartTable(cmd.OutOrStdout(), chart)
			default:
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
		},
	}
	cmd.Flags().String("file", "", "Path to a FHIR searchset Bundle of QuestionnaireResponses")
	cmd.Flags().String("title", "", "Questionnaire title (defaults to ACTIVE_QUESTIONNAIRE_TITLE)")
	cmd.Flags().String("format", "table", "Output format: table or json")
	return cmd
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(cfg.Env)

	ctx := context.Background()
	fhirClient, err := newFHIRClient(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create FHIR client")
	}
	checks := map[string]db.Check{
		"fhir": func(ctx context.Context) error {
			_, err := fhirClient.Search(ctx, "Questionnaire", url.Values{"_count": {"1"}})
			return err
		},
	}

	// Submission store
	var submissions carechart.SubmissionRepository
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		checks["database"] = db.PoolCheck(pool)
		submissions = carechart.NewSubmissionRepoPG(pool)
	} else {
		submissions = carechart.NewSubmissionRepoFHIR(fhirClient, logger)
	}

	// Services
	catalog := questionnaire.DefaultCatalog()
	chartSvc := carechart.NewService(
		submissions,
		carechart.NewPatientRepoFHIR(fhirClient),
		catalog,
		carechart.Config{
			Bounds:             chartBounds(cfg),
			QuestionnaireTitle: cfg.ActiveTitle,
			MaxSubmissions:     cfg.MaxSubmissions,
		},
		logger,
	)
	quizSvc := questionnaire.NewService(questionnaire.NewStoreFHIR(fhirClient), catalog, chartSvc, cfg.ActiveTitle, logger)

	if cfg.PublishOnStart {
		publishCtx, cancel := context.WithTimeout(ctx, cfg.FHIRTimeout)
		if _, err := quizSvc.EnsurePublished(publishCtx, cfg.ActiveTitle); err != nil {
			logger.Error().Err(err).Str("title", cfg.ActiveTitle).Msg("failed to publish active questionnaire")
		}
		cancel()
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = fhir.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	headerPolicy := middleware.DefaultHeaderPolicy()
	headerPolicy.CrossOrigin = len(cfg.CORSOrigins) > 0
	e.Use(middleware.SecurityHeaders(headerPolicy))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	// Auth middleware
	e.Use(authMiddleware(cfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/ready", db.HealthHandler(checks))

	// API
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	carechart.NewHandler(chartSvc).RegisterRoutes(apiV1)
	questionnaire.NewHandler(quizSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.SubmissionStore).Msg("starting server")
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

// authMiddleware validates bearer JWTs. In development mode requests without
// a token get a dev identity and tokens are still checked when a key source
// is configured.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	var signingKey []byte
	if cfg.AuthSigningKey != "" {
		signingKey = []byte(cfg.AuthSigningKey)
	}
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: signingKey,
		Skipper:    auth.AuthSkipper,
	}

	if cfg.ResolvedAuthMode() != "development" {
		return auth.JWTMiddleware(jwtCfg)
	}
	var fallback echo.MiddlewareFunc
	if cfg.AuthIssuer != "" || cfg.AuthJWKSURL != "" || signingKey != nil {
		fallback = auth.JWTMiddleware(jwtCfg)
	}
	return auth.DevAuthMiddleware(fallback)
}
