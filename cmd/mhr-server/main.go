package main

import (
	"context"
	"errors"
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

	"github.com/mhr/mhr/internal/config"
	"github.com/mhr/mhr/internal/domain/caregiver"
	"github.com/mhr/mhr/internal/domain/chat"
	"github.com/mhr/mhr/internal/domain/pregnancy"
	"github.com/mhr/mhr/internal/domain/upload"
	"github.com/mhr/mhr/internal/platform/auth"
	"github.com/mhr/mhr/internal/platform/db"
	"github.com/mhr/mhr/internal/platform/events"
	"github.com/mhr/mhr/internal/platform/extract"
	"github.com/mhr/mhr/internal/platform/kv"
	"github.com/mhr/mhr/internal/platform/llm"
	"github.com/mhr/mhr/internal/platform/middleware"
	"github.com/mhr/mhr/internal/platform/predictor"
	"github.com/mhr/mhr/internal/platform/webhook"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mhr-server",
		Short: "Maternal health record API server",
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
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
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
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// withMigrator connects to postgres and runs fn. The embedded store has no
// schema, so migrations are a no-op there.
func withMigrator(dir string, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		fmt.Printf("STORE_DRIVER is %s; nothing to migrate.\n", cfg.StoreDriver)
		return nil
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// repositories holds one store implementation per domain, all backed by the
// same driver.
type repositories struct {
	caregivers caregiver.Repository
	records    pregnancy.Repository
	turns      chat.Repository
	files      upload.Repository
	health     db.Pinger
	close      func()
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.StoreDriver == config.DriverLevelDB {
		store, err := kv.Open(cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		return kvRepositories(store), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	return &repositories{
		caregivers: caregiver.NewRepoPG(pool),
		records:    pregnancy.NewRepoPG(pool),
		turns:      chat.NewRepoPG(pool),
		files:      upload.NewRepoPG(pool),
		health:     pool,
		close:      pool.Close,
	}, nil
}

func kvRepositories(store *kv.Store) *repositories {
	return &repositories{
		caregivers: caregiver.NewRepoKV(store),
		records:    pregnancy.NewRepoKV(store),
		turns:      chat.NewRepoKV(store),
		files:      upload.NewRepoKV(store),
		health:     store,
		close:      func() { store.Close() },
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open record store")
	}
	defer repos.close()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("record store ready")

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaAssessmentTopic)
	defer publisher.Close()

	e := newServer(cfg, logger, repos, publisher)

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

// newServer wires every collaborator and mounts the routes.
func newServer(cfg *config.Config, logger zerolog.Logger, repos *repositories, publisher events.Publisher) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger, cfg.IsDev())

	e.Use(middleware.Recovery(logger, cfg.IsDev()))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(auth.Gate(auth.GateConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Skipper:    auth.AuthSkipper,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(repos.health, cfg.StoreDriver))

	// Endpoints that call the predictor or the language model.
	var limited []echo.MiddlewareFunc
	if cfg.RateLimitRPS > 0 {
		limited = append(limited, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}))
	}

	scoring := predictor.NewClient(cfg.FastAPIPredictURL, cfg.UpstreamTimeout)
	passthrough := predictor.NewClient(cfg.PredictURL, cfg.UpstreamTimeout)
	explainer := llm.NewExplainer(llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMTimeout), cfg.OpenAIModel)

	notifierOpts := []webhook.Option{webhook.WithLogger(logger)}
	if cfg.WebhookSecret != "" {
		notifierOpts = append(notifierOpts, webhook.WithSecret(cfg.WebhookSecret))
	}
	notifier := webhook.NewNotifier(cfg.WebhookTimeout, notifierOpts...)

	api := e.Group("")

	// Accounts
	caregiverSvc := caregiver.NewService(repos.caregivers, auth.NewIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL), logger)
	caregiver.NewHandler(caregiverSvc).RegisterRoutes(api)

	// Records and assessments
	pregnancySvc := pregnancy.NewService(pregnancy.Deps{
		Records:     repos.records,
		Predictor:   scoring,
		Passthrough: passthrough,
		Explainer:   explainer,
		Notifier:    notifier,
		Targets:     []string{cfg.WebhookUploadURL, cfg.WebhookRiskAlertURL},
		Events:      publisher,
		Logger:      logger,
	})
	pregnancy.NewHandler(pregnancySvc, cfg.IsDev()).RegisterRoutes(api, limited...)

	// Chat assistant
	chatSvc := chat.NewService(repos.caregivers, repos.records, explainer, repos.turns, logger)
	chat.NewHandler(chatSvc, logger).RegisterRoutes(api, limited...)

	// Report uploads
	uploadSvc := upload.NewService(upload.Deps{
		Files:     repos.files,
		Decoder:   extract.NewDecoder(cfg.OCRLanguage),
		Poster:    notifier,
		Predictor: scoring,
		Explainer: explainer,
		Targets: upload.Targets{
			Parse:     cfg.WebhookParseURL,
			Upload:    cfg.WebhookUploadURL,
			RiskAlert: cfg.WebhookRiskAlertURL,
		},
		Events: publisher,
		Logger: logger,
	})
	upload.NewHandler(uploadSvc, logger).RegisterRoutes(api, limited...)

	return e
}

// errorHandler renders errors that handlers return instead of writing a
// response themselves. Server errors carry their cause only when
// exposeDetails is set.
func errorHandler(logger zerolog.Logger, exposeDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var body interface{}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				body = failureBody(code, m, err, exposeDetails)
			case map[string]interface{}:
				body = m
			default:
				body = failureBody(code, http.StatusText(code), err, exposeDetails)
			}
		} else {
			body = failureBody(code, "Internal server error", err, exposeDetails)
		}

		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func failureBody(code int, message string, cause error, exposeDetails bool) map[string]interface{} {
	body := map[string]interface{}{"success": false, "message": message}
	if code == http.StatusInternalServerError {
		body["message"] = "Internal server error"
		if exposeDetails {
			body["details"] = cause.Error()
		}
	}
	return body
}
