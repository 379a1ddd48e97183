// Package main is the entry point for the Bandroom gateway binary.
// It dispatches three subcommands — serve, migrate, and version — via a simple
// switch on os.Args so the binary's full CLI surface is readable in one place
// without requiring a cobra dependency. The serve command runs auto-migration on
// startup so a freshly provisioned store never needs a separate migration step.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bandroomhq/bandroom/internal/api"
	"github.com/bandroomhq/bandroom/internal/auth/passwordless"
	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/db"
	"github.com/bandroomhq/bandroom/internal/db/repositories"
	"github.com/bandroomhq/bandroom/internal/localstate"
	"github.com/bandroomhq/bandroom/internal/storage"
	"github.com/bandroomhq/bandroom/internal/telemetry"
	"github.com/bandroomhq/bandroom/internal/workspace"

	// Import storage backends to register them
	_ "github.com/bandroomhq/bandroom/internal/storage/azure"
	_ "github.com/bandroomhq/bandroom/internal/storage/gcs"
	_ "github.com/bandroomhq/bandroom/internal/storage/local"
	_ "github.com/bandroomhq/bandroom/internal/storage/s3"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "version":
		fmt.Printf("Bandroom gateway v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logging as early as possible so all subsequent log
	// output uses the configured format (json / text) and level. Config file
	// changes re-apply the level at runtime through this hook.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	config.OnLogLevelChange(telemetry.SetLogLevel)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to remote store", "host", cfg.Database.Host, "database", cfg.Database.Name)

	// Begin exporting DB pool statistics to Prometheus.
	telemetry.StartDBStatsCollector(database)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if schemaVersion, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to read migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", schemaVersion, "dirty", dirty)
	}

	// Local state holds the persisted workspace selection and session blob.
	state, err := localstate.NewStore(&cfg.State)
	if err != nil {
		return fmt.Errorf("failed to initialize local state store: %w", err)
	}

	icons, err := storage.NewIconStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize icon storage backend: %w", err)
	}
	slog.Info("icon storage backend ready", "backend", cfg.Storage.DefaultBackend)

	// The session provider restores any persisted session and keeps it
	// refreshed for the process lifetime. A restore failure is not fatal; the
	// gateway starts signed out and the frontend drives sign-in.
	sessions := passwordless.New(&cfg.Auth, state)
	if err := sessions.Initialize(context.Background()); err != nil {
		slog.Warn("session initialization failed, starting signed out", "error", err)
	}

	workspaceRepo := repositories.NewWorkspaceRepository(database)
	membershipRepo := repositories.NewMembershipRepository(sqlx.NewDb(database, "postgres"))
	manager := workspace.NewManager(workspaceRepo, membershipRepo, icons, state, sessions)

	// Warm the cache and restore the persisted selection when a session is
	// already present; failures are recorded in the manager's error slot.
	if sessions.Session() != nil {
		manager.LoadWorkspaces(context.Background())
		if manager.Err() == nil {
			manager.RestoreSelection(context.Background())
		}
	}

	// Prometheus metrics are served on a dedicated port so the scrape path
	// stays off the frontend API surface.
	if cfg.Telemetry.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	router := api.NewRouter(cfg, database, manager, sessions, icons)

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting gateway",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"auth_service", cfg.Auth.ServiceURL,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("gateway stopped")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", schemaVersion, dirty)
	return nil
}
