/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the mission pay tracker server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (YAML file, .env, NURSEPAY_* variables, flags)
  2. Open the store (SQLite or in-memory) and seed the default rates
  3. Build the backup targets and start the backup scheduler
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML configuration file
  -port    HTTP server port (overrides the configuration)
  -db      SQLite database path (overrides the configuration)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the backup scheduler (a running backup finishes)
  2. Stop accepting new connections
  3. Wait for active requests to complete (shutdown timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/missions.db"

  # Run with a configuration file and JSON logs
  NURSEPAY_LOG_FORMAT=json ./server -config=nurse-pay.yaml

SEE ALSO:
  - config/config.go: Configuration keys and environment variables
  - api/server.go: Router configuration
  - backup/scheduler.go: Scheduled backups
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/warp/nurse-pay/api"
	"github.com/warp/nurse-pay/backup"
	"github.com/warp/nurse-pay/config"
	"github.com/warp/nurse-pay/factory"
	"github.com/warp/nurse-pay/ics"
	"github.com/warp/nurse-pay/logging"
	"github.com/warp/nurse-pay/metrics"
	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/store/memory"
	"github.com/warp/nurse-pay/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides the configuration)")
	dbPath := flag.String("db", "", "SQLite database path (overrides the configuration)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	logging.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", logging.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.Calendar.TimeZone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	// Initialize store
	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	defaults := factory.DefaultRates()
	if cfg.Storage.RateCatalog != "" {
		if defaults, err = factory.LoadCatalogFile(cfg.Storage.RateCatalog); err != nil {
			return err
		}
	}
	registry := payroll.NewRegistry(store,
		payroll.WithLocation(loc),
		payroll.WithDefaultRates(defaults),
		payroll.WithLogger(log),
	)
	if cfg.Storage.SeedDefaults {
		if _, err := registry.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed default rates: %w", err)
		}
	}

	m := metrics.New()

	// Backups
	targets, err := buildTargets(ctx, cfg.Backup)
	if err != nil {
		return err
	}
	var manager *backup.Manager
	if len(targets) > 0 {
		manager = backup.NewManager(registry, targets,
			backup.WithMaxBackups(cfg.Backup.MaxBackups),
			backup.WithRecorder(m),
			backup.WithLogger(log),
		)
	}
	if manager != nil && cfg.Backup.Enabled {
		scheduler, err := backup.NewScheduler(manager, cfg.Backup.Schedule, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Initialize handler
	icsOpts := ics.DefaultOptions()
	icsOpts.TimeZone = cfg.Calendar.TimeZone
	icsOpts.CalendarName = cfg.Calendar.CalendarName
	icsOpts.UIDDomain = cfg.Calendar.UIDDomain
	handler, err := api.NewHandler(registry, api.Config{
		Location: loc,
		Locale:   cfg.Calendar.Locale,
		ICS:      icsOpts,
		Backups:  manager,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	if info, err := registry.StorageInfo(ctx); err == nil {
		m.SetRecordCounts(info.Rates, info.Missions)
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", server.Addr, "storage", cfg.Storage.Driver,
			"timezone", cfg.Calendar.TimeZone, "backup_targets", len(targets))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStore(cfg config.StorageConfig) (payroll.Store, func(), error) {
	if cfg.Driver == "memory" {
		return memory.New(), func() {}, nil
	}
	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func buildTargets(ctx context.Context, cfg config.BackupConfig) ([]backup.Target, error) {
	var targets []backup.Target
	if cfg.Dir != "" {
		t, err := backup.NewDirTarget(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("backup directory: %w", err)
		}
		targets = append(targets, t)
	}
	if cfg.S3.Bucket != "" {
		t, err := backup.NewS3Target(ctx, backup.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 backup target: %w", err)
		}
		targets = append(targets, t)
	}
	if cfg.Drive.FolderID != "" {
		t, err := backup.NewDriveTarget(ctx, backup.DriveConfig{
			FolderID:        cfg.Drive.FolderID,
			CredentialsJSON: cfg.Drive.CredentialsJSON,
			CredentialsFile: cfg.Drive.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("drive backup target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
