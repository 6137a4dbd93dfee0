package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/api/handler"
	"github.com/cuongbtq/onprem-bridge/internal/api/router"
	"github.com/cuongbtq/onprem-bridge/internal/audit"
	"github.com/cuongbtq/onprem-bridge/internal/auth"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/cuongbtq/onprem-bridge/internal/config"
	"github.com/cuongbtq/onprem-bridge/internal/metrics"
	"github.com/cuongbtq/onprem-bridge/internal/signing"
	"github.com/cuongbtq/onprem-bridge/internal/tools"
	"github.com/cuongbtq/onprem-bridge/shared/logger"
	"github.com/cuongbtq/onprem-bridge/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("CONTROL_PLANE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/control-plane/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateControlPlaneConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting control plane",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage_mode", cfg.Storage.Mode),
		slog.String("auth_provider", cfg.Auth.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := initStore(&cfg.Storage, appLogger.Component("store"))
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}

	readiness := map[string]handler.ReadinessCheck{}

	sinks := []audit.Sink{audit.NewLogSink(appLogger.Component("audit"))}
	var rabbitClient *rabbitmq.Client
	if cfg.Audit.Publish {
		rabbitClient, err = initRabbitMQ(ctx, &cfg.Audit.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		sinks = append(sinks, audit.NewAMQPSink(rabbitClient))
		readiness["audit_broker"] = func(context.Context) error {
			if !rabbitClient.IsConnected() {
				return rabbitmq.ErrNotConnected
			}
			return nil
		}
		appLogger.Info("RabbitMQ audit publishing enabled")
	}
	auditor := audit.New(appLogger.Logger, sinks...)

	authMode, err := cfg.Auth.Mode()
	if err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	verifier, err := auth.New(ctx, authMode)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bridgeMetrics := metrics.New(registry, jobStore)

	r := initRouter(cfg, &handler.Dependencies{
		Logger:          appLogger.Component("http"),
		Store:           jobStore,
		Tools:           tools.NewService(jobStore, auditor, bridgeMetrics, appLogger.Component("tools")),
		Signer:          signing.NewSigner(cfg.Bridge.JobSigningSecret),
		Auditor:         auditor,
		Metrics:         bridgeMetrics,
		ReadinessChecks: readiness,
	}, router.Options{
		AgentToken: cfg.Bridge.AgentToken,
		Verifier:   verifier,
		Gatherer:   registry,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initStore builds the job store, restoring previous state in file mode
func initStore(cfg *config.StorageConfig, logger *slog.Logger) (*store.Store, error) {
	if cfg.Mode != config.StorageFile {
		return store.NewStore(store.WithLogger(logger)), nil
	}

	jobs, rejected, quarantined, err := store.LoadOrQuarantine(cfg.StateFile, time.Now())
	if err != nil {
		return nil, err
	}
	if quarantined != "" {
		logger.Warn("State file was unreadable, moved aside and starting empty",
			slog.String("path", cfg.StateFile),
			slog.String("moved_to", quarantined),
		)
	}
	if rejected > 0 {
		logger.Warn("Dropped malformed rows from state file",
			slog.String("path", cfg.StateFile),
			slog.Int("rejected", rejected),
		)
	}

	s := store.NewStore(
		store.WithLogger(logger),
		store.WithPersister(store.NewFilePersister(cfg.StateFile)),
	)
	if err := s.Restore(jobs); err != nil {
		return nil, fmt.Errorf("failed to restore jobs: %w", err)
	}

	logger.Info("Restored bridge jobs",
		slog.String("path", cfg.StateFile),
		slog.Int("jobs", len(jobs)),
	)
	return s, nil
}

// initRabbitMQ initializes the RabbitMQ client used for audit publishing
func initRabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(ctx, &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		ExchangeName:      cfg.Exchange.Name,
		ExchangeType:      cfg.Exchange.Type,
		QueueName:         cfg.Queue,
		RoutingKey:        cfg.RoutingKey,
		RetryAttempts:     cfg.Connection.RetryAttempts,
		RetryInterval:     cfg.Connection.RetryInterval,
		Heartbeat:         cfg.Connection.Heartbeat,
		PublishRetries:    cfg.Publish.RetryAttempts,
		PublishRetryDelay: cfg.Publish.RetryInterval,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies, opts router.Options) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, opts)
}
