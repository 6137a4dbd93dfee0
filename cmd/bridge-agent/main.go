package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/agent"
	"github.com/cuongbtq/onprem-bridge/internal/config"
	"github.com/cuongbtq/onprem-bridge/internal/signing"
	"github.com/cuongbtq/onprem-bridge/shared/logger"
	"github.com/cuongbtq/onprem-bridge/shared/postgresql"
	"github.com/joho/godotenv"
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

	defaultConfigPath := os.Getenv("BRIDGE_AGENT_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/bridge-agent/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	once := flag.Bool("once", false, "Run a single pull/post cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAgentConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := initSource(ctx, cfg, appLogger.Component("source"))
	if err != nil {
		return fmt.Errorf("failed to initialize data source: %w", err)
	}
	defer closeSource()

	bridgeAgent := agent.New(&agent.Config{
		Logger:       appLogger.Component("agent"),
		Client:       agent.NewClient(cfg.Agent.ControlPlaneURL, cfg.Bridge.AgentToken, cfg.Agent.RequestTimeout),
		Source:       source,
		Signer:       signing.NewSigner(cfg.Bridge.JobSigningSecret),
		PollInterval: cfg.Agent.PollInterval,
	})

	if *once {
		processed, err := bridgeAgent.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !processed {
			appLogger.Info("No queued job")
		}
		return nil
	}

	appLogger.Info("Bridge agent polling control plane",
		slog.String("control_plane_url", cfg.Agent.ControlPlaneURL),
		slog.Duration("poll_interval", cfg.Agent.PollInterval),
		slog.String("source", cfg.Agent.Source),
	)

	return bridgeAgent.Start(ctx)
}

// initSource builds the on-prem data source selected in the config
func initSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (agent.Source, func(), error) {
	if cfg.Agent.Source != config.SourcePostgres {
		return agent.NewStaticSource(), func() {}, nil
	}

	db := &cfg.Database
	client, err := postgresql.NewClient(ctx, &postgresql.Config{
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password,
		Database:        db.Database,
		SSLMode:         db.SSLMode,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close database", slog.String("error", err.Error()))
		}
	}
	return agent.NewPostgresSource(client), closeFn, nil
}
