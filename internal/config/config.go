package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage modes
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// Agent data sources
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
)

// Auth providers
const (
	ProviderSharedSecret = "shared_secret"
	ProviderOIDCJWKS     = "oidc_jwks"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Storage  StorageConfig  `yaml:"storage"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Auth     AuthConfig     `yaml:"auth"`
	Audit    AuditConfig    `yaml:"audit"`
	Agent    AgentConfig    `yaml:"agent"`
	Database DatabaseConfig `yaml:"database"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// StorageConfig selects where the control plane keeps job state
type StorageConfig struct {
	Mode      string `yaml:"mode"`
	StateFile string `yaml:"state_file"`
}

// BridgeConfig holds the secrets shared between control plane and agent
type BridgeConfig struct {
	AgentToken       string `yaml:"agent_token"`
	JobSigningSecret string `yaml:"job_signing_secret"`
}

// AuthConfig holds caller token verification settings
type AuthConfig struct {
	Provider  string `yaml:"provider"`
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	JWKSURI   string `yaml:"jwks_uri"`
}

// AuditConfig controls where audit records go besides the log
type AuditConfig struct {
	Publish  bool           `yaml:"publish"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      string           `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// AgentConfig holds bridge agent settings
type AgentConfig struct {
	ControlPlaneURL string        `yaml:"control_plane_url"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Source          string        `yaml:"source"`
}

// DatabaseConfig holds the on-prem PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// Load reads and parses the configuration file, then applies environment
// overrides and defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

// applyEnv overrides secrets and deployment-specific settings from the
// environment. Secrets are expected to come from here rather than the YAML.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"AUTH_PROVIDER", &c.Auth.Provider},
		{"JWT_SECRET", &c.Auth.JWTSecret},
		{"JWT_ISSUER", &c.Auth.Issuer},
		{"JWT_AUDIENCE", &c.Auth.Audience},
		{"OIDC_JWKS_URI", &c.Auth.JWKSURI},
		{"BRIDGE_AGENT_TOKEN", &c.Bridge.AgentToken},
		{"JOB_SIGNING_SECRET", &c.Bridge.JobSigningSecret},
		{"STORAGE_MODE", &c.Storage.Mode},
		{"BRIDGE_STATE_FILE", &c.Storage.StateFile},
		{"CONTROL_PLANE_URL", &c.Agent.ControlPlaneURL},
		{"BRIDGE_AGENT_SOURCE", &c.Agent.Source},
		{"DATABASE_PASSWORD", &c.Database.Password},
		{"RABBITMQ_PASSWORD", &c.Audit.RabbitMQ.Password},
		{"LOG_LEVEL", &c.Logging.Level},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	if v, ok := lookup("BRIDGE_POLL_INTERVAL_MS"); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BRIDGE_POLL_INTERVAL_MS %q: %w", v, err)
		}
		c.Agent.PollInterval = time.Duration(ms) * time.Millisecond
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = StorageMemory
	}
	if c.Storage.Mode == StorageFile && c.Storage.StateFile == "" {
		c.Storage.StateFile = ".demo-data/bridge_jobs.json"
	}
	if c.Auth.Provider == "" {
		c.Auth.Provider = ProviderSharedSecret
	}
	if c.Agent.ControlPlaneURL == "" && c.Server.Port != 0 {
		c.Agent.ControlPlaneURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Agent.PollInterval == 0 {
		c.Agent.PollInterval = 2 * time.Second
	}
	if c.Agent.RequestTimeout == 0 {
		c.Agent.RequestTimeout = 10 * time.Second
	}
	if c.Agent.Source == "" {
		c.Agent.Source = SourceStatic
	}
}

// ValidateControlPlaneConfig checks the settings the control plane needs
func (c *Config) ValidateControlPlaneConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateBridgeSecrets(); err != nil {
		return err
	}

	switch c.Storage.Mode {
	case StorageMemory:
	case StorageFile:
		if c.Storage.StateFile == "" {
			return errors.New("storage state_file is required in file mode")
		}
	default:
		return fmt.Errorf("invalid storage mode: %q (must be %s or %s)", c.Storage.Mode, StorageMemory, StorageFile)
	}

	if _, err := c.Auth.Mode(); err != nil {
		return err
	}

	if c.Audit.Publish {
		mq := c.Audit.RabbitMQ
		if mq.Host == "" {
			return errors.New("rabbitmq host is required when audit publishing is enabled")
		}
		if mq.Port < MinPort || mq.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", mq.Port, MinPort, MaxPort)
		}
		if mq.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
	}

	return nil
}

// ValidateAgentConfig checks the settings the bridge agent needs
func (c *Config) ValidateAgentConfig() error {
	if err := c.validateBridgeSecrets(); err != nil {
		return err
	}

	u, err := url.Parse(c.Agent.ControlPlaneURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid agent control_plane_url: %q", c.Agent.ControlPlaneURL)
	}

	if c.Agent.PollInterval <= 0 {
		return errors.New("agent poll_interval must be greater than 0")
	}

	switch c.Agent.Source {
	case SourceStatic:
	case SourcePostgres:
		if c.Database.Host == "" {
			return errors.New("database host is required for the postgres source")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return errors.New("database name is required for the postgres source")
		}
	default:
		return fmt.Errorf("invalid agent source: %q (must be %s or %s)", c.Agent.Source, SourceStatic, SourcePostgres)
	}

	return nil
}

func (c *Config) validateBridgeSecrets() error {
	if strings.TrimSpace(c.Bridge.AgentToken) == "" {
		return errors.New("bridge agent_token is required (BRIDGE_AGENT_TOKEN)")
	}
	if strings.TrimSpace(c.Bridge.JobSigningSecret) == "" {
		return errors.New("bridge job_signing_secret is required (JOB_SIGNING_SECRET)")
	}
	return nil
}
