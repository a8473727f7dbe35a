package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// PathEnv names the environment variable holding the config file path
	PathEnv = "SCAN_SERVICE_CONFIG_PATH"
	// DefaultPath is used when neither a flag nor PathEnv is set
	DefaultPath = "config/config.yaml"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Controller ControllerConfig `yaml:"controller"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Recon      ReconConfig      `yaml:"recon"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
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
	// AutoMigrate applies pending migrations when serve starts
	AutoMigrate bool `yaml:"auto_migrate"`
}

// RabbitMQConfig holds the connection and exchange used for lifecycle events
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig optionally declares a queue bound to the exchange so events are
// retained while no consumer is attached. Empty Name declares nothing.
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
	RoutingKey string `yaml:"routing_key"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
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

// ControllerConfig sizes the job worker pool
type ControllerConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	StatusTimeout   time.Duration `yaml:"status_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SchedulerConfig controls the schedule dispatcher
type SchedulerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	TriggerBatch   int           `yaml:"trigger_batch"`
	ReconcileBatch int           `yaml:"reconcile_batch"`
}

// ReconConfig holds network settings of the recon pipeline
type ReconConfig struct {
	DNSServer        string        `yaml:"dns_server"`
	DNSTimeout       time.Duration `yaml:"dns_timeout"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	CTBaseURL        string        `yaml:"ct_base_url"`
	CTTimeout        time.Duration `yaml:"ct_timeout"`
	ProbeConcurrency int           `yaml:"probe_concurrency"`
	// DetectRPS caps outbound detector requests per second; 0 disables it
	DetectRPS float64 `yaml:"detect_rps"`
	// Wordlist replaces the built-in brute-force labels when non-empty
	Wordlist []string `yaml:"wordlist"`
	// APIRPS caps requests of the API security scanner
	APIRPS float64 `yaml:"api_rps"`
}

// Load reads and parses the configuration file and fills in defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ResolvePath picks the config file: an explicit path wins over PathEnv,
// which wins over DefaultPath
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// ApplyDefaults fills zero values with working defaults
func (c *Config) ApplyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.Queue.Name != "" && c.RabbitMQ.Queue.RoutingKey == "" {
		c.RabbitMQ.Queue.RoutingKey = "#"
	}
	if c.RabbitMQ.Connection.RetryAttempts <= 0 {
		c.RabbitMQ.Connection.RetryAttempts = 5
	}
	if c.RabbitMQ.Connection.RetryInterval <= 0 {
		c.RabbitMQ.Connection.RetryInterval = 2 * time.Second
	}
	if c.RabbitMQ.Publish.RetryAttempts <= 0 {
		c.RabbitMQ.Publish.RetryAttempts = 3
	}
	if c.RabbitMQ.Publish.RetryInterval <= 0 {
		c.RabbitMQ.Publish.RetryInterval = 100 * time.Millisecond
	}
	if c.RabbitMQ.Publish.BackoffMultiplier <= 0 {
		c.RabbitMQ.Publish.BackoffMultiplier = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Controller.Workers <= 0 {
		c.Controller.Workers = 4
	}
	if c.Controller.QueueSize <= 0 {
		c.Controller.QueueSize = 100
	}
	if c.Controller.StatusTimeout <= 0 {
		c.Controller.StatusTimeout = 5 * time.Second
	}
	if c.Controller.ShutdownTimeout <= 0 {
		c.Controller.ShutdownTimeout = 30 * time.Second
	}
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = 2 * time.Second
	}
	if c.Scheduler.TriggerBatch <= 0 {
		c.Scheduler.TriggerBatch = 20
	}
	if c.Scheduler.ReconcileBatch <= 0 {
		c.Scheduler.ReconcileBatch = 50
	}
	if c.Recon.DNSTimeout <= 0 {
		c.Recon.DNSTimeout = 3 * time.Second
	}
	if c.Recon.HTTPTimeout <= 0 {
		c.Recon.HTTPTimeout = 5 * time.Second
	}
	if c.Recon.CTTimeout <= 0 {
		c.Recon.CTTimeout = 30 * time.Second
	}
	if c.Recon.APIRPS <= 0 {
		c.Recon.APIRPS = 5
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort))
	}

	if err := c.ValidateDatabase(); err != nil {
		errs = append(errs, err)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			errs = append(errs, fmt.Errorf("rabbitmq host is required"))
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			errs = append(errs, fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort))
		}
		if c.RabbitMQ.Exchange.Name == "" {
			errs = append(errs, fmt.Errorf("rabbitmq exchange name is required"))
		}
	}

	if c.Controller.Workers <= 0 {
		errs = append(errs, fmt.Errorf("controller workers must be greater than 0"))
	}

	if c.Controller.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("controller queue_size must be greater than 0"))
	}

	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler poll_interval must be greater than 0"))
	}

	if c.Recon.DetectRPS < 0 {
		errs = append(errs, fmt.Errorf("recon detect_rps must not be negative"))
	}

	if c.Recon.ProbeConcurrency < 0 {
		errs = append(errs, fmt.Errorf("recon probe_concurrency must not be negative"))
	}

	return errors.Join(errs...)
}

// ValidateDatabase checks the database section only. The migrate command
// needs nothing else.
func (c *Config) ValidateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

// Environment overrides applied by ApplyEnv. Secrets usually arrive this way,
// often from a .env file.
const (
	EnvDatabaseHost     = "SCAN_DB_HOST"
	EnvDatabasePassword = "SCAN_DB_PASSWORD"
	EnvRabbitMQHost     = "SCAN_RABBITMQ_HOST"
	EnvRabbitMQPassword = "SCAN_RABBITMQ_PASSWORD"
)

// ApplyEnv overrides connection settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseHost); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv(EnvDatabasePassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvRabbitMQHost); v != "" {
		c.RabbitMQ.Host = v
	}
	if v := os.Getenv(EnvRabbitMQPassword); v != "" {
		c.RabbitMQ.Password = v
	}
}
