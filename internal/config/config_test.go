package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "scans_db", cfg.Database.Database)
				assert.True(t, cfg.Database.AutoMigrate)
				assert.True(t, cfg.RabbitMQ.Enabled)
				assert.Equal(t, "scan_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "scan_events_audit", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "#", cfg.RabbitMQ.Queue.RoutingKey)
				assert.Equal(t, "scan-service", cfg.App.Name)
				assert.Equal(t, 8, cfg.Controller.Workers)
				assert.Equal(t, 50, cfg.Controller.QueueSize)
				assert.Equal(t, 2*time.Second, cfg.Scheduler.PollInterval)
				assert.Equal(t, "1.1.1.1", cfg.Recon.DNSServer)
				assert.Equal(t, 10.0, cfg.Recon.DetectRPS)
				assert.Equal(t, []string{"www", "api"}, cfg.Recon.Wordlist)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 4, cfg.Controller.Workers)
	assert.Equal(t, 100, cfg.Controller.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 20, cfg.Scheduler.TriggerBatch)
	assert.Equal(t, 50, cfg.Scheduler.ReconcileBatch)
	assert.Equal(t, 5*time.Second, cfg.Recon.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.Recon.CTTimeout)
	assert.Equal(t, "topic", cfg.RabbitMQ.Exchange.Type)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Empty(t, cfg.RabbitMQ.Queue.RoutingKey)
	assert.Zero(t, cfg.Recon.DetectRPS)

	require.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "scans_db",
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "scan_events"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq disabled skips its checks",
			mutate: func(c *Config) {
				c.RabbitMQ.Enabled = false
				c.RabbitMQ.Host = ""
				c.RabbitMQ.Exchange.Name = ""
			},
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "no workers",
			mutate:    func(c *Config) { c.Controller.Workers = 0 },
			wantErr:   true,
			errString: "controller workers must be greater than 0",
		},
		{
			name:      "negative detect rate",
			mutate:    func(c *Config) { c.Recon.DetectRPS = -1 },
			wantErr:   true,
			errString: "recon detect_rps must not be negative",
		},
		{
			name: "all problems reported",
			mutate: func(c *Config) {
				c.Server.Port = 0
				c.Database.Host = ""
			},
			wantErr:   true,
			errString: "database host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)

		err = cfg.ValidateDatabase()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestResolvePath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(PathEnv, "/etc/scan/env.yaml")
		assert.Equal(t, "/tmp/flag.yaml", ResolvePath("/tmp/flag.yaml"))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(PathEnv, "/etc/scan/env.yaml")
		assert.Equal(t, "/etc/scan/env.yaml", ResolvePath(""))
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(PathEnv, "")
		assert.Equal(t, DefaultPath, ResolvePath(""))
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDatabaseHost, "db.internal")
	t.Setenv(EnvDatabasePassword, "s3cret")
	t.Setenv(EnvRabbitMQHost, "")

	cfg := validConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "localhost", cfg.RabbitMQ.Host)
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
