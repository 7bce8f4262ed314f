package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
	// DefaultPort is used when neither the config file nor PORT sets one
	DefaultPort = 3000
)

// Directory sources
const (
	DirectorySourceBuiltin  = "builtin"
	DirectorySourceFile     = "file"
	DirectorySourcePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Directory DirectoryConfig `yaml:"directory"`
	Database  DatabaseConfig  `yaml:"database"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ResolverConfig controls how image URLs are fetched and measured
type ResolverConfig struct {
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	MaxImageBytes   int64         `yaml:"max_image_bytes"`
	SimulateLatency bool          `yaml:"simulate_latency"`
	LatencyMin      time.Duration `yaml:"latency_min"`
	LatencyMax      time.Duration `yaml:"latency_max"`
}

// JobsConfig controls job retention. A zero retention keeps jobs for the process lifetime.
type JobsConfig struct {
	Retention       time.Duration `yaml:"retention"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	StopTimeout     time.Duration `yaml:"stop_timeout"`
}

// DirectoryConfig selects where the store master is loaded from
type DirectoryConfig struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
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
}

// EventsConfig enables publishing job events to RabbitMQ
type EventsConfig struct {
	Enabled  bool           `yaml:"enabled"`
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
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
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

// QueueConfig holds RabbitMQ queue configuration. An empty name skips queue declaration.
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
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

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		App: AppConfig{
			Name:        "visit-metrics-api",
			Version:     "1.0.0",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Resolver: ResolverConfig{
			FetchTimeout:    5 * time.Second,
			SimulateLatency: true,
			LatencyMin:      100 * time.Millisecond,
			LatencyMax:      400 * time.Millisecond,
		},
		Jobs: JobsConfig{
			JanitorInterval: time.Minute,
			StopTimeout:     30 * time.Second,
		},
		Directory: DirectoryConfig{
			Source: DirectorySourceBuiltin,
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    2,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Events: EventsConfig{
			RabbitMQ: RabbitMQConfig{
				Port:  5672,
				VHost: "/",
				Exchange: ExchangeConfig{
					Name:    "visit_jobs",
					Type:    "topic",
					Durable: true,
				},
				RoutingKey: "job.finalized",
				Connection: ConnectionConfig{
					RetryAttempts: 5,
					RetryInterval: 2 * time.Second,
					Heartbeat:     10 * time.Second,
				},
				Publish: PublishConfig{
					RetryAttempts:     3,
					RetryInterval:     100 * time.Millisecond,
					BackoffMultiplier: 2.0,
				},
			},
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path returns the defaults.
func Load(configPath string) (*Config, error) {
	config := Default()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides file values with environment variables
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Resolver.FetchTimeout <= 0 {
		return fmt.Errorf("resolver fetch_timeout must be greater than 0")
	}

	if c.Resolver.MaxImageBytes < 0 {
		return fmt.Errorf("resolver max_image_bytes must not be negative")
	}

	if c.Resolver.SimulateLatency {
		if c.Resolver.LatencyMin < 0 {
			return fmt.Errorf("resolver latency_min must not be negative")
		}
		if c.Resolver.LatencyMax < c.Resolver.LatencyMin {
			return fmt.Errorf("resolver latency_max must not be less than latency_min")
		}
	}

	if c.Jobs.Retention < 0 {
		return fmt.Errorf("jobs retention must not be negative")
	}

	switch c.Directory.Source {
	case DirectorySourceBuiltin, "":
	case DirectorySourceFile:
		if c.Directory.Path == "" {
			return fmt.Errorf("directory path is required for file source")
		}
	case DirectorySourcePostgres:
		if err := c.validateDatabase(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown directory source: %q", c.Directory.Source)
	}

	if c.Events.Enabled {
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateDatabase() error {
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

func (c *Config) validateRabbitMQ() error {
	r := c.Events.RabbitMQ

	if r.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if r.Port < MinPort || r.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", r.Port, MinPort, MaxPort)
	}

	if r.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}
