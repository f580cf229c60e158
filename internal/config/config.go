package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"relay-server/internal/env"
	"relay-server/internal/logger"

	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	StoreNone     = "none"
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
)

// Config is the complete runtime configuration of the relay process.
type Config struct {
	NodeID   string         `yaml:"node_id"`
	Server   ServerConfig   `yaml:"server"`
	Relay    RelayConfig    `yaml:"relay"`
	Logging  LoggingConfig  `yaml:"logging"`
	Queue    QueueConfig    `yaml:"queue"`
	Redis    RedisConfig    `yaml:"redis"`
	Sessions SessionsConfig `yaml:"sessions"`
	AWS      AWSConfig      `yaml:"aws"`
}

type ServerConfig struct {
	Address        string   `yaml:"address"`
	WSPath         string   `yaml:"ws_path"`
	APIPrefix      string   `yaml:"api_prefix"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AdminEnabled   bool     `yaml:"admin_enabled"`
}

type RelayConfig struct {
	SendWelcome  bool          `yaml:"send_welcome"`
	SendBuffer   int           `yaml:"send_buffer"`
	ReadLimit    int64         `yaml:"read_limit"`
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QueueConfig sizes the worker pools. HTTP jobs run on Workers goroutines;
// lifecycle events always run on a single ordered worker.
type QueueConfig struct {
	Size        int `yaml:"size"`
	Workers     int `yaml:"workers"`
	EventBuffer int `yaml:"event_buffer"`
}

type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	KeyPrefix     string `yaml:"key_prefix"`
	EventsChannel string `yaml:"events_channel"`
}

type SessionsConfig struct {
	Store string `yaml:"store"`
	Table string `yaml:"table"`
	DSN   string `yaml:"dsn"`
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":3000",
			WSPath:         "/ws",
			APIPrefix:      "/api/v1",
			AllowedOrigins: []string{"*"},
			AdminEnabled:   true,
		},
		Relay: RelayConfig{
			SendWelcome:  true,
			SendBuffer:   256,
			ReadLimit:    512 * 1024,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Queue: QueueConfig{
			Size:        10,
			Workers:     10,
			EventBuffer: 1024,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			KeyPrefix:     "relay",
			EventsChannel: "relay:events",
		},
		Sessions: SessionsConfig{
			Store: StoreNone,
			Table: "RelaySessions",
		},
	}
}

// Load reads defaults, then the YAML file at path (if any), then environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := env.Lookup(env.NodeID); ok {
		cfg.NodeID = v
	}
	if v, ok := env.Lookup(env.ServerAddr); ok {
		cfg.Server.Address = v
	}
	if origins := env.GetList(env.AllowedOrigins); origins != nil {
		cfg.Server.AllowedOrigins = origins
	}
	cfg.Server.AdminEnabled = env.GetBool(env.AdminEnabled, cfg.Server.AdminEnabled)
	cfg.Relay.SendWelcome = env.GetBool(env.SendWelcome, cfg.Relay.SendWelcome)
	cfg.Relay.PingInterval = env.GetDuration(env.PingInterval, cfg.Relay.PingInterval)

	cfg.Logging.Level = env.GetOrDefault(env.LogLevel, cfg.Logging.Level)
	cfg.Logging.Format = env.GetOrDefault(env.LogFormat, cfg.Logging.Format)

	cfg.Redis.Enabled = env.GetBool(env.RedisEnabled, cfg.Redis.Enabled)
	cfg.Redis.Addr = env.GetOrDefault(env.RedisURL, cfg.Redis.Addr)
	cfg.Redis.Password = env.GetOrDefault(env.RedisPass, cfg.Redis.Password)

	cfg.Sessions.Store = env.GetOrDefault(env.SessionStore, cfg.Sessions.Store)
	cfg.Sessions.DSN = env.GetOrDefault(env.SessionDSN, cfg.Sessions.DSN)
	cfg.Sessions.Table = env.GetOrDefault(env.SessionTable, cfg.Sessions.Table)

	cfg.AWS.Region = env.GetOrDefault(env.AWSRegion, cfg.AWS.Region)
	cfg.AWS.AccessKeyID = env.GetOrDefault(env.AWSID, cfg.AWS.AccessKeyID)
	cfg.AWS.SecretAccessKey = env.GetOrDefault(env.AWSSecret, cfg.AWS.SecretAccessKey)
	cfg.AWS.SessionToken = env.GetOrDefault(env.AWSToken, cfg.AWS.SessionToken)
	cfg.AWS.Endpoint = env.GetOrDefault(env.DynamoDBEndpoint, cfg.AWS.Endpoint)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("ws_path must start with '/': %q", c.Server.WSPath)
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/': %q", c.Server.APIPrefix)
	}
	if c.Relay.SendBuffer < 1 {
		return fmt.Errorf("relay send_buffer must be at least 1")
	}
	if c.Relay.ReadLimit < 1 {
		return fmt.Errorf("relay read_limit must be at least 1")
	}
	if c.Relay.PingInterval < 0 || c.Relay.WriteTimeout < 0 {
		return fmt.Errorf("relay intervals cannot be negative")
	}
	if c.Queue.Size < 1 || c.Queue.Workers < 1 || c.Queue.EventBuffer < 1 {
		return fmt.Errorf("queue size, workers and event_buffer must be at least 1")
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis enabled but addr not provided")
	}

	switch c.Sessions.Store {
	case StoreNone, "":
	case StoreDynamoDB:
		if c.AWS.Region == "" {
			return fmt.Errorf("dynamodb session store requires aws.region")
		}
		if c.Sessions.Table == "" {
			return fmt.Errorf("dynamodb session store requires sessions.table")
		}
	case StoreSQLite, StoreMySQL:
		if c.Sessions.DSN == "" {
			return fmt.Errorf("%s session store requires sessions.dsn", c.Sessions.Store)
		}
	default:
		return fmt.Errorf("unsupported session store: %s", c.Sessions.Store)
	}

	return nil
}

// String returns a string representation of the configuration (for logging)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Node: %s, Address: %s, WS: %s, Redis: %v, Sessions: %s, LogLevel: %s}",
		c.NodeID, c.Server.Address, c.Server.WSPath, c.Redis.Enabled, c.Sessions.Store, c.Logging.Level)
}
