package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Push       PushConfig       `yaml:"push"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Bolt       BoltConfig       `yaml:"bolt"`
	Redis      RedisConfig      `yaml:"redis"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	Environment     string  `yaml:"environment"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// IsProduction reports whether development-only endpoints must be refused.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == EnvironmentProduction
}

// PushConfig holds the VAPID keys and the defaults applied to every push message.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
	Urgency    string `yaml:"urgency"`
	Topic      string `yaml:"topic"`
	RecordSize uint32 `yaml:"record_size"`
}

const (
	BackendDatabase = "database"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
)

// StorageConfig selects the subscription store backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// BoltConfig holds the bbolt file store configuration.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds the redis connection configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DispatchConfig bounds the per-owner fan-out.
type DispatchConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// WorkerPoolConfig holds the configuration for the send worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// ScheduleConfig controls the daily trivia broadcast.
type ScheduleConfig struct {
	EnabledFlag *bool  `yaml:"enabled"`
	Enabled     bool   `yaml:"-"` // Resolved from EnabledFlag, true when unset
	HourOfDay   *int   `yaml:"hour"`
	Hour        int    `yaml:"-"` // Resolved from HourOfDay, 7 when unset
	Timezone    string `yaml:"timezone"`
}

// Load reads the configuration from the given path. Settings passed through
// overrides win over the file; overrides may be nil.
func Load(path string, overrides *Overrides) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	overrides.apply(&cfg)
	cfg.applyDefaults()
	return &cfg, nil
}

// FromOverrides builds a configuration without a file: defaults plus whatever
// the flags or environment set.
func FromOverrides(overrides *Overrides) *Config {
	var cfg Config
	overrides.apply(&cfg)
	cfg.applyDefaults()
	return &cfg
}

// Default returns a configuration with every default applied and no VAPID keys.
func Default() *Config {
	return FromOverrides(nil)
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.Environment == "" {
		c.Server.Environment = EnvironmentDevelopment
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 5
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 300
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}
	if c.Push.Urgency == "" {
		c.Push.Urgency = "normal"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendDatabase
	}
	if c.Database.Driver == "" {
		c.Database.Driver = driverForDSN(c.Database.DSN)
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "file:push.db"
	}
	if c.Bolt.Path == "" {
		c.Bolt.Path = "push.bolt"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Dispatch.Concurrency <= 0 {
		c.Dispatch.Concurrency = 4
	}
	if c.Dispatch.TimeoutSeconds <= 0 {
		c.Dispatch.TimeoutSeconds = 10
	}
	c.Dispatch.Timeout = time.Duration(c.Dispatch.TimeoutSeconds) * time.Second

	if c.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		c.WorkerPool.Size = 1
	}
	if c.WorkerPool.QueueSize <= 0 {
		c.WorkerPool.QueueSize = 64
	}

	c.Schedule.Enabled = true
	if e := c.Schedule.EnabledFlag; e != nil {
		c.Schedule.Enabled = *e
	}
	c.Schedule.Hour = 7
	if h := c.Schedule.HourOfDay; h != nil {
		if *h >= 0 && *h <= 23 {
			c.Schedule.Hour = *h
		} else {
			log.Printf("schedule.hour %d is out of range; defaulting to 7", *h)
		}
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "UTC"
	}
}

// driverForDSN picks postgres for postgres URLs and key=value DSNs, sqlite otherwise.
func driverForDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname="):
		return "postgres"
	default:
		return "sqlite"
	}
}
