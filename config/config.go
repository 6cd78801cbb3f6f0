package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// InsecureDefaultSecret is the built-in cipher secret. Usable for local
// development only; Validate rejects it in production mode.
const InsecureDefaultSecret = "default-key-change-this"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Protect   ProtectConfig   `yaml:"protect"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

type StoreConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CryptoConfig struct {
	Secret string `yaml:"secret"`
}

type ProtectConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("15m", "60s").
// Absent keys keep the values already in place.
func (p *ProtectConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		TTL           string `yaml:"ttl"`
		SweepInterval string `yaml:"sweep_interval"`
		MaxAttempts   int    `yaml:"max_attempts"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.TTL != "" {
		d, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("parsing ttl: %w", err)
		}
		p.TTL = d
	}
	if raw.SweepInterval != "" {
		d, err := time.ParseDuration(raw.SweepInterval)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval: %w", err)
		}
		p.SweepInterval = d
	}
	if raw.MaxAttempts != 0 {
		p.MaxAttempts = raw.MaxAttempts
	}
	return nil
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	AnswerPerMin   int  `yaml:"answer_per_min"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Environment: "development",
		},
		Store: StoreConfig{
			Type: "memory",
			SQLite: SQLiteConfig{
				Path: "blackout.db",
			},
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Crypto: CryptoConfig{
			Secret: InsecureDefaultSecret,
		},
		Protect: ProtectConfig{
			TTL:           15 * time.Minute,
			SweepInterval: 60 * time.Second,
			MaxAttempts:   3,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
			AnswerPerMin:   20,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLite.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}

	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Crypto.Secret = v
	}

	if v := os.Getenv("MESSAGE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Protect.TTL = ttl
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil {
			c.Protect.SweepInterval = interval
		}
	}
	if v := os.Getenv("MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Protect.MaxAttempts = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_ANSWER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.AnswerPerMin = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required when store type is 'sqlite'")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when store type is 'redis'")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'sqlite' or 'redis')", c.Store.Type)
	}

	if c.Crypto.Secret == "" {
		return fmt.Errorf("encryption secret is required")
	}
	if c.Production() && c.Crypto.Secret == InsecureDefaultSecret {
		return fmt.Errorf("the default encryption secret cannot be used in production")
	}

	if c.Protect.TTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	if c.Protect.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if c.Protect.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			return fmt.Errorf("requests_per_min must be at least 1 when rate limiting is enabled")
		}
		if c.RateLimit.AnswerPerMin < 1 {
			return fmt.Errorf("answer_per_min must be at least 1 when rate limiting is enabled")
		}
	}

	return nil
}

func (c *Config) Production() bool {
	return c.Server.Environment == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
