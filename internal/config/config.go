// Package config loads the proxy configuration.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/pattern-proxy/pkg/cache"
	"github.com/Sternrassler/pattern-proxy/pkg/upstream"
)

var validate = validator.New()

// Config is the complete proxy configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
}

type ServerConfig struct {
	Port          int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Pretty bool   `yaml:"pretty"`
}

type UpstreamConfig struct {
	UserAgent    string        `yaml:"user_agent" validate:"required"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gt=0"`
}

type CacheConfig struct {
	Backend      string        `yaml:"backend" validate:"oneof=redis leveldb sqlite memory"`
	RedisURL     string        `yaml:"redis_url" validate:"required_if=Backend redis"`
	LevelDBPath  string        `yaml:"leveldb_path" validate:"required_if=Backend leveldb"`
	SQLitePath   string        `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`

	// PurgeInterval controls how often expired rows are removed from the
	// sqlite backend. Zero disables purging.
	PurgeInterval time.Duration `yaml:"purge_interval" validate:"min=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			ShutdownGrace: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Upstream: UpstreamConfig{
			UserAgent:    upstream.DefaultUserAgent,
			Timeout:      upstream.DefaultTimeout,
			MaxBodyBytes: upstream.DefaultMaxBodyBytes,
		},
		Cache: CacheConfig{
			Backend:       cache.BackendRedis,
			RedisURL:      "localhost:6379",
			WriteTimeout:  10 * time.Second,
			PurgeInterval: time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the file named by CONFIG_FILE
// (if any) and the environment.
func Load() (Config, error) {
	return LoadFile(getEnv("CONFIG_FILE", ""))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// RedisOptions turns Cache.RedisURL into client options. Both redis:// URLs
// and bare host:port addresses are accepted.
func (c CacheConfig) RedisOptions() (*redis.Options, error) {
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}

func (c *Config) applyEnv() error {
	var err error

	if v := getEnv("PORT", ""); v != "" {
		if c.Server.Port, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
	}
	if v := getEnv("SHUTDOWN_GRACE", ""); v != "" {
		if c.Server.ShutdownGrace, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("SHUTDOWN_GRACE: %w", err)
		}
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if v := getEnv("LOG_PRETTY", ""); v != "" {
		if c.Log.Pretty, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
	}

	c.Upstream.UserAgent = getEnv("USER_AGENT", c.Upstream.UserAgent)
	if v := getEnv("UPSTREAM_TIMEOUT", ""); v != "" {
		if c.Upstream.Timeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("UPSTREAM_TIMEOUT: %w", err)
		}
	}
	if v := getEnv("UPSTREAM_MAX_BODY_BYTES", ""); v != "" {
		if c.Upstream.MaxBodyBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("UPSTREAM_MAX_BODY_BYTES: %w", err)
		}
	}

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.LevelDBPath = getEnv("LEVELDB_PATH", c.Cache.LevelDBPath)
	c.Cache.SQLitePath = getEnv("SQLITE_PATH", c.Cache.SQLitePath)
	if v := getEnv("CACHE_WRITE_TIMEOUT", ""); v != "" {
		if c.Cache.WriteTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("CACHE_WRITE_TIMEOUT: %w", err)
		}
	}
	if v := getEnv("CACHE_PURGE_INTERVAL", ""); v != "" {
		if c.Cache.PurgeInterval, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("CACHE_PURGE_INTERVAL: %w", err)
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
