// Package config loads the service configuration from an optional YAML file
// with environment variable overrides on top.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects and configures the completion store backend.
type StorageConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgresDsn"`
	SQLitePath  string `yaml:"sqlitePath"`
}

// CacheConfig selects the statistics cache backend. An empty RedisAddr keeps
// the in-process TTL cache.
type CacheConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`
}

// LoggingConfig controls logrus.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SessionsConfig tunes the orchestrator.
type SessionsConfig struct {
	HistoryCapacity int           `yaml:"historyCapacity"`
	TargetSolveTime time.Duration `yaml:"targetSolveTime"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "quest.db",
		},
		Logging: LoggingConfig{Level: "info"},
		Sessions: SessionsConfig{
			HistoryCapacity: 50,
			TargetSolveTime: 10 * time.Minute,
		},
	}
}

// Load reads path (when non-empty and present), then applies environment
// overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file falls back to defaults plus env.
		case err != nil:
			return cfg, apperr.Wrap(apperr.KindConfiguration, err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, apperr.Wrap(apperr.KindConfiguration, err, "parse config %s", path)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays QUEST_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QUEST_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QUEST_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("QUEST_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("QUEST_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("QUEST_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("QUEST_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("QUEST_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.RedisDB = n
		}
	}
	if v := os.Getenv("QUEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUEST_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.JSON = b
		}
	}
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return apperr.Configuration("storage driver postgres requires a DSN")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return apperr.Configuration("storage driver sqlite requires a path")
		}
	default:
		return apperr.Configuration("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Sessions.HistoryCapacity <= 0 {
		return apperr.Configuration("historyCapacity must be positive")
	}
	return nil
}
