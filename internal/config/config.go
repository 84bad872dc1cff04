package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"txservice/internal/directive"
	"txservice/internal/logging"
	"txservice/internal/store"
)

// EnvPrefix marks environment overrides. Nested keys use "__", so
// TXSERVICE_HTTP__ADDR sets http.addr.
const EnvPrefix = "TXSERVICE_"

type StoreMode string

const (
	StorePerRequest StoreMode = "request"
	StoreShared     StoreMode = "shared"
	StoreRedis      StoreMode = "redis"
)

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	BodyLimit       int64         `koanf:"body_limit"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type MetricsConfig struct {
	Port int `koanf:"port"` // 0 disables the endpoint
}

type StoreConfig struct {
	Mode  StoreMode         `koanf:"mode"`
	Redis store.RedisConfig `koanf:"redis"`
}

type DirectivesConfig struct {
	Aliases    map[string]string `koanf:"aliases"`
	Exclusions []string          `koanf:"exclusions"`
	UserFile   string            `koanf:"user_file"`
}

type ServicesConfig struct {
	BaseURL string `koanf:"base_url"`
}

type StreamConfig struct {
	Pipeline string `koanf:"pipeline"`
}

type Config struct {
	HTTP        HTTPConfig       `koanf:"http"`
	GRPC        GRPCConfig       `koanf:"grpc"`
	Metrics     MetricsConfig    `koanf:"metrics"`
	Log         logging.Options  `koanf:"log"`
	Environment string           `koanf:"environment"`
	Namespace   string           `koanf:"namespace"`
	Charset     string           `koanf:"charset"`
	Store       StoreConfig      `koanf:"store"`
	Directives  DirectivesConfig `koanf:"directives"`
	Services    ServicesConfig   `koanf:"services"`
	Stream      StreamConfig     `koanf:"stream"`
}

// Load merges YAML (if present) with environment overrides and fills
// defaults. An empty path loads defaults and env only.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	_ = k.Load(env.Provider(EnvPrefix, ".", envKey), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func applyDefaults(c *Config) {
	// TXSERVICE_LOG_LEVEL is the spelling logging.InitFromEnv reads.
	if c.Log.Level == "" {
		c.Log.Level = os.Getenv(EnvPrefix + "LOG_LEVEL")
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.BodyLimit == 0 {
		c.HTTP.BodyLimit = 10 << 20
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 30 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":7070"
	}
	if c.Environment == "" {
		c.Environment = string(directive.EnvMicroservice)
	}
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.Charset == "" {
		c.Charset = "utf-8"
	}
	if c.Store.Mode == "" {
		c.Store.Mode = StorePerRequest
	}
	if c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "txservice:"
	}
}

// Validate checks values that defaults cannot repair.
func (c Config) Validate() error {
	if _, err := directive.ParseEnvironment(c.Environment); err != nil {
		return err
	}
	switch c.Store.Mode {
	case StorePerRequest, StoreShared:
	case StoreRedis:
		if c.Store.Redis.URL == "" {
			return errors.New("store.redis.url is required when store.mode is redis")
		}
	default:
		return fmt.Errorf("store.mode %q not supported (want request, shared or redis)", c.Store.Mode)
	}
	if c.HTTP.BodyLimit < 0 {
		return fmt.Errorf("http.body_limit must not be negative")
	}
	return nil
}
