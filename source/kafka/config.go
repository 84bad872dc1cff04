package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "TXSERVICE_KAFKA__"

type Config struct {
	Brokers   []string `koanf:"brokers"`
	Topics    []string `koanf:"topics"`
	GroupID   string   `koanf:"group_id"`
	StartFrom string   `koanf:"start_from"` // oldest|newest (default newest)
	Version   string   `koanf:"version"`
	TLSEn     bool     `koanf:"tls_enabled"`
	SASLUser  string   `koanf:"sasl_user"`
	SASLPass  string   `koanf:"sasl_pass"`

	CommitInterval time.Duration `koanf:"commit_interval"`
}

// LoadConfig merges YAML (if present) with env-vars
// (prefix TXSERVICE_KAFKA__, delimiter "__").
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	// schema version check (only when YAML is present)
	if sv := k.String("schema_version"); sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// envKey maps TXSERVICE_KAFKA__GROUP_ID to group_id.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
}

func applyDefaults(c *Config) {
	if c.CommitInterval == 0 {
		c.CommitInterval = 5 * time.Second
	}
	if c.StartFrom == "" {
		c.StartFrom = "newest"
	}
	if c.Version == "" {
		c.Version = "2.1.0"
	}
}

func (c Config) Validate() error {
	switch {
	case len(c.Brokers) == 0:
		return errors.New("kafka: brokers are required")
	case len(c.Topics) == 0:
		return errors.New("kafka: topics are required")
	case c.GroupID == "":
		return errors.New("kafka: group_id is required")
	case c.StartFrom != "oldest" && c.StartFrom != "newest":
		return fmt.Errorf("kafka: start_from %q (want oldest or newest)", c.StartFrom)
	}
	return nil
}
