package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

const (
	StorePostgres  = "postgres"
	StoreRedis     = "redis"
	StoreFirestore = "firestore"

	// configFileEnv names an optional YAML file layered under the environment.
	configFileEnv = "ANALYZER_CONFIG"
)

var (
	intKeys  = []string{"shutdown_timeout_secs", "store_breaker_failures", "store_breaker_timeout_secs"}
	boolKeys = []string{"models_require_all", "store_breaker_enabled", "tracing_enabled", "metrics_enabled"}
)

type Config struct {
	HTTPAddr            string `koanf:"http_addr"`
	ShutdownTimeoutSecs int    `koanf:"shutdown_timeout_secs"`

	ModelsDir        string `koanf:"models_dir"`
	ModelsRequireAll bool   `koanf:"models_require_all"`

	StoreBackend             string `koanf:"store_backend"`
	DatabaseURL              string `koanf:"database_url"`
	RedisURL                 string `koanf:"redis_url"`
	FirestoreProjectID       string `koanf:"firestore_project_id"`
	FirestoreCredentialsFile string `koanf:"firestore_credentials_file"`

	StoreBreakerEnabled     bool `koanf:"store_breaker_enabled"`
	StoreBreakerFailures    int  `koanf:"store_breaker_failures"`
	StoreBreakerTimeoutSecs int  `koanf:"store_breaker_timeout_secs"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	TracingEnabled bool   `koanf:"tracing_enabled"`
	OTLPEndpoint   string `koanf:"otel_exporter_otlp_endpoint"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		HTTPAddr:                 ":5000",
		ShutdownTimeoutSecs:      5,
		ModelsDir:                "models",
		ModelsRequireAll:         true,
		StoreBackend:             StorePostgres,
		RedisURL:                 "localhost:6379",
		FirestoreCredentialsFile: "firestore_key.json",
		StoreBreakerEnabled:      true,
		StoreBreakerFailures:     5,
		StoreBreakerTimeoutSecs:  30,
		LogLevel:                 "info",
		LogFormat:                "json",
		TracingEnabled:           true,
		OTLPEndpoint:             "localhost:4317",
		MetricsEnabled:           true,
	}
}

// Load layers defaults, the optional ANALYZER_CONFIG YAML file and environment
// variables (lowest to highest precedence). Environment keys are the upper-case
// form of the koanf tags, e.g. STORE_BACKEND.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	dropMalformed(k)

	cfg := *Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// dropMalformed removes numeric and boolean keys whose values do not parse so
// the defaults for those keys survive the decode.
func dropMalformed(k *koanf.Koanf) {
	check := func(keys []string, parse func(string) error) {
		for _, key := range keys {
			if !k.Exists(key) {
				continue
			}
			raw := strings.TrimSpace(k.String(key))
			if err := parse(raw); err != nil {
				log.Warn().Str("key", strings.ToUpper(key)).Str("value", raw).Msg("invalid value, using default")
				k.Delete(key)
			}
		}
	}
	check(intKeys, func(s string) error {
		_, err := strconv.Atoi(s)
		return err
	})
	check(boolKeys, func(s string) error {
		_, err := strconv.ParseBool(s)
		return err
	})
}

func (c *Config) normalize() error {
	def := Defaults()

	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StorePostgres, StoreRedis, StoreFirestore:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http_addr must not be empty")
	}
	if strings.TrimSpace(c.ModelsDir) == "" {
		log.Warn().Str("default", def.ModelsDir).Msg("MODELS_DIR empty, using default")
		c.ModelsDir = def.ModelsDir
	}
	if c.ShutdownTimeoutSecs <= 0 {
		log.Warn().Int("value", c.ShutdownTimeoutSecs).Msg("invalid SHUTDOWN_TIMEOUT_SECS, using default")
		c.ShutdownTimeoutSecs = def.ShutdownTimeoutSecs
	}
	if c.StoreBreakerFailures <= 0 {
		log.Warn().Int("value", c.StoreBreakerFailures).Msg("invalid STORE_BREAKER_FAILURES, using default")
		c.StoreBreakerFailures = def.StoreBreakerFailures
	}
	if c.StoreBreakerTimeoutSecs <= 0 {
		log.Warn().Int("value", c.StoreBreakerTimeoutSecs).Msg("invalid STORE_BREAKER_TIMEOUT_SECS, using default")
		c.StoreBreakerTimeoutSecs = def.StoreBreakerTimeoutSecs
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		c.RedisURL = def.RedisURL
	}
	if strings.TrimSpace(c.OTLPEndpoint) == "" {
		c.OTLPEndpoint = def.OTLPEndpoint
	}

	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			log.Warn().Msg("DATABASE_URL not set")
		}
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required for the firestore store")
		}
	}
	return nil
}
