package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir         string        `yaml:"data_dir"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	OTLPEndpoint    string        `yaml:"otlp_endpoint"`
	MetricsTextfile string        `yaml:"metrics_textfile"`
	CopyBatchSize   int           `yaml:"copy_batch_size"`
	StoreTimeout    time.Duration `yaml:"-"`

	StoreTimeoutSeconds int `yaml:"store_timeout_seconds"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		DataDir:             "data",
		LogLevel:            "info",
		LogFormat:           "console",
		CopyBatchSize:       5000,
		StoreTimeoutSeconds: 60,
		StoreTimeout:        60 * time.Second,
	}
}

// Load builds the configuration from defaults, a .env file in the working
// directory (ignored if absent), the optional YAML file at path, and finally
// environment variables.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.DataDir = getString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = getString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getString("LOG_FORMAT", cfg.LogFormat)
	cfg.OTLPEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.MetricsTextfile = getString("METRICS_TEXTFILE", cfg.MetricsTextfile)
	cfg.CopyBatchSize = getInt("COPY_BATCH_SIZE", cfg.CopyBatchSize)
	cfg.StoreTimeoutSeconds = getInt("STORE_TIMEOUT_SECONDS", cfg.StoreTimeoutSeconds)
	cfg.StoreTimeout = time.Duration(cfg.StoreTimeoutSeconds) * time.Second

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir must not be empty"))
	}
	if c.CopyBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("copy batch size must be positive, got %d", c.CopyBatchSize))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
