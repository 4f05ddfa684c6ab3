package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL is the built-in vector-indexing endpoint.
	DefaultAPIURL = "http://localhost:5000/ingest"
	// DefaultDataDir is used when no data directory is given on the command line.
	DefaultDataDir = "./data"
	// DefaultBatchSize is the number of summaries accumulated before dispatch.
	DefaultBatchSize = 100
	// DefaultMaxConcurrent bounds in-flight deliveries within a batch.
	DefaultMaxConcurrent = 10
)

// Config holds application configuration.
type Config struct {
	DataDir       string
	APIURL        string
	BatchSize     int
	MaxConcurrent int
	DebugMode     bool
	OTELEnabled   bool
	OTELEndpoint  string
}

// fileConfig is the optional YAML config file shape. Values from the file sit
// below environment variables in precedence.
type fileConfig struct {
	DataDir       string `yaml:"data_dir"`
	APIURL        string `yaml:"api_url"`
	BatchSize     int    `yaml:"batch_size"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Debug         bool   `yaml:"debug"`
}

// Load builds the configuration from the optional YAML file at path (empty
// path means no file) overlaid with environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       DefaultDataDir,
		APIURL:        DefaultAPIURL,
		BatchSize:     DefaultBatchSize,
		MaxConcurrent: DefaultMaxConcurrent,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DataDir = getEnv("INGEST_DATA_DIR", cfg.DataDir)
	cfg.APIURL = getEnv("API_URL", cfg.APIURL)
	cfg.BatchSize = getEnvInt("INGEST_BATCH_SIZE", cfg.BatchSize)
	cfg.MaxConcurrent = getEnvInt("INGEST_MAX_CONCURRENT", cfg.MaxConcurrent)
	cfg.DebugMode = getEnvBool("INGEST_DEBUG_MODE", cfg.DebugMode)
	cfg.OTELEnabled = getEnvBool("OTEL_ENABLED", false)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if cfg.BatchSize < 1 {
		return nil, errors.New("batch size must be at least 1")
	}
	if cfg.MaxConcurrent < 1 {
		return nil, errors.New("max concurrent deliveries must be at least 1")
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.DataDir != "" {
		c.DataDir = fc.DataDir
	}
	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.BatchSize != 0 {
		c.BatchSize = fc.BatchSize
	}
	if fc.MaxConcurrent != 0 {
		c.MaxConcurrent = fc.MaxConcurrent
	}
	if fc.Debug {
		c.DebugMode = true
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
