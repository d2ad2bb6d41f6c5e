// Package config loads the stream-record configuration from a YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when none is given
const DefaultPath = "config/stream-record.yaml"

// Config represents the complete stream-record configuration
type Config struct {
	OutputDir string `yaml:"output-dir"`
	// ChunkSeconds is 0 to record until interrupted
	ChunkSeconds int    `yaml:"output-chunks-duration"`
	UDPPort      int    `yaml:"udp-port"`
	Codec        string `yaml:"codec"`
	ClockRate    int    `yaml:"streaming-clock-rate"`
	// CodecFallback records unknown codecs as H265
	CodecFallback   bool  `yaml:"codec-fallback"`
	Rotate          bool  `yaml:"output-rotate"`
	JitterLatencyMS int   `yaml:"jitter-latency-ms"`
	DrainTimeoutS   int   `yaml:"drain-timeout"`
	VerifyOutput    *bool `yaml:"verify-output"`
	MaxRetries      int   `yaml:"max-retries"`
	RetryDelayS     int   `yaml:"retry-delay"`
	MaxRetryDelayS  int   `yaml:"max-retry-delay"`
	// HTTPAddr is the status server address, disabled when empty
	HTTPAddr string     `yaml:"http-addr"`
	Log      LogConfig  `yaml:"log"`
	MQTT     MQTTConfig `yaml:"mqtt"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	// Broker is the broker URL; notifications are disabled when empty
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client-id"`
	TopicPrefix string `yaml:"topic-prefix"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. A missing file is not an error when path is
// DefaultPath: the configuration then comes from the environment alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		// environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads environment variables from the given files. With no
// paths, ".env" is loaded if it exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// Environment variable names
const (
	EnvOutputDir    = "STREAM_RECORD_OUTPUT_DIR"
	EnvUDPPort      = "STREAM_RECORD_UDP_PORT"
	EnvCodec        = "STREAM_RECORD_CODEC"
	EnvChunkSeconds = "STREAM_RECORD_CHUNK_SECONDS"
	EnvLogLevel     = "STREAM_RECORD_LOG_LEVEL"
	EnvHTTPAddr     = "STREAM_RECORD_HTTP_ADDR"
	EnvMQTTBroker   = "STREAM_RECORD_MQTT_BROKER"
)

// ApplyEnv overrides cfg with the environment variables that are set
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	setString(EnvOutputDir, &cfg.OutputDir)
	setString(EnvCodec, &cfg.Codec)
	setString(EnvLogLevel, &cfg.Log.Level)
	setString(EnvHTTPAddr, &cfg.HTTPAddr)
	setString(EnvMQTTBroker, &cfg.MQTT.Broker)
	if err := setInt(EnvUDPPort, &cfg.UDPPort); err != nil {
		return err
	}
	return setInt(EnvChunkSeconds, &cfg.ChunkSeconds)
}

// VerifyEnabled reports whether finished files are inspected; it defaults
// to true when verify-output is not set.
func (c *Config) VerifyEnabled() bool {
	if c.VerifyOutput == nil {
		return true
	}
	return *c.VerifyOutput
}
