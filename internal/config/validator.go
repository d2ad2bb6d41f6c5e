package config

import (
	"fmt"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	if cfg.OutputDir == "" {
		return fmt.Errorf("output-dir is required")
	}

	if cfg.UDPPort <= 0 || cfg.UDPPort > 65535 {
		return fmt.Errorf("udp-port must be 1-65535, got %d", cfg.UDPPort)
	}

	if cfg.ChunkSeconds < 0 {
		return fmt.Errorf("output-chunks-duration must be >= 0, got %d", cfg.ChunkSeconds)
	}
	if cfg.Rotate && cfg.ChunkSeconds == 0 {
		return fmt.Errorf("output-rotate requires output-chunks-duration > 0")
	}

	if cfg.Codec == "" {
		cfg.Codec = string(pipeline.CodecH265)
	}
	codec := pipeline.ParseCodec(cfg.Codec)
	if !codec.Valid() && !cfg.CodecFallback {
		return fmt.Errorf("codec %q not supported (must be MP4, H264 or H265, or set codec-fallback)", cfg.Codec)
	}
	cfg.Codec = string(codec)

	if cfg.ClockRate < 0 {
		return fmt.Errorf("streaming-clock-rate must be >= 0, got %d", cfg.ClockRate)
	}
	if cfg.ClockRate == 0 {
		cfg.ClockRate = 90000
	}
	if cfg.JitterLatencyMS <= 0 {
		cfg.JitterLatencyMS = 200
	}
	if cfg.DrainTimeoutS <= 0 {
		cfg.DrainTimeoutS = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelayS <= 0 {
		cfg.RetryDelayS = 1
	}
	if cfg.MaxRetryDelayS <= 0 {
		cfg.MaxRetryDelayS = 30
	}
	if cfg.MaxRetryDelayS < cfg.RetryDelayS {
		return fmt.Errorf("max-retry-delay (%d) must be >= retry-delay (%d)", cfg.MaxRetryDelayS, cfg.RetryDelayS)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "stream-record"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "stream-record"
	}
	cfg.MQTT.TopicPrefix = strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	return nil
}
