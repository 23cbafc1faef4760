package pubsub

import (
	"os"
	"strconv"
)

// Environment variables read by LoadTracingConfigFromEnv.
const (
	envTracingEnabled     = "PUBSUB_TRACING_ENABLED"
	envTracingService     = "PUBSUB_TRACING_SERVICE_NAME"
	envTracingZipkinURL   = "PUBSUB_TRACING_ZIPKIN_URL"
	envTracingSampleRatio = "PUBSUB_TRACING_SAMPLE_RATIO"
)

// LoadTracingConfigFromEnv reads PUBSUB_TRACING_* variables over the defaults.
// Unparseable values keep the default.
func LoadTracingConfigFromEnv() TracingConfig {
	cfg := DefaultTracingConfig()

	if v, err := strconv.ParseBool(os.Getenv(envTracingEnabled)); err == nil {
		cfg.Enabled = v
	}
	if v := os.Getenv(envTracingService); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv(envTracingZipkinURL); v != "" {
		cfg.ZipkinURL = v
	}
	if v, err := strconv.ParseFloat(os.Getenv(envTracingSampleRatio), 64); err == nil && v >= 0 && v <= 1 {
		cfg.SampleRatio = v
	}
	return cfg
}
