// Package config loads process configuration from environment variables,
// an optional config file, and CLI flags bound through Viper, in
// precedence order: CLI flag > env var > config file > default.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the covalue-core process configuration.
type Config struct {
	// StoreDriver selects the bun dialect: "postgres" or "sqlite".
	StoreDriver string
	// DatabaseURL is the store DSN.
	DatabaseURL string
	// NodeID identifies this process's runtime.Node.
	NodeID string
	// SystemSpark names the designated system spark.
	SystemSpark string
	// HealthAddr is the bind address for the serve command's liveness
	// endpoint.
	HealthAddr string
	// Debug enables verbose logging.
	Debug bool

	Observability ObservabilityConfig
}

// ObservabilityConfig configures OpenTelemetry export (internal/telemetry).
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string // "grpc" or "http/protobuf"
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	// NodeID and SystemSpark are copied from Config so the exported
	// resource can be traced back to the node/spark that produced it
	// without a second lookup at query time.
	NodeID      string
	SystemSpark string
}

// Load reads configuration from (in increasing precedence) defaults, an
// optional config file, and COVALUE_-prefixed environment variables. CLI
// flags bound via viper.BindPFlag in cmd/root.go take precedence over all
// three.
func Load() (*Config, error) {
	v := viper.GetViper()

	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("database_url", "file:covalue.db?mode=rwc")
	v.SetDefault("node_id", "node-local")
	v.SetDefault("system_spark", "Maia")
	v.SetDefault("health_addr", "localhost:8080")
	v.SetDefault("debug", false)
	v.SetDefault("observability.otlp_protocol", "grpc")
	v.SetDefault("observability.service_name", "covalue-core")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")

	v.SetEnvPrefix("covalue")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// viper's AutomaticEnv does not reach nested keys unless each is bound
	// or read explicitly; without this, OBSERVABILITY_* env vars would be
	// silently ignored.
	for _, key := range []string{
		"observability.otlp_endpoint",
		"observability.otlp_protocol",
		"observability.otlp_insecure",
		"observability.service_name",
		"observability.service_version",
		"observability.environment",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{
		StoreDriver: v.GetString("store_driver"),
		DatabaseURL: v.GetString("database_url"),
		NodeID:      v.GetString("node_id"),
		SystemSpark: v.GetString("system_spark"),
		HealthAddr:  v.GetString("health_addr"),
		Debug:       v.GetBool("debug"),
		Observability: ObservabilityConfig{
			OTLPEndpoint:   v.GetString("observability.otlp_endpoint"),
			OTLPProtocol:   v.GetString("observability.otlp_protocol"),
			OTLPInsecure:   v.GetBool("observability.otlp_insecure"),
			ServiceName:    v.GetString("observability.service_name"),
			ServiceVersion: v.GetString("observability.service_version"),
			Environment:    v.GetString("observability.environment"),
			NodeID:         v.GetString("node_id"),
			SystemSpark:    v.GetString("system_spark"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required")
	}
	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "sqlite" {
		return nil, fmt.Errorf("store_driver must be \"postgres\" or \"sqlite\", got %q", cfg.StoreDriver)
	}
	if cfg.SystemSpark == "" {
		return nil, fmt.Errorf("system_spark is required")
	}

	return cfg, nil
}
