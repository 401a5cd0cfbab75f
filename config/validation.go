package config

import (
	"fmt"
	"slices"
	"strings"
)

// Supported database types. Memory keeps all data in process and needs no
// connection settings.
const (
	MongoDB = "mongodb"
	Memory  = "memory"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var (
	validEnvs       = []string{EnvDevelopment, EnvStaging, EnvProduction}
	validIsolations = []string{"readUncommitted", "readCommitted", "repeatableRead", "serializable"}
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	validExporters  = []string{"stdout", "otlp"}
	validOTLPProtos = []string{"grpc", "http"}
	validTLSModes   = []string{"", "disable", "require", "verify-full"}
	validDBTypes    = []string{MongoDB, Memory}
)

// Validate checks the loaded configuration and returns the first problem found.
func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := validateTransaction(&cfg.Transaction); err != nil {
		return fmt.Errorf("transaction config: %w", err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := validateObservability(&cfg.Observability); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func validateApp(cfg *AppConfig) error {
	if cfg.Name == "" {
		return NewMissingFieldError("app.name", "APP_NAME", "app.name")
	}
	if !slices.Contains(validEnvs, cfg.Env) {
		return NewInvalidFieldError("app.env", fmt.Sprintf("unknown environment %q", cfg.Env), validEnvs)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return NewInvalidFieldError("server.port", fmt.Sprintf("invalid port %d (must be 1-65535)", cfg.Port), nil)
	}
	if cfg.Timeout.Read <= 0 || cfg.Timeout.Write <= 0 {
		return NewInvalidFieldError("server.timeout", "read and write timeouts must be positive", nil)
	}
	return nil
}

// IsDatabaseConfigured reports whether a database was explicitly configured.
func IsDatabaseConfigured(cfg *DatabaseConfig) bool {
	return cfg.ConnectionString != "" || cfg.Host != "" || cfg.Type != ""
}

func validateDatabase(cfg *DatabaseConfig) error {
	if !IsDatabaseConfigured(cfg) {
		return nil
	}
	if cfg.Type != "" && !slices.Contains(validDBTypes, cfg.Type) {
		return NewInvalidFieldError("database.type", fmt.Sprintf("unsupported type %q", cfg.Type), validDBTypes)
	}
	if cfg.Type == Memory {
		return nil
	}
	if cfg.Database == "" {
		return NewMissingFieldError("database.database", "DATABASE_DATABASE", "database.database")
	}
	if cfg.ConnectionString != "" {
		return nil
	}
	if cfg.Host == "" {
		return NewMissingFieldError("database.host", "DATABASE_HOST", "database.host")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return NewInvalidFieldError("database.port", fmt.Sprintf("invalid port %d", cfg.Port), nil)
	}
	if !slices.Contains(validTLSModes, strings.ToLower(cfg.Mongo.TLSMode)) {
		return NewInvalidFieldError("database.mongo.tlsmode", fmt.Sprintf("unknown mode %q", cfg.Mongo.TLSMode), validTLSModes[1:])
	}
	if cfg.Pool.MinConnections > 0 && cfg.Pool.MaxConnections > 0 && cfg.Pool.MinConnections > cfg.Pool.MaxConnections {
		return NewInvalidFieldError("database.pool.minconnections", "must not exceed maxconnections", nil)
	}
	if cfg.Query.Slow.Threshold < 0 {
		return NewInvalidFieldError("database.query.slow.threshold", "must not be negative", nil)
	}
	return nil
}

func validateTransaction(cfg *TransactionConfig) error {
	if cfg.Timeout < 0 {
		return NewInvalidFieldError("transaction.timeout", "must not be negative", nil)
	}
	if cfg.Isolation != "" && !slices.Contains(validIsolations, cfg.Isolation) {
		return NewInvalidFieldError("transaction.isolation", fmt.Sprintf("unknown level %q", cfg.Isolation), validIsolations)
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	if !slices.Contains(validLogLevels, strings.ToLower(cfg.Level)) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("unknown level %q", cfg.Level), validLogLevels)
	}
	return nil
}

func validateObservability(cfg *ObservabilityConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if !slices.Contains(validExporters, cfg.Exporter) {
		return NewInvalidFieldError("observability.exporter", fmt.Sprintf("unknown exporter %q", cfg.Exporter), validExporters)
	}
	if cfg.Exporter == "otlp" {
		if !slices.Contains(validOTLPProtos, cfg.Protocol) {
			return NewInvalidFieldError("observability.protocol", fmt.Sprintf("unknown protocol %q", cfg.Protocol), validOTLPProtos)
		}
		if cfg.Endpoint == "" {
			return NewMissingFieldError("observability.endpoint", "OBSERVABILITY_ENDPOINT", "observability.endpoint")
		}
	}
	return nil
}
