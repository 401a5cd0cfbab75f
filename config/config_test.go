package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gobricks-tx-service", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout.Read)
	assert.Equal(t, 100, cfg.Server.Rate.Limit)
	assert.Equal(t, 30*time.Second, cfg.Transaction.Timeout)
	assert.Equal(t, "readCommitted", cfg.Transaction.Isolation)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Observability.Enabled)
	assert.False(t, IsDatabaseConfigured(&cfg.Database))
}

func TestLoadReadsYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	base := []byte("app:\n  env: staging\ndatabase:\n  host: mongo\n  port: 27017\n  database: users\n  mongo:\n    replicaset: rs0\n")
	staging := []byte("log:\n  level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), base, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), staging, 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, IsDatabaseConfigured(&cfg.Database))
	assert.Equal(t, "rs0", cfg.Database.Mongo.ReplicaSet)
	assert.Equal(t, 27017, cfg.Database.Port)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TRANSACTION_TIMEOUT", "5s")
	t.Setenv("TRANSACTION_ISOLATION", "serializable")
	t.Setenv("DATABASE_CONNECTIONSTRING", "mongodb://localhost:27017/?replicaSet=rs0")
	t.Setenv("DATABASE_DATABASE", "users")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Transaction.Timeout)
	assert.Equal(t, "serializable", cfg.Transaction.Isolation)
	assert.Equal(t, "users", cfg.Database.Database)
	assert.Equal(t, "mongodb://localhost:27017/?replicaSet=rs0", cfg.String("database.connectionstring", ""))
	assert.Equal(t, "fallback", cfg.String("custom.missing", "fallback"))
}

func TestLoadBytesValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		field   string
		wantErr bool
	}{
		{name: "valid_minimal", yaml: "app:\n  name: svc\n"},
		{name: "bad_isolation", yaml: "transaction:\n  isolation: chaos\n", field: "transaction.isolation", wantErr: true},
		{name: "negative_timeout", yaml: "transaction:\n  timeout: -1s\n", field: "transaction.timeout", wantErr: true},
		{name: "bad_env", yaml: "app:\n  env: moon\n", field: "app.env", wantErr: true},
		{name: "bad_port", yaml: "server:\n  port: 70000\n", field: "server.port", wantErr: true},
		{name: "unsupported_db_type", yaml: "database:\n  type: oracle\n  host: h\n  database: d\n", field: "database.type", wantErr: true},
		{name: "memory_db", yaml: "database:\n  type: memory\n"},
		{name: "negative_slow_threshold", yaml: "database:\n  host: h\n  database: d\n  query:\n    slow:\n      threshold: -5ms\n", field: "database.query.slow.threshold", wantErr: true},
		{name: "db_missing_name", yaml: "database:\n  host: h\n", field: "database.database", wantErr: true},
		{name: "bad_tls_mode", yaml: "database:\n  host: h\n  database: d\n  mongo:\n    tlsmode: verify-ca\n", field: "database.mongo.tlsmode", wantErr: true},
		{name: "otlp_without_endpoint", yaml: "observability:\n  enabled: true\n  exporter: otlp\n", field: "observability.endpoint", wantErr: true},
		{name: "bad_log_level", yaml: "log:\n  level: loud\n", field: "log.level", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBytes([]byte(tt.yaml))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
				return
			}

			require.Error(t, err)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewMissingFieldError("database.host", "DATABASE_HOST", "database.host")
	assert.Equal(t, "config_missing: database.host required set DATABASE_HOST env var or add database.host to config.yaml", err.Error())

	notConfigured := NewNotConfiguredError("observability", "OBSERVABILITY_ENABLED", "observability.enabled")
	assert.True(t, IsNotConfigured(notConfigured))
	assert.True(t, IsNotConfigured(errors.Join(errors.New("wrap"), ErrNotConfigured)))
	assert.False(t, IsNotConfigured(err))
	assert.False(t, IsNotConfigured(nil))
}
