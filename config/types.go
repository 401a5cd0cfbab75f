package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the root configuration. The koanf instance is kept for access to
// keys that are not part of the typed structure.
type Config struct {
	App           AppConfig           `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `koanf:"server" json:"server" yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Transaction   TransactionConfig   `koanf:"transaction" json:"transaction" yaml:"transaction" mapstructure:"transaction"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version"`
	Env     string `koanf:"env" json:"env" yaml:"env" mapstructure:"env"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port    int           `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Timeout TimeoutConfig `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Rate    RateConfig    `koanf:"rate" json:"rate" yaml:"rate" mapstructure:"rate"`
}

// TimeoutConfig holds the server timeouts.
type TimeoutConfig struct {
	Read       time.Duration `koanf:"read" json:"read" yaml:"read" mapstructure:"read"`
	Write      time.Duration `koanf:"write" json:"write" yaml:"write" mapstructure:"write"`
	Idle       time.Duration `koanf:"idle" json:"idle" yaml:"idle" mapstructure:"idle"`
	Middleware time.Duration `koanf:"middleware" json:"middleware" yaml:"middleware" mapstructure:"middleware"`
	Shutdown   time.Duration `koanf:"shutdown" json:"shutdown" yaml:"shutdown" mapstructure:"shutdown"`
}

// RateConfig holds per-client rate limiting. A non-positive limit disables it.
type RateConfig struct {
	Limit int `koanf:"limit" json:"limit" yaml:"limit" mapstructure:"limit"`
}

// DatabaseConfig holds MongoDB connection settings.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" mapstructure:"type"`
	Host     string `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Database string `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Username string `koanf:"username" json:"username" yaml:"username" mapstructure:"username"`
	Password string `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`

	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring" mapstructure:"connectionstring"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool" mapstructure:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query" mapstructure:"query"`
	Mongo MongoConfig `koanf:"mongo" json:"mongo" yaml:"mongo" mapstructure:"mongo"`
}

// QueryConfig controls per-operation tracking.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
}

// SlowQueryConfig sets the duration above which an operation is logged as slow.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// QueryLogConfig controls how filters are rendered in operation logs.
type QueryLogConfig struct {
	MaxLength int `koanf:"maxlength" json:"maxlength" yaml:"maxlength" mapstructure:"maxlength"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConnections  uint64        `koanf:"maxconnections" json:"maxconnections" yaml:"maxconnections" mapstructure:"maxconnections"`
	MinConnections  uint64        `koanf:"minconnections" json:"minconnections" yaml:"minconnections" mapstructure:"minconnections"`
	MaxConnIdleTime time.Duration `koanf:"maxconnidletime" json:"maxconnidletime" yaml:"maxconnidletime" mapstructure:"maxconnidletime"`
}

// MongoConfig holds MongoDB specific settings.
// Transactions require a replica set or a sharded cluster.
type MongoConfig struct {
	ReplicaSet     string        `koanf:"replicaset" json:"replicaset" yaml:"replicaset" mapstructure:"replicaset"`
	AuthSource     string        `koanf:"authsource" json:"authsource" yaml:"authsource" mapstructure:"authsource"`
	ReadPreference string        `koanf:"readpreference" json:"readpreference" yaml:"readpreference" mapstructure:"readpreference"`
	WriteConcern   string        `koanf:"writeconcern" json:"writeconcern" yaml:"writeconcern" mapstructure:"writeconcern"`
	TLSMode        string        `koanf:"tlsmode" json:"tlsmode" yaml:"tlsmode" mapstructure:"tlsmode"`
	ConnectTimeout time.Duration `koanf:"connecttimeout" json:"connecttimeout" yaml:"connecttimeout" mapstructure:"connecttimeout"`
}

// TransactionConfig holds the defaults applied to declared transaction boundaries.
type TransactionConfig struct {
	Timeout   time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Isolation string        `koanf:"isolation" json:"isolation" yaml:"isolation" mapstructure:"isolation"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	Enabled  bool   `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Exporter string `koanf:"exporter" json:"exporter" yaml:"exporter" mapstructure:"exporter"` // stdout, otlp
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"` // grpc, http
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// String returns the raw value at path, or def when unset.
func (c *Config) String(path, def string) string {
	if c.k == nil || !c.k.Exists(path) {
		return def
	}
	return c.k.String(path)
}
