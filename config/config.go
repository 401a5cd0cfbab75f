package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml, then config.<app.env>.yaml
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// YAML files are optional
	if err := loadOptionalFile(k, "config.yaml"); err != nil {
		return nil, err
	}
	if env := k.String("app.env"); env != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", env)); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	return finish(k)
}

// LoadBytes loads defaults overlaid with the given YAML document and the environment.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}

	return finish(k)
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

var configRoots = []string{"app", "server", "database", "transaction", "log", "observability", "custom"}

func loadEnv(k *koanf.Koanf) error {
	// DATABASE_MONGO_REPLICASET -> database.mongo.replicaset
	provider := envprovider.Provider(".", envprovider.Opt{
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
			root, _, _ := strings.Cut(key, ".")
			if !slices.Contains(configRoots, root) {
				return "", nil
			}
			return key, value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func finish(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "gobricks-tx-service",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"server.host":               "0.0.0.0",
		"server.port":               8080,
		"server.timeout.read":       "15s",
		"server.timeout.write":      "30s",
		"server.timeout.idle":       "60s",
		"server.timeout.middleware": "35s",
		"server.timeout.shutdown":   "10s",
		"server.rate.limit":         100,

		// Database is only enabled when explicitly configured

		"transaction.timeout":   "30s",
		"transaction.isolation": "readCommitted",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":  false,
		"observability.exporter": "stdout",
		"observability.protocol": "grpc",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
