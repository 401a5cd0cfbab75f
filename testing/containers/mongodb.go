//go:build integration

package containers

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// MongoDBContainerConfig holds configuration for MongoDB test container
type MongoDBContainerConfig struct {
	// ImageTag specifies the MongoDB version (default: "8.0")
	ImageTag string
	// ReplicaSet names the single-node replica set the container is started
	// as (default: "rs0"). Transactions require a replica set.
	ReplicaSet string
	// StartupTimeout for container initialization (default: 90 seconds)
	StartupTimeout time.Duration
}

// DefaultMongoDBConfig returns a MongoDBContainerConfig populated with sensible defaults.
func DefaultMongoDBConfig() *MongoDBContainerConfig {
	return &MongoDBContainerConfig{
		ImageTag:       "8.0",
		ReplicaSet:     "rs0",
		StartupTimeout: 90 * time.Second,
	}
}

// MongoDBContainer wraps testcontainers MongoDB container with helper methods
type MongoDBContainer struct {
	container *mongodb.MongoDBContainer
	connStr   string
}

// StartMongoDBContainer starts a single-node replica set. If cfg is nil,
// DefaultMongoDBConfig is used. The test is skipped when Docker is not available.
func StartMongoDBContainer(ctx context.Context, t *testing.T, cfg *MongoDBContainerConfig) (*MongoDBContainer, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultMongoDBConfig()
	}
	if cfg.ReplicaSet == "" {
		cfg.ReplicaSet = "rs0"
	}

	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test. Install Docker Desktop or ensure Docker daemon is running.")
		return nil, nil
	}

	startCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	mongoContainer, err := mongodb.Run(startCtx,
		fmt.Sprintf("mongo:%s", cfg.ImageTag),
		mongodb.WithReplicaSet(cfg.ReplicaSet),
	)
	if err != nil {
		if mongoContainer != nil {
			_ = testcontainers.TerminateContainer(mongoContainer)
		}
		return nil, fmt.Errorf("failed to start MongoDB container: %w", err)
	}

	connStr, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		_ = mongoContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get MongoDB connection string: %w", err)
	}

	t.Logf("MongoDB replica set %s started at %s", cfg.ReplicaSet, redactConnectionString(connStr))

	return &MongoDBContainer{
		container: mongoContainer,
		connStr:   connStr,
	}, nil
}

// ConnectionString returns the MongoDB connection string
func (m *MongoDBContainer) ConnectionString() string {
	return m.connStr
}

// Terminate stops and removes the MongoDB container
func (m *MongoDBContainer) Terminate(ctx context.Context) error {
	if m.container == nil {
		return nil
	}
	return m.container.Terminate(ctx)
}

// redactConnectionString removes password from MongoDB connection string for safe logging.
func redactConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "mongodb://****:****@<host>:<port>"
	}

	if u.User != nil {
		if username := u.User.Username(); username != "" {
			u.User = url.UserPassword(username, "****")
		}
	}

	return u.String()
}

// MustStartMongoDBContainer starts a MongoDB test container and fails the test if startup fails.
func MustStartMongoDBContainer(ctx context.Context, t *testing.T, cfg *MongoDBContainerConfig) *MongoDBContainer {
	t.Helper()

	container, err := StartMongoDBContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}

	return container
}

// WithCleanup registers a cleanup function to terminate the container when the test finishes
func (m *MongoDBContainer) WithCleanup(t *testing.T) *MongoDBContainer {
	t.Helper()
	t.Cleanup(func() {
		if err := m.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate MongoDB container: %v", err)
		}
	})
	return m
}
