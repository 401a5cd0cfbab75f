package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/memory"
	"github.com/gaborage/go-bricks-tx/logger"
)

func TestNewEngineMemory(t *testing.T) {
	engine, err := NewEngine(&config.DatabaseConfig{Type: Memory}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	tracked, ok := engine.(*TrackedEngine)
	require.True(t, ok, "engines are wrapped with tracking")
	assert.IsType(t, &memory.Engine{}, tracked.Unwrap())
	assert.Equal(t, Memory, engine.DatabaseType())
	assert.NoError(t, engine.Health(context.Background()))
}

func TestNewEngineUnsupportedType(t *testing.T) {
	engine, err := NewEngine(&config.DatabaseConfig{Type: "oracle"}, logger.Nop())
	assert.Nil(t, engine)
	assert.ErrorContains(t, err, "unsupported database type: oracle")
}

func TestNewEngineMongoInvalidOptions(t *testing.T) {
	_, err := NewEngine(&config.DatabaseConfig{
		Type:  MongoDB,
		Host:  "localhost",
		Mongo: config.MongoConfig{ReadPreference: "anywhere"},
	}, logger.Nop())
	assert.ErrorContains(t, err, "invalid read preference")
}

func TestValidateDatabaseType(t *testing.T) {
	assert.NoError(t, ValidateDatabaseType(MongoDB))
	assert.NoError(t, ValidateDatabaseType(Memory))
	assert.Error(t, ValidateDatabaseType("postgresql"))
	assert.Equal(t, []string{"mongodb", "memory"}, GetSupportedDatabaseTypes())
}
