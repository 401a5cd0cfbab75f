// Package mongodb implements the storage engine contract on top of the
// official MongoDB driver. Multi-document transactions need a replica set or
// a sharded cluster.
package mongodb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/types"
	"github.com/gaborage/go-bricks-tx/logger"
)

// Sentinel errors for MongoDB configuration validation
var (
	ErrInvalidReadPreference = errors.New("invalid read preference")
	ErrInvalidWriteConcern   = errors.New("invalid write concern")
)

// Connection implements types.Engine for MongoDB
type Connection struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.DatabaseConfig
	logger   logger.Logger
}

var _ types.Engine = (*Connection)(nil)

var (
	connectMongoDB = func(opts *options.ClientOptions) (*mongo.Client, error) {
		return mongo.Connect(opts)
	}
	pingMongoDB = func(ctx context.Context, client *mongo.Client) error {
		return client.Ping(ctx, readpref.Primary())
	}
)

const (
	defaultConnectionTimeout = 10 * time.Second
)

// NewConnection connects to MongoDB and verifies the server is reachable.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	timeout := defaultConnectionTimeout
	if cfg.Mongo.ConnectTimeout > 0 {
		timeout = cfg.Mongo.ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := connectMongoDB(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := pingMongoDB(ctx, client); err != nil {
		if closeErr := client.Disconnect(ctx); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to disconnect MongoDB client after ping failure")
		}
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Str("replica_set", cfg.Mongo.ReplicaSet).
		Msg("Connected to MongoDB")

	return &Connection{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
		logger:   log,
	}, nil
}

// clientOptions translates configuration into driver options.
func clientOptions(cfg *config.DatabaseConfig) (*options.ClientOptions, error) {
	opts := options.Client()

	if cfg.ConnectionString != "" {
		opts.ApplyURI(cfg.ConnectionString)
	} else {
		opts.ApplyURI(buildMongoURI(cfg))
	}

	setConnectionOptions(opts, cfg)

	if err := setReadPreference(opts, cfg.Mongo.ReadPreference); err != nil {
		return nil, err
	}
	if err := setWriteConcern(opts, cfg.Mongo.WriteConcern); err != nil {
		return nil, err
	}

	if cfg.Mongo.TLSMode != "" {
		tlsConfig, err := buildTLSConfig(cfg.Mongo.TLSMode)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig != nil {
			opts.SetTLSConfig(tlsConfig)
		}
	}

	return opts, nil
}

// setConnectionOptions sets connection pool options based on configuration
func setConnectionOptions(opts *options.ClientOptions, cfg *config.DatabaseConfig) {
	if cfg.Pool.MaxConnections > 0 {
		opts.SetMaxPoolSize(cfg.Pool.MaxConnections)
	}
	if cfg.Pool.MinConnections > 0 {
		opts.SetMinPoolSize(cfg.Pool.MinConnections)
	}
	if cfg.Pool.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.Pool.MaxConnIdleTime)
	}
	if cfg.Mongo.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.Mongo.ConnectTimeout)
	}
}

func setReadPreference(opts *options.ClientOptions, pref string) error {
	if pref != "" {
		rp, err := parseReadPreference(pref)
		if err != nil {
			return fmt.Errorf("invalid read preference: %w", err)
		}
		opts.SetReadPreference(rp)
	}
	return nil
}

func setWriteConcern(opts *options.ClientOptions, concern string) error {
	if concern != "" {
		wc, err := parseWriteConcern(concern)
		if err != nil {
			return fmt.Errorf("invalid write concern: %w", err)
		}
		opts.SetWriteConcern(wc)
	}
	return nil
}

// buildMongoURI constructs a MongoDB connection URI from configuration
func buildMongoURI(cfg *config.DatabaseConfig) string {
	var uri strings.Builder

	uri.WriteString("mongodb://")

	if cfg.Username != "" {
		uri.WriteString(url.PathEscape(cfg.Username))
		if cfg.Password != "" {
			uri.WriteString(":")
			uri.WriteString(url.PathEscape(cfg.Password))
		}
		uri.WriteString("@")
	}

	uri.WriteString(cfg.Host)
	if cfg.Port > 0 {
		uri.WriteString(fmt.Sprintf(":%d", cfg.Port))
	}

	if cfg.Database != "" {
		uri.WriteString("/")
		uri.WriteString(cfg.Database)
	}

	var params []string
	if cfg.Mongo.ReplicaSet != "" {
		params = append(params, "replicaSet="+url.QueryEscape(cfg.Mongo.ReplicaSet))
	}
	if cfg.Mongo.AuthSource != "" {
		params = append(params, "authSource="+url.QueryEscape(cfg.Mongo.AuthSource))
	}

	if len(params) > 0 {
		uri.WriteString("?")
		uri.WriteString(strings.Join(params, "&"))
	}

	return uri.String()
}

// buildTLSConfig creates a TLS configuration based on the TLS mode
func buildTLSConfig(mode string) (*tls.Config, error) {
	switch strings.ToLower(mode) {
	case "disable":
		return nil, nil
	case "verify-full", "require":
		return &tls.Config{
			InsecureSkipVerify: false,
			MinVersion:         tls.VersionTLS12,
		}, nil
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", mode)
	}
}

func parseReadPreference(pref string) (*readpref.ReadPref, error) {
	switch strings.ToLower(pref) {
	case "primary":
		return readpref.Primary(), nil
	case "primarypreferred":
		return readpref.PrimaryPreferred(), nil
	case "secondary":
		return readpref.Secondary(), nil
	case "secondarypreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest(), nil
	default:
		return nil, ErrInvalidReadPreference
	}
}

func parseWriteConcern(concern string) (*writeconcern.WriteConcern, error) {
	trimmed := strings.TrimSpace(concern)

	switch strings.ToLower(trimmed) {
	case "majority":
		return writeconcern.Majority(), nil
	case "acknowledged":
		return writeconcern.W1(), nil
	case "unacknowledged":
		return writeconcern.Unacknowledged(), nil
	}

	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 {
		return &writeconcern.WriteConcern{W: n}, nil
	}

	return nil, ErrInvalidWriteConcern
}

// Collection returns a handle to the named collection.
func (c *Connection) Collection(name string) types.DocumentCollection {
	return &Collection{collection: c.database.Collection(name)}
}

// StartSession acquires a driver session.
func (c *Connection) StartSession(ctx context.Context) (types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := c.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start MongoDB session: %w", err)
	}
	return newSession(sess), nil
}

// Health checks MongoDB connection health
func (c *Connection) Health(ctx context.Context) error {
	return pingMongoDB(ctx, c.client)
}

// Close closes the MongoDB connection
func (c *Connection) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	c.logger.Info().Msg("Disconnected from MongoDB")
	return nil
}

// DatabaseType returns the database type
func (c *Connection) DatabaseType() string {
	return types.MongoDB
}

// GetDatabase returns the underlying MongoDB database instance
func (c *Connection) GetDatabase() *mongo.Database {
	return c.database
}

// GetClient returns the underlying MongoDB client instance
func (c *Connection) GetClient() *mongo.Client {
	return c.client
}
