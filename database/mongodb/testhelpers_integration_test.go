//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/types"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/testing/containers"
)

// uniqueCollectionName generates a unique collection name for tests to prevent cross-test pollution
func uniqueCollectionName(t *testing.T, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// setupTestContainer starts a single-node replica set and returns a connection
// that is closed before the container terminates.
func setupTestContainer(t *testing.T) (*Connection, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	mongoContainer := containers.MustStartMongoDBContainer(ctx, t, nil).WithCleanup(t)

	cfg := &config.DatabaseConfig{
		ConnectionString: mongoContainer.ConnectionString(),
		Database:         "testdb",
	}

	conn, err := NewConnection(cfg, logger.Nop())
	require.NoError(t, err, "Failed to create MongoDB connection")

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn, ctx
}

// createCollection creates the collection up front; the server refuses to
// create collections implicitly on some versions inside a transaction.
func createCollection(ctx context.Context, t *testing.T, conn *Connection, name string) types.DocumentCollection {
	t.Helper()
	require.NoError(t, conn.GetDatabase().CreateCollection(ctx, name))
	return conn.Collection(name)
}

func TestIntegrationTransactions(t *testing.T) {
	conn, ctx := setupTestContainer(t)

	t.Run("commit makes writes visible", func(t *testing.T) {
		coll := createCollection(ctx, t, conn, uniqueCollectionName(t, "commit"))

		sess, err := conn.StartSession(ctx)
		require.NoError(t, err)
		defer sess.EndSession(ctx)

		assert.NotEmpty(t, sess.ID())
		require.NoError(t, sess.StartTransaction(types.TxOptions{Isolation: "snapshot"}))

		txCtx := sess.Bind(ctx)
		_, err = coll.InsertOne(txCtx, bson.D{{Key: "_id", Value: "a"}, {Key: "n", Value: 1}})
		require.NoError(t, err)

		outside, err := coll.CountDocuments(ctx, bson.D{})
		require.NoError(t, err)
		assert.Zero(t, outside, "uncommitted insert must not be visible outside the session")

		require.NoError(t, sess.CommitTransaction(ctx))

		count, err := coll.CountDocuments(ctx, bson.D{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("abort discards writes", func(t *testing.T) {
		coll := createCollection(ctx, t, conn, uniqueCollectionName(t, "abort"))

		sess, err := conn.StartSession(ctx)
		require.NoError(t, err)
		defer sess.EndSession(ctx)

		require.NoError(t, sess.StartTransaction(types.TxOptions{}))
		txCtx := sess.Bind(ctx)
		_, err = coll.InsertMany(txCtx, []any{
			bson.D{{Key: "_id", Value: 1}},
			bson.D{{Key: "_id", Value: 2}},
		})
		require.NoError(t, err)
		require.NoError(t, sess.AbortTransaction(ctx))

		count, err := coll.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("duplicate key maps to sentinel", func(t *testing.T) {
		coll := createCollection(ctx, t, conn, uniqueCollectionName(t, "dup"))

		_, err := coll.InsertOne(ctx, bson.D{{Key: "_id", Value: "x"}})
		require.NoError(t, err)
		_, err = coll.InsertOne(ctx, bson.D{{Key: "_id", Value: "x"}})
		assert.ErrorIs(t, err, types.ErrDuplicateKey)
	})

	t.Run("find one and update returns updated document", func(t *testing.T) {
		coll := createCollection(ctx, t, conn, uniqueCollectionName(t, "upd"))

		_, err := coll.InsertOne(ctx, bson.D{{Key: "_id", Value: "k"}, {Key: "qty", Value: 1}})
		require.NoError(t, err)

		var out struct {
			Qty int `bson:"qty"`
		}
		err = coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: "k"}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: "qty", Value: 2}}}}).Decode(&out)
		require.NoError(t, err)
		assert.Equal(t, 3, out.Qty)

		err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: "missing"}}).Err()
		assert.ErrorIs(t, err, types.ErrNoDocuments)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, conn.Health(ctx))
		assert.Equal(t, types.MongoDB, conn.DatabaseType())
	})
}
