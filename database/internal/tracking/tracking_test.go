package tracking

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/memory"
	"github.com/gaborage/go-bricks-tx/database/types"
	"github.com/gaborage/go-bricks-tx/logger"
	obtest "github.com/gaborage/go-bricks-tx/observability/testing"
)

type item struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

func newTrackedMemory(t *testing.T, log logger.Logger) (*Engine, *memory.Engine, *obtest.Recorder) {
	t.Helper()
	rec := obtest.Install(t)
	mem := memory.New()
	return NewEngine(mem, log, nil), mem, rec
}

func TestTrackedCollectionRecordsOperations(t *testing.T) {
	engine, _, rec := newTrackedMemory(t, logger.Nop())
	ctx := logger.WithDBCounter(context.Background())
	coll := engine.Collection("items")

	_, err := coll.InsertOne(ctx, item{ID: "1", Name: "a"})
	require.NoError(t, err)
	_, err = coll.InsertMany(ctx, []any{item{ID: "2", Name: "b"}, item{ID: "3", Name: "c"}})
	require.NoError(t, err)

	n, err := coll.CountDocuments(ctx, bson.D{{Key: "name", Value: "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := coll.DeleteMany(ctx, bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"a", "c"}}}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedCount())

	assert.Equal(t, int64(4), logger.GetDBCounter(ctx))
	assert.Positive(t, logger.GetDBElapsed(ctx))

	inserts := rec.SpansNamed("db.insert_one")
	require.Len(t, inserts, 1)
	obtest.AssertSpanAttribute(t, inserts[0], attrDBSystem, "memory")
	obtest.AssertSpanAttribute(t, inserts[0], attrDBCollection, "items")
	obtest.AssertSpanAttribute(t, inserts[0], attrDBOperation, "insert_one")

	counts := rec.SpansNamed("db.count")
	require.Len(t, counts, 1)
	obtest.AssertSpanAttribute(t, counts[0], "db.query.text", `{"name":"b"}`)

	rm := rec.Collect(t)
	assert.Equal(t, int64(4), obtest.SumInt64(rm, metricDBCalls))
	assert.Equal(t, uint64(4), obtest.HistogramCount(rm, metricDBDuration))
	// 1 + 2 inserted, 2 deleted
	assert.Equal(t, int64(5), obtest.SumInt64(rm, metricDocumentsWrites))
}

func TestTrackedFindOneTracksOnce(t *testing.T) {
	engine, _, rec := newTrackedMemory(t, logger.Nop())
	ctx := logger.WithDBCounter(context.Background())
	coll := engine.Collection("items")

	res := coll.FindOne(ctx, bson.D{{Key: "_id", Value: "missing"}})
	assert.Equal(t, int64(0), logger.GetDBCounter(ctx), "not tracked before the result is read")

	assert.ErrorIs(t, res.Err(), types.ErrNoDocuments)
	var out item
	assert.ErrorIs(t, res.Decode(&out), types.ErrNoDocuments)

	assert.Equal(t, int64(1), logger.GetDBCounter(ctx))
	spans := rec.SpansNamed("db.find_one")
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code, "an empty lookup is not a failure")

	rm := rec.Collect(t)
	assert.Equal(t, int64(1), obtest.SumInt64Where(rm, metricDBCalls, attribute.Bool("error", false)))
}

func TestTrackedFailureMarksSpan(t *testing.T) {
	engine, mem, rec := newTrackedMemory(t, logger.Nop())
	boom := errors.New("disk on fire")
	mem.SetFault(memory.OpUpdate, boom)

	_, err := engine.Collection("items").UpdateMany(context.Background(), nil,
		bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "x"}}}})
	require.ErrorIs(t, err, boom)

	spans := rec.SpansNamed("db.update_many")
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "disk on fire", spans[0].Status.Description)

	rm := rec.Collect(t)
	assert.Equal(t, int64(1), obtest.SumInt64Where(rm, metricDBCalls, attribute.Bool("error", true)))
	assert.Zero(t, obtest.SumInt64(rm, metricDocumentsWrites))
}

func TestTrackedSessionLifecycle(t *testing.T) {
	engine, mem, rec := newTrackedMemory(t, logger.Nop())
	ctx := context.Background()

	sess, err := engine.StartSession(ctx)
	require.NoError(t, err)
	require.IsType(t, &Session{}, sess)

	require.NoError(t, sess.StartTransaction(types.TxOptions{}))
	_, err = engine.Collection("items").InsertOne(sess.Bind(ctx), item{ID: "tx"})
	require.NoError(t, err)
	require.NoError(t, sess.CommitTransaction(ctx))
	sess.EndSession(ctx)

	assert.Equal(t, int64(1), mem.Commits())
	assert.Zero(t, mem.OpenSessions())
	assert.Len(t, rec.SpansNamed("db.start_session"), 1)
	assert.Len(t, rec.SpansNamed("db.commit_transaction"), 1)

	sess2, err := engine.StartSession(ctx)
	require.NoError(t, err)
	require.NoError(t, sess2.StartTransaction(types.TxOptions{}))
	require.NoError(t, sess2.AbortTransaction(ctx))
	sess2.EndSession(ctx)
	assert.Len(t, rec.SpansNamed("db.abort_transaction"), 1)

	assert.Same(t, mem, engine.Unwrap())
	assert.Equal(t, types.Memory, engine.DatabaseType())
	assert.NoError(t, engine.Health(ctx))
	assert.NoError(t, engine.Close())
}

func TestTrackLogsSlowAndFailedOperations(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", false, nil)
	cfg := &config.DatabaseConfig{}
	cfg.Query.Slow.Threshold = 10 * time.Millisecond
	cfg.Query.Log.MaxLength = 12
	tc := &Context{Logger: log, Vendor: types.MongoDB, Settings: NewSettings(cfg)}

	op := Operation{Name: "find", Collection: "users", Filter: bson.D{{Key: "email", Value: "someone@example.com"}}}
	Track(context.Background(), tc, nil, op, time.Now().Add(-50*time.Millisecond), 0, nil)
	assert.Contains(t, buf.String(), "Slow database operation detected")
	assert.Contains(t, buf.String(), `"filter":"{\"email\":..."`)
	assert.Contains(t, buf.String(), `"collection":"users"`)

	buf.Reset()
	Track(context.Background(), tc, nil, op, time.Now(), 0, errors.New("timeout"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "Database operation error")

	buf.Reset()
	Track(context.Background(), tc, nil, op, time.Now(), 0, types.ErrNoDocuments)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), "returned no documents")

	buf.Reset()
	Track(context.Background(), nil, nil, op, time.Now(), 0, nil)
	assert.Empty(t, buf.String())
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		value  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncate me please", 10, "truncat..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 6, "hél..."},
		{"unchanged", 0, "unchanged"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateString(tt.value, tt.maxLen), tt.value)
	}
}

func TestRenderFilter(t *testing.T) {
	assert.Empty(t, RenderFilter(nil))
	assert.Equal(t, `{"age":{"$gt":30}}`, RenderFilter(bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 30}}}}))
	assert.Equal(t, "not-a-document", RenderFilter("not-a-document"))
}

func TestNormalizeDBVendor(t *testing.T) {
	assert.Equal(t, "mongodb", normalizeDBVendor("Mongo"))
	assert.Equal(t, "mongodb", normalizeDBVendor("mongodb"))
	assert.Equal(t, "memory", normalizeDBVendor("MEMORY"))
	assert.Equal(t, "custom", normalizeDBVendor("custom"))
}
