package mongodb

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/gaborage/go-bricks-tx/database/types"
)

// Session implements types.Session over a driver session.
type Session struct {
	session *mongo.Session
	id      string
}

var _ types.Session = (*Session)(nil)

func newSession(sess *mongo.Session) *Session {
	return &Session{session: sess, id: sessionID(sess)}
}

// sessionID renders the server logical session id (a UUID) as text.
func sessionID(sess *mongo.Session) string {
	lsid := sess.ID()
	if _, data, ok := lsid.Lookup("id").BinaryOK(); ok {
		if id, err := uuid.FromBytes(data); err == nil {
			return id.String()
		}
	}
	return lsid.String()
}

func (s *Session) ID() string {
	return s.id
}

// StartTransaction begins a transaction with snapshot read concern and
// majority write concern, independent of the requested isolation level.
// The timeout reaches the server through the deadline of the context given
// to CommitTransaction.
func (s *Session) StartTransaction(_ types.TxOptions) error {
	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	return mapError(s.session.StartTransaction(opts))
}

func (s *Session) CommitTransaction(ctx context.Context) error {
	return mapError(s.session.CommitTransaction(ctx))
}

func (s *Session) AbortTransaction(ctx context.Context) error {
	return mapError(s.session.AbortTransaction(ctx))
}

func (s *Session) EndSession(ctx context.Context) {
	s.session.EndSession(ctx)
}

// Bind attaches the driver session so collection calls run inside it.
func (s *Session) Bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, s.session)
}

// GetSession returns the underlying driver session
func (s *Session) GetSession() *mongo.Session {
	return s.session
}
