package tracking

import (
	"context"
	"time"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/types"
	"github.com/gaborage/go-bricks-tx/logger"
)

// Engine wraps a types.Engine so that sessions and collections it hands out
// are tracked. Health, Close and DatabaseType are delegated untracked.
type Engine struct {
	engine types.Engine
	tc     *Context
	inst   *instruments
}

var _ types.Engine = (*Engine)(nil)

// NewEngine wraps engine with performance tracking. The vendor is taken from
// engine.DatabaseType() and settings are derived from cfg.
func NewEngine(engine types.Engine, log logger.Logger, cfg *config.DatabaseConfig) *Engine {
	return &Engine{
		engine: engine,
		tc: &Context{
			Logger:   log,
			Vendor:   engine.DatabaseType(),
			Settings: NewSettings(cfg),
		},
		inst: newInstruments(),
	}
}

// Unwrap returns the wrapped engine.
func (e *Engine) Unwrap() types.Engine {
	return e.engine
}

func (e *Engine) Collection(name string) types.DocumentCollection {
	return &Collection{
		coll: e.engine.Collection(name),
		tc:   e.tc,
		inst: e.inst,
	}
}

// StartSession starts an engine session and tracks the call.
func (e *Engine) StartSession(ctx context.Context) (types.Session, error) {
	start := time.Now()
	sess, err := e.engine.StartSession(ctx)
	Track(ctx, e.tc, e.inst, Operation{Name: "start_session"}, start, 0, err)
	if err != nil {
		return nil, err
	}
	return &Session{Session: sess, tc: e.tc, inst: e.inst}, nil
}

func (e *Engine) Health(ctx context.Context) error {
	return e.engine.Health(ctx)
}

func (e *Engine) Close() error {
	return e.engine.Close()
}

func (e *Engine) DatabaseType() string {
	return e.engine.DatabaseType()
}

// Session tracks commit and abort of the wrapped session. Everything else,
// including Bind, is served by the embedded session.
type Session struct {
	types.Session
	tc   *Context
	inst *instruments
}

func (s *Session) CommitTransaction(ctx context.Context) error {
	start := time.Now()
	err := s.Session.CommitTransaction(ctx)
	Track(ctx, s.tc, s.inst, Operation{Name: "commit_transaction"}, start, 0, err)
	return err
}

func (s *Session) AbortTransaction(ctx context.Context) error {
	start := time.Now()
	err := s.Session.AbortTransaction(ctx)
	Track(ctx, s.tc, s.inst, Operation{Name: "abort_transaction"}, start, 0, err)
	return err
}
