package transaction

import "context"

type sessionKey struct{}

// ContextWithSession attaches s to ctx as the request-scoped session.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the request-scoped session attached to ctx, or nil.
func SessionFromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// TxContext carries an optional explicit session and an optional request
// scope through service and repository calls. It never owns the session.
// A nil *TxContext is valid and means no explicit context.
type TxContext struct {
	session *Session
	scope   context.Context
}

// NewTxContext builds a TxContext. Both arguments may be nil.
func NewTxContext(session *Session, scope context.Context) *TxContext {
	return &TxContext{session: session, scope: scope}
}

// FromContext wraps a request context so its session is found by GetSession.
func FromContext(ctx context.Context) *TxContext {
	return NewTxContext(nil, ctx)
}

// Session returns the explicit session, or nil.
func (tc *TxContext) Session() *Session {
	if tc == nil {
		return nil
	}
	return tc.session
}

// Scope returns the request scope, or nil.
func (tc *TxContext) Scope() context.Context {
	if tc == nil {
		return nil
	}
	return tc.scope
}

// GetSession resolves the session of tc: the explicit session first, then
// the session attached to the request scope, else nil.
func GetSession(tc *TxContext) *Session {
	if tc == nil {
		return nil
	}
	if tc.session != nil {
		return tc.session
	}
	return SessionFromContext(tc.scope)
}

// IsInTransaction reports whether tc resolves to a session.
func IsInTransaction(tc *TxContext) bool {
	return GetSession(tc) != nil
}

// Resolve returns the session for a call made with ctx and an optional
// explicit context: GetSession(tc) first, then the session attached to ctx.
func Resolve(ctx context.Context, tc *TxContext) *Session {
	if s := GetSession(tc); s != nil {
		return s
	}
	return SessionFromContext(ctx)
}

// MergeTxContexts combines contexts left to right; non-nil fields of later
// contexts win.
func MergeTxContexts(contexts ...*TxContext) *TxContext {
	merged := &TxContext{}
	for _, tc := range contexts {
		if tc == nil {
			continue
		}
		if tc.session != nil {
			merged.session = tc.session
		}
		if tc.scope != nil {
			merged.scope = tc.scope
		}
	}
	return merged
}
