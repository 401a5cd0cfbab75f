package logger

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	dbCounterKey contextKey = "db_operation_counter"
	dbElapsedKey contextKey = "db_elapsed_nanos"
	txCounterKey contextKey = "tx_counter"
)

// WithDBCounter creates a context carrying a per-request storage operation counter
// and elapsed time tracker.
func WithDBCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, dbCounterKey, &counter)
	ctx = context.WithValue(ctx, dbElapsedKey, &elapsed)
	return ctx
}

// IncrementDBCounter increments the storage operation counter in the context
func IncrementDBCounter(ctx context.Context) {
	if counter, ok := ctx.Value(dbCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetDBCounter returns the storage operation count recorded in the context
func GetDBCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(dbCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddDBElapsed adds elapsed nanoseconds to the storage time tracked in the context
func AddDBElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(dbElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetDBElapsed returns the storage time in nanoseconds tracked in the context
func GetDBElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(dbElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}

// WithTxCounter creates a context counting how many transactions a request started.
func WithTxCounter(ctx context.Context) context.Context {
	counter := int64(0)
	return context.WithValue(ctx, txCounterKey, &counter)
}

// IncrementTxCounter increments the started-transaction counter in the context
func IncrementTxCounter(ctx context.Context) {
	if counter, ok := ctx.Value(txCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetTxCounter returns how many transactions were started under the context
func GetTxCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(txCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}
