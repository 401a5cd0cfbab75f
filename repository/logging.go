package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/go-bricks-tx/logger"
)

// loggable converts a filter into nested string-keyed maps so the sensitive
// data filter of the logger can mask values such as password hashes.
func loggable(filter any) any {
	if filter == nil {
		return nil
	}
	raw, err := bson.MarshalExtJSON(filter, false, false)
	if err != nil {
		return filter
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return filter
	}
	return out
}

type opLog struct {
	op     string
	id     string
	filter any
	start  time.Time
}

func (r *base) logResult(ctx context.Context, l opLog, affected int64, err error) {
	var ev logger.LogEvent
	if err != nil {
		ev = r.log.WithContext(ctx).Error().Err(err)
	} else {
		ev = r.log.WithContext(ctx).Debug().Int64("affected", affected)
	}

	ev = ev.Str("operation", l.op).
		Str("collection", r.collection).
		Dur("elapsed", time.Since(l.start))
	if l.id != "" {
		ev = ev.Str("id", l.id)
	}
	if l.filter != nil {
		ev = ev.Interface("filter", loggable(l.filter))
	}

	if err != nil {
		ev.Msg("Repository operation failed")
		return
	}
	ev.Msg("Repository operation completed")
}
