package stream

import (
	"context"
	"time"

	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// TraceHooks are optional callbacks invoked around every fetch
type TraceHooks[D, C any] struct {
	OnQuery   func(query *types.Query[C])
	OnResults func(query *types.Query[C], batch types.Batch[D, C])
}

// TracedStream logs every fetch of the wrapped stream
type TracedStream[D, C any] struct {
	source types.Stream[D, C]
	hooks  TraceHooks[D, C]
}

func Trace[D, C any](source types.Stream[D, C], hooks TraceHooks[D, C]) *TracedStream[D, C] {
	return &TracedStream[D, C]{source: source, hooks: hooks}
}

func (t *TracedStream[D, C]) ID() string {
	return t.source.ID()
}

func (t *TracedStream[D, C]) NewCursor() *types.Cursor[C] {
	return t.source.NewCursor()
}

func (t *TracedStream[D, C]) Fetch(ctx context.Context, query *types.Query[C]) (types.Batch[D, C], error) {
	logger.Debugf("Stream[%s]: query from cursor %s, batch size %d", t.source.ID(), query.Cursor, query.BatchSize)
	if t.hooks.OnQuery != nil {
		t.hooks.OnQuery(query)
	}

	start := time.Now()
	batch, err := t.source.Fetch(ctx, query)
	if err != nil {
		logger.Warnf("Stream[%s]: fetch failed after %s: %s", t.source.ID(), time.Since(start), err)
		return batch, err
	}

	logger.Debugf("Stream[%s]: fetched %d items in %s, cursor now %s", t.source.ID(), batch.Len(), time.Since(start), query.Cursor)
	if t.hooks.OnResults != nil {
		t.hooks.OnResults(query, batch)
	}
	return batch, nil
}
