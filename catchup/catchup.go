// Package catchup replays batches of an ordered stream into subscribed
// projections. A single fetch per batch serves every subscription, starting
// from the least advanced of them, and concurrent batch requests share the
// batch already in flight.
package catchup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/telemetry"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

type result[C any] struct {
	cursor  *types.Cursor[C]
	fetched int
	// moved reports a fetch that advanced the cursor, possibly over a stretch
	// of the stream holding no items
	moved bool
	err   error
}

type pendingBatch[C any] struct {
	done   chan struct{}
	result result[C]
}

type Catchup[D, C any] struct {
	id        string
	stream    types.Stream[D, C]
	batchSize int
	metrics   *telemetry.Metrics
	initial   *types.Cursor[C]

	mu      sync.Mutex
	cursor  *types.Cursor[C]
	pending *pendingBatch[C]

	subsMu        sync.RWMutex
	subscriptions map[string]*subscription[D, C]
}

func New[D, C any](stream types.Stream[D, C], opts ...Option) (*Catchup[D, C], error) {
	if utils.IsNil(stream) {
		return nil, constants.ErrNilStream
	}

	s := &settings{batchSize: constants.DefaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", constants.ErrInvalidConfig, s.batchSize)
	}

	initial := stream.NewCursor()
	if s.initial != nil {
		cursor, ok := s.initial.(*types.Cursor[C])
		if !ok {
			return nil, fmt.Errorf("%w: initial cursor %T does not match stream[%s]", constants.ErrInvalidConfig, s.initial, stream.ID())
		}
		initial = cursor.Clone()
	}

	return &Catchup[D, C]{
		id:            utils.ULID(),
		stream:        stream,
		batchSize:     s.batchSize,
		metrics:       s.metrics,
		initial:       initial,
		cursor:        initial,
		subscriptions: make(map[string]*subscription[D, C]),
	}, nil
}

// ID identifies this engine instance in logs
func (c *Catchup[D, C]) ID() string {
	return c.id
}

func (c *Catchup[D, C]) Stream() types.Stream[D, C] {
	return c.stream
}

// Cursor returns the engine position. The returned cursor is never mutated.
func (c *Catchup[D, C]) Cursor() *types.Cursor[C] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// RunSingleBatch fetches and aggregates one batch for every subscription and
// returns the cursor the fetch ended at. A call made while another batch is
// running waits for that batch and returns its cursor and error.
func (c *Catchup[D, C]) RunSingleBatch(ctx context.Context) (*types.Cursor[C], error) {
	res := c.runSingleBatch(ctx)
	return res.cursor, res.err
}

// RunUntilCaughtUp runs batches until a fetch returns no items and leaves the
// cursor where it was
func (c *Catchup[D, C]) RunUntilCaughtUp(ctx context.Context) (*types.Cursor[C], error) {
	for batches := 1; ; batches++ {
		res := c.runSingleBatch(ctx)
		if res.err != nil {
			return res.cursor, res.err
		}
		if res.fetched == 0 && !res.moved {
			logger.Debugf("Catchup[%s]: stream[%s] caught up after %d batches at %s", c.id, c.stream.ID(), batches, res.cursor)
			return res.cursor, nil
		}
	}
}

func (c *Catchup[D, C]) runSingleBatch(ctx context.Context) result[C] {
	c.mu.Lock()
	if pending := c.pending; pending != nil {
		c.mu.Unlock()
		c.metrics.Coalesced(c.stream.ID())
		logger.Debugf("Catchup[%s]: batch already running, waiting for it", c.id)
		select {
		case <-pending.done:
			return pending.result
		case <-ctx.Done():
			return result[C]{cursor: c.Cursor(), err: ctx.Err()}
		}
	}

	subscriptions := c.snapshot()
	if len(subscriptions) == 0 {
		cursor := c.cursor
		c.mu.Unlock()
		return result[C]{cursor: cursor}
	}

	pending := &pendingBatch[C]{done: make(chan struct{})}
	c.pending = pending
	c.mu.Unlock()

	res := c.aggregate(ctx, subscriptions)

	c.mu.Lock()
	if res.err == nil {
		if res.cursor.Compare(c.cursor) > 0 {
			c.cursor = res.cursor
		}
	} else {
		res.cursor = c.cursor
	}
	pending.result = res
	c.pending = nil
	c.mu.Unlock()
	close(pending.done)

	c.metrics.BatchCompleted(c.stream.ID(), res.err)
	return res
}

// aggregate runs every subscription concurrently against one shared gate
func (c *Catchup[D, C]) aggregate(ctx context.Context, subscriptions []*subscription[D, C]) result[C] {
	gate := newGate(len(subscriptions), c.fetch)

	var group errgroup.Group
	for _, sub := range subscriptions {
		reporter := gate.reporter()
		group.Go(func() (err error) {
			defer reporter.release(ctx)
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("subscription[%s] panicked: %v", sub.id, r)
				}
			}()
			return sub.run(ctx, reporter)
		})
	}

	err := group.Wait()
	batch, cursor, moved, gateErr := gate.outcome()
	if err == nil {
		err = gateErr
	}
	if err != nil {
		logger.Errorf("Catchup[%s]: batch of stream[%s] failed: %s", c.id, c.stream.ID(), err)
		return result[C]{err: err}
	}

	logger.Debugf("Catchup[%s]: aggregated %d items of stream[%s] into %d subscriptions, cursor at %s", c.id, batch.Len(), c.stream.ID(), len(subscriptions), cursor)
	return result[C]{cursor: cursor, fetched: batch.Len(), moved: moved}
}

func (c *Catchup[D, C]) fetch(ctx context.Context, from *types.Cursor[C]) (types.Batch[D, C], *types.Cursor[C], error) {
	query := types.NewQuery(from, c.batchSize)
	start := time.Now()
	batch, err := c.stream.Fetch(ctx, query)
	if err != nil {
		return types.Batch[D, C]{}, nil, fmt.Errorf("%w: stream[%s]: %s", constants.ErrUpstreamFetch, c.stream.ID(), err)
	}
	if batch.Cursor == nil {
		batch.Cursor = from
	}

	c.metrics.Fetched(c.stream.ID(), batch.Len(), time.Since(start))
	return batch, query.Cursor, nil
}
