package catchup

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/datazip-inc/streamcatchup/aggregator"
	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/projection"
	"github.com/datazip-inc/streamcatchup/stream"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// Decision tells the engine how to treat a failed aggregation
type Decision int

const (
	// Rethrow fails the subscription's batch with the aggregation error
	Rethrow Decision = iota
	// Continue keeps the projection as it was before the batch and carries on
	Continue
)

func (d Decision) String() string {
	return utils.Ternary(d == Continue, "continue", "rethrow").(string)
}

// ErrorPolicy receives an aggregation error and the projection as it was before
// the failed batch.
type ErrorPolicy[P any] func(err error, projection P) Decision

type subscription[D, C any] struct {
	id    string
	store any
	run   func(ctx context.Context, reporter *reporter[D, C]) error

	// cursor is where a projection without a checkpoint resumes. It only
	// moves once the subscription's projection has been saved.
	mu     sync.Mutex
	cursor *types.Cursor[C]
}

func (s *subscription[D, C]) position() *types.Cursor[C] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *subscription[D, C]) advanceTo(cursor *types.Cursor[C]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cursor != nil && cursor.Compare(s.cursor) > 0 {
		s.cursor = cursor
	}
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	id     string
	once   sync.Once
	remove func()
}

func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe removes the subscription from its engine. A batch already
// running still includes it.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

// Subscribe registers an aggregator whose projection is loaded from and saved
// to store under the stream id on every batch.
func Subscribe[P, D, C any](c *Catchup[D, C], agg aggregator.Aggregator[P, D], store projection.Store[P], opts ...SubscriptionOption) (*Subscription, error) {
	id, policy, err := subscriptionSettingsFor[P](c, agg, store, opts)
	if err != nil {
		return nil, err
	}

	sub := &subscription[D, C]{id: id, store: store, cursor: c.Cursor()}
	sub.run = func(ctx context.Context, reporter *reporter[D, C]) error {
		var reached *types.Cursor[C]
		err := store.FetchAndSave(ctx, c.stream.ID(), func(ctx context.Context, current P) (P, error) {
			reached = nil
			start := startOf(sub, c, &current)
			batch, cursor, err := reporter.report(ctx, start)
			if err != nil {
				return current, err
			}

			next, err := agg.Aggregate(ctx, current, batch.After(start).Items)
			if err != nil {
				return handleError(c, id, policy, err, current)
			}

			advance(c, &next, cursor)
			reached = cursor
			return next, nil
		})
		if err != nil {
			return err
		}
		sub.advanceTo(reached)
		return nil
	}

	return c.register(sub)
}

// SubscribePartitions registers an aggregator over a partitioned stream. Every
// partition of a batch is folded into the projection stored under the
// partition key; partitions are processed concurrently.
func SubscribePartitions[P, D, C any](c *Catchup[stream.Partition[D, C], C], agg aggregator.Aggregator[P, D], store projection.Store[P], opts ...SubscriptionOption) (*Subscription, error) {
	id, policy, err := subscriptionSettingsFor[P](c, agg, store, opts)
	if err != nil {
		return nil, err
	}

	sub := &subscription[stream.Partition[D, C], C]{id: id, store: store, cursor: c.Cursor()}
	sub.run = func(ctx context.Context, reporter *reporter[stream.Partition[D, C], C]) error {
		batch, cursor, err := reporter.report(ctx, sub.position())
		if err != nil {
			return err
		}

		var group errgroup.Group
		for _, partition := range batch.Items {
			group.Go(func() error {
				return store.FetchAndSave(ctx, partition.Key, func(ctx context.Context, current P) (P, error) {
					items := partition.Batch(batch.Cursor)
					if checkpoint, checkpointed := checkpointOf[C](&current); checkpointed && checkpoint != nil {
						if position, started := checkpoint.Checkpoint(); started {
							items = items.After(c.initial.At(position))
						}
					}

					next, err := agg.Aggregate(ctx, current, items.Items)
					if err != nil {
						return handleError(c, fmt.Sprintf("%s/%s", id, partition.Key), policy, err, current)
					}

					advance(c, &next, cursor)
					return next, nil
				})
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		sub.advanceTo(cursor)
		return nil
	}

	return c.register(sub)
}

func subscriptionSettingsFor[P, D, C any](c *Catchup[D, C], agg any, store any, opts []SubscriptionOption) (string, ErrorPolicy[P], error) {
	if c == nil {
		return "", nil, fmt.Errorf("%w: catchup is nil", constants.ErrInvalidConfig)
	}
	if utils.IsNil(agg) {
		return "", nil, constants.ErrNilAggregator
	}
	if utils.IsNil(store) {
		return "", nil, constants.ErrNilStore
	}

	s := &subscriptionSettings{id: reflect.TypeFor[P]().String()}
	for _, opt := range opts {
		opt(s)
	}

	var policy ErrorPolicy[P]
	if s.policy != nil {
		typed, ok := s.policy.(ErrorPolicy[P])
		if !ok {
			return "", nil, fmt.Errorf("%w: error policy %T does not accept projection %s", constants.ErrInvalidConfig, s.policy, reflect.TypeFor[P]())
		}
		policy = typed
	}
	return s.id, policy, nil
}

func (c *Catchup[D, C]) register(sub *subscription[D, C]) (*Subscription, error) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if _, found := c.subscriptions[sub.id]; found {
		return nil, fmt.Errorf("%w: %s", constants.ErrDuplicateSubscription, sub.id)
	}
	// a store locks each projection for the whole update, so two
	// subscriptions updating the same entry in one batch would wait on each
	// other at the gate
	if reflect.TypeOf(sub.store).Comparable() {
		for _, other := range c.subscriptions {
			if other.store == sub.store {
				return nil, fmt.Errorf("%w: %s is used by %s", constants.ErrSharedStore, sub.id, other.id)
			}
		}
	}
	c.subscriptions[sub.id] = sub
	c.metrics.Subscribed(c.stream.ID())
	logger.Infof("Catchup[%s]: subscribed %s to stream[%s]", c.id, sub.id, c.stream.ID())

	return &Subscription{
		id: sub.id,
		remove: func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if c.subscriptions[sub.id] == sub {
				delete(c.subscriptions, sub.id)
				c.metrics.Unsubscribed(c.stream.ID())
				logger.Infof("Catchup[%s]: unsubscribed %s from stream[%s]", c.id, sub.id, c.stream.ID())
			}
		},
	}, nil
}

func (c *Catchup[D, C]) snapshot() []*subscription[D, C] {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	subscriptions := make([]*subscription[D, C], 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions
}

func handleError[P, D, C any](c *Catchup[D, C], id string, policy ErrorPolicy[P], err error, current P) (P, error) {
	decision := Rethrow
	if policy != nil {
		decision = policy(err, current)
	}
	c.metrics.AggregationFailed(c.stream.ID(), id, decision.String())

	if decision == Continue {
		logger.Warnf("Catchup[%s]: subscription %s failed, continuing: %s", c.id, id, err)
		return current, nil
	}
	return current, err
}

// checkpointOf returns the projection's checkpoint. A checkpointed projection
// that is a nil pointer reports true with a nil checkpoint.
func checkpointOf[C, P any](projection *P) (types.Checkpointed[C], bool) {
	if checkpoint, ok := any(*projection).(types.Checkpointed[C]); ok {
		if utils.IsNil(*projection) {
			return nil, true
		}
		return checkpoint, true
	}
	if checkpoint, ok := any(projection).(types.Checkpointed[C]); ok {
		return checkpoint, true
	}
	return nil, false
}

// startOf is the position after which the projection still needs items.
// Projections without a checkpoint resume from their subscription's cursor.
func startOf[P, D, C any](sub *subscription[D, C], c *Catchup[D, C], projection *P) *types.Cursor[C] {
	checkpoint, checkpointed := checkpointOf[C](projection)
	if !checkpointed {
		return sub.position()
	}
	if checkpoint != nil {
		if position, started := checkpoint.Checkpoint(); started {
			return c.initial.At(position)
		}
	}
	return c.initial
}

// advance moves a checkpointed projection to cursor, never backwards
func advance[P, D, C any](c *Catchup[D, C], projection *P, cursor *types.Cursor[C]) {
	checkpoint, checkpointed := checkpointOf[C](projection)
	if !checkpointed || checkpoint == nil {
		return
	}
	if position, started := checkpoint.Checkpoint(); started && cursor.Compare(c.initial.At(position)) <= 0 {
		return
	}
	checkpoint.AdvanceTo(cursor.Position())
}
