package catchup

import (
	"github.com/datazip-inc/streamcatchup/telemetry"
	"github.com/datazip-inc/streamcatchup/types"
)

type Option func(*settings)

type settings struct {
	batchSize int
	initial   any
	metrics   *telemetry.Metrics
}

// WithBatchSize bounds the number of items fetched per batch
func WithBatchSize(size int) Option {
	return func(s *settings) {
		s.batchSize = size
	}
}

// WithInitialCursor starts the engine, and every checkpointed projection that
// has not started yet, at cursor instead of the stream's first position.
func WithInitialCursor[C any](cursor *types.Cursor[C]) Option {
	return func(s *settings) {
		s.initial = cursor
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *settings) {
		s.metrics = metrics
	}
}

type SubscriptionOption func(*subscriptionSettings)

type subscriptionSettings struct {
	id     string
	policy any
}

// WithID overrides the subscription identity, which defaults to the
// projection type name.
func WithID(id string) SubscriptionOption {
	return func(s *subscriptionSettings) {
		s.id = id
	}
}

// WithErrorPolicy decides what happens when the subscription's aggregator fails
func WithErrorPolicy[P any](policy ErrorPolicy[P]) SubscriptionOption {
	return func(s *subscriptionSettings) {
		s.policy = policy
	}
}
