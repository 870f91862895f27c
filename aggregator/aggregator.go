// Package aggregator folds stream items into projections and composes
// aggregation middleware into pipelines.
package aggregator

import (
	"context"
)

// Aggregator folds a batch of items into a projection. It must tolerate a
// zero projection and an empty batch.
type Aggregator[P, D any] interface {
	Aggregate(ctx context.Context, projection P, items []D) (P, error)
}

// Func adapts a plain function to an Aggregator
type Func[P, D any] func(ctx context.Context, projection P, items []D) (P, error)

func (f Func[P, D]) Aggregate(ctx context.Context, projection P, items []D) (P, error) {
	return f(ctx, projection, items)
}

// Middleware wraps an aggregation step; it decides whether and how to call next.
type Middleware[P, D any] func(ctx context.Context, projection P, items []D, next Func[P, D]) (P, error)

// Pipeline composes middleware around an aggregator once. The first middleware
// in the list sits closest to the aggregator, the last one is outermost.
func Pipeline[P, D any](aggregator Aggregator[P, D], middleware ...Middleware[P, D]) Func[P, D] {
	composed := Func[P, D](aggregator.Aggregate)
	for _, stage := range middleware {
		next := composed
		composed = func(ctx context.Context, projection P, items []D) (P, error) {
			return stage(ctx, projection, items, next)
		}
	}
	return composed
}
