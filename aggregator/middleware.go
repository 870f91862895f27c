package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// TraceFunc observes one aggregation after it returns
type TraceFunc[P, D any] func(before P, items []D, after P, err error)

// Trace logs every aggregation and passes it to an optional callback
func Trace[P, D any](name string, callback TraceFunc[P, D]) Middleware[P, D] {
	return func(ctx context.Context, projection P, items []D, next Func[P, D]) (P, error) {
		start := time.Now()
		result, err := next(ctx, projection, items)
		if err != nil {
			logger.Debugf("Aggregator[%s]: failed on %d items after %s: %s", name, len(items), time.Since(start), err)
		} else {
			logger.Debugf("Aggregator[%s]: aggregated %d items in %s", name, len(items), time.Since(start))
		}
		if callback != nil {
			callback(projection, items, result, err)
		}
		return result, err
	}
}

// Default replaces an absent projection with newFn() before aggregating
func Default[P, D any](newFn func() P) Middleware[P, D] {
	return func(ctx context.Context, projection P, items []D, next Func[P, D]) (P, error) {
		if utils.IsNil(projection) {
			projection = newFn()
		}
		return next(ctx, projection, items)
	}
}

// Delay waits before each aggregation
func Delay[P, D any](delay time.Duration) Middleware[P, D] {
	return func(ctx context.Context, projection P, items []D, next Func[P, D]) (P, error) {
		select {
		case <-ctx.Done():
			return projection, ctx.Err()
		case <-time.After(delay):
		}
		return next(ctx, projection, items)
	}
}

// Retry re-runs a failing aggregation from the same input projection.
// The error of the final attempt is returned unchanged.
func Retry[P, D any](retries int, delay time.Duration) Middleware[P, D] {
	return func(ctx context.Context, projection P, items []D, next Func[P, D]) (P, error) {
		result := projection
		err := utils.RetryExec(ctx, func() error {
			var err error
			result, err = next(ctx, projection, items)
			return err
		}, retries, delay)
		if err != nil {
			return projection, err
		}
		return result, nil
	}
}

// WithSpan records each aggregation as a span of tracer
func WithSpan[P, D any](tracer trace.Tracer, name string) Middleware[P, D] {
	return func(ctx context.Context, projection P, items []D, next Func[P, D]) (P, error) {
		ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
			attribute.Int("catchup.items", len(items)),
			attribute.String("catchup.projection", fmt.Sprintf("%T", projection)),
		))
		defer span.End()

		result, err := next(ctx, projection, items)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}
