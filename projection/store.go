// Package projection holds the persistence side of a subscription: stores that
// load a projection by id, hand it to an update and save the result.
package projection

import (
	"context"
	"fmt"
)

// UpdateFunc receives the stored projection (zero value when absent) and
// returns the projection to persist. Returning an error discards the update.
type UpdateFunc[P any] func(ctx context.Context, projection P) (P, error)

// Store loads, updates and persists projections by id. FetchAndSave must call
// update exactly once and persist its result atomically for that id.
type Store[P any] interface {
	FetchAndSave(ctx context.Context, id string, update UpdateFunc[P]) error
}

// StoreFunc adapts a closure to a Store, typically one that opens a
// transaction around update.
type StoreFunc[P any] func(ctx context.Context, id string, update UpdateFunc[P]) error

func (f StoreFunc[P]) FetchAndSave(ctx context.Context, id string, update UpdateFunc[P]) error {
	return f(ctx, id, update)
}

// Create builds a store from separate get and put functions. Atomicity across
// the pair is up to the caller.
func Create[P any](get func(ctx context.Context, id string) (P, error), put func(ctx context.Context, id string, projection P) error) StoreFunc[P] {
	return func(ctx context.Context, id string, update UpdateFunc[P]) error {
		current, err := get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get projection[%s]: %w", id, err)
		}

		next, err := update(ctx, current)
		if err != nil {
			return err
		}

		if err := put(ctx, id, next); err != nil {
			return fmt.Errorf("failed to put projection[%s]: %w", id, err)
		}
		return nil
	}
}
